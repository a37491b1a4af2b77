package cli

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/buildgate/buildgate/internal/pkg/reservation"
)

const reserveShortDescription = `Take one slot of the shared run capacity`
const reserveLongDescription = `Command "reserve"

Append a reservation entry to the target record log
and compute this agent's rank among all entries.
The rank decides admission against the capacity.

The process exit code is the protocol result:
  0..N    admitted, the code is the zero-based rank
  -N      rejected, the magnitude is the observed rank
  -999    store failure or own entry not visible
  -1000   run already closed or capacity exhausted

POSIX shells see negative codes modulo 256, eg. -2 as 254.
`

func reserveCommand(root *rootCommand) *cobra.Command {
	capacity := 0
	checkOnly := false
	targetRecord := ""
	settleDelay := reservation.DefaultSettleDelay

	cmd := &cobra.Command{
		Use:   "reserve",
		Short: reserveShortDescription,
		Long:  reserveLongDescription,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate options
			if err := root.ValidateOptions([]string{"RunApiUrl", "RunApiToken", "RunId"}); err != nil {
				return err
			}
			if capacity < 1 {
				return fmt.Errorf(`flag "--capacity" must be 1 or more, given %d`, capacity)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			logger := root.logger

			// Validate token and get API
			api, err := root.GetRunApi()
			if err != nil {
				return err
			}

			// The run root record collects the entries unless overridden
			if len(targetRecord) == 0 {
				targetRecord = root.options.RunId
			} else {
				targetRecord = root.ResolveRecordId(targetRecord)
			}

			coordinator := reservation.NewCoordinator(api, clockwork.NewRealClock(), logger, reservation.Config{
				TargetRecordId: targetRecord,
				Capacity:       capacity,
				AgentName:      root.options.AgentNameOrHost(),
				CheckOnly:      checkOnly,
				SettleDelay:    settleDelay,
			})

			// The protocol code is the process exit code
			root.exitCode = coordinator.Reserve(root.ctx)
			logger.Debugf(`Command "reserve" finished with code %d, took %s.`, root.exitCode, time.Since(root.start))
			return nil
		},
	}

	// Reserve command flags
	cmd.Flags().SortFlags = true
	cmd.Flags().IntVarP(&capacity, "capacity", "c", 0, "number of admissible reservations")
	cmd.Flags().BoolVar(&checkOnly, "check-only", false, "report available capacity without writing")
	cmd.Flags().StringVar(&targetRecord, "target-record", "", "id or name of the record collecting the entries, defaults to the run root record")
	cmd.Flags().DurationVar(&settleDelay, "settle-delay", reservation.DefaultSettleDelay, "propagation wait between append and read back")

	return cmd
}
