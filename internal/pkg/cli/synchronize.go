package cli

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/buildgate/buildgate/internal/pkg/barrier"
)

const synchronizeShortDescription = `Wait until all participants reach the barrier`
const synchronizeLongDescription = `Command "synchronize"

Write a participant marker to the target record and
poll until the required number of distinct markers
with the shared qualifier prefix is visible.

The target record is picked by the first matching rule:
"--target-record", "--target-property", "--task-scope",
or the nearest enclosing phase above the calling job.

The process exit code is the protocol result:
  0     barrier satisfied
  -1    target record could not be resolved
  -2    cancelled, timed out or store failure

POSIX shells see negative codes modulo 256, eg. -2 as 254.
`

func synchronizeCommand(root *rootCommand) *cobra.Command {
	participants := 0
	qualifier := barrier.DefaultQualifier
	targetRecord := ""
	targetProperty := ""
	taskScope := false
	displayName := ""
	waitOnly := false
	markComplete := false
	timeout := time.Duration(0)
	pollInterval := barrier.DefaultPollInterval

	cmd := &cobra.Command{
		Use:     "synchronize",
		Aliases: []string{"barrier"},
		Short:   synchronizeShortDescription,
		Long:    synchronizeLongDescription,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate options
			if err := root.ValidateOptions([]string{"RunApiUrl", "RunApiToken", "RunId"}); err != nil {
				return err
			}
			if participants < 1 {
				return fmt.Errorf(`flag "--participants" must be 1 or more, given %d`, participants)
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

			// The marker value defaults to the agent identity
			if len(displayName) == 0 {
				displayName = root.options.AgentNameOrHost()
			}
			if len(targetRecord) > 0 {
				targetRecord = root.ResolveRecordId(targetRecord)
			}

			coordinator := barrier.NewCoordinator(api, clockwork.NewRealClock(), logger, barrier.Config{
				Participants: participants,
				Qualifier:    qualifier,
				Target: barrier.TargetSelector{
					RecordId:    targetRecord,
					PropertyKey: targetProperty,
					TaskScope:   taskScope,
				},
				JobRecordId:  root.options.JobRecordId,
				TaskRecordId: root.options.TaskRecordId,
				DisplayName:  displayName,
				WaitOnly:     waitOnly,
				MarkComplete: markComplete,
				Timeout:      timeout,
				PollInterval: pollInterval,
			})

			// The protocol code is the process exit code
			root.exitCode = coordinator.Synchronize(root.ctx)
			logger.Debugf(`Command "synchronize" finished with code %d, took %s.`, root.exitCode, time.Since(root.start))
			return nil
		},
	}

	// Synchronize command flags
	cmd.Flags().SortFlags = true
	cmd.Flags().IntVarP(&participants, "participants", "n", 0, "number of distinct markers that satisfies the barrier")
	cmd.Flags().StringVarP(&qualifier, "qualifier", "q", barrier.DefaultQualifier, "shared prefix of this barrier's marker keys")
	cmd.Flags().StringVar(&targetRecord, "target-record", "", "explicit target record id or name")
	cmd.Flags().StringVar(&targetProperty, "target-property", "", "run property holding the target record id")
	cmd.Flags().BoolVar(&taskScope, "task-scope", false, "use the calling task record as the target")
	cmd.Flags().StringVar(&displayName, "display-name", "", "marker value, defaults to the agent name")
	cmd.Flags().BoolVar(&waitOnly, "wait-only", false, "observe the barrier without writing a marker")
	cmd.Flags().BoolVar(&markComplete, "mark-complete", false, "complete the target record when satisfied")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this duration, zero waits forever")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", barrier.DefaultPollInterval, "sleep between observations")

	return cmd
}
