package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/buildgate/buildgate/internal/pkg/model"
	"github.com/buildgate/buildgate/internal/pkg/store"
	"github.com/buildgate/buildgate/internal/pkg/utils"
	"github.com/buildgate/buildgate/internal/pkg/validator"
)

// Sentinel codes, distinguishable from rank results by magnitude.
const (
	// CodeAlreadyClosed: the capacity is exhausted or the target record is
	// already terminal, no log entry was written.
	CodeAlreadyClosed = -1000
	// CodeInternalError: a store or transport failure, or the own entry was
	// not visible after the settle delay. Never surfaced as an error.
	CodeInternalError = -999
)

const DefaultSettleDelay = 10 * time.Second

type Config struct {
	// TargetRecordId is the record whose log collects the entries.
	TargetRecordId string `json:"targetRecordId" validate:"required"`
	// Capacity is the number of admissible reservations.
	Capacity int `json:"capacity" validate:"min=1"`
	// AgentName labels the appended entry.
	AgentName string `json:"agentName" validate:"required"`
	// CheckOnly reports available capacity without writing.
	CheckOnly bool `json:"checkOnly"`
	// SettleDelay is the propagation wait between append and read back.
	SettleDelay time.Duration `json:"settleDelay"`
}

// Coordinator allocates ranked reservations to independently scheduled
// agents that share nothing but the eventually consistent store. An agent
// appends a uniquely tagged entry to the target record log, waits for
// concurrent appends to become visible and takes the position of its own
// entry as the rank. The rank is admission when it fits the capacity.
//
// The settle delay substitutes for an atomic increment: when a concurrent
// append is not yet visible at read time, two agents can compute the same
// rank. This is a documented trade-off of the store's weak consistency,
// not something the coordinator tries to fix.
type Coordinator struct {
	store  store.Client
	cache  *store.Cache
	clock  clockwork.Clock
	logger *zap.SugaredLogger
	config Config
}

func NewCoordinator(client store.Client, clock clockwork.Clock, logger *zap.SugaredLogger, config Config) *Coordinator {
	if config.SettleDelay <= 0 {
		config.SettleDelay = DefaultSettleDelay
	}
	return &Coordinator{
		store:  client,
		cache:  store.NewCache(client),
		clock:  clock,
		logger: logger,
		config: config,
	}
}

// Reserve performs one reservation attempt and returns the protocol code:
// the zero-based rank when admitted, the negated rank when rejected,
// or one of the sentinels. Store failures never escape, they resolve to
// CodeInternalError with a diagnostic log line.
func (c *Coordinator) Reserve(ctx context.Context) int {
	code, err := c.reserve(ctx)
	if err != nil {
		c.logger.Warnf(`Reservation failed: %s`, err)
		return CodeInternalError
	}
	return code
}

func (c *Coordinator) reserve(ctx context.Context) (int, error) {
	if err := validator.Validate(c.config); err != nil {
		return 0, utils.PrefixError("invalid reservation configuration", err)
	}

	// Closed runs reject immediately, nothing is written
	props, err := c.store.GetProperties(ctx)
	if err != nil {
		return 0, err
	}
	if _, found := props[model.CapacityExhaustedKey]; found {
		c.logger.Infof(`Capacity of the run is already exhausted.`)
		return CodeAlreadyClosed, nil
	}
	target, err := c.cache.GetRecord(ctx, c.config.TargetRecordId, false)
	if err != nil {
		return 0, err
	}
	if target.HasResult() {
		c.logger.Infof(`Record "%s" is already closed with result "%s".`, target.Id, target.Result)
		return CodeAlreadyClosed, nil
	}

	if c.config.CheckOnly {
		c.logger.Info("More capacity likely available.")
		return c.config.Capacity, nil
	}

	entry := model.ReservationEntry{AgentName: c.config.AgentName, Id: uuid.Must(uuid.NewV4()).String()}
	if err := c.store.AppendLogLines(ctx, target.Id, []string{entry.Line()}); err != nil {
		return 0, err
	}
	c.logger.Debugf(`Appended reservation entry "%s" to record "%s".`, entry.Id, target.Id)

	// Best-effort propagation wait, so concurrent appends become visible
	c.logger.Debugf("Waiting %s for concurrent entries to settle.", c.config.SettleDelay)
	select {
	case <-c.clock.After(c.config.SettleDelay):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	lines, err := c.store.ReadLogLines(ctx, target.Id, 0, 0)
	if err != nil {
		return 0, err
	}
	rank := -1
	for position, parsed := range model.ParseReservationEntries(lines) {
		if parsed == entry {
			rank = position
			break
		}
	}
	if rank < 0 {
		return 0, fmt.Errorf(`own entry "%s" is not visible in record "%s" log after the settle delay`, entry.Id, target.Id)
	}

	if rank == c.config.Capacity-1 {
		// The last admissible rank closes the remaining capacity. Best-effort:
		// the flag only ever transitions unset to set, races are benign.
		flag := map[string]string{model.CapacityExhaustedKey: model.CapacityExhaustedValue}
		if err := c.store.SetProperties(ctx, flag); err != nil {
			c.logger.Warnf(`Cannot set the exhaustion flag: %s`, err)
		} else {
			c.logger.Debugf(`Run capacity exhausted, flag set.`)
		}
	}

	if rank < c.config.Capacity {
		c.logger.Infof(`Reservation admitted with rank %d of capacity %d.`, rank, c.config.Capacity)
		return rank, nil
	}
	c.logger.Infof(`Reservation rejected, rank %d exceeds capacity %d.`, rank, c.config.Capacity)
	return -rank, nil
}
