package barrier

import (
	"context"
	"errors"
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

const (
	// CodeTargetUnresolved: no target record could be determined.
	CodeTargetUnresolved = -1
	// CodeFailed: cancellation, timeout or a store failure. The cases are
	// told apart only by the emitted completion signal, if any.
	CodeFailed = -2
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultQualifier    = "barrier."
)

// TargetSelector picks the record the participants meet on.
// The first set rule wins: explicit record id, property bag lookup,
// the caller's own task record, and as the default the nearest enclosing
// phase record above the caller's job record.
type TargetSelector struct {
	RecordId    string `json:"recordId"`
	PropertyKey string `json:"propertyKey"`
	TaskScope   bool   `json:"taskScope"`
}

type Config struct {
	// Participants is the number of distinct markers that satisfies the barrier.
	Participants int `json:"participants" validate:"min=1"`
	// Qualifier is the shared prefix of this barrier's marker keys.
	Qualifier string         `json:"qualifier" validate:"required"`
	Target    TargetSelector `json:"target"`
	// JobRecordId and TaskRecordId locate the caller in the run tree.
	JobRecordId  string `json:"jobRecordId"`
	TaskRecordId string `json:"taskRecordId"`
	// DisplayName is the human readable value of the written marker.
	DisplayName string `json:"displayName"`
	// WaitOnly observes without writing a marker.
	WaitOnly bool `json:"waitOnly"`
	// MarkComplete emits the one-time completion signal.
	MarkComplete bool `json:"markComplete"`
	// Timeout bounds the whole wait, zero means no bound.
	Timeout time.Duration `json:"timeout"`
	// PollInterval is the sleep between observations.
	PollInterval time.Duration `json:"pollInterval"`
}

// Coordinator synchronizes independently scheduled agents on a shared
// record: each participant merges a uniquely keyed marker variable into the
// target record and polls until the number of distinct marker keys with the
// shared qualifier prefix reaches the required count. Markers are never
// removed, so a satisfied barrier stays satisfied for late observers.
type Coordinator struct {
	store  store.Client
	cache  *store.Cache
	clock  clockwork.Clock
	logger *zap.SugaredLogger
	config Config
}

func NewCoordinator(client store.Client, clock clockwork.Clock, logger *zap.SugaredLogger, config Config) *Coordinator {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Coordinator{
		store:  client,
		cache:  store.NewCache(client),
		clock:  clock,
		logger: logger,
		config: config,
	}
}

// Synchronize blocks until the barrier is satisfied, cancelled or timed out
// and returns the protocol code: 0 on success, CodeTargetUnresolved when no
// target record could be determined, CodeFailed otherwise. Store failures
// never escape as errors.
func (c *Coordinator) Synchronize(ctx context.Context) int {
	if err := validator.Validate(c.config); err != nil {
		c.logger.Warnf(`Synchronization failed: %s`, utils.PrefixError("invalid barrier configuration", err))
		return CodeFailed
	}

	targetId, err := c.resolve(ctx)
	if err == nil {
		// The target must exist before any marker is merged into it
		if _, getErr := c.cache.GetRecord(ctx, targetId, false); getErr != nil {
			if store.IsNotFound(getErr) {
				err = unresolvedf(`target record "%s" not found`, targetId)
			} else {
				err = getErr
			}
		}
	}
	if err != nil {
		var unresolved *unresolvedError
		if errors.As(err, &unresolved) {
			c.logger.Warnf(`Cannot resolve barrier target: %s`, err)
			return CodeTargetUnresolved
		}
		c.logger.Warnf(`Synchronization failed: %s`, err)
		return CodeFailed
	}

	marker := c.config.Qualifier + uuid.Must(uuid.NewV4()).String()
	c.logger.Debugf(`Waiting on record "%s" for %d participants.`, targetId, c.config.Participants)

	var deadline time.Time
	if c.config.Timeout > 0 {
		deadline = c.clock.Now().Add(c.config.Timeout)
	}

	for {
		select {
		case <-ctx.Done():
			return c.cancelled(ctx, targetId, ctx.Err())
		default:
		}

		count, err := c.observe(ctx, targetId, marker)
		if err != nil {
			c.logger.Warnf(`Synchronization failed: %s`, err)
			return CodeFailed
		}
		if count >= c.config.Participants {
			c.logger.Infof(`Barrier satisfied, %d of %d participants arrived.`, count, c.config.Participants)
			if c.config.MarkComplete {
				c.complete(ctx, targetId, model.ResultSucceeded)
			}
			return 0
		}
		c.logger.Infof(`Waiting for participants, %d of %d arrived.`, count, c.config.Participants)

		wait := c.config.PollInterval
		if !deadline.IsZero() {
			remaining := deadline.Sub(c.clock.Now())
			if remaining <= 0 {
				return c.cancelled(ctx, targetId, fmt.Errorf("timeout %s exceeded", c.config.Timeout))
			}
			if remaining < wait {
				wait = remaining
			}
		}
		select {
		case <-c.clock.After(wait):
		case <-ctx.Done():
			return c.cancelled(ctx, targetId, ctx.Err())
		}
	}
}

// resolve picks the target record id, first selector rule that applies wins.
func (c *Coordinator) resolve(ctx context.Context) (string, error) {
	target := c.config.Target
	if target.RecordId != "" {
		return target.RecordId, nil
	}

	if target.PropertyKey != "" {
		props, err := c.store.GetProperties(ctx)
		if err != nil {
			return "", err
		}
		value, found := props[target.PropertyKey]
		if !found || value == "" {
			return "", unresolvedf(`property "%s" is not set in the run`, target.PropertyKey)
		}
		return value, nil
	}

	if target.TaskScope {
		if c.config.TaskRecordId == "" {
			return "", unresolvedf("task record id of the caller is not known")
		}
		return c.config.TaskRecordId, nil
	}

	// Default: the nearest enclosing phase above the caller's job record
	if c.config.JobRecordId == "" {
		return "", unresolvedf("job record id of the caller is not known")
	}
	recordId := c.config.JobRecordId
	visited := make(map[string]bool) // guard against malformed parent chains
	for recordId != "" && !visited[recordId] {
		visited[recordId] = true
		record, err := c.cache.GetRecord(ctx, recordId, false)
		if err != nil {
			if store.IsNotFound(err) {
				return "", unresolvedf(`record "%s" not found while searching for the enclosing phase`, recordId)
			}
			return "", err
		}
		if record.RecordType == model.TypePhase {
			return record.Id, nil
		}
		recordId = record.ParentId
	}
	return "", unresolvedf(`no enclosing "%s" record found above job record "%s"`, model.TypePhase, c.config.JobRecordId)
}

// observe merges the own marker, unless the call only waits, and counts the
// distinct marker keys visible on the target record.
func (c *Coordinator) observe(ctx context.Context, targetId string, marker string) (int, error) {
	var target *model.Record
	var err error
	if c.config.WaitOnly {
		target, err = c.cache.GetRecord(ctx, targetId, true)
	} else {
		update := &model.Record{Id: targetId}
		update.SetVariable(marker, c.config.DisplayName)
		target, err = c.store.UpsertRecord(ctx, update)
		if err == nil {
			c.cache.Set(target)
		}
	}
	if err != nil {
		return 0, err
	}
	return len(target.VariablesWithPrefix(c.config.Qualifier)), nil
}

// complete sets the result and emits the completion event, once: a record
// that already has a terminal result is never overwritten.
func (c *Coordinator) complete(ctx context.Context, targetId string, result string) {
	target, err := c.cache.GetRecord(ctx, targetId, true)
	if err != nil {
		c.logger.Warnf(`Cannot check record "%s" before completion: %s`, targetId, err)
		return
	}
	if target.HasResult() {
		c.logger.Debugf(`Record "%s" already has result "%s", completion skipped.`, target.Id, target.Result)
		return
	}

	if _, err := c.store.UpsertRecord(ctx, &model.Record{Id: targetId, Result: result}); err != nil {
		c.logger.Warnf(`Cannot set result of record "%s": %s`, targetId, err)
		return
	}
	if err := c.store.EmitCompletion(ctx, result, targetId); err != nil {
		c.logger.Warnf(`Cannot emit completion event for record "%s": %s`, targetId, err)
	}
	c.logger.Debugf(`Record "%s" completed with result "%s".`, targetId, result)
}

func (c *Coordinator) cancelled(ctx context.Context, targetId string, reason error) int {
	c.logger.Warnf(`Synchronization cancelled: %s`, reason)
	if c.config.MarkComplete {
		// The parent context may already be cancelled
		c.complete(context.WithoutCancel(ctx), targetId, model.ResultCanceled)
	}
	return CodeFailed
}

type unresolvedError struct {
	message string
}

func (e *unresolvedError) Error() string {
	return e.message
}

func unresolvedf(format string, args ...interface{}) *unresolvedError {
	return &unresolvedError{message: fmt.Sprintf(format, args...)}
}
