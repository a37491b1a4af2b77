package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildgate/buildgate/internal/pkg/model"
)

// Client is the coordination store consumed by the coordinators.
// It is implemented by remote.RunApi in production and by storetest.Store
// in tests. The store is only eventually consistent: log reads return a
// possibly stale prefix of the true append order and there is no
// compare-and-swap, callers must derive their guarantees from append and
// merge operations only.
type Client interface {
	// GetRecord loads one record, NotFound error when the id is unknown.
	GetRecord(ctx context.Context, recordId string) (*model.Record, error)
	// UpsertRecord merges the partial record into the stored one, variables
	// by union, and returns the record as persisted.
	UpsertRecord(ctx context.Context, record *model.Record) (*model.Record, error)
	// AppendLogLines appends lines to the record log, ordering among
	// concurrent callers is store-defined.
	AppendLogLines(ctx context.Context, recordId string, lines []string) error
	// ReadLogLines returns the requested log window, startLine == endLine == 0
	// means the whole log.
	ReadLogLines(ctx context.Context, recordId string, startLine, endLine int) ([]string, error)
	// GetProperties returns the flat run-scoped property bag.
	GetProperties(ctx context.Context) (map[string]string, error)
	// SetProperties merges the given entries into the property bag.
	SetProperties(ctx context.Context, props map[string]string) error
	// EmitCompletion sends a fire-and-forget completion event,
	// idempotency is the caller's responsibility.
	EmitCompletion(ctx context.Context, result string, recordId string) error
}

// NotFoundError signals a record id unknown to the store.
type NotFoundError struct {
	RecordId string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf(`record "%s" not found`, e.RecordId)
}

func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
