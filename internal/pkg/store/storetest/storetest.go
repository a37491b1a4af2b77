package storetest

import (
	"context"
	"sort"
	"sync"

	"github.com/buildgate/buildgate/internal/pkg/model"
	"github.com/buildgate/buildgate/internal/pkg/store"
)

// Store is an in-memory store.Client for coordinator tests. Record and
// property writes apply immediately, log appends become visible on Flush
// when auto flush is disabled, so tests can hold propagation back the way
// the real store does. Errors can be injected per operation.
type Store struct {
	lock        sync.Mutex
	records     map[string]*model.Record
	logs        map[string][]string
	pending     map[string][]string
	properties  map[string]string
	completions []Completion
	autoFlush   bool
	failures    map[string]error
}

// Completion is one recorded EmitCompletion call.
type Completion struct {
	Result   string
	RecordId string
}

func NewStore() *Store {
	return &Store{
		records:    make(map[string]*model.Record),
		logs:       make(map[string][]string),
		pending:    make(map[string][]string),
		properties: make(map[string]string),
		autoFlush:  true,
		failures:   make(map[string]error),
	}
}

// AddRecord seeds a record, overwriting any previous state.
func (s *Store) AddRecord(record *model.Record) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.records[record.Id] = cloneRecord(record)
}

// Record returns a copy of the stored record, nil when absent.
func (s *Store) Record(recordId string) *model.Record {
	s.lock.Lock()
	defer s.lock.Unlock()
	record, found := s.records[recordId]
	if !found {
		return nil
	}
	return cloneRecord(record)
}

// AutoFlush toggles immediate visibility of appended log lines.
func (s *Store) AutoFlush(enabled bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.autoFlush = enabled
}

// Flush makes all pending log lines visible, in append order.
func (s *Store) Flush() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for recordId, lines := range s.pending {
		s.logs[recordId] = append(s.logs[recordId], lines...)
		delete(s.pending, recordId)
	}
}

// VisibleLog returns the currently visible log lines of the record.
func (s *Store) VisibleLog(recordId string) []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.logs[recordId]...)
}

// Properties returns a copy of the property bag.
func (s *Store) Properties() map[string]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return cloneProperties(s.properties)
}

// Completions returns all recorded completion events.
func (s *Store) Completions() []Completion {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Completion(nil), s.completions...)
}

// FailWith makes the named store.Client method return the error until
// cleared with a nil error.
func (s *Store) FailWith(operation string, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err == nil {
		delete(s.failures, operation)
	} else {
		s.failures[operation] = err
	}
}

func (s *Store) GetRecord(ctx context.Context, recordId string) (*model.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["GetRecord"]; err != nil {
		return nil, err
	}

	record, found := s.records[recordId]
	if !found {
		return nil, &store.NotFoundError{RecordId: recordId}
	}
	return cloneRecord(record), nil
}

func (s *Store) UpsertRecord(ctx context.Context, record *model.Record) (*model.Record, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["UpsertRecord"]; err != nil {
		return nil, err
	}

	stored, found := s.records[record.Id]
	if !found {
		stored = &model.Record{Id: record.Id}
		s.records[record.Id] = stored
	}
	if record.ParentId != "" {
		stored.ParentId = record.ParentId
	}
	if record.Name != "" {
		stored.Name = record.Name
	}
	if record.RecordType != "" {
		stored.RecordType = record.RecordType
	}
	if record.Result != "" {
		stored.Result = record.Result
	}
	for name, variable := range record.Variables {
		if stored.Variables == nil {
			stored.Variables = make(map[string]model.Variable)
		}
		stored.Variables[name] = variable
	}
	return cloneRecord(stored), nil
}

func (s *Store) AppendLogLines(ctx context.Context, recordId string, lines []string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["AppendLogLines"]; err != nil {
		return err
	}
	if _, found := s.records[recordId]; !found {
		return &store.NotFoundError{RecordId: recordId}
	}

	if s.autoFlush {
		s.logs[recordId] = append(s.logs[recordId], lines...)
	} else {
		s.pending[recordId] = append(s.pending[recordId], lines...)
	}
	return nil
}

func (s *Store) ReadLogLines(ctx context.Context, recordId string, startLine, endLine int) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["ReadLogLines"]; err != nil {
		return nil, err
	}
	if _, found := s.records[recordId]; !found {
		return nil, &store.NotFoundError{RecordId: recordId}
	}

	lines := s.logs[recordId]
	if startLine <= 0 {
		startLine = 1
	}
	if endLine <= 0 || endLine > len(lines) {
		endLine = len(lines)
	}
	if startLine > endLine {
		return []string{}, nil
	}
	return append([]string(nil), lines[startLine-1:endLine]...), nil
}

func (s *Store) GetProperties(ctx context.Context) (map[string]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["GetProperties"]; err != nil {
		return nil, err
	}
	return cloneProperties(s.properties), nil
}

func (s *Store) SetProperties(ctx context.Context, props map[string]string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["SetProperties"]; err != nil {
		return err
	}
	for key, value := range props {
		s.properties[key] = value
	}
	return nil
}

func (s *Store) EmitCompletion(ctx context.Context, result string, recordId string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if err := s.failures["EmitCompletion"]; err != nil {
		return err
	}
	s.completions = append(s.completions, Completion{Result: result, RecordId: recordId})
	return nil
}

// PropertyKeys returns the sorted keys of the property bag.
func (s *Store) PropertyKeys() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, 0, len(s.properties))
	for key := range s.properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func cloneRecord(r *model.Record) *model.Record {
	clone := *r
	if r.Variables != nil {
		clone.Variables = make(map[string]model.Variable, len(r.Variables))
		for name, variable := range r.Variables {
			clone.Variables[name] = variable
		}
	}
	return &clone
}

func cloneProperties(props map[string]string) map[string]string {
	clone := make(map[string]string, len(props))
	for key, value := range props {
		clone[key] = value
	}
	return clone
}
