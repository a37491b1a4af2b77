package model

import (
	"sort"
	"strings"
)

// Known record types. The set is open, the Run API does not validate it.
const (
	TypeRun   = "Run"
	TypePhase = "Phase"
	TypeJob   = "Job"
	TypeTask  = "Task"
)

// Known result tags. Result is advisory and write-once by convention only.
const (
	ResultSucceeded = "succeeded"
	ResultCanceled  = "canceled"
	ResultFailed    = "failed"
)

// Run property marking the reserved capacity as exhausted.
const (
	CapacityExhaustedKey   = "buildgate.capacity.exhausted"
	CapacityExhaustedValue = "true"
)

// Record is one node of the run timeline tree.
type Record struct {
	Id         string              `json:"id" validate:"required"`
	ParentId   string              `json:"parentId,omitempty"`
	Name       string              `json:"name,omitempty"`
	RecordType string              `json:"type,omitempty"`
	Result     string              `json:"result,omitempty"`
	Variables  map[string]Variable `json:"variables,omitempty"`
}

type Variable struct {
	Value  string `json:"value"`
	Secret bool   `json:"isSecret,omitempty"`
}

// HasResult returns true if the record reached a terminal result.
func (r *Record) HasResult() bool {
	return len(r.Result) > 0
}

// SetVariable adds or replaces a variable, the map is allocated when needed.
func (r *Record) SetVariable(name, value string) {
	if r.Variables == nil {
		r.Variables = make(map[string]Variable)
	}
	r.Variables[name] = Variable{Value: value}
}

// VariablesWithPrefix returns names of all variables starting with the
// prefix, sorted by name.
func (r *Record) VariablesWithPrefix(prefix string) []string {
	names := make([]string, 0)
	for name := range r.Variables {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
