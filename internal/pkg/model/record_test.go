package model

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/buildgate/buildgate/internal/pkg/json"
)

func TestRecordHasResult(t *testing.T) {
	record := &Record{Id: "123"}
	assert.False(t, record.HasResult())
	record.Result = ResultSucceeded
	assert.True(t, record.HasResult())
}

func TestRecordSetVariable(t *testing.T) {
	record := &Record{Id: "123"}
	assert.Nil(t, record.Variables)

	record.SetVariable("foo", "bar")
	assert.Equal(t, map[string]Variable{"foo": {Value: "bar"}}, record.Variables)

	record.SetVariable("foo", "baz")
	assert.Equal(t, map[string]Variable{"foo": {Value: "baz"}}, record.Variables)
}

func TestRecordVariablesWithPrefix(t *testing.T) {
	record := &Record{Id: "123"}
	assert.Empty(t, record.VariablesWithPrefix("barrier."))

	record.SetVariable("barrier.2", "agent-2")
	record.SetVariable("barrier.1", "agent-1")
	record.SetVariable("unrelated", "value")
	assert.Equal(t, []string{"barrier.1", "barrier.2"}, record.VariablesWithPrefix("barrier."))
	assert.Empty(t, record.VariablesWithPrefix("missing."))
}

func TestRecordJsonNames(t *testing.T) {
	data := `{"id":"123","parentId":"456","name":"Build","type":"Job","result":"failed","variables":{"key":{"value":"secret","isSecret":true}}}`
	record := &Record{}
	assert.NoError(t, json.DecodeString(data, record))
	assert.Equal(t, "123", record.Id)
	assert.Equal(t, "456", record.ParentId)
	assert.Equal(t, "Build", record.Name)
	assert.Equal(t, TypeJob, record.RecordType)
	assert.Equal(t, ResultFailed, record.Result)
	assert.Equal(t, Variable{Value: "secret", Secret: true}, record.Variables["key"])
}
