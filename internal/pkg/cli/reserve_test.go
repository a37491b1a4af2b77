package cli

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/buildgate/buildgate/internal/pkg/json"
	"github.com/buildgate/buildgate/internal/pkg/model"
	"github.com/buildgate/buildgate/internal/pkg/reservation"
)

const testRunId = "0d07cb34-6d45-4b86-9bdc-05cf5282ce01"

func TestReserveCmdFlags(t *testing.T) {
	root, _ := newTestRootCommand()
	cmd := root.GetCommandByName("reserve")
	assert.NotNil(t, cmd)

	var names []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		names = append(names, flag.Name)
	})
	assert.Equal(t, []string{"capacity", "check-only", "settle-delay", "target-record"}, names)
}

func TestReserveCmdMissingParams(t *testing.T) {
	root, out := newTestRootCommand()
	root.cmd.SetArgs([]string{"reserve", "--capacity", "1"})
	err := root.cmd.Execute()

	// Assert
	assert.Error(t, err)
	assert.Equal(t, "invalid parameters, see output above", err.Error())
	assert.Contains(t, out.String(), "Missing run api url.")
	assert.Contains(t, out.String(), "Missing run api token.")
	assert.Contains(t, out.String(), "Missing run id.")
}

func TestReserveCmdMissingCapacity(t *testing.T) {
	server := newFakeRunApi(t)
	root, _ := newTestRootCommand()
	root.cmd.SetArgs(append([]string{"reserve"}, server.connectionArgs()...))
	err := root.cmd.Execute()
	assert.Error(t, err)
	assert.Equal(t, `flag "--capacity" must be 1 or more, given 0`, err.Error())
}

func TestReserveCmdExecute(t *testing.T) {
	server := newFakeRunApi(t)
	root, out := newTestRootCommand()
	root.cmd.SetArgs(append(
		[]string{"reserve", "--capacity", "1", "--settle-delay", "1ms", "--agent-name", "agent-1"},
		server.connectionArgs()...,
	))

	// Admitted with the last admissible rank, the exhaustion flag is set
	assert.Equal(t, 0, root.Execute())
	assert.Contains(t, out.String(), "Reservation admitted with rank 0 of capacity 1.")
	assert.Len(t, server.logLines(testRunId), 1)
	assert.Contains(t, server.logLines(testRunId)[0], `"agentName":"agent-1"`)
	assert.Equal(t, model.CapacityExhaustedValue, server.property(model.CapacityExhaustedKey))
}

func TestReserveCmdExecuteCheckOnly(t *testing.T) {
	server := newFakeRunApi(t)
	root, out := newTestRootCommand()
	root.cmd.SetArgs(append(
		[]string{"reserve", "--capacity", "2", "--check-only"},
		server.connectionArgs()...,
	))

	// The optimistic upper bound is returned, nothing is written
	assert.Equal(t, 2, root.Execute())
	assert.Contains(t, out.String(), "More capacity likely available.")
	assert.Empty(t, server.logLines(testRunId))
}

func TestReserveCmdExecuteAlreadyClosed(t *testing.T) {
	server := newFakeRunApi(t)
	server.setProperty(model.CapacityExhaustedKey, model.CapacityExhaustedValue)

	root, out := newTestRootCommand()
	root.cmd.SetArgs(append(
		[]string{"reserve", "--capacity", "2", "--settle-delay", "1ms"},
		server.connectionArgs()...,
	))

	assert.Equal(t, reservation.CodeAlreadyClosed, root.Execute())
	assert.Contains(t, out.String(), "Capacity of the run is already exhausted.")
	assert.Empty(t, server.logLines(testRunId))
}

// fakeRunApi is a minimal in-memory run API backend for command tests.
// It serves the endpoints used by the coordinators for one fixed run
// and mirrors the store contract: log appends, variable merges on upsert
// and property bag merges.
type fakeRunApi struct {
	t          *testing.T
	server     *httptest.Server
	lock       sync.Mutex
	records    map[string]*model.Record
	logs       map[string][]string
	properties map[string]string
	events     []map[string]string
}

func newFakeRunApi(t *testing.T) *fakeRunApi {
	t.Helper()
	f := &fakeRunApi{
		t:          t,
		records:    make(map[string]*model.Record),
		logs:       make(map[string][]string),
		properties: make(map[string]string),
	}

	// The run root record always exists
	f.addRecord(&model.Record{Id: testRunId, Name: "Main run", RecordType: model.TypeRun})

	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

// connectionArgs returns the flags connecting a command to this server.
func (f *fakeRunApi) connectionArgs() []string {
	return []string{
		"--run-api-url", f.server.URL,
		"--run-api-token", "my-secret",
		"--run-id", testRunId,
	}
}

func (f *fakeRunApi) addRecord(record *model.Record) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.records[record.Id] = record
}

func (f *fakeRunApi) record(recordId string) *model.Record {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.records[recordId]
}

func (f *fakeRunApi) logLines(recordId string) []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.logs[recordId]...)
}

func (f *fakeRunApi) setProperty(key, value string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.properties[key] = value
}

func (f *fakeRunApi) property(key string) string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.properties[key]
}

func (f *fakeRunApi) completions() []map[string]string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]map[string]string(nil), f.events...)
}

func (f *fakeRunApi) handle(w http.ResponseWriter, req *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if req.Header.Get("X-RunApi-Token") != "my-secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "Invalid access token"}`))
		return
	}

	// Expected paths: /v1/runs/{runId}/{properties|events|records/{id}[/log]}
	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/v1/runs/"), "/")
	switch {
	case len(parts) == 2 && parts[1] == "properties":
		f.handleProperties(w, req)
	case len(parts) == 2 && parts[1] == "events" && req.Method == http.MethodPost:
		event := map[string]string{}
		json.MustDecode(f.readBody(req), &event)
		f.events = append(f.events, event)
		_, _ = w.Write([]byte(`{}`))
	case len(parts) == 3 && parts[1] == "records":
		f.handleRecord(w, req, parts[2])
	case len(parts) == 4 && parts[1] == "records" && parts[3] == "log":
		f.handleLog(w, req, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Unknown path"}`))
	}
}

func (f *fakeRunApi) handleProperties(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodPost {
		body := struct {
			Properties map[string]string `json:"properties"`
		}{}
		json.MustDecode(f.readBody(req), &body)
		for key, value := range body.Properties {
			f.properties[key] = value
		}
	}
	_, _ = w.Write(json.MustEncode(map[string]interface{}{"properties": f.properties}, false))
}

func (f *fakeRunApi) handleRecord(w http.ResponseWriter, req *http.Request, recordId string) {
	stored, found := f.records[recordId]
	if req.Method == http.MethodPost {
		partial := &model.Record{}
		json.MustDecode(f.readBody(req), partial)
		if !found {
			stored = &model.Record{Id: recordId}
			f.records[recordId] = stored
		}
		if partial.Result != "" {
			stored.Result = partial.Result
		}
		for name, variable := range partial.Variables {
			if stored.Variables == nil {
				stored.Variables = make(map[string]model.Variable)
			}
			stored.Variables[name] = variable
		}
	} else if !found {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Record not found"}`))
		return
	}
	_, _ = w.Write(json.MustEncode(stored, false))
}

func (f *fakeRunApi) handleLog(w http.ResponseWriter, req *http.Request, recordId string) {
	if _, found := f.records[recordId]; !found {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "Record not found"}`))
		return
	}

	if req.Method == http.MethodPost {
		body := struct {
			Lines []string `json:"lines"`
		}{}
		json.MustDecode(f.readBody(req), &body)
		f.logs[recordId] = append(f.logs[recordId], body.Lines...)
		_, _ = w.Write([]byte(`{}`))
		return
	}
	_, _ = w.Write(json.MustEncode(map[string]interface{}{"lines": f.logs[recordId]}, false))
}

func (f *fakeRunApi) readBody(req *http.Request) []byte {
	body, err := io.ReadAll(req.Body)
	assert.NoError(f.t, err)
	return body
}
