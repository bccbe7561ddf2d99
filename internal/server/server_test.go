package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deploymenttheory/wfkit/internal/storage"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool                       `json:"success"`
	Data    map[string]json.RawMessage `json:"data"`
	Error   string                     `json:"error"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_ok.json"), []byte(`{
  "name": "OK",
  "nodes": [
    {"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger"},
    {"id": "2", "name": "Set", "type": "n8n-nodes-base.set"}
  ],
  "connections": {"Start": ["Set"]}
}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0002_bad.json"), []byte(`{
  "name": "Bad",
  "nodes": [{"id": "1", "name": "Set", "type": "n8n-nodes-base.set"}],
  "connections": {"Set": ["Ghost"]}
}`), 0644))

	store := storage.NewMemoryStore()
	_, err := storage.NewIndexer(store).Reindex(context.Background(), dir)
	require.NoError(t, err)

	return New(Options{
		Store:        store,
		WorkflowsDir: dir,
		Lint:         workflow.DefaultLintOptions(),
		Version:      "test",
	})
}

func get(t *testing.T, s *Server, path string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func TestHealth(t *testing.T) {
	code, env := get(t, newTestServer(t), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.JSONEq(t, `"healthy"`, string(env.Data["status"]))
	assert.JSONEq(t, `"test"`, string(env.Data["version"]))
}

func TestListWorkflows(t *testing.T) {
	s := newTestServer(t)

	code, env := get(t, s, "/workflows")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `2`, string(env.Data["count"]))

	code, env = get(t, s, "/workflows?q=ok&trigger=triggered")
	assert.Equal(t, http.StatusOK, code)
	var records []storage.Record
	require.NoError(t, json.Unmarshal(env.Data["workflows"], &records))
	require.Len(t, records, 1)
	assert.Equal(t, "0001_ok.json", records[0].Filename)

	code, env = get(t, s, "/workflows?limit=-1")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestGetWorkflow(t *testing.T) {
	s := newTestServer(t)

	code, env := get(t, s, "/workflows/0002_bad.json")
	assert.Equal(t, http.StatusOK, code)
	var rec storage.Record
	require.NoError(t, json.Unmarshal(env.Data["workflow"], &rec))
	assert.False(t, rec.Valid)

	code, env = get(t, s, "/workflows/missing.json")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestValidateWorkflow(t *testing.T) {
	s := newTestServer(t)

	code, env := get(t, s, "/workflows/0002_bad.json/validate")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `false`, string(env.Data["valid"]))

	var issues []workflow.Issue
	require.NoError(t, json.Unmarshal(env.Data["issues"], &issues))
	require.Len(t, issues, 1)
	assert.Equal(t, workflow.CodeDanglingTarget, issues[0].Code)

	var lint []workflow.Issue
	require.NoError(t, json.Unmarshal(env.Data["lint"], &lint))
	assert.NotEmpty(t, lint)

	code, _ = get(t, s, "/workflows/absent.json/validate")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, s, "/workflows/notes.txt/validate")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStatsAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, env := get(t, s, "/stats")
	assert.Equal(t, http.StatusOK, code)
	var stats storage.Stats
	require.NoError(t, json.Unmarshal(env.Data["stats"], &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Invalid)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wfkit_http_requests_total")
}
