package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexedWorkflow = `{
  "name": "Slack digest",
  "active": true,
  "nodes": [
    {"id": "1", "name": "Every morning", "type": "n8n-nodes-base.cron"},
    {"id": "2", "name": "Slack", "type": "n8n-nodes-base.slack"}
  ],
  "connections": {"Every morning": {"main": [[{"node": "Slack", "type": "main", "index": 0}]]}},
  "tags": ["daily"],
  "createdAt": "2024-01-02T03:04:05.000Z",
  "updatedAt": "2024-01-03T03:04:05.000Z"
}`

const danglingWorkflow = `{
  "name": "Broken link",
  "nodes": [{"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger"}],
  "connections": {"Start": ["Nowhere"]}
}`

func writeWorkflow(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestBuildRecord(t *testing.T) {
	rec := BuildRecord("workflows/0001_digest.json", []byte(indexedWorkflow))
	assert.Equal(t, "0001_digest.json", rec.Filename)
	assert.Equal(t, "Slack digest", rec.Name)
	assert.True(t, rec.Active)
	assert.True(t, rec.Valid)
	assert.Equal(t, "Scheduled", rec.TriggerType)
	assert.Equal(t, []string{"Slack"}, rec.Integrations)
	assert.Equal(t, []string{"daily"}, rec.Tags)
	assert.Len(t, rec.SHA256, 64)
	require.NotNil(t, rec.CreatedAt)
	assert.Equal(t, 2024, rec.CreatedAt.Year())

	broken := BuildRecord("workflows/0002_bad.json", []byte(`{"nodes": [`))
	assert.False(t, broken.Valid)
	assert.Equal(t, "0002_bad.json", broken.Name)
	assert.Equal(t, 1, broken.IssueCount)
}

func TestReindex(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "0001_digest.json", indexedWorkflow)
	writeWorkflow(t, dir, "0002_dangling.json", danglingWorkflow)
	writeWorkflow(t, dir, "readme.txt", "not a workflow")

	store := NewMemoryStore()
	ix := NewIndexer(store)
	ctx := context.Background()

	summary, err := ix.Reindex(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Indexed: 2, Invalid: 1}, summary)

	rec, err := store.Get(ctx, "0002_dangling.json")
	require.NoError(t, err)
	assert.False(t, rec.Valid)
	assert.Equal(t, 1, rec.IssueCount)

	summary, err = ix.Reindex(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Unchanged: 2, Invalid: 1}, summary)

	require.NoError(t, os.Remove(filepath.Join(dir, "0002_dangling.json")))
	writeWorkflow(t, dir, "0001_digest.json", `{"name": "Renamed", "nodes": []}`)

	summary, err = ix.Reindex(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Indexed: 1, Removed: 1}, summary)

	rec, err = store.Get(ctx, "0001_digest.json")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", rec.Name)

	_, err = store.Get(ctx, "0002_dangling.json")
	assert.ErrorIs(t, err, errors.ErrStoreNotFound)
}

func TestReindexMissingDir(t *testing.T) {
	_, err := NewIndexer(NewMemoryStore()).Reindex(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, errors.ErrDirNotFound)
}

func TestReindexKeepsRecordOfUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	writeWorkflow(t, dir, "0001_digest.json", indexedWorkflow)
	writeWorkflow(t, dir, "0002_dangling.json", danglingWorkflow)

	store := NewMemoryStore()
	ix := NewIndexer(store)
	ctx := context.Background()

	_, err := ix.Reindex(ctx, dir)
	require.NoError(t, err)

	ix.readFile = func(path string) ([]byte, error) {
		if filepath.Base(path) == "0002_dangling.json" {
			return nil, os.ErrPermission
		}
		return os.ReadFile(path)
	}
	summary, err := ix.Reindex(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, Summary{Unchanged: 1}, summary)

	rec, err := store.Get(ctx, "0002_dangling.json")
	require.NoError(t, err)
	assert.Equal(t, "Broken link", rec.Name)
}
