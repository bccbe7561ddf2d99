package organizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const slackAlert = `{
  "name": "Slack alert",
  "nodes": [
    {"id": "1", "name": "Hook", "type": "n8n-nodes-base.webhook"},
    {"id": "2", "name": "Slack", "type": "n8n-nodes-base.slack"}
  ],
  "connections": {"Hook": ["Slack"]}
}`

const manualSet = `{
  "name": "Manual set",
  "nodes": [
    {"id": "1", "name": "Start", "type": "n8n-nodes-base.manualTrigger"},
    {"id": "2", "name": "Set", "type": "n8n-nodes-base.set"}
  ],
  "connections": {"Start": ["Set"]}
}`

func writeSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"0001_slack.json":  slackAlert,
		"0002_manual.json": manualSet,
		"0003_broken.json": `{"nodes": [`,
		"notes.txt":        "ignored",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestByCategory(t *testing.T) {
	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "organized")
	o := New(src, out)

	require.NoError(t, o.ByCategory(context.Background()))

	assert.FileExists(t, filepath.Join(out, "by_category", "messaging", "0001_slack.json"))
	assert.FileExists(t, filepath.Join(out, "by_category", "api", "0001_slack.json"))
	assert.FileExists(t, filepath.Join(out, "by_category", GroupUncategorized, "0002_manual.json"))
	assert.NoFileExists(t, filepath.Join(out, "by_category", GroupUncategorized, "0003_broken.json"))

	assert.Equal(t, map[string]int{
		"category_api":           1,
		"category_messaging":     1,
		"category_uncategorized": 1,
	}, o.Stats())
}

func TestAllWritesIndexesAndReport(t *testing.T) {
	src := writeSource(t)
	out := filepath.Join(t.TempDir(), "organized")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "stale"), 0755))

	o := New(src, out)
	require.NoError(t, o.All(context.Background()))

	assert.NoDirExists(t, filepath.Join(out, "stale"))
	assert.FileExists(t, filepath.Join(out, "by_trigger", "webhook", "0001_slack.json"))
	assert.FileExists(t, filepath.Join(out, "by_trigger", "triggered", "0002_manual.json"))
	assert.FileExists(t, filepath.Join(out, "by_complexity", "low", "0002_manual.json"))
	assert.FileExists(t, filepath.Join(out, "by_integration", "slack", "0001_slack.json"))
	assert.FileExists(t, filepath.Join(out, "by_integration", GroupNoIntegration, "0002_manual.json"))

	index, err := os.ReadFile(filepath.Join(out, "by_integration", GroupNoIntegration, IndexFile))
	require.NoError(t, err)
	assert.Contains(t, string(index), "# No Integration\n")
	assert.Contains(t, string(index), "Total workflows: 1\n")
	assert.Contains(t, string(index), "- [0002_manual.json](./0002_manual.json)\n")

	report, err := os.ReadFile(filepath.Join(out, ReportFile))
	require.NoError(t, err)
	assert.Contains(t, string(report), "### By Complexity\n- Low: 2 files\n")
	assert.Contains(t, string(report), "### By Trigger Type\n- Triggered: 1 files\n- Webhook: 1 files\n")

	stats := o.Stats()
	assert.Equal(t, 2, stats["complexity_low"])
	assert.Equal(t, 1, stats["integration_slack"])
}

func TestRunRejectsUnknownMethod(t *testing.T) {
	o := New(t.TempDir(), t.TempDir())
	assert.ErrorIs(t, o.Run(context.Background(), Method("size")), errors.ErrInvalidArgument)

	_, err := ParseMethod("size")
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)

	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodAll, m)
}

func TestMissingSource(t *testing.T) {
	o := New(filepath.Join(t.TempDir(), "absent"), t.TempDir())
	assert.ErrorIs(t, o.ByTrigger(context.Background()), errors.ErrDirNotFound)
}

func TestAllRefusesOutputOverSource(t *testing.T) {
	src := writeSource(t)

	for _, out := range []string{src, filepath.Dir(src), src + string(filepath.Separator)} {
		o := New(src, out)
		assert.ErrorIs(t, o.All(context.Background()), errors.ErrInvalidArgument, "output %s", out)
		assert.FileExists(t, filepath.Join(src, "0001_slack.json"))
		assert.Empty(t, o.Stats())
	}
}

func TestAllAllowsOutputInsideSource(t *testing.T) {
	src := writeSource(t)
	out := filepath.Join(src, "organized")

	require.NoError(t, New(src, out).All(context.Background()))
	assert.FileExists(t, filepath.Join(src, "0001_slack.json"))
	assert.FileExists(t, filepath.Join(out, ReportFile))
}

func TestZeroValueOrganizer(t *testing.T) {
	src := writeSource(t)
	o := &Organizer{Source: src, Output: t.TempDir()}

	require.NoError(t, o.ByComplexity(context.Background()))
	assert.Equal(t, 2, o.Stats()["complexity_low"])
}
