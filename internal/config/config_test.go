package config

import (
	"os"
	"path/filepath"
	"testing"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CI", "true") // restrict search to the working directory

	cfg, used, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, used)
	assert.Equal(t, "workflows", cfg.WorkflowsDir)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "workflows.db", cfg.Storage.DSN)
	assert.Equal(t, "gzip", cfg.Backup.Compression)
	assert.Equal(t, 30, cfg.Backup.KeepDays)
	assert.Equal(t, 3, cfg.Lint.ErrorHandlingThreshold)
	assert.False(t, cfg.LogQuiet)
	assert.Equal(t, "none", cfg.Server.Tracing)
	assert.Equal(t, "localhost:4318", cfg.Server.OTLPEndpoint)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wfkit.yaml")
	content := []byte(`
workflows_dir: flows
log_quiet: true
storage:
  driver: memory
backup:
  compression: xz
  keep_days: 7
`)
	require.NoError(t, os.WriteFile(path, content, 0644))
	t.Setenv("WFKIT_BACKUP_KEEP_DAYS", "14")

	cfg, used, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, used)
	assert.Equal(t, "flows", cfg.WorkflowsDir)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "xz", cfg.Backup.Compression)
	assert.Equal(t, 14, cfg.Backup.KeepDays)
	assert.True(t, cfg.LogQuiet)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"compression", "backup:\n  compression: zip\n"},
		{"tracing", "server:\n  tracing: jaeger\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "wfkit.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, _, err := Load(path)
			assert.ErrorIs(t, err, errors.ErrConfigInvalid)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
