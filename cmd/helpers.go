package cmd

import (
	"fmt"
	"io"

	"github.com/deploymenttheory/wfkit/internal/config"
	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"github.com/deploymenttheory/wfkit/internal/storage"
	"github.com/deploymenttheory/wfkit/internal/workflow"
)

// workflowFiles returns args when given, otherwise every document in the
// configured workflows directory.
func workflowFiles(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	dir := config.Instance.WorkflowsDir
	if !fsutil.DirExists(dir) {
		return nil, fmt.Errorf("%w: %s", errors.ErrDirNotFound, dir)
	}
	files, err := fsutil.ListFiles(dir, workflow.FilePattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", errors.ErrNoWorkflowsFound, dir)
	}
	return files, nil
}

// openStore opens the configured index backend.
func openStore() (storage.Store, error) {
	return storage.New(config.Instance.Storage.Driver, config.Instance.Storage.DSN)
}

// sqlitePath returns the index database file, or "" for non-file backends.
func sqlitePath() string {
	switch config.Instance.Storage.Driver {
	case "", storage.DriverSQLite:
		if config.Instance.Storage.DSN == "" {
			return storage.DefaultSQLitePath
		}
		return config.Instance.Storage.DSN
	default:
		return ""
	}
}

func lintOptions() workflow.LintOptions {
	opts := workflow.DefaultLintOptions()
	if config.Instance.Lint.ErrorHandlingThreshold > 0 {
		opts.ErrorHandlingThreshold = config.Instance.Lint.ErrorHandlingThreshold
	}
	return opts
}

func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
