package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/sourcegraph/conc/pool"
)

// FilePattern matches workflow documents inside a workflows directory.
const FilePattern = "*.json"

// Parse decodes a workflow document. Syntactically invalid JSON is reported
// as ErrInvalidJSON; valid JSON of the wrong shape as ErrMalformedDocument.
func Parse(data []byte) (*Document, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidJSON, syntaxErrorDetail(data))
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top-level value must be a JSON object", errors.ErrMalformedDocument)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		if stderrors.Is(err, errors.ErrInvalidTimestamp) || stderrors.Is(err, errors.ErrInvalidConnections) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrMalformedDocument, err.Error())
	}

	if doc.Connections == nil {
		doc.Connections = Connections{}
	}
	return doc, nil
}

func syntaxErrorDetail(data []byte) string {
	var v any
	err := json.Unmarshal(data, &v)
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return fmt.Sprintf("%s at offset %d", syntaxErr.Error(), syntaxErr.Offset)
	}
	if err != nil {
		return err.Error()
	}
	return "unexpected content"
}

// Load reads and parses the workflow document at path.
func Load(path string) (*Document, error) {
	data, err := fsutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Source = path
	return doc, nil
}

// LoadError pairs a file with the reason it could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string { return e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// LoadDir loads every workflow document in dir concurrently. Documents are
// returned in file-name order; files that fail to load are reported as
// *LoadError values and do not stop the others.
func LoadDir(ctx context.Context, dir string) ([]*Document, []error) {
	if !fsutil.DirExists(dir) {
		return nil, []error{fmt.Errorf("%w: %s", errors.ErrDirNotFound, dir)}
	}

	files, err := fsutil.ListFiles(dir, FilePattern)
	if err != nil {
		return nil, []error{err}
	}
	return LoadFiles(ctx, files)
}

// LoadFiles loads the given documents concurrently, preserving their order.
func LoadFiles(ctx context.Context, files []string) ([]*Document, []error) {
	docs := make([]*Document, len(files))
	errs := make([]error, len(files))

	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, file := range files {
		p.Go(func() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				errs[i] = &LoadError{Path: file, Err: ctxErr}
				return
			}
			doc, err := Load(file)
			if err != nil {
				errs[i] = &LoadError{Path: file, Err: err}
				return
			}
			docs[i] = doc
		})
	}
	p.Wait()

	var loaded []*Document
	var failures []error
	for i := range files {
		if errs[i] != nil {
			logger.LogWarn("Skipping unreadable workflow", map[string]interface{}{
				"file":  files[i],
				"error": errs[i].Error(),
			})
			failures = append(failures, errs[i])
			continue
		}
		loaded = append(loaded, docs[i])
	}

	logger.LogDebug("Loaded workflow documents", map[string]interface{}{
		"loaded": len(loaded),
		"failed": len(failures),
	})
	return loaded, failures
}

// Marshal encodes a document in the platform's indented form.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	return data, nil
}
