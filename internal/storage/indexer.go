package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/deploymenttheory/wfkit/internal/analysis"
	"github.com/deploymenttheory/wfkit/internal/digest"
	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/sourcegraph/conc/pool"
)

// Summary reports what a Reindex changed.
type Summary struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Invalid   int `json:"invalid"`
}

// Indexer keeps a Store in step with a workflows directory.
type Indexer struct {
	Store Store

	// readFile is replaced in tests
	readFile func(path string) ([]byte, error)
}

// NewIndexer returns an indexer writing to store.
func NewIndexer(store Store) *Indexer {
	return &Indexer{Store: store, readFile: fsutil.ReadFile}
}

// BuildRecord derives the index record for a document file's raw bytes.
// Documents that fail to parse produce an invalid record named after the file.
func BuildRecord(path string, data []byte) Record {
	filename := filepath.Base(path)
	rec := Record{
		Filename:    filename,
		Name:        filename,
		SHA256:      digest.SHA256Hex(data),
		IndexedAt:   time.Now(),
		Complexity:  analysis.ComplexityFor(0),
		TriggerType: analysis.TriggerManual,
	}

	doc, err := workflow.Parse(data)
	if err != nil {
		rec.IssueCount = 1
		return rec
	}
	doc.Source = path

	md := analysis.Analyze(doc)
	report := workflow.Validate(doc)

	rec.Name = doc.DisplayName()
	rec.Active = md.Active
	rec.NodeCount = md.NodeCount
	rec.TriggerType = md.TriggerType
	rec.Complexity = md.Complexity
	rec.Categories = md.Categories
	rec.Integrations = md.Integrations
	rec.Tags = md.Tags
	rec.Valid = report.Valid()
	rec.IssueCount = len(report.Issues)
	rec.CreatedAt = doc.CreatedAt
	rec.UpdatedAt = doc.UpdatedAt
	return rec
}

func (ix *Indexer) read(path string) ([]byte, error) {
	if ix.readFile != nil {
		return ix.readFile(path)
	}
	return fsutil.ReadFile(path)
}

// Reindex brings the store in line with dir: new and changed documents are
// upserted, unchanged ones (same content digest) are skipped, and records
// whose files no longer exist are deleted.
func (ix *Indexer) Reindex(ctx context.Context, dir string) (Summary, error) {
	var summary Summary

	if !fsutil.DirExists(dir) {
		return summary, fmt.Errorf("%w: %s", errors.ErrDirNotFound, dir)
	}
	files, err := fsutil.ListFiles(dir, workflow.FilePattern)
	if err != nil {
		return summary, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	records := make([]*Record, len(files))
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(runtime.GOMAXPROCS(0))
	for i, file := range files {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := ix.read(file)
			if err != nil {
				logger.LogWarn("Skipping unreadable workflow", map[string]interface{}{
					"file":  file,
					"error": err.Error(),
				})
				return nil
			}
			rec := BuildRecord(file, data)
			records[i] = &rec
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return summary, err
	}

	// Files that exist but could not be read keep their previous record
	present := make(map[string]bool, len(files))
	for _, file := range files {
		present[filepath.Base(file)] = true
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if !rec.Valid {
			summary.Invalid++
		}

		existing, err := ix.Store.Get(ctx, rec.Filename)
		if err == nil && existing.SHA256 == rec.SHA256 {
			summary.Unchanged++
			continue
		}
		if err := ix.Store.Upsert(ctx, *rec); err != nil {
			return summary, err
		}
		summary.Indexed++
	}

	indexed, err := ix.Store.List(ctx, Filter{})
	if err != nil {
		return summary, err
	}
	for _, rec := range indexed {
		if present[rec.Filename] {
			continue
		}
		if err := ix.Store.Delete(ctx, rec.Filename); err != nil {
			return summary, err
		}
		summary.Removed++
	}

	logger.LogInfo("Reindexed workflows", map[string]interface{}{
		"dir":       dir,
		"indexed":   summary.Indexed,
		"unchanged": summary.Unchanged,
		"removed":   summary.Removed,
		"invalid":   summary.Invalid,
	})
	return summary, nil
}
