// Package organizer copies workflow documents into browsable directory trees
// grouped by category, complexity, trigger type and integration.
package organizer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/deploymenttheory/wfkit/internal/analysis"
	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/fsutil"
	"github.com/deploymenttheory/wfkit/internal/logger"
	"github.com/deploymenttheory/wfkit/internal/workflow"
)

// Method selects how documents are grouped.
type Method string

const (
	MethodAll         Method = "all"
	MethodCategory    Method = "category"
	MethodComplexity  Method = "complexity"
	MethodTrigger     Method = "trigger"
	MethodIntegration Method = "integration"
)

// Fallback groups for documents without categories or integrations.
const (
	GroupUncategorized = "uncategorized"
	GroupNoIntegration = "no_integration"
)

// ReportFile is written to the output root by WriteReport.
const ReportFile = "organization_report.md"

// IndexFile is written into every group directory by WriteIndexes.
const IndexFile = "README.md"

var groupMethods = []Method{MethodCategory, MethodComplexity, MethodTrigger, MethodIntegration}

// ParseMethod validates a method name.
func ParseMethod(name string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(name)))
	if m == "" {
		return MethodAll, nil
	}
	if m == MethodAll {
		return m, nil
	}
	for _, gm := range groupMethods {
		if m == gm {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown organize method %q", errors.ErrInvalidArgument, name)
}

// Organizer groups the documents of Source into Output.
type Organizer struct {
	Source string
	Output string

	mu    sync.Mutex
	stats map[string]int
}

// New returns an organizer for the given source and output directories.
func New(source, output string) *Organizer {
	return &Organizer{
		Source: source,
		Output: output,
		stats:  make(map[string]int),
	}
}

type entry struct {
	path string
	meta analysis.Metadata
}

// catalog loads and analyzes every document in Source. Unreadable documents
// are logged by the loader and skipped.
func (o *Organizer) catalog(ctx context.Context) ([]entry, error) {
	if !fsutil.DirExists(o.Source) {
		return nil, fmt.Errorf("%w: %s", errors.ErrDirNotFound, o.Source)
	}

	docs, _ := workflow.LoadDir(ctx, o.Source)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, entry{path: doc.Source, meta: analysis.Analyze(doc)})
	}
	return entries, nil
}

// groupsFor returns the directory names a document is filed under.
func groupsFor(method Method, md analysis.Metadata) []string {
	switch method {
	case MethodCategory:
		if len(md.Categories) == 0 {
			return []string{GroupUncategorized}
		}
		return md.Categories
	case MethodComplexity:
		return []string{md.Complexity}
	case MethodTrigger:
		return []string{analysis.SafeName(md.TriggerType)}
	case MethodIntegration:
		if len(md.Integrations) == 0 {
			return []string{GroupNoIntegration}
		}
		groups := make([]string, 0, len(md.Integrations))
		for _, name := range md.Integrations {
			groups = append(groups, analysis.SafeName(name))
		}
		return groups
	}
	return nil
}

func methodDir(method Method) string {
	return "by_" + string(method)
}

func (o *Organizer) organize(ctx context.Context, method Method) error {
	logger.LogInfo("Organizing workflows", map[string]interface{}{
		"method": string(method),
		"source": o.Source,
	})

	entries, err := o.catalog(ctx)
	if err != nil {
		return err
	}

	root := filepath.Join(o.Output, methodDir(method))
	if err := fsutil.CreateDirIfNotExists(root); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDirCreateError, root)
	}

	copied := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, group := range groupsFor(method, e.meta) {
			dst := filepath.Join(root, group, filepath.Base(e.path))
			if err := fsutil.CopyFile(e.path, dst); err != nil {
				return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
			}
			o.count(string(method) + "_" + group)
			copied++
		}
	}

	logger.LogInfo("Organized workflows", map[string]interface{}{
		"method": string(method),
		"files":  copied,
	})
	return nil
}

func (o *Organizer) count(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stats == nil {
		o.stats = make(map[string]int)
	}
	o.stats[key]++
}

// ByCategory files each document under every service category it uses.
func (o *Organizer) ByCategory(ctx context.Context) error {
	return o.organize(ctx, MethodCategory)
}

// ByComplexity files each document under its complexity level.
func (o *Organizer) ByComplexity(ctx context.Context) error {
	return o.organize(ctx, MethodComplexity)
}

// ByTrigger files each document under its trigger type.
func (o *Organizer) ByTrigger(ctx context.Context) error {
	return o.organize(ctx, MethodTrigger)
}

// ByIntegration files each document under every integration it uses.
func (o *Organizer) ByIntegration(ctx context.Context) error {
	return o.organize(ctx, MethodIntegration)
}

// Run executes a single method, or everything for MethodAll.
func (o *Organizer) Run(ctx context.Context, method Method) error {
	switch method {
	case MethodAll:
		return o.All(ctx)
	case MethodCategory, MethodComplexity, MethodTrigger, MethodIntegration:
		return o.organize(ctx, method)
	default:
		return fmt.Errorf("%w: unknown organize method %q", errors.ErrInvalidArgument, method)
	}
}

// checkOutput refuses an Output that is Source or one of its parents, since
// All clears Output before copying.
func (o *Organizer) checkOutput() error {
	src, err := filepath.Abs(o.Source)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidArgument, err.Error())
	}
	out, err := filepath.Abs(o.Output)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidArgument, err.Error())
	}

	rel, err := filepath.Rel(out, src)
	if err == nil && (rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))) {
		return fmt.Errorf("%w: output %q contains the source directory %q", errors.ErrInvalidArgument, o.Output, o.Source)
	}
	return nil
}

// All clears Output, runs every method and writes the indexes and report.
// Output must not be Source or a parent of it.
func (o *Organizer) All(ctx context.Context) error {
	if err := o.checkOutput(); err != nil {
		return err
	}
	if err := fsutil.RemoveDir(o.Output); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileDeleteError, o.Output)
	}
	if err := fsutil.CreateDirIfNotExists(o.Output); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDirCreateError, o.Output)
	}

	o.mu.Lock()
	o.stats = make(map[string]int)
	o.mu.Unlock()

	for _, m := range groupMethods {
		if err := o.organize(ctx, m); err != nil {
			return err
		}
	}

	if err := o.WriteIndexes(); err != nil {
		return err
	}
	return o.WriteReport()
}

// Stats returns a copy of the per-group counters, keyed "<method>_<group>".
func (o *Organizer) Stats() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]int, len(o.stats))
	for k, v := range o.stats {
		out[k] = v
	}
	return out
}

// WriteIndexes writes a README.md into every group directory listing its documents.
func (o *Organizer) WriteIndexes() error {
	for _, m := range groupMethods {
		root := filepath.Join(o.Output, methodDir(m))
		if !fsutil.DirExists(root) {
			continue
		}

		groups, err := fsutil.ListSubdirs(root)
		if err != nil {
			return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
		}

		for _, group := range groups {
			files, err := fsutil.ListFiles(group, workflow.FilePattern)
			if err != nil {
				return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# %s\n\n", analysis.TitleCase(filepath.Base(group)))
			fmt.Fprintf(&b, "Total workflows: %d\n\n", len(files))
			b.WriteString("## Files\n\n")
			for _, f := range files {
				name := filepath.Base(f)
				fmt.Fprintf(&b, "- [%s](./%s)\n", name, name)
			}

			if err := fsutil.WriteFile(filepath.Join(group, IndexFile), []byte(b.String()), 0644); err != nil {
				return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
			}
		}
	}
	return nil
}

var reportSections = []struct {
	method Method
	title  string
}{
	{MethodCategory, "By Category"},
	{MethodComplexity, "By Complexity"},
	{MethodTrigger, "By Trigger Type"},
	{MethodIntegration, "By Integration"},
}

// WriteReport writes organization_report.md summarizing the counters.
func (o *Organizer) WriteReport() error {
	stats := o.Stats()

	var b strings.Builder
	b.WriteString("# Workflow Organization Report\n\n")
	fmt.Fprintf(&b, "Source directory: %s\n", o.Source)
	fmt.Fprintf(&b, "Output directory: %s\n\n", o.Output)
	b.WriteString("## Statistics\n\n")

	for _, section := range reportSections {
		prefix := string(section.method) + "_"
		var keys []string
		for k := range stats {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			continue
		}
		sort.Strings(keys)

		fmt.Fprintf(&b, "### %s\n", section.title)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %d files\n", analysis.TitleCase(strings.TrimPrefix(k, prefix)), stats[k])
		}
		b.WriteString("\n")
	}

	path := filepath.Join(o.Output, ReportFile)
	if err := fsutil.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}

	logger.LogInfo("Generated organization report", map[string]interface{}{"path": path})
	return nil
}
