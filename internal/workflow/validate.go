package workflow

import (
	stderrors "errors"
	"fmt"
	"strings"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

// Severity ranks an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes reported by Validate and Lint.
const (
	CodeInvalidJSON       = "invalid-json"
	CodeUnreadable        = "unreadable"
	CodeMalformed         = "malformed"
	CodeMissingName       = "missing-name"
	CodeMissingNodeID     = "missing-node-id"
	CodeDuplicateNodeID   = "duplicate-node-id"
	CodeDuplicateNodeName = "duplicate-node-name"
	CodeDanglingSource    = "dangling-source"
	CodeDanglingTarget    = "dangling-target"
	CodeTimestampOrder    = "timestamp-order"
	CodeDuplicateTag      = "duplicate-tag"
)

// Issue is a single finding about a document.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Code     string   `json:"code" yaml:"code"`
	Message  string   `json:"message" yaml:"message"`
	Node     string   `json:"node,omitempty" yaml:"node,omitempty"`
}

func (i Issue) String() string {
	if i.Node != "" {
		return fmt.Sprintf("%s [%s] %s (node %q)", i.Severity, i.Code, i.Message, i.Node)
	}
	return fmt.Sprintf("%s [%s] %s", i.Severity, i.Code, i.Message)
}

// Report collects the issues found in one document.
type Report struct {
	Source string  `json:"source" yaml:"source"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Issues []Issue `json:"issues" yaml:"issues"`
}

// Valid reports whether the document has no error-level issues.
func (r Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-level issues.
func (r Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-level issues.
func (r Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

// Has reports whether an issue with the given code was found.
func (r Report) Has(code string) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func (r Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Err returns nil for a valid document, otherwise ErrValidationFailed
// wrapped with the error messages.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, i := range errs {
		msgs = append(msgs, i.Message)
	}
	return fmt.Errorf("%w: %s: %s", errors.ErrValidationFailed, r.Source, strings.Join(msgs, "; "))
}

func (r *Report) add(s Severity, code, node, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: s,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Node:     node,
	})
}

// Validate checks a parsed document against the well-formedness rules:
// unique node ids, resolvable connection endpoints, createdAt not after
// updatedAt, and tags forming a set.
func Validate(doc *Document) Report {
	r := Report{Source: doc.Source, Name: doc.Name}

	if strings.TrimSpace(doc.Name) == "" {
		r.add(SeverityWarning, CodeMissingName, "", "workflow has no name")
	}

	ids := make(map[string]int)
	names := make(map[string]int)
	for _, n := range doc.Nodes {
		if n.ID == "" {
			r.add(SeverityWarning, CodeMissingNodeID, n.Label(), "node has no id")
		} else {
			ids[n.ID]++
			if ids[n.ID] == 2 {
				r.add(SeverityError, CodeDuplicateNodeID, n.Label(), "node id %q is used more than once", n.ID)
			}
		}
		if n.Name != "" {
			names[n.Name]++
			if names[n.Name] == 2 {
				r.add(SeverityWarning, CodeDuplicateNodeName, n.Name, "node name %q is used more than once", n.Name)
			}
		}
	}

	for _, source := range doc.Connections.Sources() {
		if doc.nodeIndex(source) < 0 {
			r.add(SeverityError, CodeDanglingSource, source, "connection source %q does not match any node", source)
		}
	}
	for _, e := range doc.Connections.Edges() {
		if doc.nodeIndex(e.Target) < 0 {
			r.add(SeverityError, CodeDanglingTarget, e.Source, "connection %s targets missing node %q", e, e.Target)
		}
	}

	if doc.CreatedAt != nil && doc.UpdatedAt != nil && doc.CreatedAt.After(*doc.UpdatedAt) {
		r.add(SeverityError, CodeTimestampOrder, "", "createdAt %s is after updatedAt %s",
			doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), doc.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}

	seen := make(map[string]bool)
	for _, tag := range doc.TagNames() {
		if seen[tag] {
			r.add(SeverityWarning, CodeDuplicateTag, "", "tag %q appears more than once", tag)
			continue
		}
		seen[tag] = true
	}

	return r
}

// ValidateFile loads and validates the document at path. Load failures are
// reported as a single error issue rather than returned.
func ValidateFile(path string) (*Document, Report) {
	doc, err := Load(path)
	if err != nil {
		r := Report{Source: path}
		switch {
		case stderrors.Is(err, errors.ErrInvalidJSON):
			r.add(SeverityError, CodeInvalidJSON, "", "%s", err.Error())
		case stderrors.Is(err, errors.ErrFileNotFound), stderrors.Is(err, errors.ErrFileReadError):
			r.add(SeverityError, CodeUnreadable, "", "%s", err.Error())
		default:
			r.add(SeverityError, CodeMalformed, "", "%s", err.Error())
		}
		return nil, r
	}
	return doc, Validate(doc)
}
