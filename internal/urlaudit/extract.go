// Package urlaudit finds hard-coded URLs in workflow node parameters and
// optionally checks their reputation with VirusTotal.
package urlaudit

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/workflow"
)

// urlKeys are parameter names whose string values are treated as endpoints.
var urlKeys = []string{"url", "uri", "endpoint"}

// Finding is one literal URL found in a node's parameters.
type Finding struct {
	Workflow  string   `json:"workflow"`
	Node      string   `json:"node"`
	Parameter string   `json:"parameter"`
	URL       string   `json:"url"`
	Host      string   `json:"host"`
	Verdict   *Verdict `json:"verdict,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Extract returns the literal http(s) URLs held in URL-like parameters of
// the document's enabled nodes. Expression values are skipped.
func Extract(doc *workflow.Document) []Finding {
	var findings []Finding
	for _, n := range doc.Nodes {
		if n.Disabled {
			continue
		}
		seen := make(map[string]bool)
		walk(n.Parameters, "", func(path, value string) {
			u, err := ParseURL(value)
			if err != nil || seen[path+"|"+u.String()] {
				return
			}
			seen[path+"|"+u.String()] = true
			findings = append(findings, Finding{
				Workflow:  filepath.Base(doc.Source),
				Node:      n.Label(),
				Parameter: path,
				URL:       u.String(),
				Host:      u.Hostname(),
			})
		})
	}
	return findings
}

func walk(v any, path string, visit func(path, value string)) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			if s, ok := val[k].(string); ok {
				if isURLKey(k) {
					visit(child, s)
				}
				continue
			}
			walk(val[k], child, visit)
		}
	case []any:
		for i, item := range val {
			walk(item, fmt.Sprintf("%s[%d]", path, i), visit)
		}
	}
}

func isURLKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range urlKeys {
		if lower == k || strings.HasSuffix(lower, k) {
			return true
		}
	}
	return false
}

// ParseURL accepts absolute http and https URLs that are not expressions.
func ParseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "=") || strings.Contains(raw, "{{") {
		return nil, fmt.Errorf("%w: %q is not a literal URL", errors.ErrInvalidURL, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidURL, err.Error())
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", errors.ErrInvalidURL, raw)
	}
	return u, nil
}
