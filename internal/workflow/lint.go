package workflow

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// Advisory lint codes.
const (
	CodeNoTrigger            = "no-trigger"
	CodeOrphanNode           = "orphan-node"
	CodeMissingErrorHandling = "missing-error-handling"
	CodeHardcodedSecret      = "hardcoded-secret"
	CodeHardcodedURL         = "hardcoded-url"
	CodeCycle                = "cycle"
)

// LintOptions tunes the advisory checks.
type LintOptions struct {
	// ErrorHandlingThreshold is the number of integration nodes above which a
	// workflow is expected to declare some form of error handling.
	ErrorHandlingThreshold int
}

// DefaultLintOptions returns the defaults used by the CLI.
func DefaultLintOptions() LintOptions {
	return LintOptions{ErrorHandlingThreshold: 3}
}

var secretKeyFragments = []string{
	"apikey", "api_key", "token", "password", "passwd", "secret",
	"authorization", "accesskey", "access_key", "privatekey", "private_key",
}

// Lint reports common authoring mistakes as warnings. It never reports
// errors: a document that lints with warnings is still well-formed.
func Lint(doc *Document, opts LintOptions) []Issue {
	r := Report{}

	if len(doc.Nodes) > 0 && len(doc.Triggers()) == 0 {
		r.add(SeverityWarning, CodeNoTrigger, "", "workflow has no trigger node and can only run when called")
	}

	for _, n := range doc.Orphans() {
		r.add(SeverityWarning, CodeOrphanNode, n.Label(), "node is not connected to anything")
	}

	if missingErrorHandling(doc, opts.ErrorHandlingThreshold) {
		r.add(SeverityWarning, CodeMissingErrorHandling, "",
			"workflow calls %d external services but has no error workflow, error trigger or per-node error handling",
			countIntegrations(doc))
	}

	for _, n := range doc.Nodes {
		for _, path := range literalSecrets(n.Parameters, "") {
			r.add(SeverityWarning, CodeHardcodedSecret, n.Label(),
				"parameter %q holds a literal secret; use a credential or an expression", path)
		}
		if host, ok := hardcodedHost(n); ok {
			r.add(SeverityWarning, CodeHardcodedURL, n.Label(),
				"request URL points at %q; move environment-specific hosts into variables", host)
		}
	}

	if doc.HasCycle() {
		r.add(SeverityWarning, CodeCycle, "", "connections form a cycle")
	}

	return r.Issues
}

func countIntegrations(doc *Document) int {
	count := 0
	for _, n := range doc.Nodes {
		if IsIntegration(n) && !n.Disabled {
			count++
		}
	}
	return count
}

func missingErrorHandling(doc *Document, threshold int) bool {
	if threshold <= 0 || countIntegrations(doc) <= threshold {
		return false
	}
	if v, ok := doc.Settings["errorWorkflow"].(string); ok && v != "" {
		return false
	}
	for _, n := range doc.Nodes {
		if IsErrorTrigger(n) || n.ContinueOnFail || (n.OnError != "" && n.OnError != "stopWorkflow") {
			return false
		}
	}
	return true
}

// isExpression reports whether a parameter value is evaluated by the
// platform instead of being used literally.
func isExpression(s string) bool {
	return strings.HasPrefix(s, "=") || strings.Contains(s, "{{")
}

func literalSecrets(params map[string]any, prefix string) []string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var found []string
	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		found = append(found, secretsIn(params[k], k, path)...)
	}
	return found
}

func secretsIn(v any, key, path string) []string {
	switch val := v.(type) {
	case string:
		if val != "" && !isExpression(val) && looksSecret(key) {
			return []string{path}
		}
	case map[string]any:
		// header/query parameter lists use {name, value} pairs
		if name, ok := val["name"].(string); ok {
			if value, ok := val["value"].(string); ok && value != "" && !isExpression(value) && looksSecret(name) {
				return []string{path + "." + name}
			}
		}
		return literalSecrets(val, path)
	case []any:
		var found []string
		for i, item := range val {
			found = append(found, secretsIn(item, key, fmt.Sprintf("%s[%d]", path, i))...)
		}
		return found
	}
	return nil
}

func looksSecret(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range secretKeyFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

func hardcodedHost(n Node) (string, bool) {
	if !strings.Contains(strings.ToLower(n.Type), "httprequest") {
		return "", false
	}
	raw, ok := n.Parameters["url"].(string)
	if !ok || raw == "" || isExpression(raw) {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "localhost" || net.ParseIP(host) != nil {
		return host, true
	}
	return "", false
}
