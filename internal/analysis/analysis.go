// Package analysis derives catalog metadata (trigger type, categories,
// integrations, complexity) from workflow documents.
package analysis

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/deploymenttheory/wfkit/internal/workflow"
)

// Trigger types.
const (
	TriggerManual    = "Manual"
	TriggerWebhook   = "Webhook"
	TriggerScheduled = "Scheduled"
	TriggerTriggered = "Triggered"
)

// Complexity levels.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Category names.
const (
	CategoryMessaging   = "messaging"
	CategoryDatabase    = "database"
	CategoryAIML        = "ai_ml"
	CategoryEmail       = "email"
	CategoryStorage     = "storage"
	CategoryDevelopment = "development"
	CategoryAPI         = "api"
)

// Metadata summarizes a workflow for cataloguing.
type Metadata struct {
	Filename     string   `json:"filename" yaml:"filename" plist:"filename"`
	Name         string   `json:"name" yaml:"name" plist:"name"`
	Active       bool     `json:"active" yaml:"active" plist:"active"`
	NodeCount    int      `json:"node_count" yaml:"node_count" plist:"node_count"`
	TriggerType  string   `json:"trigger_type" yaml:"trigger_type" plist:"trigger_type"`
	Integrations []string `json:"integrations" yaml:"integrations" plist:"integrations"`
	Categories   []string `json:"categories" yaml:"categories" plist:"categories"`
	Complexity   string   `json:"complexity" yaml:"complexity" plist:"complexity"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty" plist:"tags,omitempty"`
}

type categoryRule struct {
	category  string
	fragments []string
	// integration reports whether matches also name an integration
	integration bool
}

// Rules are checked in order and the first match wins for each node.
var categoryRules = []categoryRule{
	{CategoryMessaging, []string{"telegram", "discord", "slack", "whatsapp"}, true},
	{CategoryDatabase, []string{"postgres", "mysql", "mongodb", "airtable"}, true},
	{CategoryAIML, []string{"openai", "anthropic", "huggingface"}, true},
	{CategoryEmail, []string{"gmail", "mailjet", "outlook"}, true},
	{CategoryStorage, []string{"googledrive", "dropbox", "onedrive"}, true},
	{CategoryDevelopment, []string{"github", "gitlab", "jira"}, true},
	{CategoryAPI, []string{"http", "webhook", "api"}, false},
}

var serviceNames = []struct {
	fragment string
	name     string
}{
	{"telegram", "Telegram"},
	{"discord", "Discord"},
	{"slack", "Slack"},
	{"whatsapp", "WhatsApp"},
	{"gmail", "Gmail"},
	{"postgres", "PostgreSQL"},
	{"mysql", "MySQL"},
	{"mongodb", "MongoDB"},
	{"openai", "OpenAI"},
	{"github", "GitHub"},
	{"gitlab", "GitLab"},
	{"jira", "Jira"},
}

// Analyze extracts catalog metadata from a document.
func Analyze(doc *workflow.Document) Metadata {
	md := Metadata{
		Filename:    filepath.Base(doc.Source),
		Name:        doc.Name,
		Active:      doc.Active,
		NodeCount:   len(doc.Nodes),
		TriggerType: TriggerManual,
		Tags:        doc.TagNames(),
	}

	integrations := make(map[string]bool)
	categories := make(map[string]bool)

	for _, n := range doc.Nodes {
		nodeType := strings.ToLower(n.Type)

		switch {
		case strings.Contains(nodeType, "webhook"):
			md.TriggerType = TriggerWebhook
		case strings.Contains(nodeType, "cron"), strings.Contains(nodeType, "schedule"):
			md.TriggerType = TriggerScheduled
		case strings.Contains(nodeType, "trigger") && md.TriggerType == TriggerManual:
			md.TriggerType = TriggerTriggered
		}

		for _, rule := range categoryRules {
			if !containsAny(nodeType, rule.fragments) {
				continue
			}
			categories[rule.category] = true
			if rule.integration {
				integrations[ServiceName(n.Type)] = true
			}
			break
		}
	}

	md.Complexity = ComplexityFor(md.NodeCount)
	md.Integrations = sortedKeys(integrations)
	md.Categories = sortedKeys(categories)
	return md
}

// ComplexityFor buckets a node count.
func ComplexityFor(nodeCount int) string {
	switch {
	case nodeCount <= 5:
		return ComplexityLow
	case nodeCount <= 15:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

// ServiceName returns the display name of the service a node type talks to.
func ServiceName(nodeType string) string {
	lower := strings.ToLower(nodeType)
	for _, s := range serviceNames {
		if strings.Contains(lower, s.fragment) {
			return s.name
		}
	}

	short := nodeType
	if i := strings.LastIndex(short, "."); i >= 0 {
		short = short[i+1:]
	}
	return titleCase(short)
}

// titleCase upper-cases the first letter of each word and lower-cases the rest.
// Words are separated by any non-letter character.
func titleCase(s string) string {
	var b strings.Builder
	startOfWord := true
	for _, r := range s {
		isLetter := ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
		switch {
		case isLetter && startOfWord:
			b.WriteString(strings.ToUpper(string(r)))
		case isLetter:
			b.WriteString(strings.ToLower(string(r)))
		default:
			b.WriteRune(r)
		}
		startOfWord = !isLetter
	}
	return b.String()
}

// TitleCase is exported for report headings.
func TitleCase(s string) string {
	return titleCase(strings.ReplaceAll(s, "_", " "))
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SafeName converts a group label into a directory-safe name.
func SafeName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ".", "_")
}
