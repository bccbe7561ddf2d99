package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestLintCleanWorkflow(t *testing.T) {
	doc := mustParse(t, platformDocument)
	assert.Empty(t, Lint(doc, DefaultLintOptions()))
}

func TestLintNoTriggerAndOrphan(t *testing.T) {
	doc := mustParse(t, `{
		"name": "x",
		"nodes": [
			{"name": "Set", "type": "n8n-nodes-base.set"},
			{"name": "Slack", "type": "n8n-nodes-base.slack"},
			{"name": "Note", "type": "n8n-nodes-base.stickyNote"},
			{"name": "Off", "type": "n8n-nodes-base.gmail", "disabled": true}
		],
		"connections": {}
	}`)

	issues := Lint(doc, DefaultLintOptions())
	assert.Contains(t, codes(issues), CodeNoTrigger)

	var orphans []string
	for _, i := range issues {
		if i.Code == CodeOrphanNode {
			orphans = append(orphans, i.Node)
		}
	}
	assert.Equal(t, []string{"Set", "Slack"}, orphans)
	for _, i := range issues {
		assert.Equal(t, SeverityWarning, i.Severity)
	}
}

func TestLintRespondToWebhookIsNotATrigger(t *testing.T) {
	doc := mustParse(t, `{
		"name": "reply only",
		"nodes": [
			{"name": "Set", "type": "n8n-nodes-base.set"},
			{"name": "Respond", "type": "n8n-nodes-base.respondToWebhook"},
			{"name": "Reply", "type": "n8n-nodes-base.respondToWebhook"}
		],
		"connections": {"Set": ["Respond"]}
	}`)

	assert.False(t, IsTrigger(doc.Nodes[1]))
	assert.Empty(t, doc.Triggers())

	issues := Lint(doc, DefaultLintOptions())
	assert.Contains(t, codes(issues), CodeNoTrigger)

	var orphans []string
	for _, i := range issues {
		if i.Code == CodeOrphanNode {
			orphans = append(orphans, i.Node)
		}
	}
	assert.Equal(t, []string{"Reply"}, orphans)
}

func TestLintMissingErrorHandling(t *testing.T) {
	base := `{
		"name": "busy",
		"nodes": [
			{"name": "Cron", "type": "n8n-nodes-base.cron"},
			{"name": "Sheets", "type": "n8n-nodes-base.googleSheets"},
			{"name": "Slack", "type": "n8n-nodes-base.slack"},
			{"name": "Gmail", "type": "n8n-nodes-base.gmail"},
			{"name": "Jira", "type": "n8n-nodes-base.jira"%s}
		],
		"connections": {"Cron": ["Sheets"], "Sheets": ["Slack"], "Slack": ["Gmail"], "Gmail": ["Jira"]}%s
	}`

	doc := mustParse(t, sprintf(base, "", ""))
	assert.Contains(t, codes(Lint(doc, DefaultLintOptions())), CodeMissingErrorHandling)

	doc = mustParse(t, sprintf(base, `, "continueOnFail": true`, ""))
	assert.NotContains(t, codes(Lint(doc, DefaultLintOptions())), CodeMissingErrorHandling)

	doc = mustParse(t, sprintf(base, "", `, "settings": {"errorWorkflow": "42"}`))
	assert.NotContains(t, codes(Lint(doc, DefaultLintOptions())), CodeMissingErrorHandling)

	doc = mustParse(t, sprintf(base, "", ""))
	assert.NotContains(t, codes(Lint(doc, LintOptions{ErrorHandlingThreshold: 10})), CodeMissingErrorHandling)
}

func TestLintHardcodedSecrets(t *testing.T) {
	doc := mustParse(t, `{
		"name": "secrets",
		"nodes": [
			{"name": "Manual", "type": "n8n-nodes-base.manualTrigger"},
			{"name": "Call", "type": "n8n-nodes-base.httpRequest", "parameters": {
				"url": "https://api.example.com/v1",
				"apiKey": "sk-live-123",
				"password": "={{ $env.PASSWORD }}",
				"headerParameters": {"parameters": [
					{"name": "Authorization", "value": "Bearer abc"},
					{"name": "Accept", "value": "application/json"}
				]}
			}}
		],
		"connections": {"Manual": ["Call"]}
	}`)

	var paths []string
	for _, i := range Lint(doc, DefaultLintOptions()) {
		if i.Code == CodeHardcodedSecret {
			assert.Equal(t, "Call", i.Node)
			paths = append(paths, i.Message)
		}
	}
	require.Len(t, paths, 2)
	assert.Contains(t, paths[0], `"apiKey"`)
	assert.Contains(t, paths[1], "Authorization")
}

func TestLintHardcodedURL(t *testing.T) {
	doc := mustParse(t, `{
		"name": "urls",
		"nodes": [
			{"name": "Manual", "type": "n8n-nodes-base.manualTrigger"},
			{"name": "Local", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "http://192.168.1.20:8080/hook"}},
			{"name": "Dev", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "http://localhost:3000"}},
			{"name": "Public", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "https://example.com"}},
			{"name": "Dynamic", "type": "n8n-nodes-base.httpRequest", "parameters": {"url": "={{ $json.url }}"}}
		],
		"connections": {"Manual": ["Local", "Dev", "Public", "Dynamic"]}
	}`)

	var nodes []string
	for _, i := range Lint(doc, DefaultLintOptions()) {
		if i.Code == CodeHardcodedURL {
			nodes = append(nodes, i.Node)
		}
	}
	assert.Equal(t, []string{"Local", "Dev"}, nodes)
}

func TestLintCycle(t *testing.T) {
	doc := mustParse(t, `{
		"name": "loop",
		"nodes": [
			{"name": "Start", "type": "n8n-nodes-base.manualTrigger"},
			{"name": "A", "type": "n8n-nodes-base.set"},
			{"name": "B", "type": "n8n-nodes-base.if"}
		],
		"connections": {"Start": ["A"], "A": ["B"], "B": ["A"]}
	}`)

	assert.True(t, doc.HasCycle())
	assert.Contains(t, codes(Lint(doc, DefaultLintOptions())), CodeCycle)
}
