package urlaudit

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	"github.com/deploymenttheory/wfkit/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const auditedWorkflow = `{
  "name": "Endpoints",
  "nodes": [
    {"id": "1", "name": "Fetch", "type": "n8n-nodes-base.httpRequest",
     "parameters": {"url": "https://api.example.com/v1/items", "method": "GET"}},
    {"id": "2", "name": "Dynamic", "type": "n8n-nodes-base.httpRequest",
     "parameters": {"url": "={{ $json.target }}"}},
    {"id": "3", "name": "Nested", "type": "n8n-nodes-base.graphql",
     "parameters": {"options": {"endpoint": "http://graph.example.org/q", "timeout": 30},
                    "hooks": [{"callbackUrl": "https://hooks.example.net/x"}, {"callbackUrl": "relative/path"}]}},
    {"id": "4", "name": "Off", "type": "n8n-nodes-base.httpRequest", "disabled": true,
     "parameters": {"url": "https://disabled.example.com"}},
    {"id": "5", "name": "Text", "type": "n8n-nodes-base.set",
     "parameters": {"value": "https://not-a-url-key.example.com"}}
  ],
  "connections": {}
}`

func parseDoc(t *testing.T) *workflow.Document {
	t.Helper()
	doc, err := workflow.Parse([]byte(auditedWorkflow))
	require.NoError(t, err)
	doc.Source = "workflows/0042_endpoints.json"
	return doc
}

func TestExtract(t *testing.T) {
	findings := Extract(parseDoc(t))
	require.Len(t, findings, 3)

	assert.Equal(t, Finding{
		Workflow: "0042_endpoints.json", Node: "Fetch", Parameter: "url",
		URL: "https://api.example.com/v1/items", Host: "api.example.com",
	}, findings[0])
	assert.Equal(t, "hooks[0].callbackUrl", findings[1].Parameter)
	assert.Equal(t, "hooks.example.net", findings[1].Host)
	assert.Equal(t, "options.endpoint", findings[2].Parameter)
}

func TestParseURL(t *testing.T) {
	_, err := ParseURL("ftp://files.example.com")
	assert.ErrorIs(t, err, errors.ErrInvalidURL)
	_, err = ParseURL("=https://x.example.com")
	assert.ErrorIs(t, err, errors.ErrInvalidURL)

	u, err := ParseURL(" https://x.example.com:8443/p ")
	require.NoError(t, err)
	assert.Equal(t, "x.example.com", u.Hostname())
}

type fakeChecker struct {
	calls    map[string]int
	verdicts map[string]*Verdict
}

func (f *fakeChecker) CheckURL(_ context.Context, rawURL string) (*Verdict, error) {
	f.calls[rawURL]++
	if v, ok := f.verdicts[rawURL]; ok {
		return v, nil
	}
	return nil, stderrors.New("lookup failed")
}

func TestAudit(t *testing.T) {
	doc := parseDoc(t)
	checker := &fakeChecker{
		calls: map[string]int{},
		verdicts: map[string]*Verdict{
			"https://api.example.com/v1/items": {Known: true, Harmless: 70},
			"http://graph.example.org/q":       {Known: true, Malicious: 3},
		},
	}

	report, err := Audit(context.Background(), []*workflow.Document{doc, doc}, checker)
	require.NoError(t, err)
	assert.Len(t, report.Findings, 6)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, 1, checker.calls["https://api.example.com/v1/items"])
	assert.Equal(t, "lookup failed", report.Findings[1].Error)
	assert.True(t, report.Findings[2].Verdict.Flagged())

	offline, err := Audit(context.Background(), []*workflow.Document{doc}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, offline.Checked)
	assert.Nil(t, offline.Findings[0].Verdict)
}

func newTestClient(t *testing.T, lookup func(context.Context, string) (*Verdict, error)) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{APIKey: "test", RateLimitPerMin: 100, RetryCount: 2, RetryDelay: time.Millisecond, ResultCacheTTL: 60})
	require.NoError(t, err)
	c.lookup = lookup
	return c
}

func TestClientRetriesAndCaches(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(_ context.Context, rawURL string) (*Verdict, error) {
		attempts++
		if attempts < 3 {
			return nil, stderrors.New("temporary failure")
		}
		return &Verdict{URL: rawURL, Known: true}, nil
	})

	v, err := c.CheckURL(context.Background(), "https://a.example.com")
	require.NoError(t, err)
	assert.True(t, v.Known)
	assert.Equal(t, 3, attempts)

	_, err = c.CheckURL(context.Background(), "https://a.example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestClientGivesUp(t *testing.T) {
	c := newTestClient(t, func(context.Context, string) (*Verdict, error) {
		return nil, stderrors.New("down")
	})
	_, err := c.CheckURL(context.Background(), "https://b.example.com")
	assert.EqualError(t, err, "down")
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, func(_ context.Context, rawURL string) (*Verdict, error) {
		return &Verdict{URL: rawURL}, nil
	})
	c.config.RateLimitPerMin = 1

	_, err := c.CheckURL(context.Background(), "https://c.example.com")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.CheckURL(ctx, "https://d.example.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(DefaultClientConfig())
	assert.ErrorIs(t, err, errors.ErrAPIKeyMissing)
}
