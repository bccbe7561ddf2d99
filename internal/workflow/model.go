// Package workflow models automation workflow documents (nodes, connections,
// settings) and checks them for well-formedness.
package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

// Document is a single workflow definition file.
type Document struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Active      bool            `json:"active"`
	Nodes       []Node          `json:"nodes"`
	Connections Connections     `json:"connections"`
	Settings    map[string]any  `json:"settings,omitempty"`
	StaticData  json.RawMessage `json:"staticData,omitempty"`
	Tags        []Tag           `json:"tags,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`

	// Source is the path the document was loaded from.
	Source string `json:"-"`
}

// Node is a single operation unit within a workflow graph.
type Node struct {
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	TypeVersion    float64        `json:"typeVersion,omitempty"`
	Position       []float64      `json:"position,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Credentials    map[string]any `json:"credentials,omitempty"`
	WebhookID      string         `json:"webhookId,omitempty"`
	Disabled       bool           `json:"disabled,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	ContinueOnFail bool           `json:"continueOnFail,omitempty"`
	OnError        string         `json:"onError,omitempty"`
}

// Tag is a workflow category label. Platforms export tags either as plain
// strings or as {id, name} objects; both decode into Tag.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &t.Name)
	}
	type plain Tag
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = Tag(p)
	return nil
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if t.ID == "" {
		return json.Marshal(t.Name)
	}
	type plain Tag
	return json.Marshal(plain(t))
}

// documentJSON mirrors Document with timestamps left raw so that
// malformed values can be reported as ErrInvalidTimestamp.
type documentJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Active      bool            `json:"active"`
	Nodes       []Node          `json:"nodes"`
	Connections Connections     `json:"connections"`
	Settings    map[string]any  `json:"settings"`
	StaticData  json.RawMessage `json:"staticData"`
	Tags        []Tag           `json:"tags"`
	CreatedAt   json.RawMessage `json:"createdAt"`
	UpdatedAt   json.RawMessage `json:"updatedAt"`
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	createdAt, err := parseTimestamp("createdAt", raw.CreatedAt)
	if err != nil {
		return err
	}
	updatedAt, err := parseTimestamp("updatedAt", raw.UpdatedAt)
	if err != nil {
		return err
	}

	*d = Document{
		ID:          raw.ID,
		Name:        raw.Name,
		Active:      raw.Active,
		Nodes:       raw.Nodes,
		Connections: raw.Connections,
		Settings:    raw.Settings,
		StaticData:  raw.StaticData,
		Tags:        raw.Tags,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		Source:      d.Source,
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(field string, raw json.RawMessage) (*time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// epoch milliseconds
		var ms int64
		if numErr := json.Unmarshal(raw, &ms); numErr != nil {
			return nil, fmt.Errorf("%w: %s must be a string or epoch milliseconds", errors.ErrInvalidTimestamp, field)
		}
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", errors.ErrInvalidTimestamp, field, s)
}

// TagNames returns the tag names in document order.
func (d *Document) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		names = append(names, t.Name)
	}
	return names
}

// DisplayName returns the workflow name, falling back to the source file name.
func (d *Document) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Source
}

// Label identifies a node in messages: its name, or its id when unnamed.
func (n Node) Label() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// ShortType returns the node type without its package prefix,
// e.g. "n8n-nodes-base.httpRequest" becomes "httpRequest".
func (n Node) ShortType() string {
	if i := strings.LastIndex(n.Type, "."); i >= 0 {
		return n.Type[i+1:]
	}
	return n.Type
}
