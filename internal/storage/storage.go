// Package storage persists the workflow catalog index.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	_ "modernc.org/sqlite"
)

// Driver names accepted by New.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Record is the indexed form of one workflow document.
type Record struct {
	Filename     string     `json:"filename"`
	Name         string     `json:"name"`
	Active       bool       `json:"active"`
	NodeCount    int        `json:"node_count"`
	TriggerType  string     `json:"trigger_type"`
	Complexity   string     `json:"complexity"`
	Categories   []string   `json:"categories"`
	Integrations []string   `json:"integrations"`
	Tags         []string   `json:"tags"`
	SHA256       string     `json:"sha256"`
	Valid        bool       `json:"valid"`
	IssueCount   int        `json:"issue_count"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	IndexedAt    time.Time  `json:"indexed_at"`
}

// Filter narrows List results. Zero fields match everything; string
// comparisons are case-insensitive and Query matches name or filename.
type Filter struct {
	TriggerType string
	Complexity  string
	Category    string
	Integration string
	Active      *bool
	Query       string
	Limit       int
	Offset      int
}

// Match reports whether r satisfies the filter, ignoring Limit and Offset.
func (f Filter) Match(r Record) bool {
	if f.TriggerType != "" && !strings.EqualFold(r.TriggerType, f.TriggerType) {
		return false
	}
	if f.Complexity != "" && !strings.EqualFold(r.Complexity, f.Complexity) {
		return false
	}
	if f.Category != "" && !containsFold(r.Categories, f.Category) {
		return false
	}
	if f.Integration != "" && !containsFold(r.Integrations, f.Integration) {
		return false
	}
	if f.Active != nil && r.Active != *f.Active {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.Name), q) && !strings.Contains(strings.ToLower(r.Filename), q) {
			return false
		}
	}
	return true
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// Stats aggregates the index.
type Stats struct {
	Total        int            `json:"total_workflows"`
	Active       int            `json:"active_workflows"`
	Invalid      int            `json:"invalid_workflows"`
	ByTrigger    map[string]int `json:"by_trigger"`
	ByComplexity map[string]int `json:"by_complexity"`
}

// Store is implemented by every index backend.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, filename string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	Delete(ctx context.Context, filename string) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// New opens the backend named by driver. An empty driver selects sqlite.
func New(driver, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		return NewSqliteStore(dsn)
	case DriverPostgres:
		return NewPostgresStore(dsn)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedDriver, driver)
	}
}
