package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

// MemoryStore implements Store in memory, for tests and one-shot commands.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func cloneRecord(r Record) Record {
	r.Categories = append([]string{}, r.Categories...)
	r.Integrations = append([]string{}, r.Integrations...)
	r.Tags = append([]string{}, r.Tags...)
	return r
}

func (m *MemoryStore) Upsert(ctx context.Context, rec Record) error {
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Filename] = cloneRecord(rec)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, filename string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[filename]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreNotFound, filename)
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := []Record{}
	for _, rec := range m.records {
		if filter.Match(rec) {
			records = append(records, cloneRecord(rec))
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Filename < records[j].Filename })

	if filter.Limit <= 0 {
		return records, nil
	}
	offset := max(filter.Offset, 0)
	if offset >= len(records) {
		return []Record{}, nil
	}
	records = records[offset:]
	if filter.Limit < len(records) {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (m *MemoryStore) Delete(ctx context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, filename)
	return nil
}

func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{ByTrigger: map[string]int{}, ByComplexity: map[string]int{}}
	for _, rec := range m.records {
		stats.Total++
		if rec.Active {
			stats.Active++
		}
		if !rec.Valid {
			stats.Invalid++
		}
		stats.ByTrigger[rec.TriggerType]++
		stats.ByComplexity[rec.Complexity]++
	}
	return stats, nil
}

func (m *MemoryStore) Close() error { return nil }
