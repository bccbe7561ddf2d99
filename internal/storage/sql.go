package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

const recordColumns = `filename, name, active, node_count, trigger_type, complexity, categories,
	integrations, tags, sha256, valid, issue_count, created_at, updated_at, indexed_at`

// sqlStore holds the queries shared by the SQL backends. Queries are written
// with ? placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(data string) ([]string, error) {
	values := []string{}
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func (s *sqlStore) Upsert(ctx context.Context, rec Record) error {
	categories, err := encodeList(rec.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}
	integrations, err := encodeList(rec.Integrations)
	if err != nil {
		return fmt.Errorf("failed to marshal integrations: %w", err)
	}
	tags, err := encodeList(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
INSERT INTO workflows (`+recordColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(filename) DO UPDATE SET name=excluded.name, active=excluded.active,
	node_count=excluded.node_count, trigger_type=excluded.trigger_type, complexity=excluded.complexity,
	categories=excluded.categories, integrations=excluded.integrations, tags=excluded.tags,
	sha256=excluded.sha256, valid=excluded.valid, issue_count=excluded.issue_count,
	created_at=excluded.created_at, updated_at=excluded.updated_at, indexed_at=excluded.indexed_at
`), rec.Filename, rec.Name, rec.Active, rec.NodeCount, rec.TriggerType, rec.Complexity, categories,
		integrations, tags, rec.SHA256, rec.Valid, rec.IssueCount, unixOrNil(rec.CreatedAt),
		unixOrNil(rec.UpdatedAt), rec.IndexedAt.Unix())
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var categories, integrations, tags string
	var createdAt, updatedAt sql.NullInt64
	var indexedAt int64

	if err := row.Scan(&rec.Filename, &rec.Name, &rec.Active, &rec.NodeCount, &rec.TriggerType,
		&rec.Complexity, &categories, &integrations, &tags, &rec.SHA256, &rec.Valid, &rec.IssueCount,
		&createdAt, &updatedAt, &indexedAt); err != nil {
		return nil, err
	}

	var err error
	if rec.Categories, err = decodeList(categories); err != nil {
		return nil, err
	}
	if rec.Integrations, err = decodeList(integrations); err != nil {
		return nil, err
	}
	if rec.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	rec.CreatedAt = timeOrNil(createdAt)
	rec.UpdatedAt = timeOrNil(updatedAt)
	rec.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &rec, nil
}

func (s *sqlStore) Get(ctx context.Context, filename string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM workflows WHERE filename=?`), filename)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}
	return rec, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern escaped with '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *sqlStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	var where []string
	var args []any

	if filter.TriggerType != "" {
		where = append(where, "LOWER(trigger_type) = ?")
		args = append(args, strings.ToLower(filter.TriggerType))
	}
	if filter.Complexity != "" {
		where = append(where, "LOWER(complexity) = ?")
		args = append(args, strings.ToLower(filter.Complexity))
	}
	if filter.Category != "" {
		where = append(where, `LOWER(categories) LIKE ? ESCAPE '\'`)
		args = append(args, `%"`+escapeLike(strings.ToLower(filter.Category))+`"%`)
	}
	if filter.Integration != "" {
		where = append(where, `LOWER(integrations) LIKE ? ESCAPE '\'`)
		args = append(args, `%"`+escapeLike(strings.ToLower(filter.Integration))+`"%`)
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.Query != "" {
		q := "%" + escapeLike(strings.ToLower(filter.Query)) + "%"
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(filename) LIKE ? ESCAPE '\')`)
		args = append(args, q, q)
	}

	query := `SELECT ` + recordColumns + ` FROM workflows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY filename"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *sqlStore) Delete(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM workflows WHERE filename=?`), filename)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}
	return nil
}

func (s *sqlStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByTrigger: map[string]int{}, ByComplexity: map[string]int{}}

	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN valid THEN 0 ELSE 1 END), 0)
FROM workflows`)
	if err := row.Scan(&stats.Total, &stats.Active, &stats.Invalid); err != nil {
		return stats, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}

	if err := s.countBy(ctx, "trigger_type", stats.ByTrigger); err != nil {
		return stats, err
	}
	if err := s.countBy(ctx, "complexity", stats.ByComplexity); err != nil {
		return stats, err
	}
	return stats, nil
}

// countBy fills counts with the row count per distinct value of column.
// column is always a package constant.
func (s *sqlStore) countBy(ctx context.Context, column string, counts map[string]int) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+column+`, COUNT(*) FROM workflows GROUP BY `+column)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
		}
		counts[key] = n
	}
	return rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
