package storage

import (
	"database/sql"
	"fmt"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	filename TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT FALSE,
	node_count INTEGER NOT NULL DEFAULT 0,
	trigger_type TEXT NOT NULL,
	complexity TEXT NOT NULL,
	categories TEXT NOT NULL DEFAULT '[]',
	integrations TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	sha256 TEXT NOT NULL,
	valid BOOLEAN NOT NULL DEFAULT TRUE,
	issue_count INTEGER NOT NULL DEFAULT 0,
	created_at BIGINT,
	updated_at BIGINT,
	indexed_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflows_trigger ON workflows(trigger_type);
CREATE INDEX IF NOT EXISTS idx_workflows_complexity ON workflows(complexity);
CREATE INDEX IF NOT EXISTS idx_workflows_active ON workflows(active);
`

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	sqlStore
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and creates the schema if needed.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres driver requires storage.dsn", errors.ErrConfigInvalid)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create tables: %s", errors.ErrStoreUnavailable, err.Error())
	}

	return &PostgresStore{sqlStore: sqlStore{db: db, numbered: true}}, nil
}
