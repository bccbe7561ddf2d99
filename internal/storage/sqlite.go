package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	errors "github.com/deploymenttheory/wfkit/internal/errors"
)

// DefaultSQLitePath is used when the sqlite driver gets an empty DSN.
const DefaultSQLitePath = "workflows.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	filename TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 0,
	node_count INTEGER NOT NULL DEFAULT 0,
	trigger_type TEXT NOT NULL,
	complexity TEXT NOT NULL,
	categories TEXT NOT NULL DEFAULT '[]',
	integrations TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	sha256 TEXT NOT NULL,
	valid BOOLEAN NOT NULL DEFAULT 1,
	issue_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER,
	updated_at INTEGER,
	indexed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workflows_trigger ON workflows(trigger_type);
CREATE INDEX IF NOT EXISTS idx_workflows_complexity ON workflows(complexity);
CREATE INDEX IF NOT EXISTS idx_workflows_active ON workflows(active);
`

// SqliteStore implements Store on an SQLite database file.
type SqliteStore struct {
	sqlStore
	path string
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore opens (creating if needed) the SQLite index at dsn.
func NewSqliteStore(dsn string) (*SqliteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLitePath
	}
	// Only create parent directories for file databases
	if dsn != ":memory:" {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create db directory %q: %s", errors.ErrDirCreateError, dir, err.Error())
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}

	_, err = db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to configure SQLite: %s", errors.ErrStoreUnavailable, err.Error())
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to create tables: %s", errors.ErrStoreUnavailable, err.Error())
	}

	return &SqliteStore{sqlStore: sqlStore{db: db}, path: dsn}, nil
}

// Path returns the database file backing the store.
func (s *SqliteStore) Path() string {
	return s.path
}

// VacuumInto writes a consistent, compacted copy of the SQLite database at
// dbPath to dst. dst must not exist.
func VacuumInto(ctx context.Context, dbPath, dst string) error {
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrFileNotFound, dbPath)
		}
		return fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrStoreUnavailable, err.Error())
	}
	defer db.Close()

	quoted := "'" + strings.ReplaceAll(dst, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrBackupFailed, err.Error())
	}
	return nil
}
