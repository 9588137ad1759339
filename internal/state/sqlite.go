package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/couchcryptid/alertzarr/internal/domain"
	_ "modernc.org/sqlite"
)

const processedTable = "processed_alerts"

// SQLiteStore keeps the processed set in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them in effect.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS ` + processedTable + ` (
			id           TEXT PRIMARY KEY,
			processed_at TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init state db: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// IsNew reports whether id has no row in the processed table.
func (s *SQLiteStore) IsNew(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("1").From(processedTable).Where(sq.Eq{"id": id}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build lookup: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return false, nil
}

// MarkProcessed inserts id; marking an id twice is a no-op.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, id string) error {
	return s.Extend(ctx, []string{id})
}

// Extend inserts every id in one statement.
func (s *SQLiteStore) Extend(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := domain.Now().UTC().Format(time.RFC3339)
	insert := sq.Insert(processedTable).Columns("id", "processed_at")
	for _, id := range ids {
		insert = insert.Values(id, now)
	}
	query, args, err := insert.Suffix("ON CONFLICT(id) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
