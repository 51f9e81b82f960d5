package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS snapshots (
	name        TEXT PRIMARY KEY,
	payload     BLOB NOT NULL,
	snapshot_id TEXT NOT NULL,
	etag        TEXT NOT NULL,
	updated_at  INTEGER NOT NULL
)`

// SQLiteStore keeps one row per snapshot name.
type SQLiteStore[T any] struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path. Use
// ":memory:" for a private in-memory database.
func OpenSQLite[T any](path string) (*SQLiteStore[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state: sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite db: %w", err)
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("state: ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("state: create schema: %w", err)
	}
	return &SQLiteStore[T]{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore[T]) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}
	var (
		payload   []byte
		meta      Meta
		updatedAt int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT payload, snapshot_id, etag, updated_at FROM snapshots WHERE name = ?`, key,
	).Scan(&payload, &meta.SnapshotID, &meta.ETag, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: select %q: %w", key, err)
	}
	snapshot, err := decode[T](payload)
	if err != nil {
		return zero, Meta{}, false, err
	}
	meta.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return snapshot, meta, true, nil
}

func (s *SQLiteStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	payload, err := encode(snapshot)
	if err != nil {
		return Meta{}, err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("state: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if meta.ETag != "" {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT etag FROM snapshots WHERE name = ?`, key).Scan(&current)
		exists := err == nil
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Meta{}, fmt.Errorf("state: select %q: %w", key, err)
		}
		if err := checkETag(meta.ETag, current, exists); err != nil {
			return Meta{}, err
		}
	}

	out := meta.stamped(payload, time.Now())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (name, payload, snapshot_id, etag, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   payload = excluded.payload,
		   snapshot_id = excluded.snapshot_id,
		   etag = excluded.etag,
		   updated_at = excluded.updated_at`,
		key, payload, out.SnapshotID, out.ETag, out.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return Meta{}, fmt.Errorf("state: upsert %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("state: commit: %w", err)
	}
	return out, nil
}

// Names lists stored snapshot names in order.
func (s *SQLiteStore[T]) Names(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM snapshots ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("state: list: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
