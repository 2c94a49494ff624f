// Package sqlite persists durable storage entries to a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"roster/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.DurableStorage = (*Store)(nil)

// DefaultPath is used when no database path is configured.
const DefaultPath = "roster.db"

// Store keeps every entry as a row of the state table keyed by bucket.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating when needed) the SQLite database at path.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// GetItem returns the payload stored under key.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, true, nil
}

// SetItem upserts the payload stored under key.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the row for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE bucket = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
