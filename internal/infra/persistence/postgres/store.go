// Package postgres persists durable storage entries to a Postgres state table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"roster/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DurableStorage = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/roster?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store keeps each entry as a row of the state table.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to DefaultDSN) and ensures the state table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Kept in sync with migrations/000001_create_state.up.sql.
const createStateTable = `CREATE TABLE IF NOT EXISTS state (
	bucket TEXT PRIMARY KEY,
	payload TEXT NOT NULL
)`

// GetItem returns the payload stored under key.
func (s *Store) GetItem(ctx context.Context, key string) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, true, nil
}

// SetItem upserts the payload stored under key inside a transaction.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// RemoveItem deletes the row for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE bucket = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
