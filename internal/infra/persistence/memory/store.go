// Package memory provides a process-local durable storage implementation used
// for tests and ephemeral runs. Values do not survive a restart.
package memory

import (
	"context"
	"sync"

	"roster/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.DurableStorage = (*Store)(nil)

// Store keeps entries in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{entries: make(map[string]string)}
}

// GetItem returns the value stored under key.
func (s *Store) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

// SetItem replaces the value stored under key.
func (s *Store) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

// RemoveItem deletes key if present.
func (s *Store) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// ImportState replaces all entries with the provided snapshot.
func (s *Store) ImportState(snapshot map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string, len(snapshot))
	for k, v := range snapshot {
		s.entries[k] = v
	}
}
