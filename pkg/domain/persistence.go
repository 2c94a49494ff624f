package domain

import "context"

// Durable storage entry names. Each entry holds a JSON document.
const (
	// KeyUser holds the serialized session, absent when logged out.
	KeyUser = "user"
	// KeyEmployees holds the serialized, ordered employee array.
	KeyEmployees = "employees"
)

// DurableStorage is a named string-entry store that survives restarts. It is
// deliberately as small as a browser's local storage: whole values are read
// and written, there are no partial updates.
type DurableStorage interface {
	// GetItem returns the value stored under key and whether it exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	// SetItem replaces the value stored under key.
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
	// Close releases any underlying resources.
	Close() error
}
