package core

import (
	"context"
	"fmt"

	"roster/internal/infra/persistence/memory"
	"roster/internal/infra/persistence/postgres"
	"roster/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete durable storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterises the durable storage backend.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenDurableStorage opens the configured backend. An empty driver means sqlite.
func OpenDurableStorage(ctx context.Context, cfg StorageConfig) (DurableStorage, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
