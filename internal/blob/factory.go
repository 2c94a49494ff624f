package blob

import (
	"context"
	"fmt"

	"roster/internal/infra/blob/fs"
	memorystore "roster/internal/infra/blob/memory"
	infraS3 "roster/internal/infra/blob/s3"
)

// S3Config re-exports the infra S3 configuration type.
type S3Config = infraS3.Config

// Config selects and parameterises a blob backend.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the configured blob.Store; an empty driver means fs.
func Open(ctx context.Context, cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		store, err := fs.New(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverS3:
		store, err := infraS3.New(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverMemory:
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
