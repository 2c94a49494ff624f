package blob

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory open: %v", err)
	}
	fsStore, err := Open(ctx, Config{FSRoot: filepath.Join(t.TempDir(), "blobs")})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver should be fs: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 without bucket to fail")
	}
	if _, err := Open(ctx, Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
