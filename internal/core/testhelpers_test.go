package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"roster/internal/infra/persistence/memory"
	"roster/pkg/domain"
)

var errStorage = errors.New("storage unavailable")

// flakyStorage wraps a memory store and fails selected operations.
type flakyStorage struct {
	*memory.Store
	mu      sync.Mutex
	failGet bool
	failSet bool
	failRm  bool
	sets    int
}

func newFlakyStorage() *flakyStorage {
	return &flakyStorage{Store: memory.NewStore()}
}

func (f *flakyStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, errStorage
	}
	return f.Store.GetItem(ctx, key)
}

func (f *flakyStorage) SetItem(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSet
	f.sets++
	f.mu.Unlock()
	if fail {
		return errStorage
	}
	return f.Store.SetItem(ctx, key, value)
}

func (f *flakyStorage) RemoveItem(ctx context.Context, key string) error {
	f.mu.Lock()
	fail := f.failRm
	f.mu.Unlock()
	if fail {
		return errStorage
	}
	return f.Store.RemoveItem(ctx, key)
}

func (f *flakyStorage) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newSeededStore(t *testing.T, opts ...StoreOption) (*RecordStore, *memory.Store) {
	t.Helper()
	storage := memory.NewStore()
	store := NewRecordStore(storage, opts...)
	if src := store.Load(context.Background()); src != LoadFromSeed {
		t.Fatalf("expected seed load, got %s", src)
	}
	return store, storage
}

func persistedEmployees(t *testing.T, storage DurableStorage) []Employee {
	t.Helper()
	payload, ok, err := storage.GetItem(context.Background(), domain.KeyEmployees)
	if err != nil || !ok {
		t.Fatalf("employees entry missing: ok=%v err=%v", ok, err)
	}
	list, err := DecodeEmployees(payload)
	if err != nil {
		t.Fatalf("decode persisted employees: %v", err)
	}
	return list
}

func sampleFields() EmployeeFields {
	return EmployeeFields{
		FullName: "X Y",
		Gender:   GenderOther,
		DOB:      "2000-01-01",
		State:    "Texas",
		IsActive: false,
	}
}
