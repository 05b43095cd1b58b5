package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"polaris-hq/superpose/pkg/superposition"
)

// backends lists every store implementation; the contract tests run against
// each one.
func backends(t *testing.T) map[string]superposition.Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "policies.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	badgerStore, err := NewBadgerStore(BadgerConfig{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}

	stores := map[string]superposition.Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"badger": badgerStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func testRecord(policyID string) *superposition.PolicyRecord {
	return &superposition.PolicyRecord{
		PolicyID:        policyID,
		Weights:         superposition.UniformWeights(),
		Criticality:     superposition.CriticalityMedium,
		Deadline:        time.Now().Add(24 * time.Hour).UTC().Truncate(time.Microsecond),
		EntanglementTag: "deadbeef",
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			record := testRecord("p-1")
			if err := st.Create(ctx, record); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if record.Version != 1 {
				t.Errorf("Version after Create = %d, want 1", record.Version)
			}

			got, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.PolicyID != "p-1" || got.Version != 1 {
				t.Errorf("Get() = %+v, want policy p-1 at version 1", got)
			}
			if got.EntanglementTag != "deadbeef" {
				t.Errorf("EntanglementTag = %q, want deadbeef", got.EntanglementTag)
			}
		})
	}
}

func TestStoreCreateDuplicate(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.Create(ctx, testRecord("p-1")); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			err := st.Create(ctx, testRecord("p-1"))
			if !superposition.IsKind(err, superposition.KindAlreadyExists) {
				t.Errorf("duplicate Create() kind = %q, want %q",
					superposition.KindOf(err), superposition.KindAlreadyExists)
			}
		})
	}
}

func TestStoreGetNotFound(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(context.Background(), "missing")
			if !superposition.IsKind(err, superposition.KindNotFound) {
				t.Errorf("Get(missing) kind = %q, want %q",
					superposition.KindOf(err), superposition.KindNotFound)
			}
		})
	}
}

func TestStoreCompareAndSwap(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.Create(ctx, testRecord("p-1")); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			record, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			record.Resolved = true
			record.ResolvedState = superposition.StateApproved

			if err := st.CompareAndSwap(ctx, record, 1); err != nil {
				t.Fatalf("CompareAndSwap() error = %v", err)
			}
			if record.Version != 2 {
				t.Errorf("Version after CAS = %d, want 2", record.Version)
			}

			got, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !got.Resolved || got.ResolvedState != superposition.StateApproved {
				t.Errorf("persisted record = %+v, want resolved APPROVED", got)
			}
		})
	}
}

func TestStoreCompareAndSwapConflict(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.Create(ctx, testRecord("p-1")); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			record, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}

			// A stale expected version must fail without mutating anything.
			err = st.CompareAndSwap(ctx, record, 99)
			if !errors.Is(err, superposition.ErrVersionConflict) {
				t.Errorf("CompareAndSwap(stale) = %v, want ErrVersionConflict", err)
			}

			got, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.Version != 1 {
				t.Errorf("Version after failed CAS = %d, want 1", got.Version)
			}
		})
	}
}

func TestStoreCompareAndSwapMissing(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			record := testRecord("ghost")
			record.Version = 1

			err := st.CompareAndSwap(context.Background(), record, 1)
			if !superposition.IsKind(err, superposition.KindNotFound) {
				t.Errorf("CAS(missing) kind = %q, want %q",
					superposition.KindOf(err), superposition.KindNotFound)
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.Create(ctx, testRecord("p-1")); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if err := st.Delete(ctx, "p-1"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, err := st.Get(ctx, "p-1"); !superposition.IsKind(err, superposition.KindNotFound) {
				t.Errorf("Get after Delete kind = %q, want %q",
					superposition.KindOf(err), superposition.KindNotFound)
			}

			// Deleting an absent record is a no-op.
			if err := st.Delete(ctx, "p-1"); err != nil {
				t.Errorf("second Delete() error = %v", err)
			}
		})
	}
}

func TestStoreList(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, id := range []string{"p-1", "p-2", "p-3"} {
				if err := st.Create(ctx, testRecord(id)); err != nil {
					t.Fatalf("Create(%s) error = %v", id, err)
				}
			}

			seen := make(map[string]bool)
			err := st.List(ctx, func(record *superposition.PolicyRecord) error {
				seen[record.PolicyID] = true
				return nil
			})
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(seen) != 3 {
				t.Errorf("List() visited %d records, want 3", len(seen))
			}
		})
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.Create(ctx, testRecord("p-1")); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			first, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			first.Resolved = true
			first.Weights.Approved = 0.99

			second, err := st.Get(ctx, "p-1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if second.Resolved {
				t.Error("mutating a returned record leaked into the store")
			}
		})
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Backend: BackendMemory}, false},
		{"default is memory", Config{}, false},
		{"sqlite", Config{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "p.db")}, false},
		{"badger", Config{Backend: BackendBadger, Path: t.TempDir()}, false},
		{"unknown", Config{Backend: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(tt.cfg)
			if tt.wantErr {
				if err == nil {
					st.Close()
					t.Fatal("Open() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			st.Close()
		})
	}
}
