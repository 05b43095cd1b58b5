package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"polaris-hq/superpose/pkg/superposition"
)

// keyPrefix namespaces policy records inside the shared Badger keyspace.
const keyPrefix = "policy/"

// BadgerStore implements superposition.Store on an embedded BadgerDB
// instance. Records are JSON-encoded values; compare-and-swap rides on
// Badger's serializable transactions, with transaction conflicts mapped to
// the store-level version conflict.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig configures the Badger store.
type BadgerConfig struct {
	// Path is the directory for the Badger files. Ignored when InMemory.
	Path string

	// InMemory disables disk persistence. Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool
}

// NewBadgerStore opens (or creates) a Badger-backed policy store.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("badger store: path cannot be empty")
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, superposition.NewStorageError("open", err)
	}

	return &BadgerStore{db: db}, nil
}

// Get retrieves the record for a policy_id.
func (s *BadgerStore) Get(ctx context.Context, policyID string) (*superposition.PolicyRecord, error) {
	var record *superposition.PolicyRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(policyID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record = &superposition.PolicyRecord{}
			return json.Unmarshal(val, record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, superposition.NewNotFound(policyID)
	}
	if err != nil {
		return nil, superposition.NewStorageError("get", err)
	}
	return record, nil
}

// Create persists a new record with a creation-only write.
func (s *BadgerStore) Create(ctx context.Context, record *superposition.PolicyRecord) error {
	record.Version = 1

	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(record.PolicyID)
		_, err := txn.Get(key)
		if err == nil {
			return superposition.NewAlreadyExists(record.PolicyID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		val, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(key, val)
	})
	if err != nil {
		if superposition.IsKind(err, superposition.KindAlreadyExists) {
			return err
		}
		if errors.Is(err, badger.ErrConflict) {
			// A concurrent Create committed first.
			return superposition.NewAlreadyExists(record.PolicyID)
		}
		return superposition.NewStorageError("create", err)
	}
	return nil
}

// CompareAndSwap replaces the stored record when its version matches
// expectedVersion. Both an in-transaction version mismatch and a Badger
// commit conflict surface as ErrVersionConflict.
func (s *BadgerStore) CompareAndSwap(ctx context.Context, record *superposition.PolicyRecord, expectedVersion uint64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(record.PolicyID)
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		var current superposition.PolicyRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &current)
		}); err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return superposition.ErrVersionConflict
		}

		record.Version = expectedVersion + 1
		val, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(key, val)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, superposition.ErrVersionConflict), errors.Is(err, badger.ErrConflict):
		record.Version = expectedVersion
		return superposition.ErrVersionConflict
	case errors.Is(err, badger.ErrKeyNotFound):
		return superposition.NewNotFound(record.PolicyID)
	default:
		return superposition.NewStorageError("compare_and_swap", err)
	}
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *BadgerStore) Delete(ctx context.Context, policyID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(policyID))
	})
	if err != nil {
		return superposition.NewStorageError("delete", err)
	}
	return nil
}

// List iterates all records.
func (s *BadgerStore) List(ctx context.Context, fn func(*superposition.PolicyRecord) error) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record superposition.PolicyRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			if err := fn(&record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func recordKey(policyID string) []byte {
	return []byte(keyPrefix + policyID)
}
