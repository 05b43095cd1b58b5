package superposition

import (
	"context"
	"errors"
)

// ErrVersionConflict is returned by Store.CompareAndSwap when the stored
// record version no longer matches the expected version, meaning a concurrent
// writer won the race. Callers perform at most one re-read before giving up.
var ErrVersionConflict = errors.New("store: version conflict")

// Store is the contract against the external key-value store. The evaluator
// requires only get/create/compare-and-swap/delete semantics keyed by
// policy_id; the store's internals are out of scope.
//
// Implementations must be safe for concurrent use and must hand out copies:
// a record returned by Get is never aliased to persisted state.
type Store interface {
	// Get retrieves the record for a policy_id. Returns a NotFound error
	// when absent.
	Get(ctx context.Context, policyID string) (*PolicyRecord, error)

	// Create persists a new record with a creation-only (fail-if-exists)
	// write. Returns an AlreadyExists error on duplicates. On success the
	// stored record has Version 1.
	Create(ctx context.Context, record *PolicyRecord) error

	// CompareAndSwap atomically replaces the stored record if and only if
	// its current version equals expectedVersion. On success the record is
	// persisted with Version expectedVersion+1 (also written back to the
	// argument). Returns ErrVersionConflict when the version moved, or a
	// NotFound error when the record vanished.
	CompareAndSwap(ctx context.Context, record *PolicyRecord, expectedVersion uint64) error

	// Delete removes a record. Retention is an external store policy; the
	// evaluator itself never deletes, but sweeps and tests need the hook.
	Delete(ctx context.Context, policyID string) error

	// List iterates all records, invoking fn for each. Iteration stops at
	// the first error returned by fn. Used by the optional deadline sweep.
	List(ctx context.Context, fn func(*PolicyRecord) error) error

	// Close releases resources held by the store.
	Close() error
}
