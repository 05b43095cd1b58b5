package store

import (
	"context"
	"sync"

	"polaris-hq/superpose/pkg/superposition"
)

// MemoryStore implements superposition.Store using a mutex-guarded map.
// It is the default backend for tests and single-process deployments.
type MemoryStore struct {
	records map[string]*superposition.PolicyRecord
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*superposition.PolicyRecord),
	}
}

// Get retrieves a copy of the record for a policy_id.
func (s *MemoryStore) Get(ctx context.Context, policyID string) (*superposition.PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[policyID]
	if !ok {
		return nil, superposition.NewNotFound(policyID)
	}
	return record.Clone(), nil
}

// Create persists a new record, failing if the policy_id already exists.
func (s *MemoryStore) Create(ctx context.Context, record *superposition.PolicyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.PolicyID]; ok {
		return superposition.NewAlreadyExists(record.PolicyID)
	}

	record.Version = 1
	s.records[record.PolicyID] = record.Clone()
	return nil
}

// CompareAndSwap replaces the stored record when its version matches
// expectedVersion, bumping the version by one.
func (s *MemoryStore) CompareAndSwap(ctx context.Context, record *superposition.PolicyRecord, expectedVersion uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[record.PolicyID]
	if !ok {
		return superposition.NewNotFound(record.PolicyID)
	}
	if current.Version != expectedVersion {
		return superposition.ErrVersionConflict
	}

	record.Version = expectedVersion + 1
	s.records[record.PolicyID] = record.Clone()
	return nil
}

// Delete removes a record. Deleting an absent record is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, policyID)
	return nil
}

// List iterates all records in unspecified order.
func (s *MemoryStore) List(ctx context.Context, fn func(*superposition.PolicyRecord) error) error {
	s.mu.RLock()
	snapshot := make([]*superposition.PolicyRecord, 0, len(s.records))
	for _, record := range s.records {
		snapshot = append(snapshot, record.Clone())
	}
	s.mu.RUnlock()

	for _, record := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the map.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*superposition.PolicyRecord)
	return nil
}

// Size returns the number of stored records (for testing).
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
