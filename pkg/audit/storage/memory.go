package storage

import (
	"context"
	"sort"
	"sync"

	"polaris-hq/superpose/pkg/audit"
)

// MemoryStorage implements audit.Storage with an in-memory slice. Intended
// for testing only.
type MemoryStorage struct {
	records []*audit.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates an empty in-memory audit store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends a copy of the record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

// Query retrieves matching records, newest first.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*audit.Record
	for _, record := range s.records {
		if matches(record, query) {
			cp := *record
			results = append(results, &cp)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	start := query.Offset
	if start > len(results) {
		return []*audit.Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if matches(record, query) {
			count++
		}
	}
	return count, nil
}

// Delete removes matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*audit.Record
	var deleted int64
	for _, record := range s.records {
		if matches(record, query) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

// Close releases the records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	return nil
}

// matches checks one record against the query filters.
func matches(record *audit.Record, query *audit.Query) bool {
	if query == nil {
		return true
	}
	if query.PolicyID != "" && record.PolicyID != query.PolicyID {
		return false
	}
	if query.ResolutionReason != "" && record.ResolutionReason != query.ResolutionReason {
		return false
	}
	if query.ObserverID != "" && record.ObserverID != query.ObserverID {
		return false
	}
	if query.StartTime != nil && record.Timestamp.Before(*query.StartTime) {
		return false
	}
	if query.EndTime != nil && !record.Timestamp.Before(*query.EndTime) {
		return false
	}
	return true
}
