package superposition

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Manager creates, validates, and administratively mutates policy records.
// All persistence goes through the Store contract; the Manager never holds
// record state of its own.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a Manager backed by the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:  store,
		logger: slog.Default().With("component", "superposition.manager"),
		now:    time.Now,
	}
}

// Create registers a new policy record in superposition. The record starts
// with the maximum-entropy prior (1/3, 1/3, 1/3), unresolved, carrying the
// supplied entanglement tag. Fails with AlreadyExists if the policy_id is
// already present.
func (m *Manager) Create(ctx context.Context, policyID string, criticality Criticality, deadline time.Time, deterministicMode bool, entanglementTag string) (*PolicyRecord, error) {
	if policyID == "" {
		return nil, NewInvalidWeights("policy_id must not be empty")
	}

	record := &PolicyRecord{
		PolicyID:          policyID,
		Weights:           UniformWeights(),
		Criticality:       criticality,
		Deadline:          deadline,
		DeterministicMode: deterministicMode,
		EntanglementTag:   entanglementTag,
		Resolved:          false,
		CreatedAt:         m.now().UTC(),
	}

	if err := m.store.Create(ctx, record); err != nil {
		return nil, err
	}

	m.logger.Info("policy registered",
		"policy_id", policyID,
		"criticality", criticality,
		"deadline", deadline,
		"deterministic_mode", deterministicMode,
	)

	return record, nil
}

// Get retrieves a policy record. Fails with NotFound if absent.
func (m *Manager) Get(ctx context.Context, policyID string) (*PolicyRecord, error) {
	return m.store.Get(ctx, policyID)
}

// UpdateWeights administratively replaces the weight distribution of an
// unresolved record. Fails with InvalidWeights when the distribution violates
// the sum-to-one invariant, or AlreadyResolved when the record is terminal.
// A single CAS-conflict re-read is retried once before surfacing the conflict.
func (m *Manager) UpdateWeights(ctx context.Context, policyID string, weights Weights) (*PolicyRecord, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		record, err := m.store.Get(ctx, policyID)
		if err != nil {
			return nil, err
		}
		if record.Resolved {
			return nil, NewAlreadyResolved(policyID, record.ResolvedState)
		}

		record.Weights = weights
		err = m.store.CompareAndSwap(ctx, record, record.Version)
		if err == nil {
			m.logger.Info("policy weights updated",
				"policy_id", policyID,
				"w_approved", weights.Approved,
				"w_rejected", weights.Rejected,
				"w_pending", weights.Pending,
			)
			return record, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
	}

	return nil, NewStorageError("update_weights", ErrVersionConflict)
}
