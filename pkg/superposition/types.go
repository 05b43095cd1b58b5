package superposition

import (
	"fmt"
	"strings"
	"time"
)

// Criticality is the administrative classification of a policy, set at
// creation and immutable thereafter. It influences resolution bias and the
// fail-open/fail-closed behavior toward the compliance backend.
type Criticality string

const (
	// CriticalityLow marks policies that may fail open on downstream outages.
	CriticalityLow Criticality = "LOW"
	// CriticalityMedium marks policies that may fail open on downstream outages.
	CriticalityMedium Criticality = "MEDIUM"
	// CriticalityHigh marks policies that fail closed and are subject to the
	// high-stakes observation bias.
	CriticalityHigh Criticality = "HIGH"
)

// ParseCriticality parses a criticality string (case-insensitive).
func ParseCriticality(s string) (Criticality, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return CriticalityLow, nil
	case "MEDIUM":
		return CriticalityMedium, nil
	case "HIGH":
		return CriticalityHigh, nil
	default:
		return "", fmt.Errorf("unknown criticality: %q", s)
	}
}

// State is a terminal resolution outcome. PENDING is a distinguished terminal
// value (human review required), not the absence of a decision.
type State string

const (
	// StateApproved is the approved terminal outcome.
	StateApproved State = "APPROVED"
	// StateRejected is the rejected terminal outcome.
	StateRejected State = "REJECTED"
	// StatePending is the terminal outcome that routes to human review.
	StatePending State = "PENDING"
)

// States lists all terminal states in the default tie-break order
// (APPROVED > REJECTED > PENDING).
func States() []State {
	return []State{StateApproved, StateRejected, StatePending}
}

// PolicyRecord is the central persisted entity. While Resolved is false the
// record is in superposition and Weights must sum to one; once Resolved is
// true the record is terminal and Weights, ResolvedState, and EntanglementTag
// must never be written again.
type PolicyRecord struct {
	// PolicyID is the opaque caller-supplied identifier, immutable after creation.
	PolicyID string `json:"policy_id"`

	// Weights is the three-way distribution over terminal outcomes.
	Weights Weights `json:"weights"`

	// Criticality is the administrative classification, immutable after creation.
	Criticality Criticality `json:"criticality"`

	// Deadline is the absolute timestamp after which the record is eligible
	// for deadline-triggered resolution.
	Deadline time.Time `json:"deadline"`

	// DeterministicMode forces resolution through the keyed-hash algorithm,
	// making the outcome fully reproducible for a given baseline key.
	DeterministicMode bool `json:"deterministic_mode"`

	// EntanglementTag binds the record to the process baseline key. It is an
	// integrity check, not a secret, and never changes after creation.
	EntanglementTag string `json:"entanglement_tag"`

	// Resolved becomes true exactly once and is thereafter permanent.
	Resolved bool `json:"resolved"`

	// ResolvedState is set only when Resolved is true.
	ResolvedState State `json:"resolved_state,omitempty"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`

	// Version is the store-level optimistic concurrency counter. It starts at
	// 1 on creation and increments on every successful compare-and-swap.
	Version uint64 `json:"version"`
}

// Clone returns a deep copy of the record. Stores hand out clones so callers
// can never mutate persisted state in place.
func (r *PolicyRecord) Clone() *PolicyRecord {
	cp := *r
	return &cp
}

// DeadlineExpired reports whether the record is eligible for
// deadline-triggered resolution at the given instant.
func (r *PolicyRecord) DeadlineExpired(now time.Time) bool {
	return !now.Before(r.Deadline)
}
