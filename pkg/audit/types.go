package audit

import (
	"context"
	"time"
)

// Record is one append-only audit entry, emitted on every resolution.
type Record struct {
	// ID is a UUID v4 assigned by the recorder.
	ID string `json:"id"`

	// PolicyID identifies the resolved policy.
	PolicyID string `json:"policy_id"`

	// EntanglementTag is the integrity tag the record carried at resolution.
	EntanglementTag string `json:"entanglement_tag"`

	// ResolutionReason is the stable reason string from the resolution engine.
	ResolutionReason string `json:"resolution_reason"`

	// ResolvedState is the terminal outcome.
	ResolvedState string `json:"resolved_state"`

	// ObserverID identifies the observer for observation-triggered
	// resolutions; empty otherwise.
	ObserverID string `json:"observer_id,omitempty"`

	// ObserverReason is the free-form reason supplied on Observe.
	ObserverReason string `json:"observer_reason,omitempty"`

	// Timestamp is when the resolution was recorded.
	Timestamp time.Time `json:"timestamp"`

	// BaselineKeyID is the short identifier of the baseline key in effect.
	BaselineKeyID string `json:"baseline_key_id"`

	// TradeOffConstant is K = latency_ms × accuracy_estimate for the
	// resolving operation.
	TradeOffConstant float64 `json:"trade_off_constant"`

	// UncertaintyLambdaAtTime is the global λ read by the resolving operation.
	UncertaintyLambdaAtTime float64 `json:"uncertainty_lambda_at_time"`

	// DownstreamVerdict is the compliance backend decision, when one was
	// obtained.
	DownstreamVerdict string `json:"downstream_verdict,omitempty"`

	// DownstreamWarning is set when the backend was unavailable and the
	// fail-open/fail-closed policy substituted a verdict.
	DownstreamWarning bool `json:"downstream_warning,omitempty"`
}

// Query filters audit records.
type Query struct {
	// PolicyID filters by exact policy_id.
	PolicyID string

	// ResolutionReason filters by exact reason string.
	ResolutionReason string

	// ObserverID filters by exact observer.
	ObserverID string

	// StartTime/EndTime bound the record timestamp (inclusive start,
	// exclusive end). Nil means unbounded.
	StartTime *time.Time
	EndTime   *time.Time

	// Limit caps the number of results; zero means no limit.
	Limit int

	// Offset skips results for pagination.
	Offset int
}

// Storage is the append-only audit persistence contract.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters, newest first.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the filters and returns how many were
	// removed. Used only by retention enforcement.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases resources held by the backend.
	Close() error
}
