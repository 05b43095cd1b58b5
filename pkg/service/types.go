package service

import (
	"time"

	"polaris-hq/superpose/pkg/compliance"
	"polaris-hq/superpose/pkg/superposition"
)

// RegisterInput is the Register operation request.
type RegisterInput struct {
	// PolicyID is the caller-supplied unique identifier.
	PolicyID string

	// Criticality classifies the policy (LOW, MEDIUM, HIGH).
	Criticality superposition.Criticality

	// DeadlineHours is the number of hours from now until the record
	// becomes eligible for deadline-triggered resolution. Zero means the
	// deadline is already due.
	DeadlineHours float64

	// DeterministicMode forces keyed-hash resolution.
	DeterministicMode bool
}

// RegisterOutput is the Register operation response.
type RegisterOutput struct {
	PolicyID        string                `json:"policy_id"`
	EntanglementTag string                `json:"entanglement_tag"`
	InitialWeights  superposition.Weights `json:"initial_weights"`
}

// ResolveOutput is the Resolve operation response.
type ResolveOutput struct {
	State             superposition.State  `json:"state"`
	LatencyMS         float64              `json:"latency_ms"`
	ResolutionReason  string               `json:"resolution_reason"`
	TradeOffConstant  float64              `json:"trade_off_constant"`
	DownstreamVerdict *compliance.Verdict  `json:"downstream_verdict,omitempty"`
	DownstreamWarning bool                 `json:"downstream_warning,omitempty"`
}

// ObserveOutput is the Observe operation response.
type ObserveOutput struct {
	State                 superposition.State `json:"state"`
	WasResolvedByThisCall bool                `json:"was_resolved_by_this_call"`
	Timestamp             time.Time           `json:"timestamp"`
}

// SetUncertaintyOutput is the SetUncertainty operation response.
type SetUncertaintyOutput struct {
	Lambda            float64 `json:"lambda"`
	EffectDescription string  `json:"effect_description"`
}
