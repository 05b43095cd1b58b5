package resolve

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"polaris-hq/superpose/pkg/entangle"
	"polaris-hq/superpose/pkg/superposition"
	"polaris-hq/superpose/pkg/uncertainty"
)

// Resolution reasons recorded in audit records and RPC responses. These are
// stable strings; downstream consumers match on them.
const (
	// ReasonDeadlineExpiry is a deadline-triggered resolution to the
	// max-weight component.
	ReasonDeadlineExpiry = "deadline_expiry"
	// ReasonDeterministicHash is a reproducible keyed-hash resolution.
	ReasonDeterministicHash = "deterministic_hash"
	// ReasonForcedCollapse is an explicit force_collapse without
	// deterministic mode: a weighted sample taken immediately.
	ReasonForcedCollapse = "forced_collapse"
	// ReasonObservation is an Observe-triggered weighted sample.
	ReasonObservation = "observation"
	// ReasonMeasurement is a plain Resolve-triggered weighted sample.
	ReasonMeasurement = "measurement"
	// ReasonHighStakesBias is the conservative PENDING override for
	// high-criticality policies under high uncertainty.
	ReasonHighStakesBias = "high_stakes_bias"
	// ReasonAlreadyResolved marks the idempotent return of an existing
	// terminal state. No resolution happened on this call.
	ReasonAlreadyResolved = "already_resolved"
)

// trigger identifies which operation touched the record.
type trigger int

const (
	triggerMeasurement trigger = iota
	triggerForced
	triggerObservation
	triggerSweep
)

// Outcome describes the result of touching a record through the engine.
type Outcome struct {
	// State is the terminal state of the record after this call.
	State superposition.State

	// Reason is the resolution reason, or ReasonAlreadyResolved for
	// idempotent returns.
	Reason string

	// ResolvedByThisCall is true when this call performed the transition.
	ResolvedByThisCall bool

	// Record is the record as persisted after this call.
	Record *superposition.PolicyRecord

	// Lambda is the global uncertainty parameter read for this operation.
	Lambda float64

	// WinningWeight is the weight the terminal state held at resolution
	// time, used as the accuracy-estimate input.
	WinningWeight float64

	// CASConflict is true when this call lost a compare-and-swap race and
	// had to re-read.
	CASConflict bool
}

// Engine drives the per-policy state machine from superposition to resolved.
type Engine struct {
	store       superposition.Store
	entangler   *entangle.Entangler
	uncertainty *uncertainty.Controller
	logger      *slog.Logger

	cfgMu sync.RWMutex
	cfg   Config

	// injectable for deterministic tests
	now       func() time.Time
	randFloat func() float64
}

// NewEngine creates a resolution engine.
func NewEngine(store superposition.Store, entangler *entangle.Entangler, controller *uncertainty.Controller, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		store:       store,
		entangler:   entangler,
		uncertainty: controller,
		cfg:         cfg,
		logger:      slog.Default().With("component", "resolve.engine"),
		now:         time.Now,
		randFloat:   rand.Float64,
	}
}

// UpdateConfig replaces the tunable resolution parameters at runtime.
// In-flight resolutions keep the parameters they read.
func (e *Engine) UpdateConfig(cfg Config) {
	cfg.applyDefaults()
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
	e.logger.Info("resolution parameters updated",
		"high_stakes_criticality", cfg.HighStakesCriticality,
		"high_stakes_lambda_threshold", cfg.HighStakesLambdaThreshold,
	)
}

// config returns a snapshot of the tunable parameters.
func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// Resolve performs a plain measurement, or a forced collapse when force is
// set. Already-resolved records return their existing state unchanged.
func (e *Engine) Resolve(ctx context.Context, policyID string, force bool) (*Outcome, error) {
	trig := triggerMeasurement
	if force {
		trig = triggerForced
	}
	return e.resolve(ctx, policyID, trig)
}

// Observe performs an observation-triggered resolution.
func (e *Engine) Observe(ctx context.Context, policyID string) (*Outcome, error) {
	return e.resolve(ctx, policyID, triggerObservation)
}

// ResolveExpired resolves a record only if its deadline has passed. It
// returns (nil, nil) when the record is unexpired or already terminal, so
// sweeps can skip quietly.
func (e *Engine) ResolveExpired(ctx context.Context, policyID string) (*Outcome, error) {
	return e.resolve(ctx, policyID, triggerSweep)
}

// resolve is the single resolution path. It reads the record, verifies its
// entanglement tag, determines the terminal state for the active trigger, and
// persists it with one CAS guarded on resolved == false. A CAS conflict gets
// exactly one re-read: if the concurrent resolver won, its outcome is
// returned; otherwise the CAS is retried once against the fresh version.
func (e *Engine) resolve(ctx context.Context, policyID string, trig trigger) (*Outcome, error) {
	var conflicted bool

	for attempt := 0; attempt < 2; attempt++ {
		record, err := e.store.Get(ctx, policyID)
		if err != nil {
			return nil, err
		}

		if err := e.entangler.Verify(record.PolicyID, record.EntanglementTag); err != nil {
			e.logger.Error("entanglement tag verification failed",
				"policy_id", record.PolicyID,
			)
			return nil, err
		}

		lambda := e.uncertainty.Lambda()

		if record.Resolved {
			if trig == triggerSweep {
				return nil, nil
			}
			return &Outcome{
				State:         record.ResolvedState,
				Reason:        ReasonAlreadyResolved,
				Record:        record,
				Lambda:        lambda,
				WinningWeight: record.Weights.Get(record.ResolvedState),
				CASConflict:   conflicted,
			}, nil
		}

		state, reason, skip := e.determineState(record, trig, lambda)
		if skip {
			return nil, nil
		}

		record.Resolved = true
		record.ResolvedState = state

		err = e.store.CompareAndSwap(ctx, record, record.Version)
		if err == nil {
			e.logger.Info("policy resolved",
				"policy_id", record.PolicyID,
				"state", state,
				"reason", reason,
				"lambda", lambda,
			)
			return &Outcome{
				State:              state,
				Reason:             reason,
				ResolvedByThisCall: true,
				Record:             record,
				Lambda:             lambda,
				WinningWeight:      record.Weights.Get(state),
				CASConflict:        conflicted,
			}, nil
		}
		if errors.Is(err, superposition.ErrVersionConflict) {
			conflicted = true
			continue
		}
		return nil, err
	}

	return nil, superposition.NewStorageError("resolve", superposition.ErrVersionConflict)
}

// determineState picks the terminal state for an unresolved record under the
// active trigger. Trigger priority: deadline expiry beats everything, then
// the deterministic hash, then observation/measurement sampling with the
// high-stakes bias. skip is true when a sweep touches an unexpired record.
func (e *Engine) determineState(record *superposition.PolicyRecord, trig trigger, lambda float64) (state superposition.State, reason string, skip bool) {
	cfg := e.config()

	if record.DeadlineExpired(e.now()) {
		return record.Weights.Max(cfg.TieBreakOrder), ReasonDeadlineExpiry, false
	}
	if trig == triggerSweep {
		return "", "", true
	}

	if record.DeterministicMode {
		return e.deterministicState(record.PolicyID), ReasonDeterministicHash, false
	}
	if trig == triggerForced {
		return e.sample(record.Weights), ReasonForcedCollapse, false
	}

	// Observation and plain measurement share sampling semantics, including
	// the conservatism bias toward human review.
	if record.Criticality == cfg.HighStakesCriticality && lambda > cfg.HighStakesLambdaThreshold {
		return superposition.StatePending, ReasonHighStakesBias, false
	}

	reason = ReasonMeasurement
	if trig == triggerObservation {
		reason = ReasonObservation
	}
	return e.sample(record.Weights), reason, false
}

// deterministicState maps a policy_id to a terminal state via the keyed hash:
// HMAC(baseline_key, policy_id) mod 3 → {APPROVED, REJECTED, PENDING}.
func (e *Engine) deterministicState(policyID string) superposition.State {
	switch e.entangler.Bucket(policyID, 3) {
	case 0:
		return superposition.StateApproved
	case 1:
		return superposition.StateRejected
	default:
		return superposition.StatePending
	}
}

// sample draws a terminal state from the weight distribution.
func (e *Engine) sample(w superposition.Weights) superposition.State {
	r := e.randFloat() * w.Sum()
	if r < w.Approved {
		return superposition.StateApproved
	}
	if r < w.Approved+w.Rejected {
		return superposition.StateRejected
	}
	return superposition.StatePending
}
