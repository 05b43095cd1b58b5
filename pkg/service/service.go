package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"polaris-hq/superpose/pkg/audit"
	"polaris-hq/superpose/pkg/audit/recorder"
	"polaris-hq/superpose/pkg/compliance"
	"polaris-hq/superpose/pkg/entangle"
	"polaris-hq/superpose/pkg/resolve"
	"polaris-hq/superpose/pkg/superposition"
	"polaris-hq/superpose/pkg/telemetry/metrics"
	"polaris-hq/superpose/pkg/uncertainty"
)

// Config contains the service-level policies.
type Config struct {
	// FailOpen lets LOW/MEDIUM-criticality policies receive an allow
	// verdict (flagged with a warning) when the compliance backend is
	// unavailable. HIGH-criticality policies always fail closed.
	FailOpen bool
}

// Service implements the four public operations over the assembled
// components.
type Service struct {
	manager     *superposition.Manager
	engine      *resolve.Engine
	entangler   *entangle.Entangler
	uncertainty *uncertainty.Controller
	backend     compliance.Backend
	recorder    *recorder.Recorder
	metrics     *metrics.Collector
	logger      *slog.Logger
	now         func() time.Time

	cfgMu sync.RWMutex
	cfg   Config
}

// New assembles a Service. The metrics collector may be nil.
func New(manager *superposition.Manager, engine *resolve.Engine, entangler *entangle.Entangler, controller *uncertainty.Controller, backend compliance.Backend, rec *recorder.Recorder, collector *metrics.Collector, cfg Config) *Service {
	return &Service{
		manager:     manager,
		engine:      engine,
		entangler:   entangler,
		uncertainty: controller,
		backend:     backend,
		recorder:    rec,
		metrics:     collector,
		cfg:         cfg,
		logger:      slog.Default().With("component", "service"),
		now:         time.Now,
	}
}

// SetFailOpen replaces the fail-open policy at runtime.
func (s *Service) SetFailOpen(failOpen bool) {
	s.cfgMu.Lock()
	s.cfg.FailOpen = failOpen
	s.cfgMu.Unlock()
}

// failOpen reads the current fail-open policy.
func (s *Service) failOpen() bool {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg.FailOpen
}

// Register creates a policy record in superposition and derives its
// entanglement tag. Fails with AlreadyExists on duplicate policy ids.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	start := s.now()
	defer func() { s.metrics.RecordOperation("register", time.Since(start)) }()

	tag := s.entangler.Derive(in.PolicyID)
	deadline := start.UTC().Add(time.Duration(in.DeadlineHours * float64(time.Hour)))

	record, err := s.manager.Create(ctx, in.PolicyID, in.Criticality, deadline, in.DeterministicMode, tag)
	if err != nil {
		return nil, err
	}

	return &RegisterOutput{
		PolicyID:        record.PolicyID,
		EntanglementTag: record.EntanglementTag,
		InitialWeights:  record.Weights,
	}, nil
}

// Resolve drives the record to a terminal state (idempotently returning the
// existing state if already terminal) and, for non-pending outcomes, forwards
// the action context to the compliance backend.
func (s *Service) Resolve(ctx context.Context, policyID string, actionContext compliance.ActionContext, forceCollapse bool) (*ResolveOutput, error) {
	start := s.now()

	outcome, err := s.engine.Resolve(ctx, policyID, forceCollapse)
	if err != nil {
		s.observeEngineError(err)
		return nil, err
	}

	latency := time.Since(start)
	latencyMS := float64(latency.Microseconds()) / 1000.0
	tradeOff := s.recordTradeOff(latencyMS, outcome)

	out := &ResolveOutput{
		State:            outcome.State,
		LatencyMS:        latencyMS,
		ResolutionReason: outcome.Reason,
		TradeOffConstant: tradeOff,
	}

	// PENDING short-circuits: human review, no downstream evaluation.
	if outcome.State != superposition.StatePending {
		verdict, warning := s.evaluateDownstream(ctx, actionContext, outcome.Record.Criticality)
		out.DownstreamVerdict = verdict
		out.DownstreamWarning = warning
	}

	s.finishResolution(ctx, outcome, tradeOff, "", "", out.DownstreamVerdict, out.DownstreamWarning)
	s.metrics.RecordOperation("resolve", time.Since(start))

	return out, nil
}

// Observe performs an observation-triggered resolution with explicit
// observer bookkeeping. Observations never call the compliance backend.
func (s *Service) Observe(ctx context.Context, policyID, observerID, reason string) (*ObserveOutput, error) {
	start := s.now()

	outcome, err := s.engine.Observe(ctx, policyID)
	if err != nil {
		s.observeEngineError(err)
		return nil, err
	}

	latencyMS := float64(time.Since(start).Microseconds()) / 1000.0
	tradeOff := s.recordTradeOff(latencyMS, outcome)

	s.finishResolution(ctx, outcome, tradeOff, observerID, reason, nil, false)
	s.metrics.RecordOperation("observe", time.Since(start))

	return &ObserveOutput{
		State:                 outcome.State,
		WasResolvedByThisCall: outcome.ResolvedByThisCall,
		Timestamp:             s.now().UTC(),
	}, nil
}

// ResolveExpired resolves a record only if its deadline passed; used by the
// background sweep. Unexpired and already-terminal records return (nil, nil).
func (s *Service) ResolveExpired(ctx context.Context, policyID string) (*resolve.Outcome, error) {
	outcome, err := s.engine.ResolveExpired(ctx, policyID)
	if err != nil {
		s.observeEngineError(err)
		return nil, err
	}
	if outcome == nil {
		return nil, nil
	}

	// Sweeps have no caller context, so no downstream evaluation and no
	// latency-based trade-off.
	s.finishResolution(ctx, outcome, 0, "", "", nil, false)
	return outcome, nil
}

// SetUncertainty atomically replaces the global λ. Fails with OutOfRange
// outside [0,1], leaving the previous value in place.
func (s *Service) SetUncertainty(ctx context.Context, lambda float64) (*SetUncertaintyOutput, error) {
	start := s.now()
	defer func() { s.metrics.RecordOperation("set_uncertainty", time.Since(start)) }()

	if err := s.uncertainty.SetLambda(lambda); err != nil {
		return nil, err
	}
	s.metrics.SetLambda(lambda)

	s.logger.Info("uncertainty parameter updated",
		"lambda", lambda,
		"effect", uncertainty.EffectDescription(lambda),
	)

	return &SetUncertaintyOutput{
		Lambda:            lambda,
		EffectDescription: uncertainty.EffectDescription(lambda),
	}, nil
}

// GetUncertainty returns the current λ and its classification.
func (s *Service) GetUncertainty(ctx context.Context) *SetUncertaintyOutput {
	lambda := s.uncertainty.Lambda()
	return &SetUncertaintyOutput{
		Lambda:            lambda,
		EffectDescription: uncertainty.EffectDescription(lambda),
	}
}

// GetPolicy retrieves a record, verifying its entanglement tag.
func (s *Service) GetPolicy(ctx context.Context, policyID string) (*superposition.PolicyRecord, error) {
	record, err := s.manager.Get(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if err := s.entangler.Verify(record.PolicyID, record.EntanglementTag); err != nil {
		s.metrics.RecordIntegrityFailure()
		return nil, err
	}
	return record, nil
}

// UpdateWeights administratively replaces the weight distribution of an
// unresolved record.
func (s *Service) UpdateWeights(ctx context.Context, policyID string, weights superposition.Weights) (*superposition.PolicyRecord, error) {
	return s.manager.UpdateWeights(ctx, policyID, weights)
}

// recordTradeOff computes and exports the trade-off constant K for one
// operation.
func (s *Service) recordTradeOff(latencyMS float64, outcome *resolve.Outcome) float64 {
	accuracy := uncertainty.AccuracyEstimate(outcome.WinningWeight)
	k := uncertainty.RecordTradeOff(latencyMS, accuracy)
	s.metrics.RecordTradeOff(k)
	if outcome.CASConflict {
		s.metrics.RecordCASConflict()
	}
	return k
}

// finishResolution emits the audit record and resolution metric when this
// call performed the transition. Idempotent returns emit nothing: the audit
// trail carries exactly one event per resolved policy.
func (s *Service) finishResolution(ctx context.Context, outcome *resolve.Outcome, tradeOff float64, observerID, observerReason string, verdict *compliance.Verdict, warning bool) {
	if !outcome.ResolvedByThisCall {
		return
	}

	s.metrics.RecordResolution(outcome.Reason, string(outcome.State))

	// A nil recorder means auditing is disabled.
	if s.recorder == nil {
		return
	}

	record := &audit.Record{
		PolicyID:                outcome.Record.PolicyID,
		EntanglementTag:         outcome.Record.EntanglementTag,
		ResolutionReason:        outcome.Reason,
		ResolvedState:           string(outcome.State),
		ObserverID:              observerID,
		ObserverReason:          observerReason,
		Timestamp:               s.now().UTC(),
		BaselineKeyID:           s.entangler.KeyID(),
		TradeOffConstant:        tradeOff,
		UncertaintyLambdaAtTime: outcome.Lambda,
		DownstreamWarning:       warning,
	}
	if verdict != nil {
		record.DownstreamVerdict = verdict.Decision
	}

	if err := s.recorder.Record(ctx, record); err != nil {
		s.logger.Error("failed to enqueue audit record",
			"policy_id", record.PolicyID,
			"error", err,
		)
	}
}

// evaluateDownstream forwards the action context to the compliance backend
// and applies the fail-open/fail-closed substitution on failure: HIGH
// criticality always fails closed; LOW/MEDIUM fail open only when configured,
// and fail closed otherwise. Substituted verdicts carry a warning flag.
func (s *Service) evaluateDownstream(ctx context.Context, actionContext compliance.ActionContext, criticality superposition.Criticality) (*compliance.Verdict, bool) {
	verdict, err := s.backend.Evaluate(ctx, actionContext)
	if err == nil {
		return verdict, false
	}

	s.metrics.RecordDownstreamFailure(string(criticality))
	s.logger.Warn("compliance backend unavailable",
		"criticality", criticality,
		"error", err,
	)

	if criticality != superposition.CriticalityHigh && s.failOpen() {
		return &compliance.Verdict{
			Decision: compliance.DecisionAllow,
			Reason:   "compliance backend unavailable, failing open",
			Source:   "fail-open",
		}, true
	}
	return &compliance.Verdict{
		Decision: compliance.DecisionDeny,
		Reason:   "compliance backend unavailable, failing closed",
		Source:   "fail-closed",
	}, true
}

// observeEngineError records metric side effects for engine failures.
func (s *Service) observeEngineError(err error) {
	if superposition.IsKind(err, superposition.KindEntanglementMismatch) {
		s.metrics.RecordIntegrityFailure()
	}
}
