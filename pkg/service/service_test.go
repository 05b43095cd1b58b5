package service

import (
	"context"
	"errors"
	"testing"

	"polaris-hq/superpose/pkg/audit"
	"polaris-hq/superpose/pkg/audit/recorder"
	auditstorage "polaris-hq/superpose/pkg/audit/storage"
	"polaris-hq/superpose/pkg/compliance"
	"polaris-hq/superpose/pkg/entangle"
	"polaris-hq/superpose/pkg/resolve"
	"polaris-hq/superpose/pkg/superposition"
	"polaris-hq/superpose/pkg/superposition/store"
	"polaris-hq/superpose/pkg/uncertainty"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	svc       *Service
	backend   *compliance.StaticBackend
	entangler *entangle.Entangler
	audit     *auditstorage.MemoryStorage
	recorder  *recorder.Recorder
}

func newFixture(t *testing.T, lambda float64, cfg Config) *fixture {
	t.Helper()

	ent, err := entangle.New(testKey)
	if err != nil {
		t.Fatalf("entangle.New() error = %v", err)
	}
	ctrl, err := uncertainty.NewController(lambda)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}

	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	auditStore := auditstorage.NewMemoryStorage()
	rec := recorder.NewRecorder(auditStore, nil)
	t.Cleanup(func() { rec.Close() })

	backend := compliance.NewStaticBackend()
	engine := resolve.NewEngine(st, ent, ctrl, resolve.DefaultConfig())

	return &fixture{
		svc:       New(superposition.NewManager(st), engine, ent, ctrl, backend, rec, nil, cfg),
		backend:   backend,
		entangler: ent,
		audit:     auditStore,
		recorder:  rec,
	}
}

// register creates a record through the public operation. DeadlineHours of
// zero makes the record immediately eligible for deadline expiry, which pins
// the terminal state to the max-weight component.
func (f *fixture) register(t *testing.T, policyID string, criticality superposition.Criticality, deadlineHours float64, deterministic bool) {
	t.Helper()
	_, err := f.svc.Register(context.Background(), RegisterInput{
		PolicyID:          policyID,
		Criticality:       criticality,
		DeadlineHours:     deadlineHours,
		DeterministicMode: deterministic,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", policyID, err)
	}
}

// auditRecords drains the async recorder and returns everything persisted.
func (f *fixture) auditRecords(t *testing.T) []*audit.Record {
	t.Helper()
	if err := f.recorder.Close(); err != nil {
		t.Fatalf("recorder Close() error = %v", err)
	}
	records, err := f.audit.Query(context.Background(), &audit.Query{})
	if err != nil {
		t.Fatalf("audit Query() error = %v", err)
	}
	return records
}

func TestRegisterDerivesTag(t *testing.T) {
	f := newFixture(t, 0.5, Config{})

	out, err := f.svc.Register(context.Background(), RegisterInput{
		PolicyID:      "policy-1",
		Criticality:   superposition.CriticalityMedium,
		DeadlineHours: 24,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if out.EntanglementTag != f.entangler.Derive("policy-1") {
		t.Error("returned tag does not match the derived tag")
	}
	if out.InitialWeights != superposition.UniformWeights() {
		t.Errorf("InitialWeights = %+v, want uniform", out.InitialWeights)
	}

	_, err = f.svc.Register(context.Background(), RegisterInput{
		PolicyID:      "policy-1",
		Criticality:   superposition.CriticalityMedium,
		DeadlineHours: 24,
	})
	if !superposition.IsKind(err, superposition.KindAlreadyExists) {
		t.Errorf("duplicate Register() kind = %q, want %q",
			superposition.KindOf(err), superposition.KindAlreadyExists)
	}
}

func TestResolveForwardsToDownstream(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-1", superposition.CriticalityLow, 0, false)

	out, err := f.svc.Resolve(context.Background(), "p-1", compliance.ActionContext{"action": "deploy"}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.State != superposition.StateApproved {
		t.Errorf("State = %s, want APPROVED from expired uniform prior", out.State)
	}
	if out.ResolutionReason != resolve.ReasonDeadlineExpiry {
		t.Errorf("ResolutionReason = %q, want %q", out.ResolutionReason, resolve.ReasonDeadlineExpiry)
	}
	if out.DownstreamVerdict == nil || out.DownstreamVerdict.Decision != compliance.DecisionAllow {
		t.Errorf("DownstreamVerdict = %+v, want allow", out.DownstreamVerdict)
	}
	if out.DownstreamWarning {
		t.Error("DownstreamWarning set on a healthy backend")
	}
	if f.backend.Calls() != 1 {
		t.Errorf("backend calls = %d, want 1", f.backend.Calls())
	}
}

func TestResolvePendingSkipsDownstream(t *testing.T) {
	// HIGH criticality under λ above the threshold resolves to PENDING,
	// which must not touch the compliance backend.
	f := newFixture(t, 0.9, Config{})
	f.register(t, "p-high", superposition.CriticalityHigh, 24, false)

	out, err := f.svc.Resolve(context.Background(), "p-high", compliance.ActionContext{}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.State != superposition.StatePending {
		t.Fatalf("State = %s, want PENDING", out.State)
	}
	if out.DownstreamVerdict != nil {
		t.Errorf("DownstreamVerdict = %+v, want nil for PENDING", out.DownstreamVerdict)
	}
	if f.backend.Calls() != 0 {
		t.Errorf("backend calls = %d, want 0", f.backend.Calls())
	}
}

func TestFailOpenLowCriticality(t *testing.T) {
	f := newFixture(t, 0.5, Config{FailOpen: true})
	f.backend.SetError(errors.New("connection refused"))
	f.register(t, "p-low", superposition.CriticalityLow, 0, false)

	out, err := f.svc.Resolve(context.Background(), "p-low", compliance.ActionContext{}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.DownstreamVerdict == nil || out.DownstreamVerdict.Decision != compliance.DecisionAllow {
		t.Fatalf("verdict = %+v, want substituted allow", out.DownstreamVerdict)
	}
	if out.DownstreamVerdict.Source != "fail-open" {
		t.Errorf("Source = %q, want fail-open", out.DownstreamVerdict.Source)
	}
	if !out.DownstreamWarning {
		t.Error("DownstreamWarning not set on substituted verdict")
	}
}

func TestFailClosedHighCriticality(t *testing.T) {
	// HIGH fails closed even with fail-open configured.
	f := newFixture(t, 0.5, Config{FailOpen: true})
	f.backend.SetError(errors.New("connection refused"))
	f.register(t, "p-high", superposition.CriticalityHigh, 0, false)

	out, err := f.svc.Resolve(context.Background(), "p-high", compliance.ActionContext{}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.DownstreamVerdict == nil || out.DownstreamVerdict.Decision != compliance.DecisionDeny {
		t.Fatalf("verdict = %+v, want substituted deny", out.DownstreamVerdict)
	}
	if out.DownstreamVerdict.Source != "fail-closed" {
		t.Errorf("Source = %q, want fail-closed", out.DownstreamVerdict.Source)
	}
	if !out.DownstreamWarning {
		t.Error("DownstreamWarning not set on substituted verdict")
	}
}

func TestFailClosedWhenFailOpenDisabled(t *testing.T) {
	f := newFixture(t, 0.5, Config{FailOpen: false})
	f.backend.SetError(errors.New("connection refused"))
	f.register(t, "p-low", superposition.CriticalityLow, 0, false)

	out, err := f.svc.Resolve(context.Background(), "p-low", compliance.ActionContext{}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.DownstreamVerdict == nil || out.DownstreamVerdict.Source != "fail-closed" {
		t.Errorf("verdict = %+v, want fail-closed substitution", out.DownstreamVerdict)
	}
}

func TestSetFailOpenAtRuntime(t *testing.T) {
	f := newFixture(t, 0.5, Config{FailOpen: false})
	f.backend.SetError(errors.New("connection refused"))
	f.register(t, "p-1", superposition.CriticalityLow, 0, false)
	f.register(t, "p-2", superposition.CriticalityLow, 0, false)

	out, err := f.svc.Resolve(context.Background(), "p-1", compliance.ActionContext{}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.DownstreamVerdict.Source != "fail-closed" {
		t.Fatalf("Source before toggle = %q, want fail-closed", out.DownstreamVerdict.Source)
	}

	f.svc.SetFailOpen(true)

	out, err = f.svc.Resolve(context.Background(), "p-2", compliance.ActionContext{}, false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.DownstreamVerdict.Source != "fail-open" {
		t.Errorf("Source after toggle = %q, want fail-open", out.DownstreamVerdict.Source)
	}
}

func TestObserveNeverCallsDownstream(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-1", superposition.CriticalityLow, 0, false)

	out, err := f.svc.Observe(context.Background(), "p-1", "auditor-7", "spot check")
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if !out.WasResolvedByThisCall {
		t.Error("observation did not resolve the record")
	}
	if f.backend.Calls() != 0 {
		t.Errorf("backend calls = %d, want 0 for observations", f.backend.Calls())
	}
}

func TestAuditEmittedExactlyOnce(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-1", superposition.CriticalityLow, 0, false)

	if _, err := f.svc.Resolve(context.Background(), "p-1", compliance.ActionContext{}, false); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// The idempotent re-resolution must not emit a second record.
	if _, err := f.svc.Resolve(context.Background(), "p-1", compliance.ActionContext{}, false); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}

	records := f.auditRecords(t)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}

	record := records[0]
	if record.PolicyID != "p-1" {
		t.Errorf("PolicyID = %q, want p-1", record.PolicyID)
	}
	if record.ResolutionReason != resolve.ReasonDeadlineExpiry {
		t.Errorf("ResolutionReason = %q, want %q", record.ResolutionReason, resolve.ReasonDeadlineExpiry)
	}
	if record.BaselineKeyID != f.entangler.KeyID() {
		t.Errorf("BaselineKeyID = %q, want %q", record.BaselineKeyID, f.entangler.KeyID())
	}
	if record.UncertaintyLambdaAtTime != 0.5 {
		t.Errorf("UncertaintyLambdaAtTime = %g, want 0.5", record.UncertaintyLambdaAtTime)
	}
	if record.DownstreamVerdict != compliance.DecisionAllow {
		t.Errorf("DownstreamVerdict = %q, want allow", record.DownstreamVerdict)
	}
}

func TestObserveRecordsObserver(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-1", superposition.CriticalityLow, 0, false)

	if _, err := f.svc.Observe(context.Background(), "p-1", "auditor-7", "spot check"); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	records := f.auditRecords(t)
	if len(records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(records))
	}
	if records[0].ObserverID != "auditor-7" || records[0].ObserverReason != "spot check" {
		t.Errorf("observer fields = (%q, %q), want (auditor-7, spot check)",
			records[0].ObserverID, records[0].ObserverReason)
	}
}

func TestSetUncertainty(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	ctx := context.Background()

	out, err := f.svc.SetUncertainty(ctx, 0.8)
	if err != nil {
		t.Fatalf("SetUncertainty() error = %v", err)
	}
	if out.Lambda != 0.8 || out.EffectDescription != uncertainty.EffectFavorAccuracy {
		t.Errorf("SetUncertainty() = %+v, want λ=0.8 favoring accuracy", out)
	}

	if _, err := f.svc.SetUncertainty(ctx, 1.5); !superposition.IsKind(err, superposition.KindOutOfRange) {
		t.Errorf("SetUncertainty(1.5) kind = %q, want %q",
			superposition.KindOf(err), superposition.KindOutOfRange)
	}

	got := f.svc.GetUncertainty(ctx)
	if got.Lambda != 0.8 {
		t.Errorf("GetUncertainty() λ = %g, want 0.8 preserved after rejected update", got.Lambda)
	}
}

func TestResolveExpired(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-unexpired", superposition.CriticalityLow, 24, false)
	f.register(t, "p-expired", superposition.CriticalityLow, 0, false)
	ctx := context.Background()

	out, err := f.svc.ResolveExpired(ctx, "p-unexpired")
	if err != nil {
		t.Fatalf("ResolveExpired(unexpired) error = %v", err)
	}
	if out != nil {
		t.Errorf("ResolveExpired(unexpired) = %+v, want nil", out)
	}

	out, err = f.svc.ResolveExpired(ctx, "p-expired")
	if err != nil {
		t.Fatalf("ResolveExpired(expired) error = %v", err)
	}
	if out == nil || !out.ResolvedByThisCall {
		t.Fatalf("ResolveExpired(expired) = %+v, want a transition", out)
	}
	if f.backend.Calls() != 0 {
		t.Errorf("backend calls = %d, want 0 for sweep resolutions", f.backend.Calls())
	}

	// Sweep resolutions still hit the audit trail.
	records := f.auditRecords(t)
	if len(records) != 1 {
		t.Errorf("audit records = %d, want 1", len(records))
	}
}

func TestGetPolicyVerifiesTag(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-1", superposition.CriticalityLow, 24, false)

	record, err := f.svc.GetPolicy(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	if record.PolicyID != "p-1" {
		t.Errorf("PolicyID = %q, want p-1", record.PolicyID)
	}

	if _, err := f.svc.GetPolicy(context.Background(), "ghost"); !superposition.IsKind(err, superposition.KindNotFound) {
		t.Errorf("GetPolicy(ghost) kind = %q, want %q",
			superposition.KindOf(err), superposition.KindNotFound)
	}
}

func TestUpdateWeights(t *testing.T) {
	f := newFixture(t, 0.5, Config{})
	f.register(t, "p-1", superposition.CriticalityLow, 24, false)

	weights := superposition.Weights{Approved: 0.7, Rejected: 0.2, Pending: 0.1}
	record, err := f.svc.UpdateWeights(context.Background(), "p-1", weights)
	if err != nil {
		t.Fatalf("UpdateWeights() error = %v", err)
	}
	if record.Weights != weights {
		t.Errorf("Weights = %+v, want %+v", record.Weights, weights)
	}

	bad := superposition.Weights{Approved: 0.9, Rejected: 0.9, Pending: 0.9}
	if _, err := f.svc.UpdateWeights(context.Background(), "p-1", bad); !superposition.IsKind(err, superposition.KindInvalidWeights) {
		t.Errorf("UpdateWeights(bad) kind = %q, want %q",
			superposition.KindOf(err), superposition.KindInvalidWeights)
	}
}
