package resolve

import (
	"context"
	"sync"
	"testing"
	"time"

	"polaris-hq/superpose/pkg/entangle"
	"polaris-hq/superpose/pkg/superposition"
	"polaris-hq/superpose/pkg/superposition/store"
	"polaris-hq/superpose/pkg/uncertainty"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type engineFixture struct {
	engine    *Engine
	store     superposition.Store
	entangler *entangle.Entangler
	ctrl      *uncertainty.Controller
}

func newFixture(t *testing.T, lambda float64) *engineFixture {
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

	return &engineFixture{
		engine:    NewEngine(st, ent, ctrl, DefaultConfig()),
		store:     st,
		entangler: ent,
		ctrl:      ctrl,
	}
}

// seed creates an unresolved record directly in the store with a valid tag.
func (f *engineFixture) seed(t *testing.T, policyID string, criticality superposition.Criticality, deadline time.Time, deterministic bool, weights superposition.Weights) {
	t.Helper()
	record := &superposition.PolicyRecord{
		PolicyID:          policyID,
		Weights:           weights,
		Criticality:       criticality,
		Deadline:          deadline,
		DeterministicMode: deterministic,
		EntanglementTag:   f.entangler.Derive(policyID),
		CreatedAt:         time.Now().UTC(),
	}
	if err := f.store.Create(context.Background(), record); err != nil {
		t.Fatalf("seed Create() error = %v", err)
	}
}

func future() time.Time { return time.Now().Add(24 * time.Hour) }
func past() time.Time   { return time.Now().Add(-time.Minute) }

func TestResolveDeterministicRepeatable(t *testing.T) {
	ctx := context.Background()

	f1 := newFixture(t, 0.5)
	f1.seed(t, "policy-det", superposition.CriticalityLow, future(), true, superposition.UniformWeights())

	first, err := f1.engine.Resolve(ctx, "policy-det", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if first.Reason != ReasonDeterministicHash {
		t.Errorf("Reason = %q, want %q", first.Reason, ReasonDeterministicHash)
	}
	if !first.ResolvedByThisCall {
		t.Error("first resolve did not report ResolvedByThisCall")
	}

	// A fresh process with the same baseline key must reach the same state.
	f2 := newFixture(t, 0.5)
	f2.seed(t, "policy-det", superposition.CriticalityLow, future(), true, superposition.UniformWeights())

	second, err := f2.engine.Resolve(ctx, "policy-det", false)
	if err != nil {
		t.Fatalf("Resolve() on fresh store error = %v", err)
	}
	if second.State != first.State {
		t.Errorf("deterministic resolution differs across processes: %s vs %s", second.State, first.State)
	}
}

func TestResolveIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5)
	f.seed(t, "p-1", superposition.CriticalityLow, future(), true, superposition.UniformWeights())

	first, err := f.engine.Resolve(ctx, "p-1", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	second, err := f.engine.Resolve(ctx, "p-1", false)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if second.State != first.State {
		t.Errorf("idempotent Resolve() state = %s, want %s", second.State, first.State)
	}
	if second.ResolvedByThisCall {
		t.Error("idempotent Resolve() reported ResolvedByThisCall")
	}
	if second.Reason != ReasonAlreadyResolved {
		t.Errorf("Reason = %q, want %q", second.Reason, ReasonAlreadyResolved)
	}

	// Observe on a terminal record is equally idempotent.
	third, err := f.engine.Observe(ctx, "p-1")
	if err != nil {
		t.Fatalf("Observe() on terminal record error = %v", err)
	}
	if third.State != first.State || third.ResolvedByThisCall {
		t.Errorf("Observe() on terminal record = %+v, want existing state without transition", third)
	}
}

func TestObserveHighStakesBias(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.9)
	// Weights heavily favor APPROVED; the bias must still win.
	f.seed(t, "p-high", superposition.CriticalityHigh, future(), false,
		superposition.Weights{Approved: 0.8, Rejected: 0.1, Pending: 0.1})

	out, err := f.engine.Observe(ctx, "p-high")
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if out.State != superposition.StatePending {
		t.Errorf("State = %s, want PENDING under high-stakes bias", out.State)
	}
	if out.Reason != ReasonHighStakesBias {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonHighStakesBias)
	}
}

func TestObserveHighStakesAtThresholdSamples(t *testing.T) {
	ctx := context.Background()
	// λ exactly at the threshold does not trigger the bias (strictly greater).
	f := newFixture(t, DefaultHighStakesLambdaThreshold)
	f.engine.randFloat = func() float64 { return 0.0 }
	f.seed(t, "p-high", superposition.CriticalityHigh, future(), false,
		superposition.Weights{Approved: 0.8, Rejected: 0.1, Pending: 0.1})

	out, err := f.engine.Observe(ctx, "p-high")
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if out.Reason != ReasonObservation {
		t.Errorf("Reason = %q, want %q at threshold", out.Reason, ReasonObservation)
	}
}

func TestLowCriticalityIgnoresBias(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.95)
	f.engine.randFloat = func() float64 { return 0.0 }
	f.seed(t, "p-low", superposition.CriticalityLow, future(), false, superposition.UniformWeights())

	out, err := f.engine.Observe(ctx, "p-low")
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if out.Reason != ReasonObservation {
		t.Errorf("Reason = %q, want %q for low criticality", out.Reason, ReasonObservation)
	}
	if out.State != superposition.StateApproved {
		t.Errorf("State = %s, want APPROVED with rand pinned to 0", out.State)
	}
}

func TestDeadlineExpiry(t *testing.T) {
	tests := []struct {
		name    string
		weights superposition.Weights
		want    superposition.State
	}{
		{
			name:    "uniform prior ties to approved",
			weights: superposition.UniformWeights(),
			want:    superposition.StateApproved,
		},
		{
			name:    "max weight wins",
			weights: superposition.Weights{Approved: 0.1, Rejected: 0.7, Pending: 0.2},
			want:    superposition.StateRejected,
		},
		{
			name:    "two-way tie uses precedence",
			weights: superposition.Weights{Approved: 0.1, Rejected: 0.45, Pending: 0.45},
			want:    superposition.StateRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, 0.5)
			f.seed(t, "p-exp", superposition.CriticalityLow, past(), false, tt.weights)

			out, err := f.engine.Resolve(ctx, "p-exp", false)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if out.Reason != ReasonDeadlineExpiry {
				t.Errorf("Reason = %q, want %q", out.Reason, ReasonDeadlineExpiry)
			}
			if out.State != tt.want {
				t.Errorf("State = %s, want %s", out.State, tt.want)
			}
		})
	}
}

func TestDeadlineBeatsDeterministicMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5)
	f.seed(t, "p-1", superposition.CriticalityLow, past(), true,
		superposition.Weights{Approved: 0.0, Rejected: 0.9, Pending: 0.1})

	out, err := f.engine.Resolve(ctx, "p-1", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if out.Reason != ReasonDeadlineExpiry {
		t.Errorf("Reason = %q, want deadline to take priority", out.Reason)
	}
	if out.State != superposition.StateRejected {
		t.Errorf("State = %s, want REJECTED", out.State)
	}
}

func TestWeightedSampling(t *testing.T) {
	weights := superposition.Weights{Approved: 0.2, Rejected: 0.5, Pending: 0.3}
	tests := []struct {
		rand float64
		want superposition.State
	}{
		{0.0, superposition.StateApproved},
		{0.19, superposition.StateApproved},
		{0.21, superposition.StateRejected},
		{0.69, superposition.StateRejected},
		{0.71, superposition.StatePending},
		{0.99, superposition.StatePending},
	}

	for _, tt := range tests {
		ctx := context.Background()
		f := newFixture(t, 0.5)
		f.engine.randFloat = func() float64 { return tt.rand }
		f.seed(t, "p-1", superposition.CriticalityLow, future(), false, weights)

		out, err := f.engine.Resolve(ctx, "p-1", false)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if out.Reason != ReasonMeasurement {
			t.Errorf("Reason = %q, want %q", out.Reason, ReasonMeasurement)
		}
		if out.State != tt.want {
			t.Errorf("rand=%g: State = %s, want %s", tt.rand, out.State, tt.want)
		}
		if out.WinningWeight != weights.Get(tt.want) {
			t.Errorf("WinningWeight = %g, want %g", out.WinningWeight, weights.Get(tt.want))
		}
	}
}

func TestForcedCollapse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5)
	f.engine.randFloat = func() float64 { return 0.99 }
	f.seed(t, "p-1", superposition.CriticalityLow, future(), false, superposition.UniformWeights())

	out, err := f.engine.Resolve(ctx, "p-1", true)
	if err != nil {
		t.Fatalf("Resolve(force) error = %v", err)
	}
	if out.Reason != ReasonForcedCollapse {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonForcedCollapse)
	}
}

func TestForcedCollapseDeterministicMode(t *testing.T) {
	// Deterministic mode wins over the forced sample.
	ctx := context.Background()
	f := newFixture(t, 0.5)
	f.seed(t, "p-1", superposition.CriticalityLow, future(), true, superposition.UniformWeights())

	out, err := f.engine.Resolve(ctx, "p-1", true)
	if err != nil {
		t.Fatalf("Resolve(force) error = %v", err)
	}
	if out.Reason != ReasonDeterministicHash {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonDeterministicHash)
	}
}

func TestResolveExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5)
	f.seed(t, "p-unexpired", superposition.CriticalityLow, future(), false, superposition.UniformWeights())
	f.seed(t, "p-expired", superposition.CriticalityLow, past(), false, superposition.UniformWeights())

	// Unexpired records are skipped quietly.
	out, err := f.engine.ResolveExpired(ctx, "p-unexpired")
	if err != nil {
		t.Fatalf("ResolveExpired(unexpired) error = %v", err)
	}
	if out != nil {
		t.Errorf("ResolveExpired(unexpired) = %+v, want nil", out)
	}

	// Expired records resolve by deadline expiry.
	out, err = f.engine.ResolveExpired(ctx, "p-expired")
	if err != nil {
		t.Fatalf("ResolveExpired(expired) error = %v", err)
	}
	if out == nil || out.Reason != ReasonDeadlineExpiry || !out.ResolvedByThisCall {
		t.Errorf("ResolveExpired(expired) = %+v, want deadline_expiry transition", out)
	}

	// Terminal records are skipped quietly too.
	out, err = f.engine.ResolveExpired(ctx, "p-expired")
	if err != nil {
		t.Fatalf("ResolveExpired(terminal) error = %v", err)
	}
	if out != nil {
		t.Errorf("ResolveExpired(terminal) = %+v, want nil", out)
	}
}

func TestEntanglementMismatchRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5)

	record := &superposition.PolicyRecord{
		PolicyID:        "p-tampered",
		Weights:         superposition.UniformWeights(),
		Criticality:     superposition.CriticalityLow,
		Deadline:        future(),
		EntanglementTag: f.entangler.Derive("some-other-policy"),
		CreatedAt:       time.Now().UTC(),
	}
	if err := f.store.Create(ctx, record); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := f.engine.Resolve(ctx, "p-tampered", false)
	if !superposition.IsKind(err, superposition.KindEntanglementMismatch) {
		t.Fatalf("Resolve() kind = %q, want %q", superposition.KindOf(err), superposition.KindEntanglementMismatch)
	}

	// The record must not have been resolved.
	got, err := f.store.Get(ctx, "p-tampered")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Resolved {
		t.Error("tampered record was resolved")
	}
}

func TestResolveNotFound(t *testing.T) {
	f := newFixture(t, 0.5)

	_, err := f.engine.Resolve(context.Background(), "ghost", false)
	if !superposition.IsKind(err, superposition.KindNotFound) {
		t.Errorf("Resolve(ghost) kind = %q, want %q", superposition.KindOf(err), superposition.KindNotFound)
	}
}

func TestConcurrentResolversAgree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.5)
	f.seed(t, "p-race", superposition.CriticalityLow, future(), true, superposition.UniformWeights())

	const resolvers = 16
	outcomes := make([]*Outcome, resolvers)
	errs := make([]error, resolvers)

	var wg sync.WaitGroup
	for i := 0; i < resolvers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.engine.Resolve(ctx, "p-race", false)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < resolvers; i++ {
		if errs[i] != nil {
			t.Fatalf("resolver %d error = %v", i, errs[i])
		}
		if outcomes[i].State != outcomes[0].State {
			t.Errorf("resolver %d state = %s, others saw %s", i, outcomes[i].State, outcomes[0].State)
		}
		if outcomes[i].ResolvedByThisCall {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("ResolvedByThisCall count = %d, want exactly 1", winners)
	}
}

func TestUpdateConfigTakesEffect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0.6)
	f.seed(t, "p-high", superposition.CriticalityHigh, future(), false, superposition.UniformWeights())

	// Lower the threshold below the current λ; the bias must now trigger.
	cfg := DefaultConfig()
	cfg.HighStakesLambdaThreshold = 0.5
	f.engine.UpdateConfig(cfg)

	out, err := f.engine.Observe(ctx, "p-high")
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if out.Reason != ReasonHighStakesBias {
		t.Errorf("Reason = %q, want %q after config update", out.Reason, ReasonHighStakesBias)
	}
}

func BenchmarkResolveTerminal(b *testing.B) {
	ctx := context.Background()

	ent, err := entangle.New(testKey)
	if err != nil {
		b.Fatal(err)
	}
	ctrl, err := uncertainty.NewController(0.5)
	if err != nil {
		b.Fatal(err)
	}
	st := store.NewMemoryStore()
	defer st.Close()
	engine := NewEngine(st, ent, ctrl, DefaultConfig())

	record := &superposition.PolicyRecord{
		PolicyID:          "bench-1",
		Weights:           superposition.UniformWeights(),
		Criticality:       superposition.CriticalityMedium,
		Deadline:          time.Now().Add(24 * time.Hour),
		DeterministicMode: true,
		EntanglementTag:   ent.Derive("bench-1"),
		CreatedAt:         time.Now().UTC(),
	}
	if err := st.Create(ctx, record); err != nil {
		b.Fatal(err)
	}
	if _, err := engine.Resolve(ctx, "bench-1", false); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Resolve(ctx, "bench-1", false); err != nil {
			b.Fatal(err)
		}
	}
}
