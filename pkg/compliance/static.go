package compliance

import (
	"context"
	"sync"
)

// StaticBackend returns a fixed verdict or error. Intended for tests and
// local development without a real compliance backend.
type StaticBackend struct {
	mu      sync.Mutex
	verdict *Verdict
	err     error
	calls   int
}

// NewStaticBackend creates a backend that always allows.
func NewStaticBackend() *StaticBackend {
	return &StaticBackend{
		verdict: &Verdict{Decision: DecisionAllow, Source: "static"},
	}
}

// SetVerdict sets the verdict returned by Evaluate.
func (b *StaticBackend) SetVerdict(v *Verdict) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verdict = v
	b.err = nil
}

// SetError makes Evaluate fail with the given error.
func (b *StaticBackend) SetError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Evaluate returns the configured verdict or error.
func (b *StaticBackend) Evaluate(ctx context.Context, actionContext ActionContext) (*Verdict, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	v := *b.verdict
	return &v, nil
}

// Calls returns how many evaluations were requested (for testing).
func (b *StaticBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}
