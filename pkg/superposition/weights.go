package superposition

import (
	"fmt"
	"math"
)

// WeightEpsilon is the tolerance applied to the sum-to-one invariant.
// Exact floating-point equality would reject distributions that drift by a
// few ULPs through normalization, so validation accepts any sum within this
// distance of 1.
const WeightEpsilon = 1e-6

// Weights is the three-way probability distribution over terminal outcomes.
// While a record is unresolved, Approved+Rejected+Pending must equal 1
// within WeightEpsilon and every component must be non-negative.
type Weights struct {
	Approved float64 `json:"approved" yaml:"approved"`
	Rejected float64 `json:"rejected" yaml:"rejected"`
	Pending  float64 `json:"pending" yaml:"pending"`
}

// UniformWeights returns the maximum-entropy prior (1/3, 1/3, 1/3) assigned
// to every freshly registered policy.
func UniformWeights() Weights {
	return Weights{Approved: 1.0 / 3.0, Rejected: 1.0 / 3.0, Pending: 1.0 / 3.0}
}

// Sum returns the total mass of the distribution.
func (w Weights) Sum() float64 {
	return w.Approved + w.Rejected + w.Pending
}

// Get returns the weight assigned to a terminal state.
func (w Weights) Get(s State) float64 {
	switch s {
	case StateApproved:
		return w.Approved
	case StateRejected:
		return w.Rejected
	case StatePending:
		return w.Pending
	default:
		return 0
	}
}

// Validate checks the distribution invariants: no negative components and a
// total mass of 1 within WeightEpsilon. It returns an InvalidWeights error
// describing the first violation found.
func (w Weights) Validate() error {
	if w.Approved < 0 || w.Rejected < 0 || w.Pending < 0 {
		return NewInvalidWeights(fmt.Sprintf(
			"weights must be non-negative, got (%g, %g, %g)",
			w.Approved, w.Rejected, w.Pending))
	}
	if math.Abs(w.Sum()-1.0) > WeightEpsilon {
		return NewInvalidWeights(fmt.Sprintf(
			"weights must sum to 1 within %g, got sum %g",
			WeightEpsilon, w.Sum()))
	}
	return nil
}

// Max returns the state holding the largest weight. Ties are broken by the
// supplied ordering: the first state in order whose weight is not exceeded
// by any later state wins. Passing nil uses the default ordering
// APPROVED > REJECTED > PENDING.
func (w Weights) Max(order []State) State {
	if len(order) == 0 {
		order = States()
	}
	best := order[0]
	bestWeight := w.Get(best)
	for _, s := range order[1:] {
		if w.Get(s) > bestWeight {
			best = s
			bestWeight = w.Get(s)
		}
	}
	return best
}
