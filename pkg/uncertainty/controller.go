package uncertainty

import (
	"math"
	"sync/atomic"

	"polaris-hq/superpose/pkg/superposition"
)

// Classification boundaries for EffectDescription. Like the resolution bias
// thresholds, these are empirically chosen operating points, not derived
// constants.
const (
	// FavorSpeedBelow is the λ upper bound of the favor-speed band.
	FavorSpeedBelow = 0.35
	// FavorAccuracyAbove is the λ lower bound of the favor-accuracy band.
	FavorAccuracyAbove = 0.65
)

// Effect descriptions returned by EffectDescription.
const (
	EffectFavorSpeed    = "favor-speed"
	EffectBalanced      = "balanced"
	EffectFavorAccuracy = "favor-accuracy"
)

// Controller owns the global uncertainty parameter. The zero value is not
// usable; construct with NewController.
type Controller struct {
	// lambda holds math.Float64bits of the current value.
	lambda atomic.Uint64
}

// NewController creates a Controller initialized to the given λ.
// Fails with OutOfRange if λ is not in [0,1].
func NewController(initial float64) (*Controller, error) {
	c := &Controller{}
	if err := c.SetLambda(initial); err != nil {
		return nil, err
	}
	return c, nil
}

// SetLambda atomically replaces the global parameter. Fails with OutOfRange
// (leaving the previous value unchanged) if λ is not in [0,1]. NaN is
// rejected by the same check.
func (c *Controller) SetLambda(lambda float64) error {
	if !(lambda >= 0 && lambda <= 1) {
		return superposition.NewOutOfRange(lambda)
	}
	c.lambda.Store(math.Float64bits(lambda))
	return nil
}

// Lambda returns the current global parameter via an atomic load.
func (c *Controller) Lambda() float64 {
	return math.Float64frombits(c.lambda.Load())
}

// EffectDescription classifies a λ value into its operating band.
func EffectDescription(lambda float64) string {
	switch {
	case lambda < FavorSpeedBelow:
		return EffectFavorSpeed
	case lambda > FavorAccuracyAbove:
		return EffectFavorAccuracy
	default:
		return EffectBalanced
	}
}

// RecordTradeOff computes the empirical trade-off constant
// K = latency_ms × accuracy_estimate for one operation. The accuracy
// estimate is a caller-supplied heuristic in [0,1].
func RecordTradeOff(latencyMS, accuracyEstimate float64) float64 {
	return latencyMS * accuracyEstimate
}

// AccuracyEstimate is the default confidence heuristic: the distance of the
// winning weight from the uniform prior 1/3, scaled so that a fully
// concentrated distribution scores 1 and the uniform prior scores 0.
func AccuracyEstimate(winningWeight float64) float64 {
	est := (winningWeight - 1.0/3.0) / (2.0 / 3.0)
	return math.Min(1, math.Max(0, est))
}
