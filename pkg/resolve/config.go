package resolve

import (
	"polaris-hq/superpose/pkg/superposition"
)

// DefaultHighStakesLambdaThreshold is the λ above which high-criticality
// observations are forced to PENDING. The value is an empirically chosen
// operating point; operators may override it in configuration.
const DefaultHighStakesLambdaThreshold = 0.7

// Config contains the tunable resolution parameters. All of them are policy
// decisions for operators, not algorithmic requirements.
type Config struct {
	// HighStakesCriticality is the criticality level subject to the
	// conservatism bias. Default: HIGH.
	HighStakesCriticality superposition.Criticality

	// HighStakesLambdaThreshold is the λ above which observations of
	// high-stakes policies resolve to PENDING regardless of weights.
	// Default: 0.7.
	HighStakesLambdaThreshold float64

	// TieBreakOrder breaks max-weight ties on deadline expiry. The first
	// state whose weight is not exceeded by a later state wins.
	// Default: APPROVED, REJECTED, PENDING.
	TieBreakOrder []superposition.State
}

// DefaultConfig returns the default resolution parameters.
func DefaultConfig() Config {
	return Config{
		HighStakesCriticality:     superposition.CriticalityHigh,
		HighStakesLambdaThreshold: DefaultHighStakesLambdaThreshold,
		TieBreakOrder:             superposition.States(),
	}
}

// applyDefaults fills zero-valued fields with defaults.
func (c *Config) applyDefaults() {
	if c.HighStakesCriticality == "" {
		c.HighStakesCriticality = superposition.CriticalityHigh
	}
	if c.HighStakesLambdaThreshold == 0 {
		c.HighStakesLambdaThreshold = DefaultHighStakesLambdaThreshold
	}
	if len(c.TieBreakOrder) == 0 {
		c.TieBreakOrder = superposition.States()
	}
}
