package combo

import (
	"fmt"
	"math"
	"strings"
)

// RiskCheckResult is the structured (never-raising) outcome of checking a
// combination's Greeks against its risk config.
type RiskCheckResult struct {
	Passed       bool
	RejectReason string
}

// RiskChecker checks CombinationGreeks against a CombinationRiskConfig.
type RiskChecker struct {
	config CombinationRiskConfig
}

// NewRiskChecker constructs a RiskChecker bound to one risk config.
func NewRiskChecker(config CombinationRiskConfig) *RiskChecker {
	return &RiskChecker{config: config}
}

// Check tests |delta|<=DeltaLimit, |gamma|<=GammaLimit, |vega|<=VegaLimit,
// |theta|<=ThetaLimit, in that fixed order. Passed is true iff every bound
// holds; otherwise RejectReason is a comma-joined list of
// "g=<value>(limit=<limit>)" fragments, one per violated dimension, in the
// same fixed order.
func (r *RiskChecker) Check(g CombinationGreeks) RiskCheckResult {
	type dim struct {
		name  string
		value float64
		limit float64
	}
	dims := []dim{
		{"delta", g.Delta, r.config.DeltaLimit},
		{"gamma", g.Gamma, r.config.GammaLimit},
		{"vega", g.Vega, r.config.VegaLimit},
		{"theta", g.Theta, r.config.ThetaLimit},
	}

	var violations []string
	for _, d := range dims {
		if math.Abs(d.value) > d.limit {
			violations = append(violations, fmt.Sprintf("%s=%.4f(limit=%v)", d.name, d.value, d.limit))
		}
	}

	if len(violations) == 0 {
		return RiskCheckResult{Passed: true}
	}
	return RiskCheckResult{Passed: false, RejectReason: strings.Join(violations, ", ")}
}
