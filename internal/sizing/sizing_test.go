package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestE2E4Sizing reproduces spec.md's E2E-4 scenario exactly.
func TestE2E4Sizing(t *testing.T) {
	svc := NewService(DefaultConfig())
	req := Request{
		AccountBalance:  500_000,
		TotalEquity:     1_000_000,
		UsedMargin:      100_000,
		ContractPrice:   200,
		UnderlyingPrice: 4000,
		StrikePrice:     3800,
		OptionType:      Put,
		Multiplier:      10,
		PerLotGreeks:    PerLotGreeks{Delta: -0.3, Gamma: 0.05, Vega: 0.15},
		Thresholds:      RiskThresholds{PortfolioDeltaLimit: 100, PortfolioGammaLimit: 50, PortfolioVegaLimit: 200},
	}

	result := svc.ComputeSizing(req)
	assert.True(t, result.Passed)
	assert.Equal(t, 219, result.MarginVolume)
	assert.Equal(t, 219, result.UsageVolume)
	assert.Equal(t, 33, result.GreeksVolume)
	assert.Equal(t, 10, result.FinalVolume)
}

func TestComputeSizingRejectsInvalidMargin(t *testing.T) {
	svc := NewService(DefaultConfig())
	req := Request{AccountBalance: 1000, ContractPrice: -5000, UnderlyingPrice: 100, StrikePrice: 100, Multiplier: 10}
	result := svc.ComputeSizing(req)
	assert.False(t, result.Passed)
	assert.Equal(t, "margin estimate invalid", result.RejectReason)
}

func TestComputeSizingSafetyBound(t *testing.T) {
	svc := NewService(DefaultConfig())
	req := Request{
		AccountBalance:  1_000_000,
		TotalEquity:     2_000_000,
		UsedMargin:      0,
		ContractPrice:   50,
		UnderlyingPrice: 1000,
		StrikePrice:     950,
		OptionType:      Put,
		Multiplier:      10,
		PerLotGreeks:    PerLotGreeks{Delta: -0.1, Gamma: 0.01, Vega: 0.05},
		Thresholds:      RiskThresholds{PortfolioDeltaLimit: 5, PortfolioGammaLimit: 5, PortfolioVegaLimit: 5},
	}
	result := svc.ComputeSizing(req)
	if result.Passed {
		assert.GreaterOrEqual(t, result.FinalVolume, 1)
	}
	assert.LessOrEqual(t, result.FinalVolume, svc.config.MaxVolumePerOrder)
	assert.GreaterOrEqual(t, result.FinalVolume, 0)
}
