package hedging

import (
	"testing"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E3VegaHedge(t *testing.T) {
	cfg := Config{
		TargetVega:                0,
		HedgingBand:                50,
		HedgeInstrumentVTSymbol:    "510050.SSE",
		HedgeInstrumentVega:        0.1,
		HedgeInstrumentDelta:       0.5,
		HedgeInstrumentGamma:       0.01,
		HedgeInstrumentTheta:       -0.05,
		HedgeInstrumentMultiplier:  10,
	}
	engine := NewEngine(cfg)

	portfolio := combo.PortfolioGreeks{TotalVega: 200}

	result, events := engine.CheckAndHedge(portfolio, 3.0)

	require.False(t, result.Rejected)
	require.True(t, result.ShouldHedge)
	assert.Equal(t, 200.0, result.HedgeVolume)
	assert.Equal(t, combo.Short, result.HedgeDirection)
	assert.Equal(t, -1000.0, result.DeltaImpact)
	assert.Equal(t, -20.0, result.GammaImpact)
	assert.Equal(t, 100.0, result.ThetaImpact)

	require.NotNil(t, result.Instruction)
	assert.Equal(t, combo.DirShort, result.Instruction.Direction)
	assert.Equal(t, 200.0, result.Instruction.Volume)
	assert.Equal(t, combo.Open, result.Instruction.Offset)

	require.Len(t, events, 1)
	executed, ok := events[0].(VegaHedgeExecuted)
	require.True(t, ok)
	assert.Equal(t, 200.0, executed.PortfolioVegaBefore)
	assert.Equal(t, 0.0, executed.PortfolioVegaAfter)
}

func TestCheckAndHedgeWithinBandNoHedge(t *testing.T) {
	cfg := Config{
		TargetVega:                0,
		HedgingBand:                50,
		HedgeInstrumentVega:        0.1,
		HedgeInstrumentMultiplier:  10,
	}
	engine := NewEngine(cfg)

	result, events := engine.CheckAndHedge(combo.PortfolioGreeks{TotalVega: 30}, 3.0)
	assert.False(t, result.ShouldHedge)
	assert.False(t, result.Rejected)
	assert.Empty(t, events)
}

func TestCheckAndHedgeRejectsInvalidConfig(t *testing.T) {
	engine := NewEngine(Config{HedgeInstrumentMultiplier: 0})
	result, events := engine.CheckAndHedge(combo.PortfolioGreeks{TotalVega: 500}, 3.0)
	assert.True(t, result.Rejected)
	assert.Empty(t, events)

	engine2 := NewEngine(Config{HedgeInstrumentMultiplier: 10, HedgeInstrumentVega: 0})
	result2, _ := engine2.CheckAndHedge(combo.PortfolioGreeks{TotalVega: 500}, 3.0)
	assert.True(t, result2.Rejected)

	engine3 := NewEngine(Config{HedgeInstrumentMultiplier: 10, HedgeInstrumentVega: 0.1})
	result3, _ := engine3.CheckAndHedge(combo.PortfolioGreeks{TotalVega: 500}, 0)
	assert.True(t, result3.Rejected)
}
