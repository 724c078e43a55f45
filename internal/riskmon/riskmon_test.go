package riskmon

import (
	"testing"
	"time"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPositionStopLossFixedAmount(t *testing.T) {
	mgr := NewStopLossManager(StopLossConfig{
		EnableFixedStop:      true,
		FixedStopLossAmount:  1000,
		FixedStopLossPercent: 0.5,
	})
	leg := combo.Leg{VTSymbol: "X", Direction: combo.Long, Volume: 1, OpenPrice: 10, ExpiryDate: time.Now()}

	trigger, ok := mgr.CheckPositionStopLoss(leg, 5, 0, 200)
	require.True(t, ok)
	assert.Equal(t, TriggerFixed, trigger.TriggerType)
	assert.Equal(t, 1000.0, trigger.CurrentLoss)
}

func TestCheckPositionStopLossTrailing(t *testing.T) {
	mgr := NewStopLossManager(StopLossConfig{
		EnableTrailingStop: true,
		TrailingStopPercent: 0.3,
	})
	leg := combo.Leg{VTSymbol: "X", Direction: combo.Long, Volume: 1, OpenPrice: 10, ExpiryDate: time.Now()}

	trigger, ok := mgr.CheckPositionStopLoss(leg, 12, 1000, 200)
	require.True(t, ok)
	assert.Equal(t, TriggerTrailing, trigger.TriggerType)
	assert.InDelta(t, 600, trigger.CurrentLoss, 1e-9)
}

func TestCheckPortfolioStopLoss(t *testing.T) {
	mgr := NewStopLossManager(StopLossConfig{EnablePortfolioStop: true, DailyLossLimit: 5000})
	legs := []combo.Leg{{VTSymbol: "A"}, {VTSymbol: "B"}}

	trigger, ok := mgr.CheckPortfolioStopLoss(legs, 100000, 90000)
	require.True(t, ok)
	assert.Equal(t, 10000.0, trigger.TotalLoss)
	assert.ElementsMatch(t, []string{"A", "B"}, trigger.PositionsToClose)

	_, ok = mgr.CheckPortfolioStopLoss(legs, 100000, 96000)
	assert.False(t, ok)
}

func TestNewLiquidityMonitorRejectsBadWeights(t *testing.T) {
	_, err := NewLiquidityMonitor(LiquidityConfig{VolumeWeight: 0.5, SpreadWeight: 0.3, OpenInterestWeight: 0.1})
	assert.Error(t, err)

	m, err := NewLiquidityMonitor(LiquidityConfig{VolumeWeight: 0.4, SpreadWeight: 0.3, OpenInterestWeight: 0.3, LiquidityScoreThreshold: 0.5})
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestIdentifyTrendDeteriorating(t *testing.T) {
	m, err := NewLiquidityMonitor(LiquidityConfig{VolumeWeight: 0.4, SpreadWeight: 0.3, OpenInterestWeight: 0.3, LiquidityScoreThreshold: 0.5})
	require.NoError(t, err)

	historical := []MarketSample{
		{Volume: 1000, OpenInterest: 5000, BidPrice: 1.0, AskPrice: 1.01},
		{Volume: 1000, OpenInterest: 5000, BidPrice: 1.0, AskPrice: 1.01},
	}
	current := MarketSample{Volume: 500, OpenInterest: 4000, BidPrice: 1.0, AskPrice: 1.05}

	score := m.CalculateLiquidityScore("X", current, historical)
	assert.Equal(t, TrendDeteriorating, score.Trend)
}

func TestMonitorPositionsWarnsBelowThreshold(t *testing.T) {
	m, err := NewLiquidityMonitor(LiquidityConfig{VolumeWeight: 0.4, SpreadWeight: 0.3, OpenInterestWeight: 0.3, LiquidityScoreThreshold: 0.8})
	require.NoError(t, err)

	marketData := map[string]MarketSample{
		"X": {Volume: 10, OpenInterest: 10, BidPrice: 1.0, AskPrice: 1.5},
	}

	warnings := m.MonitorPositions([]string{"X", "Y"}, marketData, nil)
	require.Len(t, warnings, 1)
	assert.Equal(t, "X", warnings[0].VTSymbol)
}
