package combo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straddleLegs(expiry time.Time) []Leg {
	return []Leg{
		{VTSymbol: "SPY2800C", OptionType: Call, StrikePrice: 2800, ExpiryDate: expiry, Direction: Short, Volume: 1, OpenPrice: 120},
		{VTSymbol: "SPY2800P", OptionType: Put, StrikePrice: 2800, ExpiryDate: expiry, Direction: Short, Volume: 1, OpenPrice: 95},
	}
}

// TestE2E1StraddleLifecycle walks spec.md's E2E-1 scenario end to end.
func TestE2E1StraddleLifecycle(t *testing.T) {
	expiry := time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)
	combination := &Combination{
		CombinationType:    Straddle,
		UnderlyingVTSymbol: "SPY",
		Legs:               straddleLegs(expiry),
	}
	require.NoError(t, combination.Validate())

	greeksMap := map[string]LegGreeks{
		"SPY2800C": {Delta: 0.5, Gamma: 0.02, Theta: -0.1, Vega: 8, Success: true},
		"SPY2800P": {Delta: -0.4, Gamma: 0.03, Theta: -0.05, Vega: 7, Success: true},
	}
	greeks := NewGreeksCalculator().Calculate(combination, greeksMap, 10)
	assert.Equal(t, -1.0, greeks.Delta)
	assert.Equal(t, -150.0, greeks.Vega)
	assert.Empty(t, greeks.FailedLegs)

	prices := map[string]float64{"SPY2800C": 130, "SPY2800P": 85}
	pnl := NewPnLCalculator(nil).Calculate(combination, prices, 10, nil)
	assert.InDelta(t, 0.0, pnl.TotalUnrealizedPnL, 1e-9)

	riskCfg := CombinationRiskConfig{DeltaLimit: 2, GammaLimit: 0.5, VegaLimit: 200, ThetaLimit: 100}
	riskResult := NewRiskChecker(riskCfg).Check(greeks)
	assert.True(t, riskResult.Passed)

	lifecycle := NewLifecycleService(0.01)
	closeInstructions := lifecycle.GenerateCloseInstructions(combination, prices)
	require.Len(t, closeInstructions, 2)
	for _, instr := range closeInstructions {
		assert.Equal(t, DirLong, instr.Direction)
		assert.Equal(t, CloseOffset, instr.Offset)
		assert.Equal(t, 1.0, instr.Volume)
	}

	agg := NewAggregate(nil)
	require.NoError(t, agg.Register(combination))

	agg.SyncStatus("SPY2800C", map[string]struct{}{"SPY2800C": {}})
	assert.Equal(t, PartiallyClosed, combination.Status)
	events := agg.PopDomainEvents()
	require.Len(t, events, 1)

	agg.SyncStatus("SPY2800C", map[string]struct{}{"SPY2800C": {}, "SPY2800P": {}})
	assert.Equal(t, Closed, combination.Status)
	assert.NotNil(t, combination.CloseTime)
	events = agg.PopDomainEvents()
	require.Len(t, events, 1)

	// Idempotence: repeating the same closed set emits nothing further.
	agg.SyncStatus("SPY2800C", map[string]struct{}{"SPY2800C": {}, "SPY2800P": {}})
	assert.False(t, agg.HasPendingEvents())
}

func TestE2E2Recognition(t *testing.T) {
	expiry := time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)
	contracts := map[string]OptionContract{
		"CALL100": {UnderlyingSymbol: "SPY", OptionType: Call, StrikePrice: 100, ExpiryDate: expiry},
		"PUT100":  {UnderlyingSymbol: "SPY", OptionType: Put, StrikePrice: 100, ExpiryDate: expiry},
		"PUT110":  {UnderlyingSymbol: "SPY", OptionType: Put, StrikePrice: 110, ExpiryDate: expiry},
		"CALL110": {UnderlyingSymbol: "SPY", OptionType: Call, StrikePrice: 110, ExpiryDate: expiry},
	}
	r := NewRecognizer()

	straddle := []RecognizerPosition{{VTSymbol: "CALL100"}, {VTSymbol: "PUT100"}}
	assert.Equal(t, Straddle, r.Recognize(straddle, contracts))

	strangle := []RecognizerPosition{{VTSymbol: "CALL100"}, {VTSymbol: "PUT110"}}
	assert.Equal(t, Strangle, r.Recognize(strangle, contracts))

	vertical := []RecognizerPosition{{VTSymbol: "CALL100"}, {VTSymbol: "CALL110"}}
	assert.Equal(t, VerticalSpread, r.Recognize(vertical, contracts))

	custom := []RecognizerPosition{{VTSymbol: "CALL100"}}
	assert.Equal(t, Custom, r.Recognize(custom, contracts))

	assert.Equal(t, Custom, r.Recognize(nil, contracts))
}

func TestLifecycleAdjustNoOpAndNotFound(t *testing.T) {
	expiry := time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)
	combination := &Combination{CombinationType: Straddle, Legs: straddleLegs(expiry)}
	lifecycle := NewLifecycleService(0.01)

	result, err := lifecycle.GenerateAdjustInstruction(combination, "SPY2800C", 1, 120)
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.Nil(t, result.Instruction)

	result, err = lifecycle.GenerateAdjustInstruction(combination, "SPY2800C", 3, 120)
	require.NoError(t, err)
	require.NotNil(t, result.Instruction)
	assert.Equal(t, Open, result.Instruction.Offset)
	assert.Equal(t, 2.0, result.Instruction.Volume)

	_, err = lifecycle.GenerateAdjustInstruction(combination, "MISSING", 1, 120)
	var notFound *LegNotFoundError
	require.ErrorAs(t, err, &notFound)
}

// TestLifecycleTickRounding verifies opening instructions round prices away
// from the trader: a sell floors (never a bigger credit than quoted), a buy
// ceils (never a smaller debit than quoted).
func TestLifecycleTickRounding(t *testing.T) {
	expiry := time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)
	combination := &Combination{
		CombinationType: VerticalSpread,
		Legs: []Leg{
			{VTSymbol: "SHORT_LEG", OptionType: Call, StrikePrice: 100, ExpiryDate: expiry, Direction: Short, Volume: 1},
			{VTSymbol: "LONG_LEG", OptionType: Call, StrikePrice: 110, ExpiryDate: expiry, Direction: Long, Volume: 1},
		},
	}
	lifecycle := NewLifecycleService(0.05)
	prices := map[string]float64{"SHORT_LEG": 1.2345, "LONG_LEG": 0.8765}

	open := lifecycle.GenerateOpenInstructions(combination, prices)
	require.Len(t, open, 2)

	byID := map[string]OrderInstruction{}
	for _, instr := range open {
		byID[instr.VTSymbol] = instr
	}

	assert.Equal(t, DirShort, byID["SHORT_LEG"].Direction)
	assert.InDelta(t, 1.20, byID["SHORT_LEG"].Price, 1e-9)

	assert.Equal(t, DirLong, byID["LONG_LEG"].Direction)
	assert.InDelta(t, 0.90, byID["LONG_LEG"].Price, 1e-9)
}

func TestSnapshotRoundTrip(t *testing.T) {
	expiry := time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)
	agg := NewAggregate(nil)
	c := &Combination{CombinationType: Straddle, UnderlyingVTSymbol: "SPY", Legs: straddleLegs(expiry)}
	require.NoError(t, agg.Register(c))

	snapshot := agg.ToSnapshot()
	restored := FromSnapshot(snapshot, nil)

	got, ok := restored.GetByID(c.CombinationID)
	require.True(t, ok)
	assert.Equal(t, c.CombinationType, got.CombinationType)
	assert.Equal(t, c.Legs, got.Legs)
	assert.ElementsMatch(t, []*Combination{got}, restored.GetBySymbol("SPY2800C"))
}
