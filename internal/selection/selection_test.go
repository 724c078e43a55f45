package selection

import (
	"testing"
	"time"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOptionOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTradingDays = 0
	cfg.MaxTradingDays = 100
	selector := NewOptionSelector(cfg)

	chain := []combo.OptionContract{
		{VTSymbol: "C1", OptionType: combo.Call, StrikePrice: 110, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
		{VTSymbol: "C2", OptionType: combo.Call, StrikePrice: 105, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
		{VTSymbol: "C3", OptionType: combo.Call, StrikePrice: 120, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
	}
	spot := 100.0

	first, ok := selector.SelectOption(chain, combo.Call, spot, 1)
	require.True(t, ok)
	assert.Equal(t, "C2", first.VTSymbol)

	second, ok := selector.SelectOption(chain, combo.Call, spot, 2)
	require.True(t, ok)
	assert.Equal(t, "C1", second.VTSymbol)

	clamped, ok := selector.SelectOption(chain, combo.Call, spot, 99)
	require.True(t, ok)
	assert.Equal(t, "C3", clamped.VTSymbol)
}

func TestSelectByDeltaOptimalityAndFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTradingDays = 0
	cfg.MaxTradingDays = 100
	cfg.StrikeLevel = 1
	selector := NewOptionSelector(cfg)

	chain := []combo.OptionContract{
		{VTSymbol: "C1", OptionType: combo.Call, StrikePrice: 105, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
		{VTSymbol: "C2", OptionType: combo.Call, StrikePrice: 110, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
	}
	deltas := map[string]float64{"C1": 0.4, "C2": 0.25}

	lookup := func(vt string) (float64, bool) {
		d, ok := deltas[vt]
		return d, ok
	}

	best, ok := selector.SelectByDelta(chain, combo.Call, 100, 0.3, 0.2, lookup)
	require.True(t, ok)
	assert.Equal(t, "C2", best.VTSymbol)

	noGreeks := func(string) (float64, bool) { return 0, false }
	fallback, ok := selector.SelectByDelta(chain, combo.Call, 100, 0.3, 0.2, noGreeks)
	require.True(t, ok)
	assert.Equal(t, "C1", fallback.VTSymbol)
}

func TestSelectDominantContractTieBreak(t *testing.T) {
	fs := NewFutureSelector()
	e1 := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	e2 := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	contracts := []FutureContract{
		{VTSymbol: "A", Symbol: "A2601", Expiry: &e1},
		{VTSymbol: "B", Symbol: "B2602", Expiry: &e2},
	}
	md := map[string]FutureMarketData{
		"A": {VTSymbol: "A", Volume: 100, OpenInterest: 100},
		"B": {VTSymbol: "B", Volume: 100, OpenInterest: 100},
	}
	chosen, ok := fs.SelectDominantContract(contracts, md, 0.6, 0.4)
	require.True(t, ok)
	assert.Equal(t, "A", chosen.VTSymbol)
}

func TestResolveExpiryParsesYYMMFallback(t *testing.T) {
	fs := NewFutureSelector()
	contracts := []FutureContract{
		{VTSymbol: "A", Symbol: "IF2603"},
		{VTSymbol: "B", Symbol: "IF2601"},
	}

	earliest, ok := fs.SelectDominantContract(contracts, nil, 0.5, 0.5)
	require.True(t, ok)
	assert.Equal(t, "B", earliest.VTSymbol, "no market data falls back to earliest expiry parsed from the YYMM suffix")

	filtered := fs.FilterByMaturity(contracts, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), CurrentMonth, nil)
	require.Len(t, filtered, 1)
	assert.Equal(t, "B", filtered[0].VTSymbol)
}

func TestSelectCombinationVerticalSpreadHonorsSide(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTradingDays = 0
	cfg.MaxTradingDays = 100
	cfg.DefaultSpreadWidth = 1
	selector := NewOptionSelector(cfg)

	chain := []combo.OptionContract{
		{VTSymbol: "P1", OptionType: combo.Put, StrikePrice: 95, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
		{VTSymbol: "P2", OptionType: combo.Put, StrikePrice: 90, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
		{VTSymbol: "C1", OptionType: combo.Call, StrikePrice: 105, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
		{VTSymbol: "C2", OptionType: combo.Call, StrikePrice: 110, BidPrice: 1, BidVolume: 10, AskPrice: 1.1, DaysToExpiry: 30},
	}
	spot := 100.0

	putSelection := selector.SelectCombination(combo.VerticalSpread, chain, spot, 1, combo.Put)
	require.True(t, putSelection.Success, putSelection.FailureReason)
	for _, leg := range putSelection.Legs {
		assert.Equal(t, combo.Put, leg.OptionType, "a Put side request must never return Call legs")
	}

	callSelection := selector.SelectCombination(combo.VerticalSpread, chain, spot, 1, combo.Call)
	require.True(t, callSelection.Success, callSelection.FailureReason)
	for _, leg := range callSelection.Legs {
		assert.Equal(t, combo.Call, leg.OptionType)
	}
}

func TestFilterByLiquidityExcludesSpreadCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTradingDays = 0
	cfg.MaxTradingDays = 100
	cfg.TickSize = 0.01
	cfg.MaxSpreadTicks = 1
	wide := combo.OptionContract{VTSymbol: "WIDE", OptionType: combo.Call, StrikePrice: 105, BidPrice: 1, BidVolume: 10, AskPrice: 2.0, DaysToExpiry: 30}

	assert.False(t, CheckLiquidity(wide, cfg), "the standalone spread-aware check must reject a wide-spread contract")

	ranked := runPipeline([]combo.OptionContract{wide}, combo.Call, 100, cfg)
	require.Len(t, ranked, 1, "the pipeline's liquidity stage must not filter on spread width")
	assert.Equal(t, "WIDE", ranked[0].VTSymbol)
}

func TestCheckRolloverTrigger(t *testing.T) {
	fs := NewFutureSelector()
	now := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	expiry := time.Date(2026, 1, 30, 0, 0, 0, 0, time.UTC)
	nextExpiry := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	current := FutureContract{VTSymbol: "A2601", Symbol: "A2601", Expiry: &expiry}
	next := FutureContract{VTSymbol: "A2602", Symbol: "A2602", Expiry: &nextExpiry}

	rec, ok := fs.CheckRollover(current, []FutureContract{current, next}, now, 5, nil)
	require.True(t, ok)
	assert.True(t, rec.HasTarget)
	assert.Equal(t, "A2602", rec.TargetContractSymbol)

	farFromExpiry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_, triggered := fs.CheckRollover(current, []FutureContract{current, next}, farFromExpiry, 5, nil)
	assert.False(t, triggered)
}
