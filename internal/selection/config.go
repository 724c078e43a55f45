// Package selection implements option-chain filtering and scoring
// (OptionSelectorService) and future dominant-contract / rollover selection
// (BaseFutureSelector).
package selection

// Config enumerates OptionSelectorService's recognized options. There is no
// surviving original_source file for this config object (filtered out of
// the retrieval pack); its field list and defaults below are reconstructed
// from spec.md §6's "Configuration surface" enumeration together with the
// field-usage patterns observed directly in
// original_source/.../option_selector_service.py.
type Config struct {
	StrikeLevel int

	MinBidPrice    float64
	MinBidVolume   float64
	MaxSpreadTicks float64
	TickSize       float64

	MinTradingDays int
	MaxTradingDays int

	ScoreLiquidityWeight float64
	ScoreOTMWeight       float64
	ScoreExpiryWeight    float64

	LiqSpreadWeight float64
	LiqVolumeWeight float64

	DeltaTolerance    float64
	DefaultSpreadWidth int
}

// DefaultConfig mirrors the teacher's DefaultConfig package-value pattern
// (internal/retry/client.go, internal/orders/manager.go). Weight defaults
// split liquidity/OTM/expiry evenly and spread/volume evenly within the
// liquidity subscore, which is the simplest non-degenerate choice absent a
// recovered source default.
func DefaultConfig() Config {
	return Config{
		StrikeLevel:          1,
		MinBidPrice:          0.01,
		MinBidVolume:         1,
		MaxSpreadTicks:       10,
		TickSize:             0.01,
		MinTradingDays:       7,
		MaxTradingDays:       45,
		ScoreLiquidityWeight: 1.0 / 3,
		ScoreOTMWeight:       1.0 / 3,
		ScoreExpiryWeight:    1.0 / 3,
		LiqSpreadWeight:      0.5,
		LiqVolumeWeight:      0.5,
		DeltaTolerance:       0.05,
		DefaultSpreadWidth:   1,
	}
}
