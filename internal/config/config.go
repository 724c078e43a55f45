// Package config provides configuration management for the trading bot.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/hedging"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/riskmon"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/selection"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/sizing"
)

// Config represents the complete application configuration.
type Config struct {
	Environment     EnvironmentConfig      `yaml:"environment"`
	Schedule        ScheduleConfig         `yaml:"schedule"`
	Dashboard       DashboardConfig        `yaml:"dashboard"`
	Sizing          PositionSizingConfig   `yaml:"sizing"`
	OptionSelector  OptionSelectorConfig   `yaml:"option_selector"`
	FutureSelector  FutureSelectorConfig   `yaml:"future_selector"`
	CombinationRisk CombinationRiskConfig  `yaml:"combination_risk"`
	Hedging         HedgingConfig          `yaml:"hedging"`
	StopLoss        StopLossConfig         `yaml:"stop_loss"`
	Liquidity       LiquidityMonitorConfig `yaml:"liquidity_monitor"`
	Persistence     PersistenceConfig      `yaml:"persistence"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // paper | live
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ScheduleConfig defines the trading calendar the engine's run loop checks
// before each tick: how often to wake, what timezone the trading window is
// quoted in, and whether after-hours ticks are allowed at all.
type ScheduleConfig struct {
	MarketCheckInterval string `yaml:"market_check_interval"`
	Timezone            string `yaml:"timezone"`      // e.g., "America/New_York"
	TradingStart        string `yaml:"trading_start"` // "HH:MM"
	TradingEnd          string `yaml:"trading_end"`   // "HH:MM"
	AfterHoursCheck     bool   `yaml:"after_hours_check"`
}

// DashboardConfig defines web dashboard settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Enable web dashboard
	Port      int    `yaml:"port"`       // HTTP server port
	AuthToken string `yaml:"auth_token"` // Optional authentication token
}

// PositionSizingConfig defines the lot-sizing constraints passed to
// sizing.Service. A zero value normalizes to sizing.DefaultConfig().
type PositionSizingConfig struct {
	MaxPositions       int     `yaml:"max_positions"`
	GlobalDailyLimit   int     `yaml:"global_daily_limit"`
	ContractDailyLimit int     `yaml:"contract_daily_limit"`
	MarginRatio        float64 `yaml:"margin_ratio"`
	MinMarginRatio     float64 `yaml:"min_margin_ratio"`
	MarginUsageLimit   float64 `yaml:"margin_usage_limit"`
	MaxVolumePerOrder  int     `yaml:"max_volume_per_order"`
}

// ToSizingConfig converts to sizing.Config.
func (c PositionSizingConfig) ToSizingConfig() sizing.Config {
	return sizing.Config{
		MaxPositions:       c.MaxPositions,
		GlobalDailyLimit:   c.GlobalDailyLimit,
		ContractDailyLimit: c.ContractDailyLimit,
		MarginRatio:        c.MarginRatio,
		MinMarginRatio:     c.MinMarginRatio,
		MarginUsageLimit:   c.MarginUsageLimit,
		MaxVolumePerOrder:  c.MaxVolumePerOrder,
	}
}

// OptionSelectorConfig defines the option-chain filtering and scoring
// weights passed to selection.OptionSelector. A zero value normalizes
// to selection.DefaultConfig().
type OptionSelectorConfig struct {
	StrikeLevel int `yaml:"strike_level"`

	MinBidPrice    float64 `yaml:"min_bid_price"`
	MinBidVolume   float64 `yaml:"min_bid_volume"`
	MaxSpreadTicks float64 `yaml:"max_spread_ticks"`
	TickSize       float64 `yaml:"tick_size"`

	MinTradingDays int `yaml:"min_trading_days"`
	MaxTradingDays int `yaml:"max_trading_days"`

	ScoreLiquidityWeight float64 `yaml:"score_liquidity_weight"`
	ScoreOTMWeight       float64 `yaml:"score_otm_weight"`
	ScoreExpiryWeight    float64 `yaml:"score_expiry_weight"`

	LiqSpreadWeight float64 `yaml:"liq_spread_weight"`
	LiqVolumeWeight float64 `yaml:"liq_volume_weight"`

	DeltaTolerance     float64 `yaml:"delta_tolerance"`
	DefaultSpreadWidth int     `yaml:"default_spread_width"`
}

// ToSelectionConfig converts to selection.Config.
func (c OptionSelectorConfig) ToSelectionConfig() selection.Config {
	return selection.Config{
		StrikeLevel:          c.StrikeLevel,
		MinBidPrice:          c.MinBidPrice,
		MinBidVolume:         c.MinBidVolume,
		MaxSpreadTicks:       c.MaxSpreadTicks,
		TickSize:             c.TickSize,
		MinTradingDays:       c.MinTradingDays,
		MaxTradingDays:       c.MaxTradingDays,
		ScoreLiquidityWeight: c.ScoreLiquidityWeight,
		ScoreOTMWeight:       c.ScoreOTMWeight,
		ScoreExpiryWeight:    c.ScoreExpiryWeight,
		LiqSpreadWeight:      c.LiqSpreadWeight,
		LiqVolumeWeight:      c.LiqVolumeWeight,
		DeltaTolerance:       c.DeltaTolerance,
		DefaultSpreadWidth:   c.DefaultSpreadWidth,
	}
}

// FutureSelectorConfig defines the dominant-contract scoring weights and
// rollover trigger window passed to selection.FutureSelector calls. Unlike
// the other domain config sections, FutureSelector itself carries no state
// and takes these as plain call parameters; this struct exists only to give
// them a single place to live in the YAML file.
type FutureSelectorConfig struct {
	VolumeWeight float64 `yaml:"volume_weight"`
	OIWeight     float64 `yaml:"oi_weight"`
	RolloverDays int     `yaml:"rollover_days"`
}

// CombinationRiskConfig bounds per-combination Greek exposure, passed to
// combo.NewRiskChecker. A zero value normalizes to
// combo.DefaultCombinationRiskConfig().
type CombinationRiskConfig struct {
	DeltaLimit float64 `yaml:"delta_limit"`
	GammaLimit float64 `yaml:"gamma_limit"`
	VegaLimit  float64 `yaml:"vega_limit"`
	ThetaLimit float64 `yaml:"theta_limit"`
}

// ToComboRiskConfig converts to combo.CombinationRiskConfig.
func (c CombinationRiskConfig) ToComboRiskConfig() combo.CombinationRiskConfig {
	return combo.CombinationRiskConfig{
		DeltaLimit: c.DeltaLimit,
		GammaLimit: c.GammaLimit,
		VegaLimit:  c.VegaLimit,
		ThetaLimit: c.ThetaLimit,
	}
}

// HedgingConfig defines the portfolio Vega-hedging target, tolerance band,
// and hedge instrument's Greeks, passed to hedging.NewEngine.
type HedgingConfig struct {
	Enabled                   bool    `yaml:"enabled"`
	TargetVega                float64 `yaml:"target_vega"`
	HedgingBand               float64 `yaml:"hedging_band"`
	HedgeInstrumentVTSymbol   string  `yaml:"hedge_instrument_vt_symbol"`
	HedgeInstrumentVega       float64 `yaml:"hedge_instrument_vega"`
	HedgeInstrumentDelta      float64 `yaml:"hedge_instrument_delta"`
	HedgeInstrumentGamma      float64 `yaml:"hedge_instrument_gamma"`
	HedgeInstrumentTheta      float64 `yaml:"hedge_instrument_theta"`
	HedgeInstrumentMultiplier float64 `yaml:"hedge_instrument_multiplier"`
}

// ToHedgingConfig converts to hedging.Config.
func (c HedgingConfig) ToHedgingConfig() hedging.Config {
	return hedging.Config{
		TargetVega:                c.TargetVega,
		HedgingBand:               c.HedgingBand,
		HedgeInstrumentVTSymbol:   c.HedgeInstrumentVTSymbol,
		HedgeInstrumentVega:       c.HedgeInstrumentVega,
		HedgeInstrumentDelta:      c.HedgeInstrumentDelta,
		HedgeInstrumentGamma:      c.HedgeInstrumentGamma,
		HedgeInstrumentTheta:      c.HedgeInstrumentTheta,
		HedgeInstrumentMultiplier: c.HedgeInstrumentMultiplier,
	}
}

// StopLossConfig defines the position- and portfolio-level stop-loss rules
// passed to riskmon.NewStopLossManager.
type StopLossConfig struct {
	EnableFixedStop      bool    `yaml:"enable_fixed_stop"`
	FixedStopLossAmount  float64 `yaml:"fixed_stop_loss_amount"`
	FixedStopLossPercent float64 `yaml:"fixed_stop_loss_percent"`
	EnableTrailingStop   bool    `yaml:"enable_trailing_stop"`
	TrailingStopPercent  float64 `yaml:"trailing_stop_percent"`
	EnablePortfolioStop  bool    `yaml:"enable_portfolio_stop"`
	DailyLossLimit       float64 `yaml:"daily_loss_limit"`
}

// ToStopLossConfig converts to riskmon.StopLossConfig.
func (c StopLossConfig) ToStopLossConfig() riskmon.StopLossConfig {
	return riskmon.StopLossConfig{
		EnableFixedStop:      c.EnableFixedStop,
		FixedStopLossAmount:  c.FixedStopLossAmount,
		FixedStopLossPercent: c.FixedStopLossPercent,
		EnableTrailingStop:   c.EnableTrailingStop,
		TrailingStopPercent:  c.TrailingStopPercent,
		EnablePortfolioStop:  c.EnablePortfolioStop,
		DailyLossLimit:       c.DailyLossLimit,
	}
}

// LiquidityMonitorConfig defines the volume/spread/open-interest subscore
// weights passed to riskmon.NewLiquidityMonitor. The three weights must sum
// to 1.0; see Validate.
type LiquidityMonitorConfig struct {
	VolumeWeight            float64 `yaml:"volume_weight"`
	SpreadWeight            float64 `yaml:"spread_weight"`
	OpenInterestWeight      float64 `yaml:"open_interest_weight"`
	LiquidityScoreThreshold float64 `yaml:"liquidity_score_threshold"`
}

// ToLiquidityConfig converts to riskmon.LiquidityConfig.
func (c LiquidityMonitorConfig) ToLiquidityConfig() riskmon.LiquidityConfig {
	return riskmon.LiquidityConfig{
		VolumeWeight:            c.VolumeWeight,
		SpreadWeight:            c.SpreadWeight,
		OpenInterestWeight:      c.OpenInterestWeight,
		LiquidityScoreThreshold: c.LiquidityScoreThreshold,
	}
}

// PersistenceConfig defines the snapshot repository's directory, compression
// threshold, and auto-save/cleanup cadence.
type PersistenceConfig struct {
	Dir                       string  `yaml:"dir"`
	CompressionThresholdBytes int     `yaml:"compression_threshold_bytes"`
	AutoSaveIntervalSeconds   float64 `yaml:"auto_save_interval_seconds"`
	CleanupIntervalHours      float64 `yaml:"cleanup_interval_hours"`
	KeepDays                  int     `yaml:"keep_days"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", configPath, err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", configPath, err)
	}

	// Normalize config defaults
	config.Normalize()

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// resolveLocation returns the configured TZ or NY fallback.
// With embedded tzdata, LoadLocation should always succeed for valid timezones.
func (c *Config) resolveLocation() (*time.Location, error) {
	tz := c.Schedule.Timezone
	if strings.TrimSpace(tz) == "" {
		tz = "America/New_York"
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		// With embedded tzdata, this should only fail for invalid timezone names
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}

	return loc, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	// Environment validation
	if c.Environment.Mode != "paper" && c.Environment.Mode != "live" {
		return fmt.Errorf("environment.mode must be 'paper' or 'live'")
	}

	// Log level validation
	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of: debug, info, warn, error")
	}

	// Schedule validation
	if c.Schedule.MarketCheckInterval == "" {
		return fmt.Errorf("schedule.market_check_interval is required (set in Normalize)")
	}
	trimmedInterval := strings.TrimSpace(c.Schedule.MarketCheckInterval)
	if duration, err := time.ParseDuration(trimmedInterval); err != nil {
		return fmt.Errorf("schedule.market_check_interval invalid: %w", err)
	} else if duration <= 0 {
		return fmt.Errorf("schedule.market_check_interval must be > 0")
	}
	loc, err := c.resolveLocation()
	if err != nil {
		return fmt.Errorf("timezone resolution failed: %w", err)
	}
	s, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
	e, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
	if err1 != nil || err2 != nil || !s.Before(e) {
		return fmt.Errorf("schedule trading window invalid (start/end parse/order)")
	}

	// Dashboard validation
	if c.Dashboard.Enabled {
		if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
			return fmt.Errorf("dashboard.port must be between 1 and 65535")
		}
	}

	// Position sizing validation
	if c.Sizing.MaxPositions <= 0 {
		return fmt.Errorf("sizing.max_positions must be > 0")
	}
	if c.Sizing.MarginRatio <= 0 || c.Sizing.MarginRatio >= 1 {
		return fmt.Errorf("sizing.margin_ratio must be in (0,1)")
	}
	if c.Sizing.MinMarginRatio <= 0 || c.Sizing.MinMarginRatio > c.Sizing.MarginRatio {
		return fmt.Errorf("sizing.min_margin_ratio must be > 0 and <= sizing.margin_ratio")
	}
	if c.Sizing.MarginUsageLimit <= 0 || c.Sizing.MarginUsageLimit > 1 {
		return fmt.Errorf("sizing.margin_usage_limit must be in (0,1]")
	}

	// Option selector validation
	if c.OptionSelector.MinTradingDays > 0 && c.OptionSelector.MaxTradingDays > 0 &&
		c.OptionSelector.MinTradingDays > c.OptionSelector.MaxTradingDays {
		return fmt.Errorf("option_selector.min_trading_days must be <= option_selector.max_trading_days")
	}
	if weightSum := c.OptionSelector.ScoreLiquidityWeight + c.OptionSelector.ScoreOTMWeight + c.OptionSelector.ScoreExpiryWeight; weightSum != 0 && (weightSum < 0.99 || weightSum > 1.01) {
		return fmt.Errorf("option_selector score weights must sum to 1.0, got %.4f", weightSum)
	}

	// Combination risk validation
	if c.CombinationRisk.DeltaLimit < 0 || c.CombinationRisk.GammaLimit < 0 ||
		c.CombinationRisk.VegaLimit < 0 || c.CombinationRisk.ThetaLimit < 0 {
		return fmt.Errorf("combination_risk limits must be >= 0")
	}

	// Hedging validation
	if c.Hedging.Enabled {
		if c.Hedging.HedgingBand < 0 {
			return fmt.Errorf("hedging.hedging_band must be >= 0")
		}
		if c.Hedging.HedgeInstrumentVTSymbol == "" {
			return fmt.Errorf("hedging.hedge_instrument_vt_symbol is required when hedging.enabled is true")
		}
		if c.Hedging.HedgeInstrumentMultiplier <= 0 {
			return fmt.Errorf("hedging.hedge_instrument_multiplier must be > 0")
		}
	}

	// Stop-loss validation
	if c.StopLoss.EnableFixedStop && c.StopLoss.FixedStopLossAmount <= 0 && c.StopLoss.FixedStopLossPercent <= 0 {
		return fmt.Errorf("stop_loss.fixed_stop_loss_amount or stop_loss.fixed_stop_loss_percent must be > 0 when stop_loss.enable_fixed_stop is true")
	}
	if c.StopLoss.EnableTrailingStop && c.StopLoss.TrailingStopPercent <= 0 {
		return fmt.Errorf("stop_loss.trailing_stop_percent must be > 0 when stop_loss.enable_trailing_stop is true")
	}
	if c.StopLoss.EnablePortfolioStop && c.StopLoss.DailyLossLimit <= 0 {
		return fmt.Errorf("stop_loss.daily_loss_limit must be > 0 when stop_loss.enable_portfolio_stop is true")
	}

	// Liquidity monitor validation
	if liquidityWeightSum := c.Liquidity.VolumeWeight + c.Liquidity.SpreadWeight + c.Liquidity.OpenInterestWeight; liquidityWeightSum != 0 {
		if diff := liquidityWeightSum - 1.0; diff < -1e-6 || diff > 1e-6 {
			return fmt.Errorf("liquidity_monitor weights must sum to 1.0, got %.6f", liquidityWeightSum)
		}
	}

	// Persistence validation
	if strings.TrimSpace(c.Persistence.Dir) == "" {
		return fmt.Errorf("persistence.dir is required")
	}

	return nil
}

// IsPaperTrading returns true if the bot is configured for paper trading.
func (c *Config) IsPaperTrading() bool {
	return c.Environment.Mode == "paper"
}

// GetCheckInterval returns the configured market check interval duration.
func (c *Config) GetCheckInterval() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(c.Schedule.MarketCheckInterval))
	if err != nil {
		return 15 * time.Minute // default
	}
	if d <= 0 {
		return 15 * time.Minute // default
	}
	return d
}

// IsWithinTradingHours checks if the given time falls within configured trading hours.
func (c *Config) IsWithinTradingHours(now time.Time) (bool, error) {
	loc, err := c.resolveLocation()
	if err != nil {
		return false, fmt.Errorf("timezone resolution failed: %w", err)
	}

	today := now.In(loc)

	// Only allow Monday–Friday trading
	if today.Weekday() == time.Saturday || today.Weekday() == time.Sunday {
		return false, nil
	}

	// Allow early return for AfterHoursCheck only on weekdays
	if c.Schedule.AfterHoursCheck {
		return true, nil
	}

	startClock, err1 := time.ParseInLocation("15:04", c.Schedule.TradingStart, loc)
	endClock, err2 := time.ParseInLocation("15:04", c.Schedule.TradingEnd, loc)
	if err1 != nil || err2 != nil {
		// Safe defaults if misconfigured
		startClock = time.Date(0, 1, 1, 9, 30, 0, 0, loc)
		endClock = time.Date(0, 1, 1, 16, 0, 0, 0, loc)
	}
	start := time.Date(today.Year(), today.Month(), today.Day(),
		startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end := time.Date(today.Year(), today.Month(), today.Day(),
		endClock.Hour(), endClock.Minute(), 0, 0, loc)

	// Inclusive start, exclusive end
	return !today.Before(start) && today.Before(end), nil
}

// Normalize sets default values for configuration fields
func (c *Config) Normalize() {
	if strings.TrimSpace(c.Schedule.MarketCheckInterval) == "" {
		c.Schedule.MarketCheckInterval = "15m"
	}
	if strings.TrimSpace(c.Schedule.TradingStart) == "" {
		c.Schedule.TradingStart = "09:30"
	}
	if strings.TrimSpace(c.Schedule.TradingEnd) == "" {
		c.Schedule.TradingEnd = "16:00"
	}
	if strings.TrimSpace(c.Environment.Mode) == "" {
		c.Environment.Mode = "paper"
	}
	if strings.TrimSpace(c.Environment.LogLevel) == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 9847 // Default port as specified in tasks
	}

	if c.Sizing == (PositionSizingConfig{}) {
		d := sizing.DefaultConfig()
		c.Sizing = PositionSizingConfig{
			MaxPositions:       d.MaxPositions,
			GlobalDailyLimit:   d.GlobalDailyLimit,
			ContractDailyLimit: d.ContractDailyLimit,
			MarginRatio:        d.MarginRatio,
			MinMarginRatio:     d.MinMarginRatio,
			MarginUsageLimit:   d.MarginUsageLimit,
			MaxVolumePerOrder:  d.MaxVolumePerOrder,
		}
	}
	if c.OptionSelector == (OptionSelectorConfig{}) {
		d := selection.DefaultConfig()
		c.OptionSelector = OptionSelectorConfig{
			StrikeLevel:          d.StrikeLevel,
			MinBidPrice:          d.MinBidPrice,
			MinBidVolume:         d.MinBidVolume,
			MaxSpreadTicks:       d.MaxSpreadTicks,
			TickSize:             d.TickSize,
			MinTradingDays:       d.MinTradingDays,
			MaxTradingDays:       d.MaxTradingDays,
			ScoreLiquidityWeight: d.ScoreLiquidityWeight,
			ScoreOTMWeight:       d.ScoreOTMWeight,
			ScoreExpiryWeight:    d.ScoreExpiryWeight,
			LiqSpreadWeight:      d.LiqSpreadWeight,
			LiqVolumeWeight:      d.LiqVolumeWeight,
			DeltaTolerance:       d.DeltaTolerance,
			DefaultSpreadWidth:   d.DefaultSpreadWidth,
		}
	}
	if c.FutureSelector == (FutureSelectorConfig{}) {
		c.FutureSelector = FutureSelectorConfig{VolumeWeight: 0.5, OIWeight: 0.5, RolloverDays: 5}
	}
	if c.CombinationRisk == (CombinationRiskConfig{}) {
		d := combo.DefaultCombinationRiskConfig()
		c.CombinationRisk = CombinationRiskConfig{
			DeltaLimit: d.DeltaLimit,
			GammaLimit: d.GammaLimit,
			VegaLimit:  d.VegaLimit,
			ThetaLimit: d.ThetaLimit,
		}
	}
	if c.Liquidity == (LiquidityMonitorConfig{}) {
		c.Liquidity = LiquidityMonitorConfig{
			VolumeWeight:            1.0 / 3,
			SpreadWeight:            1.0 / 3,
			OpenInterestWeight:      1.0 / 3,
			LiquidityScoreThreshold: 0.4,
		}
	}
	if c.Persistence.Dir == "" {
		c.Persistence.Dir = "data/snapshots"
	}
	if c.Persistence.CompressionThresholdBytes == 0 {
		c.Persistence.CompressionThresholdBytes = persistenceDefaultCompressionThreshold
	}
	if c.Persistence.AutoSaveIntervalSeconds == 0 {
		c.Persistence.AutoSaveIntervalSeconds = 60
	}
	if c.Persistence.CleanupIntervalHours == 0 {
		c.Persistence.CleanupIntervalHours = 24
	}
	if c.Persistence.KeepDays == 0 {
		c.Persistence.KeepDays = 7
	}
}

// persistenceDefaultCompressionThreshold mirrors persistence.DefaultCompressionThreshold
// without importing the persistence package here, since config has no other
// reason to depend on it (PersistenceConfig is consumed by callers, not converted
// to a persistence type in this package).
const persistenceDefaultCompressionThreshold = 10 * 1024
