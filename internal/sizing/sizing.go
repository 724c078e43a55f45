// Package sizing computes lot sizes for new short-option positions under
// margin, margin-usage and Greek-budget constraints.
package sizing

import (
	"fmt"
	"math"
	"strings"
)

// OptionType mirrors combo.OptionType without importing it, keeping this
// package usable independent of the combination domain.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Config enumerates the recognized position-sizing options and their
// defaults, matching original_source's PositionSizingConfig dataclass.
type Config struct {
	MaxPositions       int
	GlobalDailyLimit   int
	ContractDailyLimit int
	MarginRatio        float64
	MinMarginRatio     float64
	MarginUsageLimit   float64
	MaxVolumePerOrder  int
}

// DefaultConfig reproduces the source's exact defaults.
func DefaultConfig() Config {
	return Config{
		MaxPositions:       5,
		GlobalDailyLimit:   50,
		ContractDailyLimit: 2,
		MarginRatio:        0.12,
		MinMarginRatio:     0.07,
		MarginUsageLimit:   0.6,
		MaxVolumePerOrder:  10,
	}
}

// PortfolioGreeks is the current aggregated Greek exposure against which
// the Greeks-dimension budget is computed.
type PortfolioGreeks struct {
	Delta float64
	Gamma float64
	Vega  float64
}

// RiskThresholds bounds portfolio-level |Greek| exposure.
type RiskThresholds struct {
	PortfolioDeltaLimit float64
	PortfolioGammaLimit float64
	PortfolioVegaLimit  float64
}

// PerLotGreeks is the candidate position's own Greeks, per lot.
type PerLotGreeks struct {
	Delta float64
	Gamma float64
	Vega  float64
}

// Request bundles every input to ComputeSizing.
type Request struct {
	AccountBalance  float64
	TotalEquity     float64
	UsedMargin      float64
	ContractPrice   float64
	UnderlyingPrice float64
	StrikePrice     float64
	OptionType      OptionType
	Multiplier      float64
	PerLotGreeks    PerLotGreeks
	Portfolio       PortfolioGreeks
	Thresholds      RiskThresholds
}

// SizingResult is the structured, never-raising outcome of ComputeSizing.
type SizingResult struct {
	Passed       bool
	RejectReason string
	FinalVolume  int
	MarginVolume int
	UsageVolume  int
	GreeksVolume int
	DeltaBudget  float64
	GammaBudget  float64
	VegaBudget   float64
}

// Service computes position sizes under a fixed Config.
type Service struct {
	config Config
}

// NewService constructs a Service. An empty Config's zero values are
// replaced by DefaultConfig's fields where that makes the config
// nonsensical (MaxVolumePerOrder<=0), mirroring the teacher's
// validate-and-sanitize constructor idiom (internal/retry/client.go).
func NewService(config Config) *Service {
	defaults := DefaultConfig()
	if config.MaxVolumePerOrder <= 0 {
		config.MaxVolumePerOrder = defaults.MaxVolumePerOrder
	}
	if config.MarginRatio <= 0 {
		config.MarginRatio = defaults.MarginRatio
	}
	if config.MinMarginRatio <= 0 {
		config.MinMarginRatio = defaults.MinMarginRatio
	}
	if config.MarginUsageLimit <= 0 {
		config.MarginUsageLimit = defaults.MarginUsageLimit
	}
	return &Service{config: config}
}

// estimateMarginPerLot implements the margin formula verified against
// spec.md §4.8's E2E-4 scenario: premium + max(underlying*margin_ratio -
// OTM_amount, underlying*min_margin_ratio), where OTM_amount is the
// per-lot-scaled distance by which the contract is already out of the
// money (the larger the OTM cushion, the smaller the required margin).
// Note: this reading of OTM_amount's direction differs from this section's
// prose, which names it the other way round; E2E-4's worked numbers
// (margin_per_lot=2280 from premium=2000, base=480, OTM=2000, floor=280)
// only reconcile under this direction, so the concrete scenario is treated
// as authoritative. See DESIGN.md for the discrepancy.
func (s *Service) estimateMarginPerLot(req Request) float64 {
	var otm float64
	switch req.OptionType {
	case Put:
		otm = math.Max(req.UnderlyingPrice-req.StrikePrice, 0) * req.Multiplier
	default:
		otm = math.Max(req.StrikePrice-req.UnderlyingPrice, 0) * req.Multiplier
	}
	premium := req.ContractPrice * req.Multiplier
	base := req.UnderlyingPrice * s.config.MarginRatio
	floor := req.UnderlyingPrice * s.config.MinMarginRatio
	return premium + math.Max(base-otm, floor)
}

// ComputeSizing computes the lot size for a new short-option position,
// taking the minimum of three independent upper bounds (margin, margin
// usage, Greek budget), clamped to [0, MaxVolumePerOrder].
func (s *Service) ComputeSizing(req Request) SizingResult {
	marginPerLot := s.estimateMarginPerLot(req)
	if marginPerLot <= 0 {
		return SizingResult{Passed: false, RejectReason: "margin estimate invalid"}
	}

	marginVolume := int(math.Floor(req.AccountBalance / marginPerLot))
	if marginVolume <= 0 {
		return SizingResult{Passed: false, RejectReason: "insufficient funds", MarginVolume: marginVolume}
	}

	usageVolume := s.maxUsageVolume(req, marginPerLot)
	if usageVolume <= 0 {
		return SizingResult{Passed: false, RejectReason: "margin usage exceeded", MarginVolume: marginVolume, UsageVolume: usageVolume}
	}

	greeksVolume, deltaBudget, gammaBudget, vegaBudget, violated := s.greeksVolume(req)
	if len(violated) > 0 {
		return SizingResult{
			Passed:       false,
			RejectReason: fmt.Sprintf("greeks exceeded (%s)", strings.Join(violated, ",")),
			MarginVolume: marginVolume,
			UsageVolume:  usageVolume,
			DeltaBudget:  deltaBudget,
			GammaBudget:  gammaBudget,
			VegaBudget:   vegaBudget,
		}
	}

	final := marginVolume
	if usageVolume < final {
		final = usageVolume
	}
	if greeksVolume < final {
		final = greeksVolume
	}
	if s.config.MaxVolumePerOrder < final {
		final = s.config.MaxVolumePerOrder
	}
	if final < 0 {
		final = 0
	}

	return SizingResult{
		Passed:       true,
		FinalVolume:  final,
		MarginVolume: marginVolume,
		UsageVolume:  usageVolume,
		GreeksVolume: greeksVolume,
		DeltaBudget:  deltaBudget,
		GammaBudget:  gammaBudget,
		VegaBudget:   vegaBudget,
	}
}

// maxUsageVolume finds the largest n such that
// (used_margin + n*margin_per_lot)/total_equity <= margin_usage_limit.
func (s *Service) maxUsageVolume(req Request, marginPerLot float64) int {
	if req.TotalEquity <= 0 {
		return 0
	}
	budget := s.config.MarginUsageLimit*req.TotalEquity - req.UsedMargin
	if budget <= 0 {
		return 0
	}
	return int(math.Floor(budget / marginPerLot))
}

// greeksVolume computes, for each non-zero per-lot Greek, the budget
// L_g - |P_g| and the lot count floor(budget/|g_per_lot*multiplier|),
// skipping dimensions whose per-lot value is zero, and returns the minimum
// across dimensions plus the three budgets. A dimension is reported as a
// violation (name appended, order d,g,v) whenever its budget can't fit even
// one more lot — either the budget itself is negative, or it's positive but
// too small for a single lot (lots < 1) — rather than letting a 0-lot
// dimension silently become the returned minimum volume.
func (s *Service) greeksVolume(req Request) (volume int, deltaBudget, gammaBudget, vegaBudget float64, violated []string) {
	deltaBudget = req.Thresholds.PortfolioDeltaLimit - math.Abs(req.Portfolio.Delta)
	gammaBudget = req.Thresholds.PortfolioGammaLimit - math.Abs(req.Portfolio.Gamma)
	vegaBudget = req.Thresholds.PortfolioVegaLimit - math.Abs(req.Portfolio.Vega)

	type dim struct {
		name   string
		budget float64
		perLot float64
	}
	dims := []dim{
		{"d", deltaBudget, req.PerLotGreeks.Delta * req.Multiplier},
		{"g", gammaBudget, req.PerLotGreeks.Gamma * req.Multiplier},
		{"v", vegaBudget, req.PerLotGreeks.Vega * req.Multiplier},
	}

	volume = -1
	for _, d := range dims {
		if d.perLot == 0 {
			continue
		}
		if d.budget < 0 {
			violated = append(violated, d.name)
			continue
		}
		lots := int(math.Floor(d.budget / math.Abs(d.perLot)))
		if lots < 1 {
			violated = append(violated, d.name)
			continue
		}
		if volume == -1 || lots < volume {
			volume = lots
		}
	}
	if volume == -1 {
		volume = s.config.MaxVolumePerOrder
	}
	return volume, deltaBudget, gammaBudget, vegaBudget, violated
}
