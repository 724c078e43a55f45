// Package hedging implements Vega hedging: monitoring a portfolio's Vega
// exposure against a target band and sizing a hedge instrument when it
// drifts too far.
package hedging

import (
	"fmt"
	"math"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
)

// Config is VegaHedgingConfig: the target band and the hedge instrument's
// own per-lot Greeks.
type Config struct {
	TargetVega                float64
	HedgingBand               float64
	HedgeInstrumentVTSymbol   string
	HedgeInstrumentVega       float64
	HedgeInstrumentDelta      float64
	HedgeInstrumentGamma      float64
	HedgeInstrumentTheta      float64
	HedgeInstrumentMultiplier float64
}

// Result is the structured, never-raising outcome of Engine.CheckAndHedge.
type Result struct {
	ShouldHedge   bool
	Rejected      bool
	RejectReason  string
	Reason        string
	HedgeVolume   float64
	HedgeDirection combo.Direction
	Instruction   *combo.OrderInstruction
	DeltaImpact   float64
	GammaImpact   float64
	ThetaImpact   float64
}

// VegaHedgeExecuted is emitted alongside a successful hedge decision.
type VegaHedgeExecuted struct {
	HedgeVolume          float64
	HedgeDirection       combo.Direction
	PortfolioVegaBefore  float64
	PortfolioVegaAfter   float64
	HedgeInstrument      string
	DeltaImpact          float64
	GammaImpact          float64
	ThetaImpact          float64
}

// EventName implements combo.DomainEvent.
func (VegaHedgeExecuted) EventName() string { return "VegaHedgeExecuted" }

// Engine computes Vega hedge instructions under a fixed Config.
type Engine struct {
	config Config
}

// NewEngine constructs an Engine bound to one hedging config.
func NewEngine(config Config) *Engine {
	return &Engine{config: config}
}

// CheckAndHedge rejects early when the config or current price is
// unusable, returns should_hedge=false when the drift is within band or the
// rounded lot count is zero, and otherwise sizes and directions a hedge
// instruction plus its side-effect Greek impacts.
func (e *Engine) CheckAndHedge(portfolio combo.PortfolioGreeks, currentPrice float64) (Result, []combo.DomainEvent) {
	cfg := e.config

	if cfg.HedgeInstrumentMultiplier <= 0 {
		return Result{Rejected: true, RejectReason: "invalid config: instrument multiplier <= 0"}, nil
	}
	if cfg.HedgeInstrumentVega == 0 {
		return Result{Rejected: true, RejectReason: "hedge instrument vega is zero"}, nil
	}
	if currentPrice <= 0 {
		return Result{Rejected: true, RejectReason: "current price <= 0"}, nil
	}

	vegaDiff := portfolio.TotalVega - cfg.TargetVega
	if math.Abs(vegaDiff) <= cfg.HedgingBand {
		return Result{ShouldHedge: false, Reason: "vega drift within hedging band"}, nil
	}

	denominator := cfg.HedgeInstrumentVega * cfg.HedgeInstrumentMultiplier
	if denominator == 0 {
		return Result{ShouldHedge: false, Reason: "hedge instrument effective vega is zero"}, nil
	}
	rawVolume := (cfg.TargetVega - portfolio.TotalVega) / denominator
	if math.IsNaN(rawVolume) || math.IsInf(rawVolume, 0) {
		return Result{ShouldHedge: false, Reason: "hedge volume computation overflowed"}, nil
	}
	lots := math.Round(rawVolume)
	if lots == 0 {
		return Result{ShouldHedge: false, Reason: "hedge volume rounds to zero"}, nil
	}

	direction := combo.Long
	sign := 1.0
	if lots < 0 {
		direction = combo.Short
		sign = -1.0
		lots = -lots
	}

	deltaImpact := lots * cfg.HedgeInstrumentDelta * cfg.HedgeInstrumentMultiplier * sign
	gammaImpact := lots * cfg.HedgeInstrumentGamma * cfg.HedgeInstrumentMultiplier * sign
	thetaImpact := lots * cfg.HedgeInstrumentTheta * cfg.HedgeInstrumentMultiplier * sign

	instructionDirection := combo.DirLong
	if direction == combo.Short {
		instructionDirection = combo.DirShort
	}
	instruction := &combo.OrderInstruction{
		VTSymbol:  cfg.HedgeInstrumentVTSymbol,
		Direction: instructionDirection,
		Offset:    combo.Open,
		Volume:    lots,
		Price:     currentPrice,
		Signal:    "vega_hedge",
		OrderType: combo.Market,
	}

	result := Result{
		ShouldHedge:    true,
		HedgeVolume:    lots,
		HedgeDirection: direction,
		Instruction:    instruction,
		DeltaImpact:    deltaImpact,
		GammaImpact:    gammaImpact,
		ThetaImpact:    thetaImpact,
		Reason:         fmt.Sprintf("vega drift %.4f exceeds band %v", vegaDiff, cfg.HedgingBand),
	}

	vegaAfter := portfolio.TotalVega + lots*cfg.HedgeInstrumentVega*cfg.HedgeInstrumentMultiplier*sign
	event := VegaHedgeExecuted{
		HedgeVolume:         lots,
		HedgeDirection:      direction,
		PortfolioVegaBefore: portfolio.TotalVega,
		PortfolioVegaAfter:  vegaAfter,
		HedgeInstrument:     cfg.HedgeInstrumentVTSymbol,
		DeltaImpact:         deltaImpact,
		GammaImpact:         gammaImpact,
		ThetaImpact:         thetaImpact,
	}

	return result, []combo.DomainEvent{event}
}
