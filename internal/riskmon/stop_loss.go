// Package riskmon monitors already-open positions for stop-loss triggers
// and liquidity deterioration, independent of the combination-level Greeks
// risk check in internal/combo.
package riskmon

import "github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"

// StopLossConfig gates which stop-loss checks are active and their
// thresholds.
type StopLossConfig struct {
	EnableFixedStop      bool
	FixedStopLossAmount  float64
	FixedStopLossPercent float64
	EnableTrailingStop   bool
	TrailingStopPercent  float64
	EnablePortfolioStop  bool
	DailyLossLimit       float64
}

// TriggerType distinguishes which rule fired.
type TriggerType string

const (
	TriggerFixed    TriggerType = "fixed"
	TriggerTrailing TriggerType = "trailing"
)

// StopLossTrigger is the result of a fired position-level stop-loss check.
type StopLossTrigger struct {
	VTSymbol     string
	TriggerType  TriggerType
	CurrentLoss  float64
	Threshold    float64
	CurrentPrice float64
	OpenPrice    float64
}

// PortfolioStopLossTrigger is the result of a fired portfolio-level daily
// loss limit check.
type PortfolioStopLossTrigger struct {
	TotalLoss        float64
	DailyLimit       float64
	PositionsToClose []string
}

// StopLossManager evaluates position and portfolio PnL against a fixed
// StopLossConfig.
type StopLossManager struct {
	config StopLossConfig
}

// NewStopLossManager constructs a StopLossManager.
func NewStopLossManager(config StopLossConfig) *StopLossManager {
	return &StopLossManager{config: config}
}

// CheckPositionStopLoss evaluates a single active leg: fixed stop first
// (amount, then percent-of-open-value), then trailing stop when the
// position has ever been profitable (peakProfit > 0). A zero-volume or
// closed leg never triggers.
func (m *StopLossManager) CheckPositionStopLoss(leg combo.Leg, currentPrice, peakProfit, multiplier float64) (StopLossTrigger, bool) {
	if leg.Volume <= 0 {
		return StopLossTrigger{}, false
	}

	pnl := m.calculatePositionPnL(leg, currentPrice, multiplier)

	if m.config.EnableFixedStop {
		if trigger, ok := m.checkFixedStop(leg, currentPrice, pnl, multiplier); ok {
			return trigger, true
		}
	}

	if m.config.EnableTrailingStop && peakProfit > 0 {
		if trigger, ok := m.checkTrailingStop(leg, currentPrice, pnl, peakProfit); ok {
			return trigger, true
		}
	}

	return StopLossTrigger{}, false
}

// CheckPortfolioStopLoss fires when the day's realized drawdown
// (dailyStartEquity - currentEquity) exceeds the configured daily loss
// limit, naming every still-active leg's vt_symbol as a close candidate.
func (m *StopLossManager) CheckPortfolioStopLoss(activeLegs []combo.Leg, dailyStartEquity, currentEquity float64) (PortfolioStopLossTrigger, bool) {
	if !m.config.EnablePortfolioStop {
		return PortfolioStopLossTrigger{}, false
	}

	totalLoss := dailyStartEquity - currentEquity
	if totalLoss <= m.config.DailyLossLimit {
		return PortfolioStopLossTrigger{}, false
	}

	symbols := make([]string, 0, len(activeLegs))
	for _, leg := range activeLegs {
		symbols = append(symbols, leg.VTSymbol)
	}

	return PortfolioStopLossTrigger{
		TotalLoss:        totalLoss,
		DailyLimit:       m.config.DailyLossLimit,
		PositionsToClose: symbols,
	}, true
}

// calculatePositionPnL: short legs profit as price falls below open price,
// long legs profit as price rises above it.
func (m *StopLossManager) calculatePositionPnL(leg combo.Leg, currentPrice, multiplier float64) float64 {
	if leg.Direction == combo.Short {
		return (leg.OpenPrice - currentPrice) * leg.Volume * multiplier
	}
	return (currentPrice - leg.OpenPrice) * leg.Volume * multiplier
}

func (m *StopLossManager) checkFixedStop(leg combo.Leg, currentPrice, pnl, multiplier float64) (StopLossTrigger, bool) {
	if pnl >= 0 {
		return StopLossTrigger{}, false
	}
	loss := -pnl
	openValue := leg.OpenPrice * leg.Volume * multiplier

	if loss >= m.config.FixedStopLossAmount {
		return StopLossTrigger{
			VTSymbol:     leg.VTSymbol,
			TriggerType:  TriggerFixed,
			CurrentLoss:  loss,
			Threshold:    m.config.FixedStopLossAmount,
			CurrentPrice: currentPrice,
			OpenPrice:    leg.OpenPrice,
		}, true
	}

	lossPercent := 0.0
	if openValue > 0 {
		lossPercent = loss / openValue
	}
	if lossPercent >= m.config.FixedStopLossPercent {
		return StopLossTrigger{
			VTSymbol:     leg.VTSymbol,
			TriggerType:  TriggerFixed,
			CurrentLoss:  loss,
			Threshold:    m.config.FixedStopLossPercent * openValue,
			CurrentPrice: currentPrice,
			OpenPrice:    leg.OpenPrice,
		}, true
	}

	return StopLossTrigger{}, false
}

func (m *StopLossManager) checkTrailingStop(leg combo.Leg, currentPrice, pnl, peakProfit float64) (StopLossTrigger, bool) {
	drawdown := peakProfit - pnl
	drawdownPercent := 0.0
	if peakProfit > 0 {
		drawdownPercent = drawdown / peakProfit
	}

	if drawdownPercent >= m.config.TrailingStopPercent {
		return StopLossTrigger{
			VTSymbol:     leg.VTSymbol,
			TriggerType:  TriggerTrailing,
			CurrentLoss:  drawdown,
			Threshold:    m.config.TrailingStopPercent * peakProfit,
			CurrentPrice: currentPrice,
			OpenPrice:    leg.OpenPrice,
		}, true
	}

	return StopLossTrigger{}, false
}
