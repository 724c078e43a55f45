package riskmon

import (
	"fmt"
	"math"
)

// LiquidityConfig weights the three liquidity subscores; the weights must
// sum to 1.0 (within 1e-6) or NewLiquidityMonitor rejects construction.
type LiquidityConfig struct {
	VolumeWeight         float64
	SpreadWeight         float64
	OpenInterestWeight   float64
	LiquidityScoreThreshold float64
}

// Trend is the liquidity trajectory identified from historical samples.
type Trend string

const (
	TrendImproving    Trend = "improving"
	TrendStable       Trend = "stable"
	TrendDeteriorating Trend = "deteriorating"
)

// MarketSample is one point of volume/open-interest/bid-ask data, either
// the current snapshot or one historical observation.
type MarketSample struct {
	Volume       float64
	OpenInterest float64
	BidPrice     float64
	AskPrice     float64
}

// LiquidityScore is calculate_liquidity_score's result: the weighted
// overall score plus its three components and identified trend.
type LiquidityScore struct {
	VTSymbol           string
	OverallScore       float64
	VolumeScore        float64
	SpreadScore        float64
	OpenInterestScore  float64
	Trend              Trend
}

// LiquidityWarning is emitted by MonitorPositions when a position's
// overall score falls below the configured threshold.
type LiquidityWarning struct {
	VTSymbol string
	Score    LiquidityScore
	Message  string
}

// LiquidityMonitor scores open positions' liquidity across volume, spread,
// and open-interest dimensions and flags deterioration.
type LiquidityMonitor struct {
	config LiquidityConfig
}

// NewLiquidityMonitor validates that the three weights sum to 1.0 within a
// 1e-6 tolerance before constructing the monitor.
func NewLiquidityMonitor(config LiquidityConfig) (*LiquidityMonitor, error) {
	total := config.VolumeWeight + config.SpreadWeight + config.OpenInterestWeight
	if math.Abs(total-1.0) > 1e-6 {
		return nil, fmt.Errorf("liquidity weights must sum to 1.0, got %.6f", total)
	}
	return &LiquidityMonitor{config: config}, nil
}

// CalculateLiquidityScore computes the three subscores and their weighted
// sum, plus the trend implied by historical against current data.
func (m *LiquidityMonitor) CalculateLiquidityScore(vtSymbol string, current MarketSample, historical []MarketSample) LiquidityScore {
	volumeScore := calculateVolumeScore(current.Volume, historical)
	spreadScore := calculateSpreadScore(current.BidPrice, current.AskPrice)
	oiScore := calculateOIScore(current.OpenInterest, historical)

	overall := volumeScore*m.config.VolumeWeight +
		spreadScore*m.config.SpreadWeight +
		oiScore*m.config.OpenInterestWeight

	trend := identifyTrend(current, historical)

	return LiquidityScore{
		VTSymbol:          vtSymbol,
		OverallScore:      overall,
		VolumeScore:       volumeScore,
		SpreadScore:       spreadScore,
		OpenInterestScore: oiScore,
		Trend:             trend,
	}
}

// MonitorPositions scores every vt_symbol present in marketData and
// returns a warning for each whose overall score falls below the
// configured threshold. Symbols absent from marketData are skipped.
func (m *LiquidityMonitor) MonitorPositions(activeVTSymbols []string, marketData map[string]MarketSample, historicalData map[string][]MarketSample) []LiquidityWarning {
	var warnings []LiquidityWarning

	for _, vtSymbol := range activeVTSymbols {
		current, ok := marketData[vtSymbol]
		if !ok {
			continue
		}

		score := m.CalculateLiquidityScore(vtSymbol, current, historicalData[vtSymbol])

		if score.OverallScore < m.config.LiquidityScoreThreshold {
			warnings = append(warnings, LiquidityWarning{
				VTSymbol: vtSymbol,
				Score:    score,
				Message: fmt.Sprintf(
					"liquidity deterioration: %s score %.3f below threshold %.3f, trend: %s",
					vtSymbol, score.OverallScore, m.config.LiquidityScoreThreshold, score.Trend,
				),
			})
		}
	}

	return warnings
}

// calculateVolumeScore: with no history, a simple normalization against an
// assumed-healthy volume of 1000; with history, current volume relative to
// the historical average, capped at 1.0.
func calculateVolumeScore(currentVolume float64, historical []MarketSample) float64 {
	if len(historical) == 0 {
		return math.Min(currentVolume/1000.0, 1.0)
	}

	avg := averageVolume(historical)
	if avg <= 0 {
		return 0.0
	}
	return math.Min(currentVolume/avg, 1.0)
}

// calculateSpreadScore uses an exponential decay over the relative spread
// (spread / mid price): score = exp(-k * relative_spread), with k = 10.5
// chosen so a 1% relative spread scores about 0.9.
func calculateSpreadScore(bidPrice, askPrice float64) float64 {
	if bidPrice <= 0 || askPrice <= 0 || askPrice <= bidPrice {
		return 0.0
	}
	mid := (bidPrice + askPrice) / 2.0
	relativeSpread := (askPrice - bidPrice) / mid

	const k = 10.5
	score := math.Exp(-k * relativeSpread)
	return math.Min(math.Max(score, 0.0), 1.0)
}

// calculateOIScore mirrors calculateVolumeScore against an assumed-healthy
// open interest of 5000.
func calculateOIScore(currentOI float64, historical []MarketSample) float64 {
	if len(historical) == 0 {
		return math.Min(currentOI/5000.0, 1.0)
	}

	avg := averageOI(historical)
	if avg <= 0 {
		return 0.0
	}
	return math.Min(currentOI/avg, 1.0)
}

func averageVolume(historical []MarketSample) float64 {
	var sum float64
	for _, h := range historical {
		sum += h.Volume
	}
	return sum / float64(len(historical))
}

func averageOI(historical []MarketSample) float64 {
	var sum float64
	for _, h := range historical {
		sum += h.OpenInterest
	}
	return sum / float64(len(historical))
}

func relativeSpreadOf(s MarketSample) (float64, bool) {
	if s.AskPrice > s.BidPrice && s.BidPrice > 0 {
		mid := (s.BidPrice + s.AskPrice) / 2.0
		if mid > 0 {
			return (s.AskPrice - s.BidPrice) / mid, true
		}
	}
	return 0, false
}

// identifyTrend requires at least two historical samples; otherwise it
// reports stable. Each of volume, spread, and open interest casts an
// improving or deteriorating vote on a >=10% move from its historical
// average; a trend needs at least two of three votes to win, else stable.
func identifyTrend(current MarketSample, historical []MarketSample) Trend {
	if len(historical) < 2 {
		return TrendStable
	}

	avgVolume := averageVolume(historical)
	avgOI := averageOI(historical)

	var spreadSum float64
	var spreadCount int
	for _, h := range historical {
		if rs, ok := relativeSpreadOf(h); ok {
			spreadSum += rs
			spreadCount++
		}
	}
	var avgSpread float64
	if spreadCount > 0 {
		avgSpread = spreadSum / float64(spreadCount)
	}

	currentSpread, _ := relativeSpreadOf(current)

	improving, deteriorating := 0, 0

	if avgVolume > 0 {
		switch {
		case current.Volume > avgVolume*1.1:
			improving++
		case current.Volume < avgVolume*0.9:
			deteriorating++
		}
	}

	if avgSpread > 0 {
		switch {
		case currentSpread < avgSpread*0.9:
			improving++
		case currentSpread > avgSpread*1.1:
			deteriorating++
		}
	}

	if avgOI > 0 {
		switch {
		case current.OpenInterest > avgOI*1.1:
			improving++
		case current.OpenInterest < avgOI*0.9:
			deteriorating++
		}
	}

	switch {
	case improving >= 2:
		return TrendImproving
	case deteriorating >= 2:
		return TrendDeteriorating
	default:
		return TrendStable
	}
}
