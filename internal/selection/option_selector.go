package selection

import (
	"fmt"
	"math"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
)

// GreeksLookup resolves a vt_symbol to its current delta and a success
// flag, mirroring combo.LegGreeks without importing pricing concerns.
type GreeksLookup func(vtSymbol string) (delta float64, success bool)

// OptionSelector runs the option-chain filtering, Delta-targeted and
// combination-aware selection pipelines over a Config.
type OptionSelector struct {
	config Config
}

// NewOptionSelector constructs an OptionSelector. Zero-valued fields in cfg
// are left as-is; callers wanting defaults should start from DefaultConfig.
func NewOptionSelector(cfg Config) *OptionSelector {
	return &OptionSelector{config: cfg}
}

// SelectOption returns the row at index level-1 in the ranked OTM survivors
// for the given side, the last row when level exceeds the ranking's length,
// or false when the ranking is empty.
func (s *OptionSelector) SelectOption(chain []combo.OptionContract, side combo.OptionType, spot float64, level int) (combo.OptionContract, bool) {
	ranked := runPipeline(chain, side, spot, s.config)
	if len(ranked) == 0 {
		return combo.OptionContract{}, false
	}
	idx := level - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(ranked) {
		idx = len(ranked) - 1
	}
	return ranked[idx], true
}

// GetAllOTMOptions returns the full ranked list after the pipeline, with no
// level selection.
func (s *OptionSelector) GetAllOTMOptions(chain []combo.OptionContract, side combo.OptionType, spot float64) []combo.OptionContract {
	return runPipeline(chain, side, spot, s.config)
}

// SelectByDelta picks, among the pipeline's OTM survivors with a successful
// Greeks lookup, the one whose |delta-targetDelta| is smallest and within
// tolerance. If no candidate has a successful Greeks lookup at all, it
// falls back to SelectOption at the configured StrikeLevel. If candidates
// exist but none is within tolerance, it returns false with no fallback.
func (s *OptionSelector) SelectByDelta(chain []combo.OptionContract, side combo.OptionType, spot, targetDelta, tolerance float64, greeks GreeksLookup) (combo.OptionContract, bool) {
	ranked := runPipeline(chain, side, spot, s.config)

	anySuccess := false
	best := combo.OptionContract{}
	bestDiff := math.Inf(1)
	found := false

	for _, c := range ranked {
		delta, ok := greeks(c.VTSymbol)
		if !ok {
			continue
		}
		anySuccess = true
		diff := math.Abs(delta - targetDelta)
		if diff <= tolerance && diff < bestDiff {
			bestDiff = diff
			best = c
			found = true
		}
	}

	if found {
		return best, true
	}
	if !anySuccess {
		return s.SelectOption(chain, side, spot, s.config.StrikeLevel)
	}
	return combo.OptionContract{}, false
}

// CombinationSelection is the outcome of SelectCombination: either a set of
// legs (contracts chosen for each side) or a failure reason.
type CombinationSelection struct {
	Legs          []combo.OptionContract
	Success       bool
	FailureReason string
}

// SelectCombination dispatches by CombinationType. STRADDLE picks the
// common strike present on both filtered call and put rankings closest to
// spot. STRANGLE independently ranks OTM calls and puts and picks
// StrikeLevel on each side. VERTICAL_SPREAD ranks OTMs for side (Call for a
// bull call / bear call spread, Put for a bear put / bull put spread): near
// leg = rank 1, far leg = rank 1+spreadWidth, rejecting equal strikes. side
// is ignored for STRADDLE/STRANGLE, which always rank both sides. Every
// success is re-validated against the structural rule for its type; a
// validation failure converts success into a failure result prefixed
// "structural: ".
func (s *OptionSelector) SelectCombination(ctype combo.CombinationType, chain []combo.OptionContract, spot float64, spreadWidth int, side combo.OptionType) CombinationSelection {
	var legs []combo.OptionContract
	switch ctype {
	case combo.Straddle:
		legs = s.selectStraddle(chain, spot)
	case combo.Strangle:
		legs = s.selectStrangle(chain, spot)
	case combo.VerticalSpread:
		legs = s.selectVerticalSpread(chain, spot, spreadWidth, side)
	default:
		return CombinationSelection{Success: false, FailureReason: fmt.Sprintf("unsupported combination type: %s", ctype)}
	}

	if legs == nil {
		return CombinationSelection{Success: false, FailureReason: "no candidate legs found"}
	}

	structures := make([]combo.LegStructure, len(legs))
	for i, leg := range legs {
		structures[i] = combo.LegStructure{OptionType: leg.OptionType, StrikePrice: leg.StrikePrice, ExpiryDate: leg.ExpiryDate}
	}
	if reason := combo.ValidationRules[ctype](structures); reason != "" {
		return CombinationSelection{Success: false, FailureReason: "structural: " + reason}
	}
	return CombinationSelection{Legs: legs, Success: true}
}

func (s *OptionSelector) selectStraddle(chain []combo.OptionContract, spot float64) []combo.OptionContract {
	calls := runPipeline(chain, combo.Call, spot, s.config)
	puts := runPipeline(chain, combo.Put, spot, s.config)

	strikeToPut := make(map[float64]combo.OptionContract, len(puts))
	for _, p := range puts {
		strikeToPut[p.StrikePrice] = p
	}

	var bestCall, bestPut combo.OptionContract
	bestDist := math.Inf(1)
	found := false
	for _, c := range calls {
		p, ok := strikeToPut[c.StrikePrice]
		if !ok {
			continue
		}
		dist := math.Abs(c.StrikePrice - spot)
		if dist < bestDist {
			bestDist = dist
			bestCall, bestPut = c, p
			found = true
		}
	}
	if !found {
		return nil
	}
	return []combo.OptionContract{bestCall, bestPut}
}

func (s *OptionSelector) selectStrangle(chain []combo.OptionContract, spot float64) []combo.OptionContract {
	calls := runPipeline(chain, combo.Call, spot, s.config)
	puts := runPipeline(chain, combo.Put, spot, s.config)

	level := s.config.StrikeLevel
	if level < 1 || len(calls) == 0 || len(puts) == 0 {
		return nil
	}
	callIdx := clampIdx(level-1, len(calls))
	putIdx := clampIdx(level-1, len(puts))
	return []combo.OptionContract{calls[callIdx], puts[putIdx]}
}

func (s *OptionSelector) selectVerticalSpread(chain []combo.OptionContract, spot float64, spreadWidth int, side combo.OptionType) []combo.OptionContract {
	if spreadWidth <= 0 {
		spreadWidth = s.config.DefaultSpreadWidth
	}
	ranked := runPipeline(chain, side, spot, s.config)
	if len(ranked) == 0 {
		return nil
	}
	nearIdx := clampIdx(0, len(ranked))
	farIdx := clampIdx(spreadWidth, len(ranked))
	near, far := ranked[nearIdx], ranked[farIdx]
	if near.StrikePrice == far.StrikePrice {
		return nil
	}
	return []combo.OptionContract{near, far}
}

func clampIdx(idx, length int) int {
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}

// ScoredCandidate is one row of ScoreCandidates' output.
type ScoredCandidate struct {
	Contract combo.OptionContract
	Total    float64
}

// ScoreCandidates ranks the pipeline's OTM survivors by a weighted sum of
// three [0,1] subscores (liquidity, OTM proximity, expiry proximity).
// Negative weights, or weights summing to zero, fall back to the
// selector's configured defaults rather than aborting — see DESIGN.md
// Open Question 2 for why this differs from the liquidity monitor's
// stricter validation.
func (s *OptionSelector) ScoreCandidates(chain []combo.OptionContract, side combo.OptionType, spot, wLiq, wOTM, wExp float64) []ScoredCandidate {
	if wLiq < 0 || wOTM < 0 || wExp < 0 || (wLiq+wOTM+wExp) == 0 {
		wLiq, wOTM, wExp = s.config.ScoreLiquidityWeight, s.config.ScoreOTMWeight, s.config.ScoreExpiryWeight
	}

	ranked := runPipeline(chain, side, spot, s.config)
	out := make([]ScoredCandidate, 0, len(ranked))
	for _, c := range ranked {
		liq := s.liquidityScore(c)
		otm := 1 / (1 + math.Abs(c.Diff1))
		exp := s.expiryScore(c.DaysToExpiry)
		total := wLiq*liq + wOTM*otm + wExp*exp
		out = append(out, ScoredCandidate{Contract: c, Total: total})
	}
	sortDescending(out)
	return out
}

func (s *OptionSelector) liquidityScore(c combo.OptionContract) float64 {
	spread := c.AskPrice - c.BidPrice
	spreadComponent := 1 / (1 + spread)
	volumeComponent := 1 - 1/(1+c.BidVolume)
	return s.config.LiqSpreadWeight*spreadComponent + s.config.LiqVolumeWeight*volumeComponent
}

func (s *OptionSelector) expiryScore(days int) float64 {
	minDays, maxDays := s.config.MinTradingDays, s.config.MaxTradingDays
	if minDays == maxDays {
		if days == minDays {
			return 1
		}
		return 0
	}
	midpoint := float64(minDays+maxDays) / 2
	halfRange := float64(maxDays-minDays) / 2
	score := 1 - math.Abs(float64(days)-midpoint)/halfRange
	if score < 0 {
		return 0
	}
	return score
}

func sortDescending(candidates []ScoredCandidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Total > candidates[j-1].Total; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
