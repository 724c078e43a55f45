package selection

import (
	"sort"
	"strings"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
)

// bidLiquidity applies the pipeline's liquidity gate: bid price floor and
// bid volume floor only, matching spec.md §4.9 step 2. Spread width is a
// separate concern, checked standalone by CheckLiquidity, not folded in
// here — it would otherwise spuriously exclude wide-spread-but-liquid
// contracts from every pipeline-driven operation (SelectOption,
// SelectByDelta, ScoreCandidates, GetAllOTMOptions), which spec.md never
// asks to filter on spread.
func bidLiquidity(c combo.OptionContract, cfg Config) bool {
	if c.BidPrice < cfg.MinBidPrice {
		return false
	}
	if c.BidVolume < cfg.MinBidVolume {
		return false
	}
	return true
}

// CheckLiquidity is the standalone liquidity check: bid price floor, bid
// volume floor, and spread-in-ticks ceiling. It is not part of runPipeline;
// callers use it directly when a spread check is actually wanted (e.g.
// pre-trade validation of a specific contract).
func CheckLiquidity(c combo.OptionContract, cfg Config) bool {
	if !bidLiquidity(c, cfg) {
		return false
	}
	if cfg.TickSize > 0 {
		spread := c.AskPrice - c.BidPrice
		spreadTicks := spread / cfg.TickSize
		if spreadTicks > cfg.MaxSpreadTicks {
			return false
		}
	}
	return true
}

// diff1 computes the signed relative OTM distance: positive iff the
// contract is out of the money. A call is OTM when strike > spot; a put is
// OTM when strike < spot.
func diff1(c combo.OptionContract, spot float64) float64 {
	if spot == 0 {
		return 0
	}
	if c.OptionType == combo.Call {
		return (c.StrikePrice - spot) / spot
	}
	return (spot - c.StrikePrice) / spot
}

// filterByType keeps only rows of the requested option type, matched
// case-insensitively on the underlying string value.
func filterByType(chain []combo.OptionContract, side combo.OptionType) []combo.OptionContract {
	want := strings.ToLower(string(side))
	out := make([]combo.OptionContract, 0, len(chain))
	for _, c := range chain {
		if strings.ToLower(string(c.OptionType)) == want {
			out = append(out, c)
		}
	}
	return out
}

func filterByLiquidity(chain []combo.OptionContract, cfg Config) []combo.OptionContract {
	out := make([]combo.OptionContract, 0, len(chain))
	for _, c := range chain {
		if bidLiquidity(c, cfg) {
			out = append(out, c)
		}
	}
	return out
}

func filterByTradingDays(chain []combo.OptionContract, cfg Config) []combo.OptionContract {
	out := make([]combo.OptionContract, 0, len(chain))
	for _, c := range chain {
		if c.DaysToExpiry >= cfg.MinTradingDays && c.DaysToExpiry <= cfg.MaxTradingDays {
			out = append(out, c)
		}
	}
	return out
}

// rankOTM computes diff1 for every row, keeps diff1>0 (true OTM survivors),
// and sorts ascending (closest to the money first), matching spec.md §4.9
// step 4.
func rankOTM(chain []combo.OptionContract, spot float64) []combo.OptionContract {
	out := make([]combo.OptionContract, 0, len(chain))
	for _, c := range chain {
		c.Diff1 = diff1(c, spot)
		if c.Diff1 > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Diff1 < out[j].Diff1 })
	return out
}

// runPipeline applies the four ordered steps from spec.md §4.9: type
// filter, liquidity filter, days-to-expiry range filter, OTM ranking.
func runPipeline(chain []combo.OptionContract, side combo.OptionType, spot float64, cfg Config) []combo.OptionContract {
	filtered := filterByType(chain, side)
	filtered = filterByLiquidity(filtered, cfg)
	filtered = filterByTradingDays(filtered, cfg)
	return rankOTM(filtered, spot)
}
