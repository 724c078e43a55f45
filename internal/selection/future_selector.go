package selection

import (
	"regexp"
	"sort"
	"strconv"
	"time"
)

// FutureContract is the minimal shape BaseFutureSelector consumes: a
// vt_symbol, an exchange symbol, and an optionally pre-parsed expiry.
// Callers with richer contract metadata should populate Expiry directly;
// a nil Expiry falls back to parsing Symbol's trailing YYMM suffix (see
// resolveExpiry), matching spec.md §4.10's "parsing the symbol's YYMM
// suffix" fallback. A contract whose expiry can be determined by neither
// means sorts as if expiring at the end of time.
type FutureContract struct {
	VTSymbol string
	Symbol   string
	Expiry   *time.Time
}

// yymmSuffix matches a trailing 4-digit YYMM contract-month code, e.g. the
// "2502" in "IF2502".
var yymmSuffix = regexp.MustCompile(`(\d{2})(\d{2})$`)

// resolveExpiry returns c.Expiry when set, otherwise parses Symbol's
// trailing YYMM suffix and reports the contract month's last calendar day
// as the expiry (exact expiry-day conventions vary by exchange and aren't
// recoverable from the symbol alone; the month-end is the representative
// date FilterByMaturity's month-window check already uses). ok is false
// when neither source yields a date.
func resolveExpiry(c FutureContract) (time.Time, bool) {
	if c.Expiry != nil {
		return *c.Expiry, true
	}
	m := yymmSuffix.FindStringSubmatch(c.Symbol)
	if m == nil {
		return time.Time{}, false
	}
	yy, err1 := strconv.Atoi(m[1])
	mm, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil || mm < 1 || mm > 12 {
		return time.Time{}, false
	}
	year := 2000 + yy
	_, end := monthBounds(year, mm)
	return end, true
}

// FutureMarketData is the volume/open-interest pair keyed by vt_symbol used
// to score contracts and pick rollover targets.
type FutureMarketData struct {
	VTSymbol      string
	Volume        float64
	OpenInterest  float64
}

// MaturityMode selects the filter_by_maturity window.
type MaturityMode string

const (
	CurrentMonth MaturityMode = "current_month"
	NextMonth    MaturityMode = "next_month"
	CustomRange  MaturityMode = "custom"
)

// RolloverRecommendation is check_rollover's result.
type RolloverRecommendation struct {
	CurrentContractSymbol string
	TargetContractSymbol  string
	RemainingDays         int
	Reason                string
	HasTarget             bool
}

// FutureSelector implements dominant-contract selection, maturity
// filtering, and rollover triggering for future contracts.
type FutureSelector struct{}

// NewFutureSelector constructs a FutureSelector. It carries no state.
func NewFutureSelector() *FutureSelector {
	return &FutureSelector{}
}

func expiryOrMax(c FutureContract) time.Time {
	if e, ok := resolveExpiry(c); ok {
		return e
	}
	return time.Unix(1<<62, 0)
}

// SelectDominantContract scores contracts by volume*volumeWeight +
// open_interest*oiWeight using marketData, picking the highest score with
// ties broken by earliest expiry. With no market data, or when every score
// is zero, it falls back to the earliest-expiry contract. An empty
// contracts list returns false.
func (s *FutureSelector) SelectDominantContract(contracts []FutureContract, marketData map[string]FutureMarketData, volumeWeight, oiWeight float64) (FutureContract, bool) {
	if len(contracts) == 0 {
		return FutureContract{}, false
	}

	if len(marketData) == 0 {
		return earliestExpiry(contracts), true
	}

	type scored struct {
		contract FutureContract
		score    float64
	}
	scores := make([]scored, len(contracts))
	allZero := true
	for i, c := range contracts {
		md, ok := marketData[c.VTSymbol]
		score := 0.0
		if ok {
			score = md.Volume*volumeWeight + md.OpenInterest*oiWeight
		}
		if score != 0 {
			allZero = false
		}
		scores[i] = scored{contract: c, score: score}
	}

	if allZero {
		return earliestExpiry(contracts), true
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return expiryOrMax(scores[i].contract).Before(expiryOrMax(scores[j].contract))
	})
	return scores[0].contract, true
}

func earliestExpiry(contracts []FutureContract) FutureContract {
	best := contracts[0]
	bestExpiry := expiryOrMax(best)
	for _, c := range contracts[1:] {
		e := expiryOrMax(c)
		if e.Before(bestExpiry) {
			best = c
			bestExpiry = e
		}
	}
	return best
}

// FilterByMaturity retains contracts whose resolved expiry (Expiry, or the
// Symbol's YYMM fallback) falls within the requested month window
// (inclusive). Contracts resolveExpiry can't date at all are dropped.
// Reinstated from original_source per SPEC_FULL.md's
// "Supplemented features" — spec.md's §4.10 prose names this operation but
// does not spell out its month-window semantics.
func (s *FutureSelector) FilterByMaturity(contracts []FutureContract, currentDate time.Time, mode MaturityMode, customRange *[2]time.Time) []FutureContract {
	var rangeStart, rangeEnd time.Time
	switch mode {
	case CurrentMonth:
		rangeStart, rangeEnd = monthBounds(currentDate.Year(), int(currentDate.Month()))
	case NextMonth:
		y, m := currentDate.Year(), int(currentDate.Month())+1
		if m > 12 {
			m = 1
			y++
		}
		rangeStart, rangeEnd = monthBounds(y, m)
	case CustomRange:
		if customRange == nil {
			return nil
		}
		rangeStart, rangeEnd = customRange[0], customRange[1]
	default:
		return nil
	}

	out := make([]FutureContract, 0, len(contracts))
	for _, c := range contracts {
		expiry, ok := resolveExpiry(c)
		if !ok {
			continue
		}
		if !expiry.Before(rangeStart) && !expiry.After(rangeEnd) {
			out = append(out, c)
		}
	}
	return out
}

func monthBounds(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// CheckRollover parses current's expiry, computes remaining days, and
// returns no recommendation when remaining > rolloverDays. Otherwise it
// looks for contracts expiring in the contiguous next month (excluding
// current): among those, the one with the largest market-data volume wins
// (fallback: earliest expiry with no market data); if none exist, the
// result reports HasTarget=false.
func (s *FutureSelector) CheckRollover(current FutureContract, all []FutureContract, currentDate time.Time, rolloverDays int, marketData map[string]FutureMarketData) (RolloverRecommendation, bool) {
	currentExpiry, ok := resolveExpiry(current)
	if !ok {
		return RolloverRecommendation{}, false
	}
	remaining := int(currentExpiry.Sub(currentDate).Hours() / 24)
	if remaining > rolloverDays {
		return RolloverRecommendation{}, false
	}

	nextYear, nextMonth := currentExpiry.Year(), int(currentExpiry.Month())+1
	if nextMonth > 12 {
		nextMonth = 1
		nextYear++
	}

	var candidates []FutureContract
	for _, c := range all {
		if c.VTSymbol == current.VTSymbol {
			continue
		}
		cExpiry, ok := resolveExpiry(c)
		if !ok {
			continue
		}
		if cExpiry.Year() == nextYear && int(cExpiry.Month()) == nextMonth {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		return RolloverRecommendation{
			CurrentContractSymbol: current.Symbol,
			TargetContractSymbol:  "",
			RemainingDays:         remaining,
			Reason:                "no target contract found for next month",
			HasTarget:             false,
		}, true
	}

	var best FutureContract
	if len(marketData) > 0 {
		bestVolume := -1.0
		for _, c := range candidates {
			vol := marketData[c.VTSymbol].Volume
			if vol > bestVolume {
				bestVolume = vol
				best = c
			}
		}
	} else {
		best = earliestExpiry(candidates)
	}

	return RolloverRecommendation{
		CurrentContractSymbol: current.Symbol,
		TargetContractSymbol:  best.Symbol,
		RemainingDays:         remaining,
		Reason:                "rollover recommended to " + best.Symbol,
		HasTarget:             true,
	}, true
}
