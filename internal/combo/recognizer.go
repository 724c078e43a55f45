package combo

// RecognizerPosition is the minimal position shape the recognizer consumes:
// just a vt_symbol to look up in the contract map.
type RecognizerPosition struct {
	VTSymbol string
}

// matchRule pairs a CombinationType with its required leg count, mirroring
// original_source's MatchRule; the validator is looked up in ValidationRules.
type matchRule struct {
	legCount int
	ctype    CombinationType
}

// recognitionOrder is the exact priority order from spec.md §4.1: first
// match wins. IronCondor must be tried before Straddle/Strangle because it
// also has the shape of two independently-checked 2-leg pairs if tested
// out of order.
var recognitionOrder = []matchRule{
	{legCount: 4, ctype: IronCondor},
	{legCount: 2, ctype: Straddle},
	{legCount: 2, ctype: Strangle},
	{legCount: 2, ctype: VerticalSpread},
	{legCount: 2, ctype: CalendarSpread},
}

// Recognizer classifies a group of positions into a CombinationType by
// replaying the same structural rules Combination.Validate uses, so the
// two can never disagree.
type Recognizer struct{}

// NewRecognizer constructs a Recognizer. It has no configuration: the rule
// table it consults is the package-level ValidationRules registry.
func NewRecognizer() *Recognizer {
	return &Recognizer{}
}

// Recognize scans positions against the given contract map and returns the
// first CombinationType (in recognitionOrder) whose validator accepts the
// resulting leg structures. Empty input, a missing contract, or mixed
// underlyings all yield CUSTOM.
func (r *Recognizer) Recognize(positions []RecognizerPosition, contracts map[string]OptionContract) CombinationType {
	if len(positions) == 0 {
		return Custom
	}

	structures := make([]LegStructure, 0, len(positions))
	underlying := ""
	for _, pos := range positions {
		contract, ok := contracts[pos.VTSymbol]
		if !ok {
			return Custom
		}
		if underlying == "" {
			underlying = contract.UnderlyingSymbol
		} else if underlying != contract.UnderlyingSymbol {
			return Custom
		}
		structures = append(structures, LegStructure{
			OptionType:  contract.OptionType,
			StrikePrice: contract.StrikePrice,
			ExpiryDate:  contract.ExpiryDate,
		})
	}

	for _, rule := range recognitionOrder {
		if len(structures) != rule.legCount {
			continue
		}
		validator := ValidationRules[rule.ctype]
		if validator(structures) == "" {
			return rule.ctype
		}
	}
	return Custom
}
