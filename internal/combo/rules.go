package combo

// Validator is a pure function over an ordered list of LegStructure,
// returning "" when the structure satisfies the combination type, or a
// human-readable reason otherwise. ValidationRules is the single registry
// consulted by both the recognizer (recognizer.go) and Combination.Validate;
// they agree by construction because both read this same table.
type Validator func(legs []LegStructure) string

// ValidationRules is built once at package init and never mutated,
// mirroring the source's module-level VALIDATION_RULES dict.
var ValidationRules map[CombinationType]Validator

func init() {
	ValidationRules = map[CombinationType]Validator{
		Straddle:       validateStraddle,
		Strangle:       validateStrangle,
		VerticalSpread: validateVerticalSpread,
		CalendarSpread: validateCalendarSpread,
		IronCondor:     validateIronCondor,
		Custom:         validateCustom,
	}
}

func validateStraddle(legs []LegStructure) string {
	if len(legs) != 2 {
		return "straddle requires exactly 2 legs"
	}
	a, b := legs[0], legs[1]
	if !a.ExpiryDate.Equal(b.ExpiryDate) {
		return "straddle legs must share expiry"
	}
	if a.StrikePrice != b.StrikePrice {
		return "straddle legs must share strike"
	}
	if a.OptionType == b.OptionType {
		return "straddle requires one call and one put"
	}
	return ""
}

func validateStrangle(legs []LegStructure) string {
	if len(legs) != 2 {
		return "strangle requires exactly 2 legs"
	}
	a, b := legs[0], legs[1]
	if !a.ExpiryDate.Equal(b.ExpiryDate) {
		return "strangle legs must share expiry"
	}
	if a.StrikePrice == b.StrikePrice {
		return "strangle legs must have different strikes"
	}
	if a.OptionType == b.OptionType {
		return "strangle requires one call and one put"
	}
	return ""
}

func validateVerticalSpread(legs []LegStructure) string {
	if len(legs) != 2 {
		return "vertical spread requires exactly 2 legs"
	}
	a, b := legs[0], legs[1]
	if !a.ExpiryDate.Equal(b.ExpiryDate) {
		return "vertical spread legs must share expiry"
	}
	if a.OptionType != b.OptionType {
		return "vertical spread legs must share option type"
	}
	if a.StrikePrice == b.StrikePrice {
		return "vertical spread legs must have different strikes"
	}
	return ""
}

func validateCalendarSpread(legs []LegStructure) string {
	if len(legs) != 2 {
		return "calendar spread requires exactly 2 legs"
	}
	a, b := legs[0], legs[1]
	if a.ExpiryDate.Equal(b.ExpiryDate) {
		return "calendar spread legs must have different expiries"
	}
	if a.StrikePrice != b.StrikePrice {
		return "calendar spread legs must share strike"
	}
	if a.OptionType != b.OptionType {
		return "calendar spread legs must share option type"
	}
	return ""
}

func validateIronCondor(legs []LegStructure) string {
	if len(legs) != 4 {
		return "iron condor requires exactly 4 legs"
	}
	expiry := legs[0].ExpiryDate
	var puts, calls []LegStructure
	for _, leg := range legs {
		if !leg.ExpiryDate.Equal(expiry) {
			return "iron condor legs must share a single expiry"
		}
		if leg.OptionType == Put {
			puts = append(puts, leg)
		} else {
			calls = append(calls, leg)
		}
	}
	if len(puts) != 2 || len(calls) != 2 {
		return "iron condor requires exactly 2 puts and 2 calls"
	}
	if puts[0].StrikePrice == puts[1].StrikePrice {
		return "iron condor puts must have distinct strikes"
	}
	if calls[0].StrikePrice == calls[1].StrikePrice {
		return "iron condor calls must have distinct strikes"
	}
	return ""
}

func validateCustom(legs []LegStructure) string {
	if len(legs) < 1 {
		return "custom combination requires at least 1 leg"
	}
	return ""
}
