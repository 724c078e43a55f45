package combo

import "time"

// LegSnapshot is the JSON-friendly encoding of a Leg.
type LegSnapshot struct {
	VTSymbol    string    `json:"vt_symbol"`
	OptionType  string    `json:"option_type"`
	StrikePrice float64   `json:"strike_price"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Direction   string    `json:"direction"`
	Volume      float64   `json:"volume"`
	OpenPrice   float64   `json:"open_price"`
}

// CombinationSnapshot is the JSON-friendly encoding of a Combination.
type CombinationSnapshot struct {
	CombinationID      string        `json:"combination_id"`
	CombinationType    string        `json:"combination_type"`
	UnderlyingVTSymbol string        `json:"underlying_vt_symbol"`
	Legs               []LegSnapshot `json:"legs"`
	Status             string        `json:"status"`
	CreateTime         time.Time     `json:"create_time"`
	CloseTime          *time.Time    `json:"close_time,omitempty"`
}

// AggregateSnapshot is the structurally-preserved round-trip form of an
// Aggregate: the combination registry plus the reverse symbol index. Pending
// domain events are intentionally excluded, matching the source's
// to_snapshot (events are transient, not durable state).
type AggregateSnapshot struct {
	Combinations map[string]CombinationSnapshot `json:"combinations"`
	SymbolIndex  map[string][]string            `json:"symbol_index"`
}

func legToSnapshot(l Leg) LegSnapshot {
	return LegSnapshot{
		VTSymbol:    l.VTSymbol,
		OptionType:  string(l.OptionType),
		StrikePrice: l.StrikePrice,
		ExpiryDate:  l.ExpiryDate,
		Direction:   string(l.Direction),
		Volume:      l.Volume,
		OpenPrice:   l.OpenPrice,
	}
}

func legFromSnapshot(s LegSnapshot) Leg {
	return Leg{
		VTSymbol:    s.VTSymbol,
		OptionType:  OptionType(s.OptionType),
		StrikePrice: s.StrikePrice,
		ExpiryDate:  s.ExpiryDate,
		Direction:   Direction(s.Direction),
		Volume:      s.Volume,
		OpenPrice:   s.OpenPrice,
	}
}

func combinationToSnapshot(c *Combination) CombinationSnapshot {
	legs := make([]LegSnapshot, len(c.Legs))
	for i, leg := range c.Legs {
		legs[i] = legToSnapshot(leg)
	}
	return CombinationSnapshot{
		CombinationID:      c.CombinationID,
		CombinationType:    string(c.CombinationType),
		UnderlyingVTSymbol: c.UnderlyingVTSymbol,
		Legs:               legs,
		Status:             string(c.Status),
		CreateTime:         c.CreateTime,
		CloseTime:          c.CloseTime,
	}
}

func combinationFromSnapshot(s CombinationSnapshot) *Combination {
	legs := make([]Leg, len(s.Legs))
	for i, leg := range s.Legs {
		legs[i] = legFromSnapshot(leg)
	}
	return &Combination{
		CombinationID:      s.CombinationID,
		CombinationType:    CombinationType(s.CombinationType),
		UnderlyingVTSymbol: s.UnderlyingVTSymbol,
		Legs:               legs,
		Status:             CombinationStatus(s.Status),
		CreateTime:         s.CreateTime,
		CloseTime:          s.CloseTime,
	}
}

// ToSnapshot produces a structurally-preserved, JSON-ready copy of the
// aggregate's state.
func (a *Aggregate) ToSnapshot() AggregateSnapshot {
	combos := make(map[string]CombinationSnapshot, len(a.combinations))
	for id, c := range a.combinations {
		combos[id] = combinationToSnapshot(c)
	}
	index := make(map[string][]string, len(a.symbolIndex))
	for symbol, ids := range a.symbolIndex {
		list := make([]string, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		index[symbol] = list
	}
	return AggregateSnapshot{Combinations: combos, SymbolIndex: index}
}

// FromSnapshot rebuilds an Aggregate from a previously captured snapshot.
// Pending events start empty, matching the fresh-process semantics of a
// reload.
func FromSnapshot(snapshot AggregateSnapshot, nowFn func() time.Time) *Aggregate {
	a := NewAggregate(nowFn)
	for id, cs := range snapshot.Combinations {
		a.combinations[id] = combinationFromSnapshot(cs)
	}
	for symbol, ids := range snapshot.SymbolIndex {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		a.symbolIndex[symbol] = set
	}
	return a
}
