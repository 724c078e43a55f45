package combo

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate owns the registry of Combinations, the reverse vt_symbol index,
// and the pending domain-event queue. Per spec.md §5 it is touched only
// from the main thread; it carries no internal locking.
type Aggregate struct {
	combinations map[string]*Combination
	symbolIndex  map[string]map[string]struct{}
	events       []DomainEvent
	now          func() time.Time
}

// NewAggregate constructs an empty Aggregate. nowFn defaults to time.Now
// when nil.
func NewAggregate(nowFn func() time.Time) *Aggregate {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Aggregate{
		combinations: make(map[string]*Combination),
		symbolIndex:  make(map[string]map[string]struct{}),
		now:          nowFn,
	}
}

// Register validates the combination's structure, assigns a UUID
// combination_id when the caller left one unset, stores it, and updates the
// reverse symbol index. Returns *InvalidCombinationError on a structural
// failure; the combination is not stored in that case.
func (a *Aggregate) Register(c *Combination) error {
	if c.CombinationID == "" {
		c.CombinationID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CreateTime.IsZero() {
		c.CreateTime = a.now()
	}

	a.combinations[c.CombinationID] = c
	for symbol := range c.LegSymbols() {
		set, ok := a.symbolIndex[symbol]
		if !ok {
			set = make(map[string]struct{})
			a.symbolIndex[symbol] = set
		}
		set[c.CombinationID] = struct{}{}
	}
	return nil
}

// GetByID is a pure query.
func (a *Aggregate) GetByID(id string) (*Combination, bool) {
	c, ok := a.combinations[id]
	return c, ok
}

// GetByUnderlying returns every combination whose UnderlyingVTSymbol
// matches, in no particular order.
func (a *Aggregate) GetByUnderlying(underlying string) []*Combination {
	var out []*Combination
	for _, c := range a.combinations {
		if c.UnderlyingVTSymbol == underlying {
			out = append(out, c)
		}
	}
	return out
}

// GetBySymbol returns every combination referencing vt_symbol among its
// legs, via the reverse index.
func (a *Aggregate) GetBySymbol(vtSymbol string) []*Combination {
	ids, ok := a.symbolIndex[vtSymbol]
	if !ok {
		return nil
	}
	out := make([]*Combination, 0, len(ids))
	for id := range ids {
		if c, ok := a.combinations[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// GetActive returns every combination whose status is neither CLOSED.
func (a *Aggregate) GetActive() []*Combination {
	var out []*Combination
	for _, c := range a.combinations {
		if c.Status != Closed {
			out = append(out, c)
		}
	}
	return out
}

// SyncStatus reconciles every combination touching vt_symbol against the
// supplied set of closed_symbols: for each, let leg_syms be its leg
// symbols and inter = leg_syms ∩ closed_symbols.
//   - inter == leg_syms            → CLOSED (CloseTime recorded)
//   - inter ⊂ leg_syms, inter ≠ ∅  → PARTIALLY_CLOSED
//   - inter == ∅                   → no change
//
// A CombinationStatusChanged event is appended iff and only if the status
// actually changed, making repeated calls with the same closed_symbols
// idempotent.
func (a *Aggregate) SyncStatus(vtSymbol string, closedSymbols map[string]struct{}) {
	for _, c := range a.GetBySymbol(vtSymbol) {
		newStatus, changed := nextStatus(c, closedSymbols)
		if !changed {
			continue
		}
		old := c.Status
		c.Status = newStatus
		if newStatus == Closed {
			now := a.now()
			c.CloseTime = &now
		}
		a.events = append(a.events, CombinationStatusChanged{
			CombinationID:   c.CombinationID,
			OldStatus:       old,
			NewStatus:       newStatus,
			CombinationType: c.CombinationType,
		})
	}
}

// nextStatus computes the candidate status for one combination and reports
// whether it differs from the current one.
func nextStatus(c *Combination, closedSymbols map[string]struct{}) (CombinationStatus, bool) {
	legSyms := c.LegSymbols()
	interCount := 0
	for sym := range legSyms {
		if _, ok := closedSymbols[sym]; ok {
			interCount++
		}
	}

	var candidate CombinationStatus
	switch {
	case interCount == len(legSyms) && interCount > 0:
		candidate = Closed
	case interCount > 0:
		candidate = PartiallyClosed
	default:
		return c.Status, false
	}

	if candidate == c.Status {
		return c.Status, false
	}
	return candidate, true
}

// PopDomainEvents drains and returns the pending event queue.
func (a *Aggregate) PopDomainEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

// HasPendingEvents reports whether PopDomainEvents would return anything.
func (a *Aggregate) HasPendingEvents() bool {
	return len(a.events) > 0
}
