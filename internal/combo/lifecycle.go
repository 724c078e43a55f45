package combo

import (
	"fmt"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/util"
)

// LegNotFoundError reports that generate_adjust_instruction was asked about
// a vt_symbol absent from the combination's legs.
type LegNotFoundError struct {
	VTSymbol string
}

func (e *LegNotFoundError) Error() string {
	return fmt.Sprintf("leg not found: %s", e.VTSymbol)
}

// AdjustResult is the outcome of generate_adjust_instruction. Instruction is
// nil iff NoOp is true (requested volume equals the current volume).
type AdjustResult struct {
	Instruction *OrderInstruction
	NoOp        bool
}

// LifecycleService turns a Combination's legs into OrderInstruction lists
// for the broker gateway.
type LifecycleService struct {
	tickSize float64
}

// NewLifecycleService constructs a LifecycleService. tickSize rounds every
// generated instruction's price to a valid increment: down for instructions
// that sell (a credit should never round in the trader's favor) and up for
// instructions that buy (a debit should never round in the trader's favor).
// A tickSize of 0 disables rounding.
func NewLifecycleService(tickSize float64) *LifecycleService {
	return &LifecycleService{tickSize: tickSize}
}

// roundForDirection snaps price to s.tickSize in the direction that never
// favors the trader: floor for a sell (credit), ceil for a buy (debit).
func (s *LifecycleService) roundForDirection(dir InstructionDirection, price float64) float64 {
	if dir == DirShort {
		return util.FloorToTick(price, s.tickSize)
	}
	return util.CeilToTick(price, s.tickSize)
}

// GenerateOpenInstructions emits one OPEN instruction per leg, in leg order,
// with the leg's own direction and volume. Price comes from priceMap when
// present, else 0.
func (s *LifecycleService) GenerateOpenInstructions(c *Combination, priceMap map[string]float64) []OrderInstruction {
	out := make([]OrderInstruction, 0, len(c.Legs))
	for _, leg := range c.Legs {
		dir := directionToInstruction(leg.Direction)
		out = append(out, OrderInstruction{
			VTSymbol:  leg.VTSymbol,
			Direction: dir,
			Offset:    Open,
			Volume:    leg.Volume,
			Price:     s.roundForDirection(dir, priceMap[leg.VTSymbol]),
			OrderType: Limit,
		})
	}
	return out
}

// GenerateCloseInstructions emits one CLOSE instruction per active
// (volume>0) leg, with direction reversed from the leg's own direction.
// Legs already at zero volume are omitted.
func (s *LifecycleService) GenerateCloseInstructions(c *Combination, priceMap map[string]float64) []OrderInstruction {
	active := c.ActiveLegs()
	out := make([]OrderInstruction, 0, len(active))
	for _, leg := range active {
		dir := directionToInstruction(reverseDirection(leg.Direction))
		out = append(out, OrderInstruction{
			VTSymbol:  leg.VTSymbol,
			Direction: dir,
			Offset:    CloseOffset,
			Volume:    leg.Volume,
			Price:     s.roundForDirection(dir, priceMap[leg.VTSymbol]),
			OrderType: Limit,
		})
	}
	return out
}

// GenerateAdjustInstruction resizes one leg to newVolume. If the leg is
// absent, returns LegNotFoundError. If newVolume equals the leg's current
// volume, returns a NoOp result. If newVolume is larger, returns an OPEN
// instruction in the leg's own direction for the delta; if smaller, a CLOSE
// instruction with direction reversed for the delta.
func (s *LifecycleService) GenerateAdjustInstruction(c *Combination, legVTSymbol string, newVolume float64, price float64) (AdjustResult, error) {
	var target *Leg
	for i := range c.Legs {
		if c.Legs[i].VTSymbol == legVTSymbol {
			target = &c.Legs[i]
			break
		}
	}
	if target == nil {
		return AdjustResult{}, &LegNotFoundError{VTSymbol: legVTSymbol}
	}

	diff := newVolume - target.Volume
	if diff == 0 {
		return AdjustResult{NoOp: true}, nil
	}

	if diff > 0 {
		dir := directionToInstruction(target.Direction)
		return AdjustResult{Instruction: &OrderInstruction{
			VTSymbol:  target.VTSymbol,
			Direction: dir,
			Offset:    Open,
			Volume:    diff,
			Price:     s.roundForDirection(dir, price),
			OrderType: Limit,
		}}, nil
	}

	dir := directionToInstruction(reverseDirection(target.Direction))
	return AdjustResult{Instruction: &OrderInstruction{
		VTSymbol:  target.VTSymbol,
		Direction: dir,
		Offset:    CloseOffset,
		Volume:    -diff,
		Price:     s.roundForDirection(dir, price),
		OrderType: Limit,
	}}, nil
}
