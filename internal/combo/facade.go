package combo

// CombinationEvaluation bundles the output of a full Greeks+PnL+risk pass
// over one combination.
type CombinationEvaluation struct {
	Greeks     CombinationGreeks
	PnL        CombinationPnL
	RiskResult RiskCheckResult
}

// Facade composes GreeksCalculator, PnLCalculator and RiskChecker in a
// fixed order so callers never have to remember the sequence or forget to
// re-derive risk from freshly computed Greeks.
type Facade struct {
	greeks *GreeksCalculator
	pnl    *PnLCalculator
	risk   *RiskChecker
}

// NewFacade wires the three sub-services. None may be nil.
func NewFacade(greeks *GreeksCalculator, pnl *PnLCalculator, risk *RiskChecker) *Facade {
	if greeks == nil || pnl == nil || risk == nil {
		panic("combo: NewFacade requires non-nil greeks, pnl and risk services")
	}
	return &Facade{greeks: greeks, pnl: pnl, risk: risk}
}

// Evaluate runs greeks -> pnl -> risk(greeks) in that order and returns the
// composed result. The risk check always uses the Greeks computed in this
// call, never a cached value.
func (f *Facade) Evaluate(c *Combination, greeksMap map[string]LegGreeks, currentPrices map[string]float64, multiplier float64, realizedPnLMap map[string]float64) CombinationEvaluation {
	g := f.greeks.Calculate(c, greeksMap, multiplier)
	p := f.pnl.Calculate(c, currentPrices, multiplier, realizedPnLMap)
	rr := f.risk.Check(g)
	return CombinationEvaluation{Greeks: g, PnL: p, RiskResult: rr}
}
