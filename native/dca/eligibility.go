package dca

import "math/big"

// CheckExecutable is the stateless predicate polled by the automation actor.
// It reports whether the owner's position is due, affordable, and acceptably
// priced right now and, when it is, computes the per-leg minimum-output
// guards the executor must pass to ExecuteDCA.
//
// The checks short-circuit in a fixed order and the first failing one is
// returned as the reason. The function has no side effects and may be invoked
// concurrently by any number of observers.
func (e *Engine) CheckExecutable(owner [20]byte, currentGasPrice *big.Int) (bool, []*big.Int, string, error) {
	if err := e.requireState(); err != nil {
		return false, nil, "", err
	}
	if e.venue == nil {
		return false, nil, "", errNilVenue
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return false, nil, "", err
	}
	if !ok {
		return false, nil, ReasonNoPosition, nil
	}
	if e.now() < pos.LastExecutionTime+pos.CycleInterval {
		return false, nil, ReasonNotMature, nil
	}
	if pos.MaxGasPrice != nil && currentGasPrice != nil && currentGasPrice.Cmp(pos.MaxGasPrice) > 0 {
		return false, nil, ReasonGasTooExpensive, nil
	}
	minOuts := make([]*big.Int, len(pos.Legs))
	for i := range pos.Legs {
		quoted, err := e.venue.Quote(pos.PrincipalAsset, pos.Legs[i].Asset, pos.Legs[i].Route, pos.LegAmountIn(i))
		if err != nil {
			return false, nil, err.Error(), nil
		}
		minOuts[i] = minOutFor(quoted, pos.Legs[i].MaxSlippageBps)
	}
	return true, minOuts, "", nil
}

// minOutFor applies the leg's slippage tolerance to a quoted output,
// quotedOut * (10000 - maxSlippageBps) / 10000.
func minOutFor(quotedOut *big.Int, maxSlippageBps uint32) *big.Int {
	out := new(big.Int).Mul(quotedOut, big.NewInt(10_000-int64(maxSlippageBps)))
	return out.Quo(out, basisPoints)
}
