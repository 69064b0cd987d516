package dca

import (
	"math/big"

	nativecommon "dripline/native/common"
)

// ExecuteDCA performs one cycle of the owner's position. Only the configured
// automation executor may call it. Legs are processed independently: a leg
// failure is recorded in the receipt with zero amounts and never consumes
// that leg's principal, and never affects another leg. After the legs the
// treasury is charged the execution fee and the finalization conditions are
// evaluated in priority order; at most one reason is recorded.
func (e *Engine) ExecuteDCA(caller, owner [20]byte, minOuts []*big.Int) (*Receipt, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	if e.venue == nil {
		return nil, errNilVenue
	}
	if caller != e.executor {
		return nil, ErrUnauthorized
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPosition
	}
	if len(minOuts) != len(pos.Legs) {
		return nil, ErrGuardLengthMismatch
	}
	now := e.now()
	if now < pos.LastExecutionTime+pos.CycleInterval {
		return nil, ErrNotMature
	}
	// The fee for this execution must be payable up front so a charge failure
	// cannot strand a half-applied cycle.
	treasury, err := e.state.TreasuryBalance(owner)
	if err != nil {
		return nil, err
	}
	if treasury.Cmp(e.executionFee) < 0 {
		return nil, ErrInsufficientTreasury
	}
	snapshot, err := e.state.RegistryGet()
	if err != nil {
		return nil, err
	}

	receipt := &Receipt{Timestamp: now, Legs: make([]LegResult, len(pos.Legs))}
	failed := 0
	for i := range pos.Legs {
		receipt.Legs[i] = e.executeLeg(pos, i, minOuts[i], snapshot)
		if receipt.Legs[i].Error != "" {
			failed++
		}
	}

	pos.LastExecutionTime = now
	if err := e.state.ReceiptAppend(owner, receipt); err != nil {
		return nil, err
	}
	treasury, err = e.chargeExecutionFee(owner)
	if err != nil {
		return nil, err
	}

	if reason := e.finalizationReason(pos, treasury); reason != "" {
		if err := e.disarm(pos, reason); err != nil {
			return nil, err
		}
	}
	if err := e.state.PositionPut(pos); err != nil {
		return nil, err
	}
	e.emit(NewExecutionCompletedEvent(owner, now, len(pos.Legs), failed, e.executionFee))
	return receipt.Clone(), nil
}

// executeLeg runs a single leg and returns its outcome. All failure paths are
// captured in the result; this function never aborts the surrounding call.
func (e *Engine) executeLeg(pos *Position, i int, minOut *big.Int, snapshot *RegistrySnapshot) LegResult {
	leg := &pos.Legs[i]
	result := LegResult{
		AssetIn:   pos.PrincipalAsset,
		AssetOut:  leg.Asset,
		AmountIn:  big.NewInt(0),
		AmountOut: big.NewInt(0),
	}
	// The registry may have changed since eligibility was checked.
	if !pairAllowed(snapshot, pos.PrincipalAsset, leg.Asset) {
		result.Error = ReasonInvalidPair
		return result
	}
	amountIn := pos.LegAmountIn(i)
	if ok, reason := e.legFundsAvailable(pos, amountIn); !ok {
		result.Error = reason
		return result
	}
	out, err := e.venue.Convert(pos.PrincipalAsset, leg.Asset, leg.Route, amountIn, minOut)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if err := e.consumePrincipal(pos, amountIn); err != nil {
		result.Error = err.Error()
		return result
	}
	leg.Accumulated = new(big.Int).Add(leg.Accumulated, out)
	result.AmountIn = amountIn
	result.AmountOut = out
	return result
}

// legFundsAvailable checks whether this leg's principal share can still be
// sourced. Earlier legs in the same execution may have consumed part of the
// escrow or allowance.
func (e *Engine) legFundsAvailable(pos *Position, amountIn *big.Int) (bool, string) {
	switch pos.Mode {
	case FundingWalletPull:
		allowance, err := e.state.WalletAllowance(pos.Owner, pos.PrincipalAsset)
		if err != nil {
			return false, err.Error()
		}
		if allowance.Cmp(amountIn) < 0 {
			return false, ReasonInsufficientApproval
		}
		balance, err := e.state.WalletBalance(pos.Owner, pos.PrincipalAsset)
		if err != nil {
			return false, err.Error()
		}
		if balance.Cmp(amountIn) < 0 {
			return false, ReasonInsufficientWalletFunds
		}
	default:
		if pos.Escrow == nil || pos.Escrow.Cmp(amountIn) < 0 {
			return false, ReasonInsufficientFunds
		}
	}
	return true, ""
}

// consumePrincipal decrements the leg's principal share from escrow or pulls
// it from the owner's wallet, depending on the funding mode.
func (e *Engine) consumePrincipal(pos *Position, amountIn *big.Int) error {
	switch pos.Mode {
	case FundingWalletPull:
		if err := e.state.WalletDebit(pos.Owner, pos.PrincipalAsset, amountIn); err != nil {
			return err
		}
		allowance, err := e.state.WalletAllowance(pos.Owner, pos.PrincipalAsset)
		if err != nil {
			return err
		}
		return e.state.WalletAllowanceSet(pos.Owner, pos.PrincipalAsset, new(big.Int).Sub(allowance, amountIn))
	default:
		pos.Escrow = new(big.Int).Sub(pos.Escrow, amountIn)
		return nil
	}
}

// finalizationReason evaluates the post-execution disarm conditions in
// priority order and returns the single applicable reason, or empty when the
// position stays armed.
func (e *Engine) finalizationReason(pos *Position, treasury *big.Int) string {
	switch pos.Mode {
	case FundingWalletPull:
		allowance, err := e.state.WalletAllowance(pos.Owner, pos.PrincipalAsset)
		if err != nil || allowance.Cmp(pos.AmountPerCycle) < 0 {
			return ReasonInsufficientApproval
		}
		balance, err := e.state.WalletBalance(pos.Owner, pos.PrincipalAsset)
		if err != nil || balance.Cmp(pos.AmountPerCycle) < 0 {
			return ReasonInsufficientWalletFunds
		}
	default:
		if pos.Escrow == nil || pos.Escrow.Cmp(pos.AmountPerCycle) < 0 {
			return ReasonInsufficientFunds
		}
	}
	if treasury.Cmp(e.executionFee) < 0 {
		return ReasonTreasuryOutOfGas
	}
	return ""
}
