package dca

import (
	"math/big"

	nativecommon "dripline/native/common"
)

// SetPosition validates and installs a recurring-conversion position for the
// owner, replacing any prior record. Unclaimed leg balances and leftover
// escrow from the prior position are paid out to the owner's wallet first.
// The task trigger is armed only when every funding precondition already
// holds; otherwise the position is installed disarmed and can be re-armed via
// deposits or ReInitPosition.
func (e *Engine) SetPosition(owner [20]byte, spec PositionSpec) (*Position, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	snapshot, err := e.state.RegistryGet()
	if err != nil {
		return nil, err
	}
	pos, err := e.buildPosition(owner, spec, snapshot)
	if err != nil {
		return nil, err
	}

	prior, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return nil, err
	}
	if ok {
		if moved, err := e.payoutLegs(prior); err != nil {
			return nil, err
		} else if moved {
			e.emit(NewLegsWithdrawnEvent(owner, prior.Legs))
		}
		if prior.Escrow != nil && prior.Escrow.Sign() > 0 {
			if err := e.state.WalletCredit(owner, prior.PrincipalAsset, prior.Escrow); err != nil {
				return nil, err
			}
		}
		if prior.Armed() {
			if err := e.disarm(prior, ""); err != nil {
				return nil, err
			}
		}
	}

	if spec.Mode == FundingPreFunded && spec.Deposit != nil && spec.Deposit.Sign() > 0 {
		if err := e.state.WalletDebit(owner, pos.PrincipalAsset, spec.Deposit); err != nil {
			return nil, err
		}
		pos.Escrow = new(big.Int).Set(spec.Deposit)
	}

	if err := e.armDeficiency(pos); err == nil {
		if err := e.arm(pos); err != nil {
			return nil, err
		}
	}
	if err := e.state.PositionPut(pos); err != nil {
		return nil, err
	}
	e.emit(NewPositionSetEvent(pos))
	return pos.Clone(), nil
}

// buildPosition checks every position invariant against the registry snapshot
// and returns the fresh record. Validation failures surface one distinct
// error per violated invariant.
func (e *Engine) buildPosition(owner [20]byte, spec PositionSpec, snapshot *RegistrySnapshot) (*Position, error) {
	if !spec.Mode.Valid() {
		return nil, ErrInvalidFundingMode
	}
	if spec.Mode == FundingWalletPull && spec.Deposit != nil && spec.Deposit.Sign() > 0 {
		return nil, ErrInvalidFundingMode
	}
	principal := NormalizeAsset(spec.PrincipalAsset)
	if !snapshot.IsAllowed(principal) {
		return nil, ErrAssetNotAllowed
	}
	if len(spec.Legs) == 0 {
		return nil, ErrWeightSumInvalid
	}
	var weightSum uint64
	legs := make([]OutputLeg, len(spec.Legs))
	for i, leg := range spec.Legs {
		asset := NormalizeAsset(leg.Asset)
		if !snapshot.IsAllowed(asset) {
			return nil, ErrAssetNotAllowed
		}
		if leg.WeightBps == 0 {
			return nil, ErrZeroWeight
		}
		if asset == principal {
			return nil, ErrSameAssetBothSides
		}
		if snapshot.IsPairBlacklisted(principal, asset) {
			return nil, ErrPairBlacklisted
		}
		if leg.Route == "" {
			return nil, ErrInvalidRoute
		}
		if leg.MaxSlippageBps < e.slippageFloorBps {
			return nil, ErrSlippageBelowFloor
		}
		if leg.MaxSlippageBps > 10_000 {
			return nil, ErrSlippageAboveCap
		}
		weightSum += uint64(leg.WeightBps)
		legs[i] = OutputLeg{
			Asset:          asset,
			WeightBps:      leg.WeightBps,
			MaxSlippageBps: leg.MaxSlippageBps,
			Route:          leg.Route,
			Accumulated:    big.NewInt(0),
		}
	}
	if weightSum != 10_000 {
		return nil, ErrWeightSumInvalid
	}
	if spec.AmountPerCycle == nil || spec.AmountPerCycle.Sign() <= 0 {
		return nil, ErrZeroCycleAmount
	}
	if spec.CycleInterval < MinCycleInterval {
		return nil, ErrIntervalTooShort
	}
	return &Position{
		Owner:          owner,
		PrincipalAsset: principal,
		Legs:           legs,
		AmountPerCycle: new(big.Int).Set(spec.AmountPerCycle),
		CycleInterval:  spec.CycleInterval,
		MaxGasPrice:    cloneBigInt(spec.MaxGasPrice),
		Mode:           spec.Mode,
		Escrow:         big.NewInt(0),
	}, nil
}

// DepositPrincipal adds escrowed principal to a pre-funded position. Curing a
// principal deficiency automatically re-arms a disarmed position.
func (e *Engine) DepositPrincipal(owner [20]byte, amount *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPosition
	}
	if pos.Mode != FundingPreFunded {
		return ErrNotPreFunded
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.state.WalletDebit(owner, pos.PrincipalAsset, amount); err != nil {
		return err
	}
	pos.Escrow = new(big.Int).Add(pos.Escrow, amount)
	if _, err := e.maybeRearm(pos); err != nil {
		return err
	}
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(NewPrincipalDepositedEvent(owner, amount, pos.Escrow))
	return nil
}

// WithdrawPrincipal returns escrowed principal to the owner's wallet. Dropping
// the remaining escrow below one full cycle disarms the task. Not pause-gated.
func (e *Engine) WithdrawPrincipal(owner [20]byte, amount *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPosition
	}
	if pos.Mode != FundingPreFunded {
		return ErrNotPreFunded
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if pos.Escrow == nil || pos.Escrow.Cmp(amount) < 0 {
		return ErrInsufficientPrincipal
	}
	pos.Escrow = new(big.Int).Sub(pos.Escrow, amount)
	if err := e.state.WalletCredit(owner, pos.PrincipalAsset, amount); err != nil {
		return err
	}
	if pos.Armed() && pos.Escrow.Cmp(pos.AmountPerCycle) < 0 {
		if err := e.disarm(pos, ReasonInsufficientFunds); err != nil {
			return err
		}
	}
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(NewPrincipalWithdrawnEvent(owner, amount, pos.Escrow))
	return nil
}

// ApproveWalletPull records the standing authorization that lets the engine
// pull principal from the owner's wallet in wallet-pull mode. The allowance is
// an absolute amount, decremented on every successful pull.
func (e *Engine) ApproveWalletPull(owner [20]byte, asset string, amount *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrZeroAmount
	}
	if err := e.state.WalletAllowanceSet(owner, NormalizeAsset(asset), amount); err != nil {
		return err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if ok && pos.Mode == FundingWalletPull && !pos.Armed() {
		rearmed, err := e.maybeRearm(pos)
		if err != nil {
			return err
		}
		if rearmed {
			if err := e.state.PositionPut(pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReInitPosition re-evaluates the arming preconditions of an existing,
// currently disarmed position and re-arms it when they now hold. Fails with
// the precise unmet deficiency otherwise.
func (e *Engine) ReInitPosition(owner [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPosition
	}
	if pos.Armed() {
		return ErrTaskAlreadyArmed
	}
	if err := e.armDeficiency(pos); err != nil {
		return err
	}
	if err := e.arm(pos); err != nil {
		return err
	}
	return e.state.PositionPut(pos)
}

// ClaimLegBalances pays every accumulated leg output to the owner's wallet.
// Not pause-gated.
func (e *Engine) ClaimLegBalances(owner [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPosition
	}
	moved, err := e.payoutLegs(pos)
	if err != nil {
		return err
	}
	if !moved {
		return nil
	}
	if err := e.state.PositionPut(pos); err != nil {
		return err
	}
	e.emit(NewLegsWithdrawnEvent(owner, pos.Legs))
	return nil
}

// ExitPosition tears the position down: pays out leg balances, refunds any
// escrowed principal and the entire treasury, disarms the trigger, and
// deletes the record. Fund recovery stays open while paused.
func (e *Engine) ExitPosition(owner [20]byte) error {
	if err := e.requireState(); err != nil {
		return err
	}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPosition
	}
	if _, err := e.payoutLegs(pos); err != nil {
		return err
	}
	if pos.Escrow != nil && pos.Escrow.Sign() > 0 {
		if err := e.state.WalletCredit(owner, pos.PrincipalAsset, pos.Escrow); err != nil {
			return err
		}
		pos.Escrow = big.NewInt(0)
	}
	treasury, err := e.state.TreasuryBalance(owner)
	if err != nil {
		return err
	}
	if treasury.Sign() > 0 {
		if err := e.state.WalletCredit(owner, e.feeAsset, treasury); err != nil {
			return err
		}
		if err := e.state.TreasurySet(owner, big.NewInt(0)); err != nil {
			return err
		}
	}
	if err := e.disarm(pos, ReasonUserExited); err != nil {
		return err
	}
	if err := e.state.PositionDelete(owner); err != nil {
		return err
	}
	e.emit(NewPositionExitedEvent(owner, ReasonUserExited))
	return nil
}

// FetchUserData aggregates the position, treasury balance, and receipt history
// for an address. Never fails for an address with no position; read-only and
// idempotent.
func (e *Engine) FetchUserData(owner [20]byte) (*UserData, error) {
	if err := e.requireState(); err != nil {
		return nil, err
	}
	data := &UserData{Treasury: big.NewInt(0), Receipts: []Receipt{}}
	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return nil, err
	}
	if ok {
		data.Position = pos.Clone()
	}
	treasury, err := e.state.TreasuryBalance(owner)
	if err != nil {
		return nil, err
	}
	data.Treasury = treasury
	receipts, err := e.state.Receipts(owner)
	if err != nil {
		return nil, err
	}
	if receipts != nil {
		data.Receipts = receipts
	}
	return data, nil
}
