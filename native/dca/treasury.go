package dca

import "math/big"

// DepositTreasury moves fee-asset funds from the owner's wallet into their
// treasury balance. Curing a treasury deficiency automatically re-arms a
// disarmed position.
func (e *Engine) DepositTreasury(owner [20]byte, amount *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if err := e.state.WalletDebit(owner, e.feeAsset, amount); err != nil {
		return err
	}
	balance, err := e.state.TreasuryBalance(owner)
	if err != nil {
		return err
	}
	balance = new(big.Int).Add(balance, amount)
	if err := e.state.TreasurySet(owner, balance); err != nil {
		return err
	}
	e.emit(NewTreasuryDepositedEvent(owner, amount, balance))

	pos, ok, err := e.state.PositionGet(owner)
	if err != nil {
		return err
	}
	if ok && !pos.Armed() {
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

// WithdrawTreasury returns fee-asset funds to the owner's wallet. Fund
// recovery must never be blockable, so this path is not pause-gated.
func (e *Engine) WithdrawTreasury(owner [20]byte, amount *big.Int) error {
	if err := e.requireState(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	balance, err := e.state.TreasuryBalance(owner)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientTreasury
	}
	balance = new(big.Int).Sub(balance, amount)
	if err := e.state.TreasurySet(owner, balance); err != nil {
		return err
	}
	if err := e.state.WalletCredit(owner, e.feeAsset, amount); err != nil {
		return err
	}
	e.emit(NewTreasuryWithdrawnEvent(owner, amount, balance))
	return nil
}

// chargeExecutionFee debits the owner's treasury and compensates the executor.
// Returns ErrInsufficientTreasury when the current fee cannot be covered.
func (e *Engine) chargeExecutionFee(owner [20]byte) (*big.Int, error) {
	if e.executionFee.Sign() == 0 {
		balance, err := e.state.TreasuryBalance(owner)
		if err != nil {
			return nil, err
		}
		return balance, nil
	}
	balance, err := e.state.TreasuryBalance(owner)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(e.executionFee) < 0 {
		return nil, ErrInsufficientTreasury
	}
	balance = new(big.Int).Sub(balance, e.executionFee)
	if err := e.state.TreasurySet(owner, balance); err != nil {
		return nil, err
	}
	if err := e.state.WalletCredit(e.executor, e.feeAsset, e.executionFee); err != nil {
		return nil, err
	}
	return balance, nil
}
