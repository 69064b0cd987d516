package dca

import (
	"math/big"
	"time"

	"dripline/core/events"
	"dripline/core/types"
	nativecommon "dripline/native/common"
)

var basisPoints = big.NewInt(10_000)

const moduleName = "dca"

// engineState is the subset of state-manager functionality the engine needs.
// The wallet methods model the owner's external balances and the standing
// pull allowance granted to the module.
type engineState interface {
	PositionGet(owner [20]byte) (*Position, bool, error)
	PositionPut(pos *Position) error
	PositionDelete(owner [20]byte) error

	TreasuryBalance(owner [20]byte) (*big.Int, error)
	TreasurySet(owner [20]byte, amount *big.Int) error

	ReceiptAppend(owner [20]byte, receipt *Receipt) error
	Receipts(owner [20]byte) ([]Receipt, error)

	RegistryGet() (*RegistrySnapshot, error)
	RegistryPut(snapshot *RegistrySnapshot) error

	WalletBalance(owner [20]byte, asset string) (*big.Int, error)
	WalletCredit(owner [20]byte, asset string, amount *big.Int) error
	WalletDebit(owner [20]byte, asset string, amount *big.Int) error
	WalletAllowance(owner [20]byte, asset string) (*big.Int, error)
	WalletAllowanceSet(owner [20]byte, asset string, amount *big.Int) error
}

type dcaEvent struct {
	evt *types.Event
}

func (e dcaEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dcaEvent) Event() *types.Event { return e.evt }

// Engine wires the recurring-conversion business logic with external state,
// the exchange venue, and the task registrar. Mutating entry points are
// serialized by the surrounding ledger; the engine itself holds no locks.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	registrar TaskRegistrar
	venue     Venue
	pauses    nativecommon.PauseView
	nowFn     func() int64

	registryOwner    [20]byte
	executor         [20]byte
	feeAsset         string
	executionFee     *big.Int
	slippageFloorBps uint32
}

// NewEngine creates an engine gated to the given registry owner and automation
// executor, with a no-op event emitter. Callers wire the remaining
// collaborators via the Set* methods.
func NewEngine(registryOwner, executor [20]byte) *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
		registryOwner: registryOwner,
		executor:      executor,
		executionFee:  big.NewInt(0),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVenue configures the external quote/exchange venue.
func (e *Engine) SetVenue(venue Venue) { e.venue = venue }

// SetRegistrar configures the external task registrar.
func (e *Engine) SetRegistrar(registrar TaskRegistrar) { e.registrar = registrar }

// SetPauses wires the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetExecutionFee configures the automation compensation charged to the
// owner's treasury on every execution, denominated in the fee asset.
func (e *Engine) SetExecutionFee(asset string, amount *big.Int) {
	e.feeAsset = NormalizeAsset(asset)
	e.executionFee = cloneBigInt(amount)
}

// SetSlippageFloor configures the minimum per-leg slippage tolerance accepted
// at position creation. Tolerances below the floor would make conversions fail
// on any realistic quote drift.
func (e *Engine) SetSlippageFloor(bps uint32) { e.slippageFloorBps = bps }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dcaEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireState() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// armDeficiency reports the first unmet arming precondition for the position,
// or nil when the position can be armed. The check order mirrors the
// finalization priority so arming and finalization never disagree about which
// deficiency to surface.
func (e *Engine) armDeficiency(pos *Position) error {
	switch pos.Mode {
	case FundingWalletPull:
		allowance, err := e.state.WalletAllowance(pos.Owner, pos.PrincipalAsset)
		if err != nil {
			return err
		}
		if allowance.Cmp(pos.AmountPerCycle) < 0 {
			return ErrInsufficientAllowance
		}
		balance, err := e.state.WalletBalance(pos.Owner, pos.PrincipalAsset)
		if err != nil {
			return err
		}
		if balance.Cmp(pos.AmountPerCycle) < 0 {
			return ErrInsufficientWalletBalance
		}
	default:
		if pos.Escrow == nil || pos.Escrow.Cmp(pos.AmountPerCycle) < 0 {
			return ErrInsufficientPrincipal
		}
	}
	treasury, err := e.state.TreasuryBalance(pos.Owner)
	if err != nil {
		return err
	}
	if treasury.Cmp(e.executionFee) < 0 {
		return ErrInsufficientTreasury
	}
	return nil
}

// arm registers the recurring trigger and clears any prior finalization
// reason. The caller persists the position afterwards.
func (e *Engine) arm(pos *Position) error {
	if e.registrar == nil {
		return errNilRegistrar
	}
	handle, err := e.registrar.Arm(pos.Owner)
	if err != nil {
		return err
	}
	pos.TaskHandle = handle
	pos.FinalizationReason = ""
	e.emit(NewTaskArmedEvent(pos.Owner, handle))
	return nil
}

// disarm deregisters the trigger and records the finalization reason. Leg
// failures never revert a disarm decision.
func (e *Engine) disarm(pos *Position, reason string) error {
	if pos.TaskHandle != "" {
		if e.registrar == nil {
			return errNilRegistrar
		}
		if err := e.registrar.Disarm(pos.TaskHandle); err != nil {
			return err
		}
	}
	pos.TaskHandle = ""
	pos.FinalizationReason = reason
	e.emit(NewTaskDisarmedEvent(pos.Owner, reason))
	return nil
}

// maybeRearm re-arms a disarmed position whose deficiency has been cured by a
// fund movement. Positions are rearmed only when every precondition holds.
func (e *Engine) maybeRearm(pos *Position) (bool, error) {
	if pos.Armed() {
		return false, nil
	}
	if err := e.armDeficiency(pos); err != nil {
		switch err {
		case ErrInsufficientTreasury, ErrInsufficientPrincipal,
			ErrInsufficientAllowance, ErrInsufficientWalletBalance:
			return false, nil
		default:
			return false, err
		}
	}
	if err := e.arm(pos); err != nil {
		return false, err
	}
	return true, nil
}

// payoutLegs credits every accumulated leg balance to the owner's wallet and
// zeroes the in-position custody. Returns true when anything moved.
func (e *Engine) payoutLegs(pos *Position) (bool, error) {
	moved := false
	for i := range pos.Legs {
		acc := pos.Legs[i].Accumulated
		if acc == nil || acc.Sign() <= 0 {
			continue
		}
		if err := e.state.WalletCredit(pos.Owner, pos.Legs[i].Asset, acc); err != nil {
			return moved, err
		}
		pos.Legs[i].Accumulated = big.NewInt(0)
		moved = true
	}
	return moved, nil
}
