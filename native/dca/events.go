package dca

import (
	"math/big"
	"strconv"

	"dripline/core/types"
	"dripline/crypto"
)

const (
	EventTypePositionSet        = "dca.position.set"
	EventTypePositionExited     = "dca.position.exited"
	EventTypePrincipalDeposited = "dca.principal.deposited"
	EventTypePrincipalWithdrawn = "dca.principal.withdrawn"
	EventTypeTreasuryDeposited  = "dca.treasury.deposited"
	EventTypeTreasuryWithdrawn  = "dca.treasury.withdrawn"
	EventTypeLegsWithdrawn      = "dca.legs.withdrawn"
	EventTypeTaskArmed          = "dca.task.armed"
	EventTypeTaskDisarmed       = "dca.task.disarmed"
	EventTypeExecutionCompleted = "dca.execution.completed"
	EventTypeAssetAllowed       = "dca.registry.asset"
	EventTypePairBlacklisted    = "dca.registry.pair"
)

func addrString(addr [20]byte) string {
	return crypto.NewAddress(addr[:]).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// NewPositionSetEvent returns the canonical payload emitted when a position is
// installed or replaced.
func NewPositionSetEvent(pos *Position) *types.Event {
	return &types.Event{
		Type: EventTypePositionSet,
		Attributes: map[string]string{
			"owner":          addrString(pos.Owner),
			"principalAsset": pos.PrincipalAsset,
			"legs":           strconv.Itoa(len(pos.Legs)),
			"amountPerCycle": formatAmount(pos.AmountPerCycle),
			"cycleInterval":  strconv.FormatInt(pos.CycleInterval, 10),
			"fundingMode":    pos.Mode.String(),
			"armed":          strconv.FormatBool(pos.Armed()),
		},
	}
}

// NewPositionExitedEvent returns the payload emitted when the owner tears the
// position down.
func NewPositionExitedEvent(owner [20]byte, reason string) *types.Event {
	return &types.Event{
		Type: EventTypePositionExited,
		Attributes: map[string]string{
			"owner":  addrString(owner),
			"reason": reason,
		},
	}
}

func NewPrincipalDepositedEvent(owner [20]byte, amount, escrow *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePrincipalDeposited,
		Attributes: map[string]string{
			"owner":  addrString(owner),
			"amount": formatAmount(amount),
			"escrow": formatAmount(escrow),
		},
	}
}

func NewPrincipalWithdrawnEvent(owner [20]byte, amount, escrow *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypePrincipalWithdrawn,
		Attributes: map[string]string{
			"owner":  addrString(owner),
			"amount": formatAmount(amount),
			"escrow": formatAmount(escrow),
		},
	}
}

func NewTreasuryDepositedEvent(owner [20]byte, amount, balance *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryDeposited,
		Attributes: map[string]string{
			"owner":   addrString(owner),
			"amount":  formatAmount(amount),
			"balance": formatAmount(balance),
		},
	}
}

func NewTreasuryWithdrawnEvent(owner [20]byte, amount, balance *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTreasuryWithdrawn,
		Attributes: map[string]string{
			"owner":   addrString(owner),
			"amount":  formatAmount(amount),
			"balance": formatAmount(balance),
		},
	}
}

// NewLegsWithdrawnEvent records a payout of accumulated leg balances. The leg
// assets are joined by index so indexers can reconcile per-asset amounts.
func NewLegsWithdrawnEvent(owner [20]byte, legs []OutputLeg) *types.Event {
	attrs := map[string]string{"owner": addrString(owner)}
	for i, leg := range legs {
		attrs["asset."+strconv.Itoa(i)] = leg.Asset
	}
	return &types.Event{Type: EventTypeLegsWithdrawn, Attributes: attrs}
}

func NewTaskArmedEvent(owner [20]byte, handle string) *types.Event {
	return &types.Event{
		Type: EventTypeTaskArmed,
		Attributes: map[string]string{
			"owner":  addrString(owner),
			"handle": handle,
		},
	}
}

func NewTaskDisarmedEvent(owner [20]byte, reason string) *types.Event {
	return &types.Event{
		Type: EventTypeTaskDisarmed,
		Attributes: map[string]string{
			"owner":  addrString(owner),
			"reason": reason,
		},
	}
}

func NewExecutionCompletedEvent(owner [20]byte, timestamp int64, legs, failed int, fee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeExecutionCompleted,
		Attributes: map[string]string{
			"owner":     addrString(owner),
			"timestamp": strconv.FormatInt(timestamp, 10),
			"legs":      strconv.Itoa(legs),
			"failed":    strconv.Itoa(failed),
			"fee":       formatAmount(fee),
		},
	}
}

func NewAssetAllowedEvent(asset string, allowed bool, version uint64) *types.Event {
	return &types.Event{
		Type: EventTypeAssetAllowed,
		Attributes: map[string]string{
			"asset":   asset,
			"allowed": strconv.FormatBool(allowed),
			"version": strconv.FormatUint(version, 10),
		},
	}
}

func NewPairBlacklistedEvent(assetA, assetB string, blacklisted bool, version uint64) *types.Event {
	return &types.Event{
		Type: EventTypePairBlacklisted,
		Attributes: map[string]string{
			"assetA":      assetA,
			"assetB":      assetB,
			"blacklisted": strconv.FormatBool(blacklisted),
			"version":     strconv.FormatUint(version, 10),
		},
	}
}
