package dca

import (
	"math/big"
	"sort"
	"strings"
)

// FundingMode selects where a position's principal is sourced from at
// execution time.
type FundingMode uint8

const (
	// FundingPreFunded keeps the principal escrowed by the module and
	// decrements it on every cycle.
	FundingPreFunded FundingMode = iota
	// FundingWalletPull leaves the principal in the owner's wallet and pulls
	// it at execution time against a standing allowance.
	FundingWalletPull
)

// Valid reports whether the funding mode is a supported value.
func (m FundingMode) Valid() bool {
	switch m {
	case FundingPreFunded, FundingWalletPull:
		return true
	default:
		return false
	}
}

func (m FundingMode) String() string {
	switch m {
	case FundingPreFunded:
		return "pre-funded"
	case FundingWalletPull:
		return "wallet-pull"
	default:
		return "unknown"
	}
}

// MinCycleInterval is the shortest execution cadence a position may configure,
// in seconds.
const MinCycleInterval int64 = 60

// Finalization and eligibility reason strings. These are part of the external
// surface: they appear in task-disarmed events, receipts, and eligibility
// responses, so their exact wording is load-bearing.
const (
	ReasonNoPosition              = "User doesn't have a position"
	ReasonNotMature               = "DCA not mature"
	ReasonGasTooExpensive         = "Gas too expensive"
	ReasonInvalidPair             = "Invalid pair"
	ReasonInsufficientApproval    = "Insufficient approval to pull from wallet"
	ReasonInsufficientWalletFunds = "Insufficient funds to pull from wallet"
	ReasonInsufficientFunds       = "Insufficient funds"
	ReasonTreasuryOutOfGas        = "Treasury out of gas"
	ReasonUserExited              = "User exited"
)

// OutputLeg is one weighted destination asset within a position. Accumulated
// holds converted output custody until the owner claims or exits.
type OutputLeg struct {
	Asset          string
	WeightBps      uint32
	MaxSlippageBps uint32
	Route          string
	Accumulated    *big.Int
}

// Position captures a user's recurring-conversion instruction together with
// its lifecycle state. A position is owned exclusively by its user key.
type Position struct {
	Owner              [20]byte
	PrincipalAsset     string
	Legs               []OutputLeg
	AmountPerCycle     *big.Int
	CycleInterval      int64
	MaxGasPrice        *big.Int
	LastExecutionTime  int64
	Mode               FundingMode
	Escrow             *big.Int
	TaskHandle         string
	FinalizationReason string
}

// Armed reports whether the recurring trigger is currently registered.
func (p *Position) Armed() bool { return p != nil && p.TaskHandle != "" }

// LegAmountIn returns the principal share of the given leg for one cycle,
// amountPerCycle * weight / 10000.
func (p *Position) LegAmountIn(i int) *big.Int {
	amt := new(big.Int).Mul(p.AmountPerCycle, big.NewInt(int64(p.Legs[i].WeightBps)))
	return amt.Quo(amt, basisPoints)
}

// Clone returns a deep copy so callers can mutate the copy without affecting
// the stored instance.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.AmountPerCycle = cloneBigInt(p.AmountPerCycle)
	clone.MaxGasPrice = cloneBigInt(p.MaxGasPrice)
	clone.Escrow = cloneBigInt(p.Escrow)
	clone.Legs = make([]OutputLeg, len(p.Legs))
	for i, leg := range p.Legs {
		clone.Legs[i] = leg
		clone.Legs[i].Accumulated = cloneBigInt(leg.Accumulated)
	}
	return &clone
}

// LegSpec is the caller-supplied definition of one output leg.
type LegSpec struct {
	Asset          string
	WeightBps      uint32
	MaxSlippageBps uint32
	Route          string
}

// PositionSpec is the caller-supplied definition passed to SetPosition.
// Deposit is the initial escrow principal for pre-funded positions and must
// be unset for wallet-pull positions.
type PositionSpec struct {
	PrincipalAsset string
	Legs           []LegSpec
	AmountPerCycle *big.Int
	CycleInterval  int64
	MaxGasPrice    *big.Int
	Mode           FundingMode
	Deposit        *big.Int
}

// LegResult records the outcome of one leg within a single execution attempt.
// Failed legs carry zero amounts and a non-empty Error.
type LegResult struct {
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Error     string
}

// Receipt is the append-only record of one execution attempt, one entry per
// leg including failed ones.
type Receipt struct {
	Timestamp int64
	Legs      []LegResult
}

// Clone returns a deep copy of the receipt.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	clone := Receipt{Timestamp: r.Timestamp, Legs: make([]LegResult, len(r.Legs))}
	for i, leg := range r.Legs {
		clone.Legs[i] = leg
		clone.Legs[i].AmountIn = cloneBigInt(leg.AmountIn)
		clone.Legs[i].AmountOut = cloneBigInt(leg.AmountOut)
	}
	return &clone
}

// UserData aggregates everything stored for a single address. Fields default
// to empty values for addresses with no position.
type UserData struct {
	Position *Position
	Treasury *big.Int
	Receipts []Receipt
}

// RegistrySnapshot is the versioned allow-list state shared read-only by the
// position store and the execution engine. Mutations go through the engine's
// owner-gated registry operations and bump Version, so a snapshot loaded at
// the start of a call stays internally consistent.
type RegistrySnapshot struct {
	Version     uint64
	Allowed     []string
	Blacklisted []string
}

// IsAllowed reports whether the asset is on the allow-list.
func (r *RegistrySnapshot) IsAllowed(asset string) bool {
	if r == nil {
		return false
	}
	i := sort.SearchStrings(r.Allowed, asset)
	return i < len(r.Allowed) && r.Allowed[i] == asset
}

// IsPairBlacklisted reports whether the unordered pair {a, b} is blacklisted.
func (r *RegistrySnapshot) IsPairBlacklisted(a, b string) bool {
	if r == nil {
		return false
	}
	key := PairKey(a, b)
	i := sort.SearchStrings(r.Blacklisted, key)
	return i < len(r.Blacklisted) && r.Blacklisted[i] == key
}

// PairKey returns the canonical storage key for an unordered asset pair.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// NormalizeAsset canonicalises an asset symbol to its uppercase trimmed form.
func NormalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
