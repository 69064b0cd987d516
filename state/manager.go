package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"dripline/native/dca"
	"dripline/storage"
)

// ErrInsufficientBalance is returned when a wallet debit exceeds the stored
// balance.
var ErrInsufficientBalance = errors.New("state: insufficient wallet balance")

var (
	ownersIndexKey  = []byte("dca/owners")
	positionPrefix  = []byte("dca/position/")
	treasuryPrefix  = []byte("dca/treasury/")
	receiptsPrefix  = []byte("dca/receipts/")
	registryKey     = []byte("dca/registry")
	balancePrefix   = []byte("bank/balance/")
	allowancePrefix = []byte("bank/allowance/")
)

// Manager is the authoritative ledger state. It persists every record as an
// RLP-encoded value in the backing key-value store and implements the state
// interface consumed by the dca engine. Mutating callers are serialized by
// the surrounding node; the manager performs no locking of its own.
type Manager struct {
	db storage.Database
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func ownerKey(prefix []byte, owner [20]byte) []byte {
	return append(append([]byte{}, prefix...), owner[:]...)
}

func assetKey(prefix []byte, owner [20]byte, asset string) []byte {
	key := append(append([]byte{}, prefix...), owner[:]...)
	return append(append(key, '/'), []byte(asset)...)
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

// --- positions ---

type storedLeg struct {
	Asset          string
	WeightBps      uint32
	MaxSlippageBps uint32
	Route          string
	Accumulated    *big.Int
}

type storedPosition struct {
	Owner              [20]byte
	PrincipalAsset     string
	Legs               []storedLeg
	AmountPerCycle     *big.Int
	CycleInterval      uint64
	MaxGasPrice        *big.Int
	LastExecutionTime  uint64
	Mode               uint8
	Escrow             *big.Int
	TaskHandle         string
	FinalizationReason string
}

func toStoredPosition(pos *dca.Position) *storedPosition {
	stored := &storedPosition{
		Owner:              pos.Owner,
		PrincipalAsset:     pos.PrincipalAsset,
		Legs:               make([]storedLeg, len(pos.Legs)),
		AmountPerCycle:     nonNil(pos.AmountPerCycle),
		CycleInterval:      uint64(pos.CycleInterval),
		MaxGasPrice:        nonNil(pos.MaxGasPrice),
		LastExecutionTime:  uint64(pos.LastExecutionTime),
		Mode:               uint8(pos.Mode),
		Escrow:             nonNil(pos.Escrow),
		TaskHandle:         pos.TaskHandle,
		FinalizationReason: pos.FinalizationReason,
	}
	for i, leg := range pos.Legs {
		stored.Legs[i] = storedLeg{
			Asset:          leg.Asset,
			WeightBps:      leg.WeightBps,
			MaxSlippageBps: leg.MaxSlippageBps,
			Route:          leg.Route,
			Accumulated:    nonNil(leg.Accumulated),
		}
	}
	return stored
}

func (s *storedPosition) toPosition() *dca.Position {
	pos := &dca.Position{
		Owner:              s.Owner,
		PrincipalAsset:     s.PrincipalAsset,
		Legs:               make([]dca.OutputLeg, len(s.Legs)),
		AmountPerCycle:     nonNil(s.AmountPerCycle),
		CycleInterval:      int64(s.CycleInterval),
		MaxGasPrice:        nonNil(s.MaxGasPrice),
		LastExecutionTime:  int64(s.LastExecutionTime),
		Mode:               dca.FundingMode(s.Mode),
		Escrow:             nonNil(s.Escrow),
		TaskHandle:         s.TaskHandle,
		FinalizationReason: s.FinalizationReason,
	}
	for i, leg := range s.Legs {
		pos.Legs[i] = dca.OutputLeg{
			Asset:          leg.Asset,
			WeightBps:      leg.WeightBps,
			MaxSlippageBps: leg.MaxSlippageBps,
			Route:          leg.Route,
			Accumulated:    nonNil(leg.Accumulated),
		}
	}
	return pos
}

func (m *Manager) PositionGet(owner [20]byte) (*dca.Position, bool, error) {
	var stored storedPosition
	ok, err := m.get(ownerKey(positionPrefix, owner), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toPosition(), true, nil
}

func (m *Manager) PositionPut(pos *dca.Position) error {
	if err := m.indexOwner(pos.Owner, true); err != nil {
		return err
	}
	return m.put(ownerKey(positionPrefix, pos.Owner), toStoredPosition(pos))
}

func (m *Manager) PositionDelete(owner [20]byte) error {
	if err := m.indexOwner(owner, false); err != nil {
		return err
	}
	return m.db.Delete(ownerKey(positionPrefix, owner))
}

// PositionOwners lists every address with a stored position. Used at startup
// to re-register armed triggers with a fresh registrar.
func (m *Manager) PositionOwners() ([][20]byte, error) {
	var owners [][20]byte
	if _, err := m.get(ownersIndexKey, &owners); err != nil {
		return nil, err
	}
	return owners, nil
}

func (m *Manager) indexOwner(owner [20]byte, present bool) error {
	var owners [][20]byte
	if _, err := m.get(ownersIndexKey, &owners); err != nil {
		return err
	}
	idx := -1
	for i, existing := range owners {
		if existing == owner {
			idx = i
			break
		}
	}
	switch {
	case present && idx < 0:
		owners = append(owners, owner)
	case !present && idx >= 0:
		owners = append(owners[:idx], owners[idx+1:]...)
	default:
		return nil
	}
	return m.put(ownersIndexKey, owners)
}

// --- treasury ---

func (m *Manager) TreasuryBalance(owner [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(ownerKey(treasuryPrefix, owner), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (m *Manager) TreasurySet(owner [20]byte, amount *big.Int) error {
	return m.put(ownerKey(treasuryPrefix, owner), nonNil(amount))
}

// --- receipts ---

type storedLegResult struct {
	AssetIn   string
	AssetOut  string
	AmountIn  *big.Int
	AmountOut *big.Int
	Error     string
}

type storedReceipt struct {
	Timestamp uint64
	Legs      []storedLegResult
}

func (m *Manager) ReceiptAppend(owner [20]byte, receipt *dca.Receipt) error {
	var history []storedReceipt
	if _, err := m.get(ownerKey(receiptsPrefix, owner), &history); err != nil {
		return err
	}
	stored := storedReceipt{Timestamp: uint64(receipt.Timestamp), Legs: make([]storedLegResult, len(receipt.Legs))}
	for i, leg := range receipt.Legs {
		stored.Legs[i] = storedLegResult{
			AssetIn:   leg.AssetIn,
			AssetOut:  leg.AssetOut,
			AmountIn:  nonNil(leg.AmountIn),
			AmountOut: nonNil(leg.AmountOut),
			Error:     leg.Error,
		}
	}
	history = append(history, stored)
	return m.put(ownerKey(receiptsPrefix, owner), history)
}

func (m *Manager) Receipts(owner [20]byte) ([]dca.Receipt, error) {
	var history []storedReceipt
	if _, err := m.get(ownerKey(receiptsPrefix, owner), &history); err != nil {
		return nil, err
	}
	out := make([]dca.Receipt, len(history))
	for i, stored := range history {
		out[i] = dca.Receipt{Timestamp: int64(stored.Timestamp), Legs: make([]dca.LegResult, len(stored.Legs))}
		for j, leg := range stored.Legs {
			out[i].Legs[j] = dca.LegResult{
				AssetIn:   leg.AssetIn,
				AssetOut:  leg.AssetOut,
				AmountIn:  nonNil(leg.AmountIn),
				AmountOut: nonNil(leg.AmountOut),
				Error:     leg.Error,
			}
		}
	}
	return out, nil
}

// --- registry ---

type storedRegistry struct {
	Version     uint64
	Allowed     []string
	Blacklisted []string
}

func (m *Manager) RegistryGet() (*dca.RegistrySnapshot, error) {
	var stored storedRegistry
	if _, err := m.get(registryKey, &stored); err != nil {
		return nil, err
	}
	return &dca.RegistrySnapshot{
		Version:     stored.Version,
		Allowed:     append([]string{}, stored.Allowed...),
		Blacklisted: append([]string{}, stored.Blacklisted...),
	}, nil
}

func (m *Manager) RegistryPut(snapshot *dca.RegistrySnapshot) error {
	return m.put(registryKey, &storedRegistry{
		Version:     snapshot.Version,
		Allowed:     snapshot.Allowed,
		Blacklisted: snapshot.Blacklisted,
	})
}

// --- wallet bank ---

func (m *Manager) WalletBalance(owner [20]byte, asset string) (*big.Int, error) {
	balance := new(big.Int)
	ok, err := m.get(assetKey(balancePrefix, owner, asset), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (m *Manager) WalletCredit(owner [20]byte, asset string, amount *big.Int) error {
	balance, err := m.WalletBalance(owner, asset)
	if err != nil {
		return err
	}
	return m.put(assetKey(balancePrefix, owner, asset), new(big.Int).Add(balance, amount))
}

func (m *Manager) WalletDebit(owner [20]byte, asset string, amount *big.Int) error {
	balance, err := m.WalletBalance(owner, asset)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, asset)
	}
	return m.put(assetKey(balancePrefix, owner, asset), new(big.Int).Sub(balance, amount))
}

func (m *Manager) WalletAllowance(owner [20]byte, asset string) (*big.Int, error) {
	allowance := new(big.Int)
	ok, err := m.get(assetKey(allowancePrefix, owner, asset), allowance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

func (m *Manager) WalletAllowanceSet(owner [20]byte, asset string, amount *big.Int) error {
	return m.put(assetKey(allowancePrefix, owner, asset), nonNil(amount))
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
