package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dripline/native/dca"
	"dripline/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func samplePosition(owner [20]byte) *dca.Position {
	return &dca.Position{
		Owner:          owner,
		PrincipalAsset: "USDC",
		Legs: []dca.OutputLeg{
			{Asset: "WETH", WeightBps: 7000, MaxSlippageBps: 100, Route: "usdc-weth", Accumulated: big.NewInt(42)},
			{Asset: "WBTC", WeightBps: 3000, MaxSlippageBps: 150, Route: "usdc-wbtc", Accumulated: big.NewInt(9)},
		},
		AmountPerCycle:    big.NewInt(1000),
		CycleInterval:     3600,
		MaxGasPrice:       big.NewInt(50),
		LastExecutionTime: 1_700_000_000,
		Mode:              dca.FundingPreFunded,
		Escrow:            big.NewInt(5000),
		TaskHandle:        "task-1",
	}
}

func TestPositionRoundTrip(t *testing.T) {
	m := newTestManager(t)
	owner := testAddr(0x01)

	got, ok, err := m.PositionGet(owner)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)

	pos := samplePosition(owner)
	require.NoError(t, m.PositionPut(pos))

	got, ok, err = m.PositionGet(owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pos, got)

	require.NoError(t, m.PositionDelete(owner))
	_, ok, err = m.PositionGet(owner)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPositionOwnersIndex(t *testing.T) {
	m := newTestManager(t)
	alice := testAddr(0x01)
	bob := testAddr(0x02)

	owners, err := m.PositionOwners()
	require.NoError(t, err)
	require.Empty(t, owners)

	require.NoError(t, m.PositionPut(samplePosition(alice)))
	require.NoError(t, m.PositionPut(samplePosition(bob)))
	// Re-putting must not duplicate the index entry.
	require.NoError(t, m.PositionPut(samplePosition(alice)))

	owners, err = m.PositionOwners()
	require.NoError(t, err)
	require.ElementsMatch(t, [][20]byte{alice, bob}, owners)

	require.NoError(t, m.PositionDelete(alice))
	owners, err = m.PositionOwners()
	require.NoError(t, err)
	require.Equal(t, [][20]byte{bob}, owners)
}

func TestTreasuryDefaultsToZero(t *testing.T) {
	m := newTestManager(t)
	owner := testAddr(0x01)

	balance, err := m.TreasuryBalance(owner)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, m.TreasurySet(owner, big.NewInt(125)))
	balance, err = m.TreasuryBalance(owner)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(125), balance)
}

func TestReceiptAppendPreservesOrder(t *testing.T) {
	m := newTestManager(t)
	owner := testAddr(0x01)

	first := &dca.Receipt{
		Timestamp: 1_700_000_000,
		Legs: []dca.LegResult{
			{AssetIn: "USDC", AssetOut: "WETH", AmountIn: big.NewInt(700), AmountOut: big.NewInt(1400)},
			{AssetIn: "USDC", AssetOut: "WBTC", AmountIn: big.NewInt(300), AmountOut: big.NewInt(899), Error: "output below minimum"},
		},
	}
	second := &dca.Receipt{
		Timestamp: 1_700_003_600,
		Legs: []dca.LegResult{
			{AssetIn: "USDC", AssetOut: "WETH", AmountIn: big.NewInt(700), AmountOut: big.NewInt(1399)},
		},
	}
	require.NoError(t, m.ReceiptAppend(owner, first))
	require.NoError(t, m.ReceiptAppend(owner, second))

	history, err := m.Receipts(owner)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, *first, history[0])
	require.Equal(t, *second, history[1])
}

func TestRegistryRoundTrip(t *testing.T) {
	m := newTestManager(t)

	snapshot, err := m.RegistryGet()
	require.NoError(t, err)
	require.Zero(t, snapshot.Version)
	require.Empty(t, snapshot.Allowed)

	want := &dca.RegistrySnapshot{
		Version:     3,
		Allowed:     []string{"USDC", "WBTC", "WETH"},
		Blacklisted: []string{"USDC|WBTC"},
	}
	require.NoError(t, m.RegistryPut(want))

	snapshot, err = m.RegistryGet()
	require.NoError(t, err)
	require.Equal(t, want, snapshot)
}

func TestWalletBalances(t *testing.T) {
	m := newTestManager(t)
	owner := testAddr(0x01)

	balance, err := m.WalletBalance(owner, "USDC")
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, m.WalletCredit(owner, "USDC", big.NewInt(500)))
	require.NoError(t, m.WalletCredit(owner, "USDC", big.NewInt(250)))
	require.NoError(t, m.WalletDebit(owner, "USDC", big.NewInt(100)))

	balance, err = m.WalletBalance(owner, "USDC")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(650), balance)

	// Balances are keyed per asset.
	other, err := m.WalletBalance(owner, "WETH")
	require.NoError(t, err)
	require.Zero(t, other.Sign())

	err = m.WalletDebit(owner, "USDC", big.NewInt(651))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestWalletAllowance(t *testing.T) {
	m := newTestManager(t)
	owner := testAddr(0x01)

	allowance, err := m.WalletAllowance(owner, "USDC")
	require.NoError(t, err)
	require.Zero(t, allowance.Sign())

	require.NoError(t, m.WalletAllowanceSet(owner, "USDC", big.NewInt(4000)))
	allowance, err = m.WalletAllowance(owner, "USDC")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(4000), allowance)
}
