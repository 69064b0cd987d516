package keeper

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dripline/crypto"
	"dripline/native/dca"
	"dripline/state"
	"dripline/storage"
	"dripline/venue"
)

func TestLocalRegistrar(t *testing.T) {
	r := NewLocalRegistrar()
	require.Empty(t, r.Armed())

	alice := fillAddr(0x01)
	bob := fillAddr(0x02)

	h1, err := r.Arm(alice)
	require.NoError(t, err)
	h2, err := r.Arm(bob)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
	require.ElementsMatch(t, [][20]byte{alice, bob}, r.Armed())

	require.NoError(t, r.Disarm(h1))
	require.Equal(t, [][20]byte{bob}, r.Armed())

	require.ErrorIs(t, r.Disarm(h1), ErrUnknownTask)
	require.ErrorIs(t, r.Disarm("never-issued"), ErrUnknownTask)
}

func fillAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type keeperEnv struct {
	keeper    *Keeper
	engine    *dca.Engine
	manager   *state.Manager
	registrar *LocalRegistrar
	owner     [20]byte
	executor  [20]byte
	now       int64
}

// newKeeperEnv wires a keeper against the real persistent state manager and
// the deterministic venue, with one funded single-leg position already armed.
func newKeeperEnv(t *testing.T) *keeperEnv {
	t.Helper()

	regOwner := fillAddr(0xAA)
	executor := fillAddr(0xEE)
	owner := fillAddr(0x01)

	manager := state.NewManager(storage.NewMemDB())
	registrar := NewLocalRegistrar()

	market := venue.NewStatic()
	require.NoError(t, market.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(2), big.NewInt(1)))

	env := &keeperEnv{
		engine:    dca.NewEngine(regOwner, executor),
		manager:   manager,
		registrar: registrar,
		owner:     owner,
		executor:  executor,
		now:       1_700_000_000,
	}
	env.engine.SetState(manager)
	env.engine.SetVenue(market)
	env.engine.SetRegistrar(registrar)
	env.engine.SetExecutionFee("DRIP", big.NewInt(10))
	env.engine.SetNowFunc(func() int64 { return env.now })

	assets := []string{"USDC", "WETH", "DRIP"}
	require.NoError(t, env.engine.SetAllowedAssets(regOwner, assets, []bool{true, true, true}))

	require.NoError(t, manager.WalletCredit(owner, "USDC", big.NewInt(5000)))
	require.NoError(t, manager.WalletCredit(owner, "DRIP", big.NewInt(100)))
	require.NoError(t, env.engine.DepositTreasury(owner, big.NewInt(100)))

	pos, err := env.engine.SetPosition(owner, dca.PositionSpec{
		PrincipalAsset: "USDC",
		Legs: []dca.LegSpec{
			{Asset: "WETH", WeightBps: 10_000, MaxSlippageBps: 100, Route: "usdc-weth"},
		},
		AmountPerCycle: big.NewInt(1000),
		CycleInterval:  3600,
		MaxGasPrice:    big.NewInt(50),
		Mode:           dca.FundingPreFunded,
		Deposit:        big.NewInt(5000),
	})
	require.NoError(t, err)
	require.True(t, pos.Armed())

	env.keeper = New(Config{
		Engine:    env.engine,
		Registrar: registrar,
		Executor:  crypto.NewAddress(executor[:]),
		GasPrice:  big.NewInt(10),
	})
	return env
}

func TestRunOnceExecutesEligiblePosition(t *testing.T) {
	env := newKeeperEnv(t)

	env.keeper.RunOnce(context.Background())

	pos, ok, err := env.manager.PositionGet(env.owner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big.NewInt(4000), pos.Escrow)
	require.Equal(t, big.NewInt(2000), pos.Legs[0].Accumulated)
	require.Equal(t, env.now, pos.LastExecutionTime)
	require.True(t, pos.Armed())

	receipts, err := env.manager.Receipts(env.owner)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Empty(t, receipts[0].Legs[0].Error)

	treasury, err := env.manager.TreasuryBalance(env.owner)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(90), treasury)

	compensation, err := env.manager.WalletBalance(env.executor, "DRIP")
	require.NoError(t, err)
	require.Equal(t, big.NewInt(10), compensation)
}

func TestRunOnceSkipsImmaturePosition(t *testing.T) {
	env := newKeeperEnv(t)

	env.keeper.RunOnce(context.Background())
	// The cycle interval has not elapsed, so a second run is a no-op.
	env.keeper.RunOnce(context.Background())

	receipts, err := env.manager.Receipts(env.owner)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	env.now += 3600
	env.keeper.RunOnce(context.Background())

	receipts, err = env.manager.Receipts(env.owner)
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	pos, _, err := env.manager.PositionGet(env.owner)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(3000), pos.Escrow)
}

func TestRunOncePollsNothingWhenDisarmed(t *testing.T) {
	env := newKeeperEnv(t)

	require.NoError(t, env.engine.ExitPosition(env.owner))
	require.Empty(t, env.registrar.Armed())

	env.keeper.RunOnce(context.Background())

	receipts, err := env.manager.Receipts(env.owner)
	require.NoError(t, err)
	require.Empty(t, receipts)
}
