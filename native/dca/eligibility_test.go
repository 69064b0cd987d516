package dca

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckExecutableNoPosition(t *testing.T) {
	env := newTestEnv(t)
	eligible, minOuts, reason, err := env.engine.CheckExecutable(testOwner, big.NewInt(1))
	require.NoError(t, err)
	require.False(t, eligible)
	require.Nil(t, minOuts)
	require.Equal(t, ReasonNoPosition, reason)
}

func TestCheckExecutableNotMature(t *testing.T) {
	env := newTestEnv(t)
	installFunded(t, env)
	execute(t, env)

	eligible, _, reason, err := env.engine.CheckExecutable(testOwner, big.NewInt(1))
	require.NoError(t, err)
	require.False(t, eligible)
	require.Equal(t, ReasonNotMature, reason)

	env.advance(3600)
	eligible, _, _, err = env.engine.CheckExecutable(testOwner, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, eligible)
}

func TestCheckExecutableGasCeiling(t *testing.T) {
	env := newTestEnv(t)
	installFunded(t, env) // max gas price 50

	eligible, _, reason, err := env.engine.CheckExecutable(testOwner, big.NewInt(51))
	require.NoError(t, err)
	require.False(t, eligible)
	require.Equal(t, ReasonGasTooExpensive, reason)

	eligible, _, _, err = env.engine.CheckExecutable(testOwner, big.NewInt(50))
	require.NoError(t, err)
	require.True(t, eligible)
}

// Maturity outranks the gas check: an immature position reports not-mature
// even when gas is also too expensive.
func TestCheckExecutableReasonOrder(t *testing.T) {
	env := newTestEnv(t)
	installFunded(t, env)
	execute(t, env)

	eligible, _, reason, err := env.engine.CheckExecutable(testOwner, big.NewInt(1_000_000))
	require.NoError(t, err)
	require.False(t, eligible)
	require.Equal(t, ReasonNotMature, reason)
}

func TestCheckExecutableGuards(t *testing.T) {
	env := newTestEnv(t)
	installFunded(t, env)

	eligible, minOuts, _, err := env.engine.CheckExecutable(testOwner, big.NewInt(1))
	require.NoError(t, err)
	require.True(t, eligible)
	require.Len(t, minOuts, 2)
	// Leg 0: 700 in at rate 2 => 1400 quoted, 1% tolerance => 1386.
	require.Equal(t, big.NewInt(1386), minOuts[0])
	// Leg 1: 300 in at rate 3 => 900 quoted, 1% tolerance => 891.
	require.Equal(t, big.NewInt(891), minOuts[1])
}

func TestCheckExecutableIsReadOnly(t *testing.T) {
	env := newTestEnv(t)
	installFunded(t, env)

	before, err := env.engine.FetchUserData(testOwner)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, _, _, err := env.engine.CheckExecutable(testOwner, big.NewInt(1))
		require.NoError(t, err)
	}
	after, err := env.engine.FetchUserData(testOwner)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Zero(t, env.venue.converts)
}

func TestMinOutFor(t *testing.T) {
	require.Equal(t, big.NewInt(9900), minOutFor(big.NewInt(10_000), 100))
	require.Zero(t, minOutFor(big.NewInt(10_000), 10_000).Sign())
	require.Equal(t, big.NewInt(10_000), minOutFor(big.NewInt(10_000), 0))
}
