package dca

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairKeyCanonical(t *testing.T) {
	require.Equal(t, PairKey("WETH", "USDC"), PairKey("USDC", "WETH"))
	require.Equal(t, "USDC|WETH", PairKey("WETH", "USDC"))
}

func TestFundingModeValid(t *testing.T) {
	require.True(t, FundingPreFunded.Valid())
	require.True(t, FundingWalletPull.Valid())
	require.False(t, FundingMode(7).Valid())
	require.Equal(t, "pre-funded", FundingPreFunded.String())
	require.Equal(t, "wallet-pull", FundingWalletPull.String())
}

func TestLegAmountIn(t *testing.T) {
	pos := &Position{
		AmountPerCycle: big.NewInt(1000),
		Legs: []OutputLeg{
			{WeightBps: 7000},
			{WeightBps: 3000},
		},
	}
	require.Equal(t, big.NewInt(700), pos.LegAmountIn(0))
	require.Equal(t, big.NewInt(300), pos.LegAmountIn(1))
}

func TestPositionCloneIsDeep(t *testing.T) {
	pos := &Position{
		AmountPerCycle: big.NewInt(1000),
		Escrow:         big.NewInt(500),
		Legs: []OutputLeg{
			{Asset: "WETH", WeightBps: 10_000, Accumulated: big.NewInt(1)},
		},
	}
	clone := pos.Clone()
	clone.Escrow.SetInt64(9)
	clone.Legs[0].Accumulated.SetInt64(9)
	require.Equal(t, big.NewInt(500), pos.Escrow)
	require.Equal(t, big.NewInt(1), pos.Legs[0].Accumulated)
}

func TestNormalizeAsset(t *testing.T) {
	require.Equal(t, "USDC", NormalizeAsset(" usdc "))
}
