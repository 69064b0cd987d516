package venue

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetRouteRejectsBadRate(t *testing.T) {
	v := NewStatic()
	require.Error(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(0), big.NewInt(1)))
	require.Error(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(1), big.NewInt(0)))
	require.Error(t, v.SetRoute("usdc-weth", "USDC", "WETH", nil, big.NewInt(1)))
	require.Error(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(-2), big.NewInt(1)))
}

func TestQuote(t *testing.T) {
	v := NewStatic()
	require.NoError(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(3), big.NewInt(2)))

	out, err := v.Quote("USDC", "WETH", "usdc-weth", big.NewInt(700))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1050), out)

	// Integer division truncates toward zero.
	out, err = v.Quote("USDC", "WETH", "usdc-weth", big.NewInt(701))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1051), out)

	_, err = v.Quote("USDC", "WETH", "missing", big.NewInt(1))
	require.ErrorIs(t, err, ErrUnknownRoute)

	_, err = v.Quote("WETH", "USDC", "usdc-weth", big.NewInt(1))
	require.ErrorIs(t, err, ErrRouteMismatch)
}

func TestConvertHonoursMinOut(t *testing.T) {
	v := NewStatic()
	require.NoError(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(2), big.NewInt(1)))

	out, err := v.Convert("USDC", "WETH", "usdc-weth", big.NewInt(700), big.NewInt(1400))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1400), out)

	_, err = v.Convert("USDC", "WETH", "usdc-weth", big.NewInt(700), big.NewInt(1401))
	require.ErrorIs(t, err, ErrOutputBelowMin)

	// A nil guard disables the check.
	out, err = v.Convert("USDC", "WETH", "usdc-weth", big.NewInt(1), nil)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(2), out)
}

func TestSetRouteReplaces(t *testing.T) {
	v := NewStatic()
	require.NoError(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(2), big.NewInt(1)))
	require.NoError(t, v.SetRoute("usdc-weth", "USDC", "WETH", big.NewInt(5), big.NewInt(1)))

	out, err := v.Quote("USDC", "WETH", "usdc-weth", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), out)
}
