package crypto

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/stretchr/testify/require"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(raw)

	encoded := addr.String()
	require.True(t, strings.HasPrefix(encoded, Prefix+"1"))

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	require.Equal(t, addr.Raw(), decoded.Raw())
}

func TestNewAddressRejectsWrongLength(t *testing.T) {
	require.Panics(t, func() { NewAddress(make([]byte, 19)) })
	require.Panics(t, func() { NewAddress(make([]byte, 21)) })
}

func TestNewAddressCopiesInput(t *testing.T) {
	raw := make([]byte, 20)
	addr := NewAddress(raw)
	raw[0] = 0xFF
	require.Zero(t, addr.Raw()[0])
}

// A well-formed bech32 string with the right prefix but a payload that is not
// 20 bytes must come back as an error, not a panic.
func TestDecodeAddressRejectsWrongPayloadLength(t *testing.T) {
	for _, size := range []int{0, 10, 19, 21, 32} {
		conv, err := bech32.ConvertBits(make([]byte, size), 8, 5, true)
		require.NoError(t, err)
		encoded, err := bech32.Encode(Prefix, conv)
		require.NoError(t, err)

		require.NotPanics(t, func() {
			_, err = DecodeAddress(encoded)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid address length")
		})
	}
}

func TestDecodeAddressErrors(t *testing.T) {
	_, err := DecodeAddress("not-an-address")
	require.Error(t, err)

	// Valid bech32 but wrong human-readable part.
	foreign := NewAddress(make([]byte, 20)).String()
	foreign = "cosmos" + strings.TrimPrefix(foreign, Prefix)
	_, err = DecodeAddress(foreign)
	require.Error(t, err)
}

func TestKeyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Address(), restored.PubKey().Address())
}
