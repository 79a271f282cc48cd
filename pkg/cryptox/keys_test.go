package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey(MinHMACKeySize)
	require.NoError(t, err)
	require.Len(t, key, MinHMACKeySize)

	_, err = GenerateKey(32)
	require.ErrorIs(t, err, ErrKeyTooShort)
}

func TestDecodeKey(t *testing.T) {
	raw, err := GenerateKey(MinHMACKeySize)
	require.NoError(t, err)

	t.Run("accepts every base64 flavour", func(t *testing.T) {
		for _, enc := range []*base64.Encoding{
			base64.StdEncoding,
			base64.RawStdEncoding,
			base64.URLEncoding,
			base64.RawURLEncoding,
		} {
			got, err := DecodeKey(enc.EncodeToString(raw))
			require.NoError(t, err)
			require.Equal(t, raw, got)
		}
	})

	t.Run("rejects short keys", func(t *testing.T) {
		_, err := DecodeKey(base64.StdEncoding.EncodeToString(raw[:32]))
		require.ErrorIs(t, err, ErrKeyTooShort)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := DecodeKey("%%%not base64%%%")
		require.Error(t, err)
	})
}

func TestDeriveKey(t *testing.T) {
	master, err := GenerateKey(MinHMACKeySize)
	require.NoError(t, err)

	access, err := DeriveKey(master, LabelAccessKey)
	require.NoError(t, err)
	confirm, err := DeriveKey(master, LabelConfirmationKey)
	require.NoError(t, err)
	again, err := DeriveKey(master, LabelAccessKey)
	require.NoError(t, err)

	require.Len(t, access, MinHMACKeySize)
	require.Equal(t, access, again, "derivation is deterministic")
	require.NotEqual(t, access, confirm, "labels must separate keys")

	_, err = DeriveKey(master[:10], LabelAccessKey)
	require.ErrorIs(t, err, ErrKeyTooShort)
}
