package app

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authority/pkg/cryptox"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

func encodedKey(t *testing.T) string {
	t.Helper()
	k, err := cryptox.GenerateKey(cryptox.MinHMACKeySize)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(k)
}

func TestInitSigningKeysExplicit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AccessKey = encodedKey(t)
	cfg.ConfirmationKey = encodedKey(t)

	keys, err := InitSigningKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, KeySourceExplicit, keys.Source)
	require.Len(t, keys.Access, cryptox.MinHMACKeySize)

	t.Run("one key only", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AccessKey = encodedKey(t)
		_, err := InitSigningKeys(cfg, slogx.Discard())
		require.Error(t, err)
	})

	t.Run("same key twice", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AccessKey = encodedKey(t)
		cfg.ConfirmationKey = cfg.AccessKey
		_, err := InitSigningKeys(cfg, slogx.Discard())
		require.ErrorIs(t, err, errSharedKey)
	})

	t.Run("short key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AccessKey = base64.StdEncoding.EncodeToString([]byte("short"))
		cfg.ConfirmationKey = encodedKey(t)
		_, err := InitSigningKeys(cfg, slogx.Discard())
		require.ErrorIs(t, err, cryptox.ErrKeyTooShort)
	})
}

func TestInitSigningKeysDerived(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Env = "prod"
	cfg.MasterSecret = encodedKey(t)

	a, err := InitSigningKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, KeySourceDerived, a.Source)
	require.False(t, bytes.Equal(a.Access, a.Confirmation))

	b, err := InitSigningKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, a.Access, b.Access, "derivation is deterministic")
	require.Equal(t, a.Confirmation, b.Confirmation)
}

func TestInitSigningKeysEphemeral(t *testing.T) {
	cfg := DefaultConfig()

	keys, err := InitSigningKeys(cfg, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, KeySourceEphemeral, keys.Source)
	require.False(t, bytes.Equal(keys.Access, keys.Confirmation))

	cfg.Env = "prod"
	_, err = InitSigningKeys(cfg, slogx.Discard())
	require.Error(t, err)
}
