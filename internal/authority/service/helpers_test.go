package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/memory"
	"github.com/aussiebroadwan/authority/pkg/clock"
	"github.com/aussiebroadwan/authority/pkg/cryptox"
	"github.com/aussiebroadwan/authority/pkg/idx"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
)

var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

var thirtyMinutes = jwtx.Lifetime{Amount: 30, Unit: jwtx.Minute}

func newCodec(t *testing.T) *jwtx.HS512Codec {
	t.Helper()
	key, err := cryptox.GenerateKey(cryptox.MinHMACKeySize)
	require.NoError(t, err)
	codec, err := jwtx.NewHS512Codec(key)
	require.NoError(t, err)
	return codec
}

type fixture struct {
	clock         *clock.FakeClock
	store         *memory.Store
	codec         *jwtx.HS512Codec
	access        *AccessTokenManager
	refresh       *RefreshTokenManager
	revocations   *RevocationStore
	confirmations *ConfirmationManager
	authority     *Authority
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock: clock.Fake(t0),
		store: memory.NewStore(),
		codec: newCodec(t),
	}
	ids := idx.NewGenerator(f.clock)
	timed := store.WithDeadline(f.store, store.DefaultTimeout)

	var err error
	f.access, err = NewAccessTokenManager(f.codec, ids, nil)
	require.NoError(t, err)
	f.refresh, err = NewRefreshTokenManager(timed.RefreshSessions())
	require.NoError(t, err)
	f.revocations, err = NewRevocationStore(timed.Cache(), f.access)
	require.NoError(t, err)
	f.confirmations, err = NewConfirmationManager(newCodec(t), ids, timed.ConfirmationTokens())
	require.NoError(t, err)
	f.authority, err = NewAuthority(f.access, f.refresh, f.revocations, f.confirmations, f.clock, DefaultLifetimes)
	require.NoError(t, err)

	return f
}
