package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authority/internal/authority/store"
)

func storedSet(t *testing.T, f *fixture, clientID string) []disabledToken {
	t.Helper()
	raw, err := f.store.Cache().Get(context.Background(), disabledTokensKey(clientID))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)

	var set []disabledToken
	require.NoError(t, json.Unmarshal(raw, &set))
	return set
}

func TestRevokeThenIsRevoked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.access.Generate([]string{"User"}, "dev1", "u1", "a@x.com", t0, thirtyMinutes)
	require.NoError(t, err)

	revoked, err := f.revocations.IsRevoked(ctx, "dev1", token)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, f.revocations.Revoke(ctx, "dev1", token, t0))

	revoked, err = f.revocations.IsRevoked(ctx, "dev1", token)
	require.NoError(t, err)
	require.True(t, revoked)

	// Sets are per client.
	revoked, err = f.revocations.IsRevoked(ctx, "dev2", token)
	require.NoError(t, err)
	require.False(t, revoked)

	// Revoking twice keeps a single entry.
	require.NoError(t, f.revocations.Revoke(ctx, "dev1", token, t0))
	require.Len(t, storedSet(t, f, "dev1"), 1)
}

func TestRevokePrunesExpiredMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.access.Generate([]string{"User"}, "dev1", "u1", "a@x.com", t0, thirtyMinutes)
	require.NoError(t, err)
	require.NoError(t, f.revocations.Revoke(ctx, "dev1", first, t0))

	later := t0.Add(31 * time.Minute)
	second, err := f.access.Generate([]string{"User"}, "dev1", "u2", "b@x.com", later, thirtyMinutes)
	require.NoError(t, err)
	require.NoError(t, f.revocations.Revoke(ctx, "dev1", second, later))

	set := storedSet(t, f, "dev1")
	require.Len(t, set, 1)
	require.Equal(t, second, set[0].Token)
	require.Equal(t, later.Add(30*time.Minute).Unix(), set[0].ExpiresAt)
}

func TestRevokeDeletesEmptySet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.access.Generate([]string{"User"}, "dev1", "u1", "a@x.com", t0, thirtyMinutes)
	require.NoError(t, err)
	require.NoError(t, f.revocations.Revoke(ctx, "dev1", token, t0))

	exists, err := f.store.Cache().Exists(ctx, disabledTokensKey("dev1"))
	require.NoError(t, err)
	require.True(t, exists)

	// Once the only member has expired, revoking an already invalid token
	// leaves nothing to store.
	after := t0.Add(time.Hour)
	require.NoError(t, f.revocations.Revoke(ctx, "dev1", "garbage", after))

	exists, err = f.store.Cache().Exists(ctx, disabledTokensKey("dev1"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRevokeSkipsInvalidTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	expired, err := f.access.Generate([]string{"User"}, "dev1", "u1", "a@x.com", t0.Add(-time.Hour), thirtyMinutes)
	require.NoError(t, err)

	for _, token := range []string{"garbage", expired} {
		require.NoError(t, f.revocations.Revoke(ctx, "dev1", token, t0))
		require.Empty(t, storedSet(t, f, "dev1"))
	}
}

func TestRevokeReplacesUnreadableSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Cache().Put(ctx, disabledTokensKey("dev1"), []byte("{not json")))

	_, err := f.revocations.IsRevoked(ctx, "dev1", "anything")
	require.ErrorIs(t, err, errCorruptSet)

	token, err := f.access.Generate([]string{"User"}, "dev1", "u1", "a@x.com", t0, thirtyMinutes)
	require.NoError(t, err)
	require.NoError(t, f.revocations.Revoke(ctx, "dev1", token, t0))

	revoked, err := f.revocations.IsRevoked(ctx, "dev1", token)
	require.NoError(t, err)
	require.True(t, revoked)
}
