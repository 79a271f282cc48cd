package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authority/pkg/cryptox"
)

func TestRefreshTokenRotateIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.refresh.Issue(ctx, "dev1", "u1", "access-1", t0)
	require.NoError(t, err)
	require.Len(t, token, 43)

	// Only the fingerprint is stored.
	sess, err := f.store.RefreshSessions().GetRefreshSession(ctx, "dev1", "u1")
	require.NoError(t, err)
	require.Equal(t, cryptox.FingerprintToken(token), sess.TokenHash)
	require.NotEqual(t, token, sess.TokenHash)

	got, err := f.refresh.Rotate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "dev1", got.ClientID)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "access-1", got.AccessToken)

	_, err = f.refresh.Rotate(ctx, token)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestRefreshTokenIssueOverwritesPair(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	old, err := f.refresh.Issue(ctx, "dev1", "u1", "access-1", t0)
	require.NoError(t, err)
	current, err := f.refresh.Issue(ctx, "dev1", "u1", "access-2", t0)
	require.NoError(t, err)
	require.NotEqual(t, old, current)

	_, err = f.refresh.Rotate(ctx, old)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)

	got, err := f.refresh.Rotate(ctx, current)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.AccessToken)
}

func TestRefreshTokenRotateRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, token := range []string{"", "   ", "never-issued"} {
		_, err := f.refresh.Rotate(ctx, token)
		require.ErrorIs(t, err, ErrRefreshTokenInvalid)
	}
}

func TestRefreshTokenConcurrentRotate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.refresh.Issue(ctx, "dev1", "u1", "access-1", t0)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		rejected atomic.Int32
		start    = make(chan struct{})
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.refresh.Rotate(ctx, token)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrRefreshTokenInvalid):
				rejected.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, ok.Load())
	require.EqualValues(t, 1, rejected.Load())

	_, err = f.refresh.Rotate(ctx, token)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestRefreshTokenDiscard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	token, err := f.refresh.Issue(ctx, "dev1", "u1", "access-1", t0)
	require.NoError(t, err)

	require.NoError(t, f.refresh.Discard(ctx, "dev1", "u1"))
	require.NoError(t, f.refresh.Discard(ctx, "dev1", "u1"))

	_, err = f.refresh.Rotate(ctx, token)
	require.ErrorIs(t, err, ErrRefreshTokenInvalid)
}

func TestGenerateOpaqueTokenIsUnique(t *testing.T) {
	f := newFixture(t)
	seen := make(map[string]struct{})
	for range 100 {
		tok, err := f.refresh.GenerateOpaqueToken()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}
