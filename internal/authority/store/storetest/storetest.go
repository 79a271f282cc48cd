// Package storetest holds the behaviour every store driver must share.
// Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
	"github.com/aussiebroadwan/authority/internal/authority/store"
)

// Run exercises s against the store contract. newStore must return an empty,
// migrated store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("RefreshSessions", func(t *testing.T) { testRefreshSessions(t, newStore(t)) })
	t.Run("ConcurrentTake", func(t *testing.T) { testConcurrentTake(t, newStore(t)) })
	t.Run("ConfirmationTokens", func(t *testing.T) { testConfirmationTokens(t, newStore(t)) })
	t.Run("Cache", func(t *testing.T) { testCache(t, newStore(t).Cache()) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, newStore(t).Ping(context.Background())) })
}

func session(client, user, hash string) domain.RefreshSession {
	return domain.RefreshSession{
		ClientID:    client,
		UserID:      user,
		TokenHash:   hash,
		AccessToken: "access-" + hash,
		CreatedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testRefreshSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshSessions()

	_, err := repo.GetRefreshSession(ctx, "web", "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	first := session("web", "u1", "hash-1")
	require.NoError(t, repo.UpsertRefreshSession(ctx, first))

	got, err := repo.GetRefreshSession(ctx, "web", "u1")
	require.NoError(t, err)
	require.Equal(t, first.TokenHash, got.TokenHash)
	require.Equal(t, first.AccessToken, got.AccessToken)
	require.True(t, first.CreatedAt.Equal(got.CreatedAt))

	// A second login for the same pair overwrites the row and retires the
	// old fingerprint.
	second := session("web", "u1", "hash-2")
	require.NoError(t, repo.UpsertRefreshSession(ctx, second))

	_, err = repo.TakeRefreshSession(ctx, "hash-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Other clients of the same user are independent.
	require.NoError(t, repo.UpsertRefreshSession(ctx, session("mobile", "u1", "hash-3")))

	taken, err := repo.TakeRefreshSession(ctx, "hash-2")
	require.NoError(t, err)
	require.Equal(t, "web", taken.ClientID)
	require.Equal(t, "u1", taken.UserID)
	require.Equal(t, "access-hash-2", taken.AccessToken)

	_, err = repo.TakeRefreshSession(ctx, "hash-2")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.GetRefreshSession(ctx, "mobile", "u1")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRefreshSession(ctx, "mobile", "u1"))
	_, err = repo.GetRefreshSession(ctx, "mobile", "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.TakeRefreshSession(ctx, "hash-3")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, repo.DeleteRefreshSession(ctx, "mobile", "u1"))
}

func testConcurrentTake(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.RefreshSessions()
	require.NoError(t, repo.UpsertRefreshSession(ctx, session("web", "u1", "contended")))

	const workers = 8
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		misses  atomic.Int32
		start   = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := repo.TakeRefreshSession(ctx, "contended")
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, store.ErrNotFound):
				misses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, winners.Load())
	require.EqualValues(t, workers-1, misses.Load())
}

func testConfirmationTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	repo := s.ConfirmationTokens()

	_, err := repo.GetConfirmationToken(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	tok := domain.ConfirmationToken{
		UserID:    "u1",
		Email:     "ada@example.com",
		Token:     "token-1",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveConfirmationToken(ctx, tok))

	got, err := repo.GetConfirmationToken(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, tok.Email, got.Email)
	require.Equal(t, tok.Token, got.Token)

	tok.Token = "token-2"
	require.NoError(t, repo.SaveConfirmationToken(ctx, tok))
	got, err = repo.GetConfirmationToken(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "token-2", got.Token)

	require.NoError(t, repo.DeleteConfirmationToken(ctx, "u1"))
	_, err = repo.GetConfirmationToken(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, repo.DeleteConfirmationToken(ctx, "u1"))
}

func testCache(t *testing.T, c store.Cache) {
	ctx := context.Background()

	_, err := c.Get(ctx, "disabled_tokens:web")
	require.ErrorIs(t, err, store.ErrNotFound)
	ok, err := c.Exists(ctx, "disabled_tokens:web")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Put(ctx, "disabled_tokens:web", []byte(`[{"token":"a"}]`)))
	ok, err = c.Exists(ctx, "disabled_tokens:web")
	require.NoError(t, err)
	require.True(t, ok)

	v, err := c.Get(ctx, "disabled_tokens:web")
	require.NoError(t, err)
	require.JSONEq(t, `[{"token":"a"}]`, string(v))

	require.NoError(t, c.Put(ctx, "disabled_tokens:web", []byte(`[]`)))
	v, err = c.Get(ctx, "disabled_tokens:web")
	require.NoError(t, err)
	require.Equal(t, `[]`, string(v))

	require.NoError(t, c.Delete(ctx, "disabled_tokens:web"))
	_, err = c.Get(ctx, "disabled_tokens:web")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, c.Delete(ctx, "disabled_tokens:web"))
}
