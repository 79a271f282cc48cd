package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
)

// WithDeadline wraps s so that every repository call, including the cache
// and Ping, runs under a d time budget. See WithTimeout.
func WithDeadline(s Store, d time.Duration) Store {
	return &timedStore{Store: s, d: d}
}

// CacheWithDeadline wraps a standalone cache the same way WithDeadline wraps
// a store.
func CacheWithDeadline(c Cache, d time.Duration) Cache {
	return &timedCache{c: c, d: d}
}

type timedStore struct {
	Store
	d time.Duration
}

func (s *timedStore) RefreshSessions() RefreshSessions {
	return &timedRefreshSessions{r: s.Store.RefreshSessions(), d: s.d}
}

func (s *timedStore) ConfirmationTokens() ConfirmationTokens {
	return &timedConfirmationTokens{r: s.Store.ConfirmationTokens(), d: s.d}
}

func (s *timedStore) Cache() Cache {
	return &timedCache{c: s.Store.Cache(), d: s.d}
}

func (s *timedStore) Ping(ctx context.Context) error {
	return Do(ctx, s.d, s.Store.Ping)
}

type timedRefreshSessions struct {
	r RefreshSessions
	d time.Duration
}

func (t *timedRefreshSessions) UpsertRefreshSession(ctx context.Context, s domain.RefreshSession) error {
	return Do(ctx, t.d, func(ctx context.Context) error {
		return t.r.UpsertRefreshSession(ctx, s)
	})
}

func (t *timedRefreshSessions) TakeRefreshSession(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	return WithTimeout(ctx, t.d, func(ctx context.Context) (domain.RefreshSession, error) {
		return t.r.TakeRefreshSession(ctx, tokenHash)
	})
}

func (t *timedRefreshSessions) GetRefreshSession(ctx context.Context, clientID, userID string) (domain.RefreshSession, error) {
	return WithTimeout(ctx, t.d, func(ctx context.Context) (domain.RefreshSession, error) {
		return t.r.GetRefreshSession(ctx, clientID, userID)
	})
}

func (t *timedRefreshSessions) DeleteRefreshSession(ctx context.Context, clientID, userID string) error {
	return Do(ctx, t.d, func(ctx context.Context) error {
		return t.r.DeleteRefreshSession(ctx, clientID, userID)
	})
}

type timedConfirmationTokens struct {
	r ConfirmationTokens
	d time.Duration
}

func (t *timedConfirmationTokens) SaveConfirmationToken(ctx context.Context, c domain.ConfirmationToken) error {
	return Do(ctx, t.d, func(ctx context.Context) error {
		return t.r.SaveConfirmationToken(ctx, c)
	})
}

func (t *timedConfirmationTokens) GetConfirmationToken(ctx context.Context, userID string) (domain.ConfirmationToken, error) {
	return WithTimeout(ctx, t.d, func(ctx context.Context) (domain.ConfirmationToken, error) {
		return t.r.GetConfirmationToken(ctx, userID)
	})
}

func (t *timedConfirmationTokens) DeleteConfirmationToken(ctx context.Context, userID string) error {
	return Do(ctx, t.d, func(ctx context.Context) error {
		return t.r.DeleteConfirmationToken(ctx, userID)
	})
}

type timedCache struct {
	c Cache
	d time.Duration
}

func (t *timedCache) Get(ctx context.Context, key string) ([]byte, error) {
	return WithTimeout(ctx, t.d, func(ctx context.Context) ([]byte, error) {
		return t.c.Get(ctx, key)
	})
}

func (t *timedCache) Exists(ctx context.Context, key string) (bool, error) {
	return WithTimeout(ctx, t.d, func(ctx context.Context) (bool, error) {
		return t.c.Exists(ctx, key)
	})
}

func (t *timedCache) Put(ctx context.Context, key string, value []byte) error {
	return Do(ctx, t.d, func(ctx context.Context) error {
		return t.c.Put(ctx, key, value)
	})
}

func (t *timedCache) Delete(ctx context.Context, key string) error {
	return Do(ctx, t.d, func(ctx context.Context) error {
		return t.c.Delete(ctx, key)
	})
}
