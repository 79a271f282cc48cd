// Package memory is a process-local store driver for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
	"github.com/aussiebroadwan/authority/internal/authority/store"
)

type Store struct {
	mu            sync.Mutex
	sessions      map[sessionKey]domain.RefreshSession
	byHash        map[string]sessionKey
	confirmations map[string]domain.ConfirmationToken
	cache         *Cache
}

type sessionKey struct {
	clientID string
	userID   string
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		sessions:      make(map[sessionKey]domain.RefreshSession),
		byHash:        make(map[string]sessionKey),
		confirmations: make(map[string]domain.ConfirmationToken),
		cache:         NewCache(),
	}
}

func (s *Store) RefreshSessions() store.RefreshSessions       { return (*refreshSessionsRepo)(s) }
func (s *Store) ConfirmationTokens() store.ConfirmationTokens { return (*confirmationTokensRepo)(s) }
func (s *Store) Cache() store.Cache                           { return s.cache }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type refreshSessionsRepo Store

func (r *refreshSessionsRepo) UpsertRefreshSession(ctx context.Context, sess domain.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := sessionKey{clientID: sess.ClientID, userID: sess.UserID}
	if old, ok := r.sessions[k]; ok {
		delete(r.byHash, old.TokenHash)
	}
	r.sessions[k] = sess
	r.byHash[sess.TokenHash] = k
	return nil
}

func (r *refreshSessionsRepo) TakeRefreshSession(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.byHash[tokenHash]
	if !ok {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	sess := r.sessions[k]
	delete(r.byHash, tokenHash)
	delete(r.sessions, k)
	return sess, nil
}

func (r *refreshSessionsRepo) GetRefreshSession(ctx context.Context, clientID, userID string) (domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionKey{clientID: clientID, userID: userID}]
	if !ok {
		return domain.RefreshSession{}, store.ErrNotFound
	}
	return sess, nil
}

func (r *refreshSessionsRepo) DeleteRefreshSession(ctx context.Context, clientID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := sessionKey{clientID: clientID, userID: userID}
	if sess, ok := r.sessions[k]; ok {
		delete(r.byHash, sess.TokenHash)
		delete(r.sessions, k)
	}
	return nil
}

type confirmationTokensRepo Store

func (r *confirmationTokensRepo) SaveConfirmationToken(ctx context.Context, t domain.ConfirmationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmations[t.UserID] = t
	return nil
}

func (r *confirmationTokensRepo) GetConfirmationToken(ctx context.Context, userID string) (domain.ConfirmationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.confirmations[userID]
	if !ok {
		return domain.ConfirmationToken{}, store.ErrNotFound
	}
	return t, nil
}

func (r *confirmationTokensRepo) DeleteConfirmationToken(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.confirmations, userID)
	return nil
}
