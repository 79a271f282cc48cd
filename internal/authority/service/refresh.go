package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/pkg/cryptox"
)

// RefreshTokenManager hands out opaque single-use refresh tokens. Only a
// fingerprint of each token is stored.
type RefreshTokenManager struct {
	sessions store.RefreshSessions
}

func NewRefreshTokenManager(sessions store.RefreshSessions) (*RefreshTokenManager, error) {
	if sessions == nil {
		return nil, fmt.Errorf("%w: refresh token manager needs a session repository", ErrMissingDependency)
	}
	return &RefreshTokenManager{sessions: sessions}, nil
}

// GenerateOpaqueToken returns 256 bits of randomness, base64url encoded.
func (m *RefreshTokenManager) GenerateOpaqueToken() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize256)
}

// Issue creates a refresh token bound to (clientID, userID) and the access
// token minted alongside it. Any earlier refresh token for the pair stops
// working.
func (m *RefreshTokenManager) Issue(ctx context.Context, clientID, userID, accessToken string, now time.Time) (string, error) {
	token, err := m.GenerateOpaqueToken()
	if err != nil {
		return "", err
	}

	err = m.sessions.UpsertRefreshSession(ctx, domain.RefreshSession{
		ClientID:    clientID,
		UserID:      userID,
		TokenHash:   cryptox.FingerprintToken(token),
		AccessToken: accessToken,
		CreatedAt:   now,
	})
	if err != nil {
		return "", fmt.Errorf("store refresh session: %w", err)
	}
	return token, nil
}

// Rotate consumes refreshToken and returns the session it belonged to. A
// token is only ever returned once, even to concurrent callers.
func (m *RefreshTokenManager) Rotate(ctx context.Context, refreshToken string) (domain.RefreshSession, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return domain.RefreshSession{}, ErrRefreshTokenInvalid
	}

	sess, err := m.sessions.TakeRefreshSession(ctx, cryptox.FingerprintToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RefreshSession{}, ErrRefreshTokenInvalid
		}
		return domain.RefreshSession{}, fmt.Errorf("take refresh session: %w", err)
	}
	return sess, nil
}

// Discard drops the refresh session for (clientID, userID), if any.
func (m *RefreshTokenManager) Discard(ctx context.Context, clientID, userID string) error {
	if err := m.sessions.DeleteRefreshSession(ctx, clientID, userID); err != nil {
		return fmt.Errorf("delete refresh session: %w", err)
	}
	return nil
}
