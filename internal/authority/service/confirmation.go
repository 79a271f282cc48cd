package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/pkg/idx"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

// ConfirmationManager issues and checks registration confirmation tokens.
// Its codec must use a key distinct from the access token key.
type ConfirmationManager struct {
	codec  jwtx.Codec
	ids    idx.Source
	tokens store.ConfirmationTokens
}

func NewConfirmationManager(codec jwtx.Codec, ids idx.Source, tokens store.ConfirmationTokens) (*ConfirmationManager, error) {
	if codec == nil || ids == nil || tokens == nil {
		return nil, fmt.Errorf("%w: confirmation manager needs a codec, an id source and a repository", ErrMissingDependency)
	}
	return &ConfirmationManager{codec: codec, ids: ids, tokens: tokens}, nil
}

// Issue replaces any outstanding confirmation token for userID with a new
// one valid for lifetime from now.
func (m *ConfirmationManager) Issue(
	ctx context.Context,
	userID, email string,
	now time.Time,
	lifetime jwtx.Lifetime,
) (domain.ConfirmationToken, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.ConfirmationToken{}, fmt.Errorf("%w: user id is required", ErrIncompleteIdentity)
	}

	issued, expires, err := lifetime.Window(now)
	if err != nil {
		return domain.ConfirmationToken{}, err
	}

	if err := m.tokens.DeleteConfirmationToken(ctx, userID); err != nil {
		return domain.ConfirmationToken{}, fmt.Errorf("delete previous confirmation token: %w", err)
	}

	signed, err := m.codec.Sign(jwtx.Claims{
		UserID:    userID,
		IssuedAt:  issued,
		ExpiresAt: expires,
		ID:        m.ids.New().String(),
	})
	if err != nil {
		return domain.ConfirmationToken{}, err
	}

	t := domain.ConfirmationToken{
		UserID:    userID,
		Email:     email,
		Token:     signed,
		CreatedAt: issued,
	}
	if err := m.tokens.SaveConfirmationToken(ctx, t); err != nil {
		return domain.ConfirmationToken{}, fmt.Errorf("store confirmation token: %w", err)
	}
	return t, nil
}

// Confirm returns the stored row behind token, or nil if the token does not
// confirm anything at now. An expired token also removes the stored row it
// was issued as. The row is left in place on success; see Consume.
func (m *ConfirmationManager) Confirm(ctx context.Context, token string, now time.Time) (*domain.ConfirmationToken, error) {
	l := slogx.FromContext(ctx)

	claims, err := m.codec.Parse(token)
	if err != nil || claims.UserID == "" {
		return nil, nil
	}

	stored, err := m.tokens.GetConfirmationToken(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load confirmation token: %w", err)
	}

	// A newer token was issued since; this one is dead but the row is not
	// ours to clean up.
	if stored.Token != token {
		l.Warn("superseded confirmation token presented", "user_id", claims.UserID)
		return nil, nil
	}

	if claims.ExpiredAt(now) {
		l.Info("expired confirmation token, removing", "user_id", claims.UserID)
		if err := m.tokens.DeleteConfirmationToken(ctx, claims.UserID); err != nil {
			return nil, fmt.Errorf("delete expired confirmation token: %w", err)
		}
		return nil, nil
	}

	return &stored, nil
}

// Consume deletes the confirmation row once the caller has activated the
// user.
func (m *ConfirmationManager) Consume(ctx context.Context, userID string) error {
	if err := m.tokens.DeleteConfirmationToken(ctx, userID); err != nil {
		return fmt.Errorf("delete confirmation token: %w", err)
	}
	return nil
}
