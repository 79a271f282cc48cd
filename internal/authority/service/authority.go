package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
	"github.com/aussiebroadwan/authority/pkg/clock"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

// Lifetimes of the tokens the Authority signs.
type Lifetimes struct {
	Access       jwtx.Lifetime
	Confirmation jwtx.Lifetime
}

// DefaultLifetimes are used by deployments that do not override them.
var DefaultLifetimes = Lifetimes{
	Access:       jwtx.Lifetime{Amount: 30, Unit: jwtx.Minute},
	Confirmation: jwtx.Lifetime{Amount: 15, Unit: jwtx.Minute},
}

// Authority is the single entry point for issuing, validating, rotating and
// revoking credentials. Per (client, user) pair a session moves from none,
// to active on login, stays active across refreshes (each one consuming the
// old refresh token and revoking the old access token), and ends on logout
// or when the access token expires.
type Authority struct {
	access        *AccessTokenManager
	refresh       *RefreshTokenManager
	revocations   *RevocationStore
	confirmations *ConfirmationManager
	clock         clock.Clock
	lifetimes     Lifetimes
}

func NewAuthority(
	access *AccessTokenManager,
	refresh *RefreshTokenManager,
	revocations *RevocationStore,
	confirmations *ConfirmationManager,
	clk clock.Clock,
	lifetimes Lifetimes,
) (*Authority, error) {
	if access == nil || refresh == nil || revocations == nil || confirmations == nil || clk == nil {
		return nil, fmt.Errorf("%w: authority", ErrMissingDependency)
	}
	if lifetimes.Access.Duration() <= 0 || lifetimes.Confirmation.Duration() <= 0 {
		return nil, fmt.Errorf("%w: access %s, confirmation %s",
			jwtx.ErrInvalidLifetime, lifetimes.Access, lifetimes.Confirmation)
	}
	return &Authority{
		access:        access,
		refresh:       refresh,
		revocations:   revocations,
		confirmations: confirmations,
		clock:         clk,
		lifetimes:     lifetimes,
	}, nil
}

// IssueAuthTokens logs a user in on clientID, replacing any session the
// pair already had.
func (a *Authority) IssueAuthTokens(ctx context.Context, roles []string, clientID, userID, email string) (domain.TokenPair, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(userID) == "" || strings.TrimSpace(email) == "" {
		return domain.TokenPair{}, ErrIncompleteIdentity
	}

	now := a.clock.Now()
	accessToken, err := a.access.Generate(roles, clientID, userID, email, now, a.lifetimes.Access)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := a.refresh.Issue(ctx, clientID, userID, accessToken, now)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to issue refresh token",
			"client_id", clientID, "user_id", userID, "err", err)
		return domain.TokenPair{}, err
	}

	slogx.FromContext(ctx).Info("session issued", "client_id", clientID, "user_id", userID)
	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    a.lifetimes.Access.Duration(),
	}, nil
}

// ValidateAccessToken returns the claims of a token that currently
// authenticates its bearer. nil claims with a nil error means "not
// authenticated"; a non-nil error means the revocation set could not be
// read.
func (a *Authority) ValidateAccessToken(ctx context.Context, token string) (*jwtx.Claims, error) {
	claims := a.access.Validate(token, a.clock.Now())
	if claims == nil {
		return nil, nil
	}

	revoked, err := a.revocations.IsRevoked(ctx, claims.ClientID, token)
	if err != nil {
		slogx.FromContext(ctx).Error("revocation check failed", "client_id", claims.ClientID, "err", err)
		return nil, err
	}
	if revoked {
		return nil, nil
	}
	return claims, nil
}

// RotateRefreshToken exchanges a refresh token for a new pair. The old
// refresh token is consumed and the access token issued with it is revoked.
func (a *Authority) RotateRefreshToken(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	sess, err := a.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenInvalid) {
			l.Warn("rejected refresh token")
		}
		return domain.TokenPair{}, err
	}

	// The old access token may well have expired; only its signature matters
	// here since the identity is carried forward from it.
	prev := a.access.ExtractClaims(sess.AccessToken)
	if prev == nil || prev.Subject == "" {
		l.Warn("refresh session holds an unreadable access token",
			"client_id", sess.ClientID, "user_id", sess.UserID)
		return domain.TokenPair{}, ErrRefreshTokenInvalid
	}

	if err := a.revocations.Revoke(ctx, sess.ClientID, sess.AccessToken, a.clock.Now()); err != nil {
		l.Error("failed to revoke superseded access token", "client_id", sess.ClientID, "err", err)
		return domain.TokenPair{}, err
	}

	pair, err := a.IssueAuthTokens(ctx, prev.Roles, sess.ClientID, sess.UserID, prev.Subject)
	if err != nil {
		return domain.TokenPair{}, err
	}
	l.Info("session rotated", "client_id", sess.ClientID, "user_id", sess.UserID)
	return pair, nil
}

// RevokeAccessToken logs out: token is added to clientID's revocation set
// and the refresh session of its user on that client is dropped. Unreadable
// tokens, and tokens issued to a different client, are ignored.
func (a *Authority) RevokeAccessToken(ctx context.Context, clientID, token string) error {
	l := slogx.FromContext(ctx)

	claims := a.access.ExtractClaims(token)
	if claims == nil {
		return nil
	}
	if claims.ClientID != clientID {
		l.Warn("ignoring logout for a token of another client",
			"client_id", clientID, "token_client_id", claims.ClientID)
		return nil
	}

	if err := a.revocations.Revoke(ctx, clientID, token, a.clock.Now()); err != nil {
		l.Error("failed to revoke access token", "client_id", clientID, "err", err)
		return err
	}

	if claims.UserID == "" {
		return nil
	}
	if err := a.refresh.Discard(ctx, clientID, claims.UserID); err != nil {
		l.Error("failed to discard refresh session", "client_id", clientID, "user_id", claims.UserID, "err", err)
		return err
	}

	l.Info("session revoked", "client_id", clientID, "user_id", claims.UserID)
	return nil
}

// IssueConfirmationToken starts (or restarts) email confirmation for userID.
func (a *Authority) IssueConfirmationToken(ctx context.Context, userID, email string) (domain.ConfirmationToken, error) {
	t, err := a.confirmations.Issue(ctx, userID, email, a.clock.Now(), a.lifetimes.Confirmation)
	if err != nil {
		return domain.ConfirmationToken{}, err
	}
	slogx.FromContext(ctx).Info("confirmation token issued", "user_id", userID)
	return t, nil
}

// ConfirmRegistration returns the pending confirmation behind token, or nil
// if the token confirms nothing. The caller activates the user and then
// calls ConsumeConfirmationToken.
func (a *Authority) ConfirmRegistration(ctx context.Context, token string) (*domain.ConfirmationToken, error) {
	return a.confirmations.Confirm(ctx, token, a.clock.Now())
}

func (a *Authority) ConsumeConfirmationToken(ctx context.Context, userID string) error {
	return a.confirmations.Consume(ctx, userID)
}

func (a *Authority) Lifetimes() Lifetimes { return a.lifetimes }
