package postgres

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
)

type refreshSessionsRepo struct {
	db *sql.DB
}

const upsertRefreshSession = `
INSERT INTO refresh_sessions (client_id, user_id, token_hash, access_token, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (client_id, user_id) DO UPDATE SET
    token_hash   = EXCLUDED.token_hash,
    access_token = EXCLUDED.access_token,
    created_at   = EXCLUDED.created_at`

func (r *refreshSessionsRepo) UpsertRefreshSession(ctx context.Context, s domain.RefreshSession) error {
	_, err := r.db.ExecContext(ctx, upsertRefreshSession,
		s.ClientID, s.UserID, s.TokenHash, s.AccessToken, s.CreatedAt.UTC())
	return err
}

// Row-level locking makes the DELETE exclusive: a concurrent DELETE for the
// same fingerprint waits, then re-checks and finds nothing.
const takeRefreshSession = `
DELETE FROM refresh_sessions
WHERE token_hash = $1
RETURNING client_id, user_id, token_hash, access_token, created_at`

func (r *refreshSessionsRepo) TakeRefreshSession(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	return scanRefreshSession(r.db.QueryRowContext(ctx, takeRefreshSession, tokenHash))
}

const getRefreshSession = `
SELECT client_id, user_id, token_hash, access_token, created_at
FROM refresh_sessions
WHERE client_id = $1 AND user_id = $2`

func (r *refreshSessionsRepo) GetRefreshSession(ctx context.Context, clientID, userID string) (domain.RefreshSession, error) {
	return scanRefreshSession(r.db.QueryRowContext(ctx, getRefreshSession, clientID, userID))
}

func (r *refreshSessionsRepo) DeleteRefreshSession(ctx context.Context, clientID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE client_id = $1 AND user_id = $2`, clientID, userID)
	return err
}

func scanRefreshSession(row *sql.Row) (domain.RefreshSession, error) {
	var s domain.RefreshSession
	if err := row.Scan(&s.ClientID, &s.UserID, &s.TokenHash, &s.AccessToken, &s.CreatedAt); err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}
