package sqlite

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
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (client_id, user_id) DO UPDATE SET
    token_hash   = excluded.token_hash,
    access_token = excluded.access_token,
    created_at   = excluded.created_at`

func (r *refreshSessionsRepo) UpsertRefreshSession(ctx context.Context, s domain.RefreshSession) error {
	_, err := r.db.ExecContext(ctx, upsertRefreshSession,
		s.ClientID, s.UserID, s.TokenHash, s.AccessToken, s.CreatedAt.UTC())
	return err
}

const takeRefreshSession = `
DELETE FROM refresh_sessions
WHERE token_hash = ?
RETURNING client_id, user_id, token_hash, access_token, created_at`

func (r *refreshSessionsRepo) TakeRefreshSession(ctx context.Context, tokenHash string) (domain.RefreshSession, error) {
	return scanRefreshSession(r.db.QueryRowContext(ctx, takeRefreshSession, tokenHash))
}

const getRefreshSession = `
SELECT client_id, user_id, token_hash, access_token, created_at
FROM refresh_sessions
WHERE client_id = ? AND user_id = ?`

func (r *refreshSessionsRepo) GetRefreshSession(ctx context.Context, clientID, userID string) (domain.RefreshSession, error) {
	return scanRefreshSession(r.db.QueryRowContext(ctx, getRefreshSession, clientID, userID))
}

func (r *refreshSessionsRepo) DeleteRefreshSession(ctx context.Context, clientID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE client_id = ? AND user_id = ?`, clientID, userID)
	return err
}

func scanRefreshSession(row *sql.Row) (domain.RefreshSession, error) {
	var s domain.RefreshSession
	if err := row.Scan(&s.ClientID, &s.UserID, &s.TokenHash, &s.AccessToken, &s.CreatedAt); err != nil {
		return domain.RefreshSession{}, mapNotFound(err)
	}
	return s, nil
}
