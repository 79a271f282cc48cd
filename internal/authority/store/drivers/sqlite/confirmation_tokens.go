package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
)

type confirmationTokensRepo struct {
	db *sql.DB
}

const saveConfirmationToken = `
INSERT INTO confirmation_tokens (user_id, email, token, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    email      = excluded.email,
    token      = excluded.token,
    created_at = excluded.created_at`

func (r *confirmationTokensRepo) SaveConfirmationToken(ctx context.Context, t domain.ConfirmationToken) error {
	_, err := r.db.ExecContext(ctx, saveConfirmationToken, t.UserID, t.Email, t.Token, t.CreatedAt.UTC())
	return err
}

func (r *confirmationTokensRepo) GetConfirmationToken(ctx context.Context, userID string) (domain.ConfirmationToken, error) {
	var t domain.ConfirmationToken
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, token, created_at FROM confirmation_tokens WHERE user_id = ?`, userID,
	).Scan(&t.UserID, &t.Email, &t.Token, &t.CreatedAt)
	if err != nil {
		return domain.ConfirmationToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *confirmationTokensRepo) DeleteConfirmationToken(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM confirmation_tokens WHERE user_id = ?`, userID)
	return err
}
