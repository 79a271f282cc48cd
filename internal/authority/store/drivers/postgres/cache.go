package postgres

import (
	"context"
	"database/sql"
)

type cacheRepo struct {
	db *sql.DB
}

func (r *cacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = $1`, key).Scan(&v)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return v, nil
}

func (r *cacheRepo) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cache_entries WHERE key = $1)`, key).Scan(&ok)
	return ok, err
}

func (r *cacheRepo) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO cache_entries (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	return err
}
