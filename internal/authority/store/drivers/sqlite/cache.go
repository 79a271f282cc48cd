package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// cacheRepo keeps cache entries in the cache_entries table so they survive
// restarts and are shared by every process pointed at the same file.
type cacheRepo struct {
	db *sql.DB
}

func (r *cacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return v, nil
}

func (r *cacheRepo) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cache_entries WHERE key = ?)`, key).Scan(&ok)
	return ok, err
}

func (r *cacheRepo) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO cache_entries (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}

func (r *cacheRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}
