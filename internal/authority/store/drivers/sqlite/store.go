package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/authority/internal/authority/store"
	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	dsn string
}

var _ store.Store = (*Store)(nil)

// NewStore opens the database at dsn. Callers running concurrent writers
// should add a busy timeout pragma, e.g. "file:auth.db?_pragma=busy_timeout(5000)".
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) RefreshSessions() store.RefreshSessions       { return &refreshSessionsRepo{db: s.db} }
func (s *Store) ConfirmationTokens() store.ConfirmationTokens { return &confirmationTokensRepo{db: s.db} }
func (s *Store) Cache() store.Cache                           { return &cacheRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
