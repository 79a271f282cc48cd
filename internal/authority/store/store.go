package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/authority/internal/authority/domain"
)

var (
	ErrNotFound = errors.New("store: not found")

	// ErrTimeout is returned when a call does not finish within its time
	// budget. The in-flight call is cancelled.
	ErrTimeout = errors.New("store: operation timed out")

	// ErrUnavailable wraps any other driver failure.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the root data access interface for the relational side. Concrete
// drivers (sqlite, postgres, memory) implement this and expose
// sub-repositories to keep concerns tidy and testable.
type Store interface {
	RefreshSessions() RefreshSessions
	ConfirmationTokens() ConfirmationTokens

	// Cache returns a key-value cache persisted in the same database.
	Cache() Cache

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type RefreshSessions interface {
	// UpsertRefreshSession stores s, replacing any row for the same
	// (client, user) pair.
	UpsertRefreshSession(ctx context.Context, s domain.RefreshSession) error

	// TakeRefreshSession atomically deletes and returns the row holding
	// tokenHash. Of several concurrent callers at most one gets the row;
	// the rest get ErrNotFound.
	TakeRefreshSession(ctx context.Context, tokenHash string) (domain.RefreshSession, error)

	// GetRefreshSession returns the row for a (client, user) pair.
	GetRefreshSession(ctx context.Context, clientID, userID string) (domain.RefreshSession, error)

	// DeleteRefreshSession removes the row for a (client, user) pair. Deleting
	// a missing row is not an error.
	DeleteRefreshSession(ctx context.Context, clientID, userID string) error
}

type ConfirmationTokens interface {
	// SaveConfirmationToken writes t keyed by its user id, replacing any
	// existing row for that user.
	SaveConfirmationToken(ctx context.Context, t domain.ConfirmationToken) error

	GetConfirmationToken(ctx context.Context, userID string) (domain.ConfirmationToken, error)

	// DeleteConfirmationToken removes the user's row. Deleting a missing row
	// is not an error.
	DeleteConfirmationToken(ctx context.Context, userID string) error
}

// Cache is the narrow key-value contract the revocation store is built on.
type Cache interface {
	// Get returns ErrNotFound for absent keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
