package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/postgres"
	"github.com/aussiebroadwan/authority/internal/authority/store/storetest"
)

// startPostgres runs a throwaway Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "authority",
			"POSTGRES_PASSWORD": "authority",
			"POSTGRES_DB":       "authority",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://authority:authority@%s:%s/authority?sslmode=disable", host, port.Port())
}

func TestStore(t *testing.T) {
	dsn := startPostgres(t)

	base, err := postgres.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })
	require.NoError(t, base.ApplyMigrations())

	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := postgres.NewStore(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.NoError(t, s.ApplyMigrations())
		truncate(t, dsn)
		return s
	})
}

func truncate(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(context.Background(),
		`TRUNCATE refresh_sessions, confirmation_tokens, cache_entries`)
	require.NoError(t, err)
}
