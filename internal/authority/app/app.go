package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authority/internal/authority/http"
	"github.com/aussiebroadwan/authority/internal/authority/service"
	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/memory"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/postgres"
	"github.com/aussiebroadwan/authority/internal/authority/store/drivers/sqlite"
	"github.com/aussiebroadwan/authority/pkg/clock"
	"github.com/aussiebroadwan/authority/pkg/httpx"
	"github.com/aussiebroadwan/authority/pkg/idx"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
	"github.com/aussiebroadwan/authority/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the token authority together and runs its HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock

	db    store.Store // raw driver, owned and closed by the application
	store store.Store // db with per-call deadlines
	cache store.Cache

	authority *service.Authority

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	return newApplication(cfg, slogx.New(slogx.Config{
		Service: "token-authority",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

func newApplication(cfg Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg:    cfg,
		logger: logger,
		clock:  clock.Real(),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keys, err := InitSigningKeys(cfg, logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}

	if err := app.initServices(keys); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("token authority starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, then closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token authority...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("token authority stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations.
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.StoreDriver {
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	case DriverPostgres:
		db, err = postgres.NewStore(app.cfg.DatabaseDSN)
	case DriverMemory:
		app.logger.Warn("using the in-memory store, sessions do not survive a restart")
		db = memory.NewStore()
	default:
		err = fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.logger.Info("database ready", "driver", app.cfg.StoreDriver)

	app.store = store.WithDeadline(db, app.cfg.StoreTimeout)
	switch app.cfg.CacheDriver {
	case DriverMemory:
		app.cache = store.CacheWithDeadline(memory.NewCache(), app.cfg.StoreTimeout)
		app.logger.Info("revocation cache kept in memory, revocations are per process")
	default:
		app.cache = app.store.Cache()
	}
	return nil
}

// initServices builds the token managers and the Authority on top of them.
func (app *Application) initServices(keys SigningKeys) error {
	accessCodec, err := jwtx.NewHS512Codec(keys.Access)
	if err != nil {
		return fmt.Errorf("access codec: %w", err)
	}
	confirmationCodec, err := jwtx.NewHS512Codec(keys.Confirmation)
	if err != nil {
		return fmt.Errorf("confirmation codec: %w", err)
	}

	var claimsCache *service.ClaimsCache
	if app.cfg.ClaimsCacheSize > 0 {
		claimsCache, err = service.NewClaimsCache(app.cfg.ClaimsCacheSize)
		if err != nil {
			return fmt.Errorf("claims cache: %w", err)
		}
	}

	ids := idx.NewGenerator(app.clock)

	access, err := service.NewAccessTokenManager(accessCodec, ids, claimsCache)
	if err != nil {
		return err
	}
	refresh, err := service.NewRefreshTokenManager(app.store.RefreshSessions())
	if err != nil {
		return err
	}
	revocations, err := service.NewRevocationStore(app.cache, access)
	if err != nil {
		return err
	}
	confirmations, err := service.NewConfirmationManager(confirmationCodec, ids, app.store.ConfirmationTokens())
	if err != nil {
		return err
	}

	accessTTL, confirmationTTL := app.cfg.Lifetimes()
	app.authority, err = service.NewAuthority(access, refresh, revocations, confirmations, app.clock,
		service.Lifetimes{Access: accessTTL, Confirmation: confirmationTTL})
	if err != nil {
		return err
	}

	app.logger.Info("token authority configured",
		"access_ttl", accessTTL.String(),
		"confirmation_ttl", confirmationTTL.String(),
		"claims_cache", app.cfg.ClaimsCacheSize,
		"keys", keys.Source,
	)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.authority, app.store, app.cache, BuildVersion, app.logger)
	router.InternalToken = app.cfg.InternalToken
	router.Limits = httpapi.Limits{
		Credential:    httpx.RateLimitFromEnv("CREDENTIAL", httpapi.DefaultLimits.Credential),
		Authenticated: httpx.RateLimitFromEnv("AUTHENTICATED", httpapi.DefaultLimits.Authenticated),
		Internal:      httpx.RateLimitFromEnv("INTERNAL", httpapi.DefaultLimits.Internal),
		Health:        httpx.RateLimitFromEnv("HEALTH", httpapi.DefaultLimits.Health),
	}
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
