package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/aussiebroadwan/authority/internal/authority/store"
	"github.com/aussiebroadwan/authority/pkg/jwtx"
)

// Store and cache drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	// CacheStore keeps revocation sets in the relational store's
	// cache_entries table.
	CacheStore = "store"
)

// Config is resolved from defaults, then the YAML file named by --config,
// then environment variables, then command-line flags.
type Config struct {
	Env       string `yaml:"env"`        // dev, staging, prod (default: dev)
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat string `yaml:"log_format"` // json, text (default: json)
	Port      int    `yaml:"port"`       // HTTP server port (default: 8080)

	StoreDriver  string        `yaml:"store_driver"`  // sqlite, postgres, memory (default: sqlite)
	DatabaseFile string        `yaml:"database_file"` // SQLite file (default: authority.db)
	DatabaseDSN  string        `yaml:"database_dsn"`  // Postgres connection string
	CacheDriver  string        `yaml:"cache_driver"`  // store, memory (default: store)
	StoreTimeout time.Duration `yaml:"store_timeout"` // per-call budget (default: 500ms)

	AccessTokenTTL       time.Duration `yaml:"access_token_ttl"`       // default: 30m
	ConfirmationTokenTTL time.Duration `yaml:"confirmation_token_ttl"` // default: 15m
	ClaimsCacheSize      int64         `yaml:"claims_cache_size"`      // verified tokens kept in memory, 0 disables (default: 10000)

	// Key material, base64. Explicit keys win over MasterSecret; with
	// neither, keys are generated at start-up and every restart logs
	// everybody out.
	AccessKey       string `yaml:"access_key"`
	ConfirmationKey string `yaml:"confirmation_key"`
	MasterSecret    string `yaml:"master_secret"`

	// InternalToken enables the internal routes and must be presented on
	// them. Empty disables them.
	InternalToken string `yaml:"internal_token"`

	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period"` // default: 10s
}

func DefaultConfig() Config {
	return Config{
		Env:                  "dev",
		LogLevel:             "info",
		LogFormat:            "json",
		Port:                 8080,
		StoreDriver:          DriverSQLite,
		DatabaseFile:         "authority.db",
		CacheDriver:          CacheStore,
		StoreTimeout:         store.DefaultTimeout,
		AccessTokenTTL:       30 * time.Minute,
		ConfirmationTokenTTL: 15 * time.Minute,
		ClaimsCacheSize:      10_000,
		ShutdownGracePeriod:  10 * time.Second,
	}
}

// ErrHelp is returned by LoadConfig when --help was requested.
var ErrHelp = pflag.ErrHelp

// LoadConfig resolves the configuration for a process started with args
// (without the program name).
func LoadConfig(args []string) (Config, error) {
	// The first pass only finds --config. Flags are parsed again on top of
	// the file and the environment so they take precedence.
	scratch := DefaultConfig()
	pre := newFlagSet(&scratch)
	if err := pre.Parse(args); err != nil {
		return Config{}, err
	}
	if help, _ := pre.GetBool("help"); help {
		return Config{}, ErrHelp
	}
	path, _ := pre.GetString("config")

	cfg := DefaultConfig()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if extra := fs.Args(); len(extra) > 0 {
		return Config{}, fmt.Errorf("unexpected argument: %s", extra[0])
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("authority", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("config", "", "path to a YAML configuration file")

	fs.StringVar(&cfg.Env, "env", cfg.Env, "deployment environment (dev, staging, prod)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, text)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")

	fs.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "store driver (sqlite, postgres, memory)")
	fs.StringVar(&cfg.DatabaseFile, "database-file", cfg.DatabaseFile, "SQLite database file")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "Postgres connection string")
	fs.StringVar(&cfg.CacheDriver, "cache", cfg.CacheDriver, "revocation cache driver (store, memory)")
	fs.DurationVar(&cfg.StoreTimeout, "store-timeout", cfg.StoreTimeout, "time budget for each store call")

	fs.DurationVar(&cfg.AccessTokenTTL, "access-ttl", cfg.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&cfg.ConfirmationTokenTTL, "confirmation-ttl", cfg.ConfirmationTokenTTL, "confirmation token lifetime")
	fs.Int64Var(&cfg.ClaimsCacheSize, "claims-cache-size", cfg.ClaimsCacheSize, "verified tokens kept in memory (0 disables)")

	fs.DurationVar(&cfg.ShutdownGracePeriod, "shutdown-grace", cfg.ShutdownGracePeriod, "graceful shutdown timeout")
	fs.BoolP("help", "h", false, "show help")
	return fs
}

// Usage prints the command-line flags.
func Usage() string {
	cfg := DefaultConfig()
	return newFlagSet(&cfg).FlagUsages()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getEnvOrDefault("ENV", cfg.Env)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", cfg.LogFormat)
	cfg.Port = getEnvIntOrDefault("PORT", cfg.Port)

	cfg.StoreDriver = getEnvOrDefault("AUTHORITY_STORE_DRIVER", cfg.StoreDriver)
	cfg.DatabaseFile = getEnvOrDefault("AUTHORITY_DATABASE_FILE", cfg.DatabaseFile)
	cfg.DatabaseDSN = getEnvOrDefault("AUTHORITY_DATABASE_DSN", cfg.DatabaseDSN)
	cfg.CacheDriver = getEnvOrDefault("AUTHORITY_CACHE_DRIVER", cfg.CacheDriver)
	cfg.StoreTimeout = getEnvDurationOrDefault("AUTHORITY_STORE_TIMEOUT", cfg.StoreTimeout)

	cfg.AccessTokenTTL = getEnvDurationOrDefault("AUTHORITY_ACCESS_TOKEN_TTL", cfg.AccessTokenTTL)
	cfg.ConfirmationTokenTTL = getEnvDurationOrDefault("AUTHORITY_CONFIRMATION_TOKEN_TTL", cfg.ConfirmationTokenTTL)
	cfg.ClaimsCacheSize = int64(getEnvIntOrDefault("AUTHORITY_CLAIMS_CACHE_SIZE", int(cfg.ClaimsCacheSize)))

	cfg.AccessKey = getEnvOrDefault("AUTHORITY_ACCESS_KEY", cfg.AccessKey)
	cfg.ConfirmationKey = getEnvOrDefault("AUTHORITY_CONFIRMATION_KEY", cfg.ConfirmationKey)
	cfg.MasterSecret = getEnvOrDefault("AUTHORITY_MASTER_SECRET", cfg.MasterSecret)
	cfg.InternalToken = getEnvOrDefault("AUTHORITY_INTERNAL_TOKEN", cfg.InternalToken)

	cfg.ShutdownGracePeriod = getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", cfg.ShutdownGracePeriod)
}

// Validate reports the first setting the application cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			return errors.New("config: database file is required for the sqlite store")
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("config: database dsn is required for the postgres store")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown store driver %q", c.StoreDriver)
	}

	if c.CacheDriver != CacheStore && c.CacheDriver != DriverMemory {
		return fmt.Errorf("config: unknown cache driver %q", c.CacheDriver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.StoreTimeout <= 0 {
		return errors.New("config: store timeout must be positive")
	}
	if c.AccessTokenTTL < time.Second || c.ConfirmationTokenTTL < time.Second {
		return fmt.Errorf("%w: token lifetimes must be at least one second", jwtx.ErrInvalidLifetime)
	}
	if c.ClaimsCacheSize < 0 {
		return errors.New("config: claims cache size cannot be negative")
	}
	return nil
}

// Lifetimes converts the configured token lifetimes.
func (c Config) Lifetimes() (access, confirmation jwtx.Lifetime) {
	return jwtx.LifetimeOf(c.AccessTokenTTL), jwtx.LifetimeOf(c.ConfirmationTokenTTL)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
