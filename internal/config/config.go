// Package config loads server configuration from the environment.
//
// An optional .env file in the working directory is read first, then
// go-envconfig fills Config from the process environment. Real environment
// variables always win over values from .env.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port        string `env:"PORT,         default=8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH,  default=flux.db"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	LogFormat   string `env:"LOG_FORMAT,   default=text"`
}

// Driver names a store backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// StoreConfig is the resolved store selection.
type StoreConfig struct {
	Driver Driver
	// DSN is a file path (or ":memory:") for SQLite and a postgresql:// URL
	// for Postgres.
	DSN string
}

// ErrUnsupportedDatabaseURL is returned by Store for an unrecognised scheme.
var ErrUnsupportedDatabaseURL = errors.New("unsupported DATABASE_URL scheme")

// Load reads .env (if present) and the environment into a Config.
func Load(ctx context.Context) (*Config, error) {
	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}
	return &cfg, nil
}

// Store resolves DATABASE_URL into a backend and its connection string.
//
//	""                  → SQLite at SQLITE_PATH
//	postgres://...      → Postgres, scheme rewritten to postgresql://
//	postgresql://...    → Postgres
//	sqlite:///path      → SQLite at path
func (c *Config) Store() (StoreConfig, error) {
	url := strings.TrimSpace(c.DatabaseURL)

	switch {
	case url == "":
		return StoreConfig{Driver: DriverSQLite, DSN: c.SQLitePath}, nil
	case strings.HasPrefix(url, "postgres://"):
		return StoreConfig{Driver: DriverPostgres, DSN: "postgresql://" + strings.TrimPrefix(url, "postgres://")}, nil
	case strings.HasPrefix(url, "postgresql://"):
		return StoreConfig{Driver: DriverPostgres, DSN: url}, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		// sqlite:///flux.db names a relative file; sqlite:////abs/flux.db an absolute one.
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			path = c.SQLitePath
		}
		return StoreConfig{Driver: DriverSQLite, DSN: path}, nil
	default:
		return StoreConfig{}, fmt.Errorf("config: %w: %q", ErrUnsupportedDatabaseURL, schemeOf(url))
	}
}

// SlogLevel maps LOG_LEVEL onto a slog.Level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// JSONLogs reports whether LOG_FORMAT asks for the JSON slog handler.
func (c *Config) JSONLogs() bool {
	return strings.EqualFold(strings.TrimSpace(c.LogFormat), "json")
}

// schemeOf keeps credentials out of error messages.
func schemeOf(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i]
	}
	return "<none>"
}
