// Package main is the entry point for the Flux server.
//
// main stays minimal. Its job is to:
// 1. Read configuration (environment, optional .env)
// 2. Create dependencies (logger, store)
// 3. Start the server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/flux-server/internal/config"
	"github.com/sakif/flux-server/internal/repository"
	"github.com/sakif/flux-server/internal/repository/postgres"
	sqliteRepo "github.com/sakif/flux-server/internal/repository/sqlite"
	"github.com/sakif/flux-server/internal/server"
)

func main() {
	ctx := context.Background()

	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// === 3. OPEN THE STORE ===
	storeCfg, err := cfg.Store()
	if err != nil {
		logger.Error("invalid database configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := openStore(ctx, storeCfg, logger)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("driver", string(storeCfg.Driver)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	// Start() blocks until SIGINT/SIGTERM and closes the store on the way out.
	srv := server.New(server.Config{
		Port:     cfg.Port,
		Database: describeStore(storeCfg),
	}, store, logger)

	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.JSONLogs() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStore(ctx context.Context, sc config.StoreConfig, logger *slog.Logger) (repository.Store, error) {
	switch sc.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, sc.DSN)

	case config.DriverSQLite:
		if sc.DSN != ":memory:" {
			// os.MkdirAll is a no-op when the directory already exists.
			dir := filepath.Dir(sc.DSN)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		} else {
			logger.Warn("using an in-memory SQLite store, data is lost on exit")
		}
		return sqliteRepo.New(sc.DSN)

	default:
		return nil, fmt.Errorf("unknown store driver %q", sc.Driver)
	}
}

// describeStore names the store for logs without leaking credentials.
func describeStore(sc config.StoreConfig) string {
	if sc.Driver == config.DriverSQLite {
		return "sqlite:" + sc.DSN
	}
	return string(sc.Driver)
}
