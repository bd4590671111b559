// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer: it connects handlers, middleware and
// routes, and owns the server's lifecycle.
//
// DEPENDENCY INJECTION FLOW:
// main.go creates:
//
//	config → logger → repository.Store (sqlite or postgres) → Server
//
// Server.New then builds:
//
//	Store → UserService → APIHandler / HealthHandler → routes
package server

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sakif/flux-server/internal/handler"
	"github.com/sakif/flux-server/internal/middleware"
	"github.com/sakif/flux-server/internal/repository"
	"github.com/sakif/flux-server/internal/service"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port string
	// Database describes the store for the startup log line. Never a DSN
	// with credentials.
	Database string
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store: it is closed after the HTTP server has
// drained, in Start.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  repository.Store
}

// New creates a new Server around an already-open store.
func New(cfg Config, store repository.Store, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes()
	return s
}

// Handler returns the fully wrapped HTTP handler (CORS included).
func (s *Server) Handler() http.Handler {
	return cors.AllowAll().Handler(s.router)
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                  → liveness text
// GET    /healthz           → readiness (store ping)
// GET    /metrics           → Prometheus exposition
// POST   /api               → register / reconnect / update
// GET    /api/leaderboard   → top 50 by today's XP
//
// MIDDLEWARE ORDER:
// 1. RequestID: assigns a unique id to each request (logged by Logger)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Recoverer: catches panics and returns 500 instead of crashing
// 4. Logger: logs each request with timing info
//
// CORS wraps the whole router (see Handler) so preflight OPTIONS requests are
// answered before routing.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	userService := service.NewUserService(s.store, s.logger)
	apiHandler := handler.NewAPIHandler(userService, s.logger)
	healthHandler := handler.NewHealthHandler(userService, s.logger)

	s.router.Get("/", healthHandler.HandleLive)
	s.router.Get("/healthz", healthHandler.HandleReady)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/api", apiHandler.HandleAction)
	s.router.Get("/api/leaderboard", apiHandler.HandleLeaderboard)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the store (flushes the SQLite WAL / drains the Postgres pool)
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%s", s.config.Port)),
			slog.String("database", s.config.Database),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
