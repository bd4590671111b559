package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// LiveMessage is the body of GET /.
const LiveMessage = "Flux Server is Live!"

// healthTimeout bounds the store ping behind /healthz.
const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness endpoints.
type HealthHandler struct {
	store  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// HandleLive answers GET / with a plain-text liveness string. It never
// touches the store.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LiveMessage))
}

// HandleReady answers GET /healthz.
//
//	200 {"status":"ok"}           store answered a ping within 2s
//	503 {"status":"unavailable"}  it did not
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
