package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// TWO KINDS OF ERROR:
// Domain errors (email_exists, user_not_found, ...) are part of the API
// contract. Clients check the "error" field, not the status code, so they go
// out as HTTP 200:
//   {"error": "email_exists"}
//
// Everything else is a real failure and gets a real status code:
//   400 {"error": "invalid_request", "message": "..."}   body is not a JSON object
//   500 {"error": "internal_error",  "message": "..."}   database failure

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/flux-server/internal/apperror"
)

const (
	errorInvalidRequest = "invalid_request"
	errorInternal       = "internal_error"
)

// ErrorResponse is the shape of every non-domain error.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "invalid_request")
	Message string `json:"message"` // Human-readable description
}

// DomainErrorResponse is the shape of a domain error: just the kind.
type DomainErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status go out before the body; once Encode writes, any
// header change is silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps an error from the service layer to a response and returns
// the label recorded in metrics.
//
//	*AppError with a Kind → 200 {"error": kind}
//	anything else         → 500 internal_error
//
// Internal error details are never sent to the client; they may contain SQL
// or file paths. The service has already logged them.
func writeError(w http.ResponseWriter, err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		writeJSON(w, http.StatusOK, DomainErrorResponse{Error: appErr.Kind})
		return appErr.Kind
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   errorInternal,
		Message: "An internal error occurred",
	})
	return errorInternal
}

// writeBadRequest rejects a body that could not be decoded.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   errorInvalidRequest,
		Message: message,
	})
}
