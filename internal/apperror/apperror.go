// Package apperror defines the domain errors shared by the service, repository
// and handler layers.
//
// Every *AppError wraps one of the sentinel errors below (so callers can use
// errors.Is) and carries a Kind: the machine-readable string that the API
// returns to clients in {"error": "<kind>"}.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
)

// Error kinds as they appear on the wire.
const (
	KindEmailExists   = "email_exists"
	KindNameTaken     = "name_taken"
	KindUserNotFound  = "user_not_found"
	KindInvalidID     = "invalid_id"
	KindUnknownAction = "unknown_action"
)

type AppError struct {
	Err     error  // actual error
	Kind    string // Wire error kind, e.g. "email_exists"
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf returns the wire kind of the first *AppError in err's chain,
// or "" if there is none.
func KindOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// NotFound is returned by repositories when a lookup matches no row.
// The kind is derived from the resource, so NotFound("user", ...) has
// kind "user_not_found".
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Kind:    resource + "_not_found",
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// EmailExists reports a registration against an email that already has an account.
func EmailExists(email string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Kind:    KindEmailExists,
		Message: fmt.Sprintf("a user with email %s already exists", email),
		Field:   "email",
	}
}

// NameTaken reports a registration with a username another user already holds.
func NameTaken(username string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Kind:    KindNameTaken,
		Message: fmt.Sprintf("username %q is taken", username),
		Field:   "username",
	}
}

// UserNotFound reports a reconnect or update that matched no user.
// by names the lookup key ("email" or "id").
func UserNotFound(by, value string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Kind:    KindUserNotFound,
		Message: fmt.Sprintf("user not found with %s %s", by, value),
		Field:   by,
	}
}

func InvalidID(raw string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Kind:    KindInvalidID,
		Message: fmt.Sprintf("user_id %s is not an integer", raw),
		Field:   "user_id",
	}
}

func UnknownAction(action string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Kind:    KindUnknownAction,
		Message: fmt.Sprintf("unknown action %q", action),
		Field:   "action",
	}
}
