package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/flux-server/internal/apperror"
	"github.com/sakif/flux-server/internal/metrics"
	"github.com/sakif/flux-server/internal/model"
	"github.com/sakif/flux-server/internal/service"
)

// UserService is what APIHandler needs from the service layer.
//
// Declared here, where it is consumed, so handler tests can swap in a stub
// without a database. *service.UserService satisfies it.
type UserService interface {
	Register(ctx context.Context, email, username string) (*model.User, error)
	Reconnect(ctx context.Context, email, username string) (*model.User, error)
	UpdateXP(ctx context.Context, id int64, totalXP, todayXP any) error
	Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error)
	Ping(ctx context.Context) error
}

var _ UserService = (*service.UserService)(nil)

// Action is the closed set of operations POST /api dispatches on.
type Action int

const (
	ActionUnknown Action = iota
	ActionRegister
	ActionReconnect
	ActionUpdate
)

// ParseAction maps the body's "action" value onto an Action.
// Anything that isn't one of the known strings (including a missing or
// non-string value) is ActionUnknown.
func ParseAction(v any) Action {
	s, ok := v.(string)
	if !ok {
		return ActionUnknown
	}
	switch s {
	case "register":
		return ActionRegister
	case "reconnect":
		return ActionReconnect
	case "update":
		return ActionUpdate
	default:
		return ActionUnknown
	}
}

// String returns the metrics label for the action.
func (a Action) String() string {
	switch a {
	case ActionRegister:
		return "register"
	case ActionReconnect:
		return "reconnect"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// UserResponse is returned by register and reconnect.
type UserResponse struct {
	Status   string `json:"status"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// StatusResponse is returned by update.
type StatusResponse struct {
	Status string `json:"status"`
}

// APIHandler serves the action endpoint and the leaderboard.
type APIHandler struct {
	users  UserService
	logger *slog.Logger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(users UserService, logger *slog.Logger) *APIHandler {
	return &APIHandler{users: users, logger: logger}
}

// HandleAction dispatches one action.
//
// HTTP: POST /api
// REQUEST BODY: {"action": "register", "email": "...", "username": "..."}
//
//	{"action": "reconnect", "email": "...", "username": "..."}
//	{"action": "update", "user_id": "000001", "total_xp": 10, "today_xp": 5}
//
// Domain failures come back as HTTP 200 {"error": "<kind>"}.
//
// The body is decoded into a generic map with UseNumber so that numbers keep
// their exact text: user_id 4.7 and total_xp 1500 arrive as json.Number and
// the service decides what they become.
func (h *APIHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var body map[string]any

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		h.logger.Warn("invalid api request body", slog.String("error", err.Error()))
		metrics.RecordAction(ActionUnknown.String(), errorInvalidRequest)
		writeBadRequest(w, "Request body must be a JSON object")
		return
	}
	// "null" decodes into a nil map without error.
	if body == nil {
		metrics.RecordAction(ActionUnknown.String(), errorInvalidRequest)
		writeBadRequest(w, "Request body must be a JSON object")
		return
	}

	action := ParseAction(body["action"])

	var (
		result any
		err    error
	)
	switch action {
	case ActionRegister:
		result, err = h.register(r.Context(), body)
	case ActionReconnect:
		result, err = h.reconnect(r.Context(), body)
	case ActionUpdate:
		result, err = h.update(r.Context(), body)
	case ActionUnknown:
		err = apperror.UnknownAction(fmt.Sprintf("%v", body["action"]))
	}

	if err != nil {
		var fe *fieldError
		if errors.As(err, &fe) {
			metrics.RecordAction(action.String(), errorInvalidRequest)
			writeBadRequest(w, fe.Error())
			return
		}
		metrics.RecordAction(action.String(), writeError(w, err))
		return
	}

	metrics.RecordAction(action.String(), metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) register(ctx context.Context, body map[string]any) (any, error) {
	email, username, err := credentials(body)
	if err != nil {
		return nil, err
	}
	user, err := h.users.Register(ctx, email, username)
	if err != nil {
		return nil, err
	}
	return userResponse(user), nil
}

func (h *APIHandler) reconnect(ctx context.Context, body map[string]any) (any, error) {
	email, username, err := credentials(body)
	if err != nil {
		return nil, err
	}
	user, err := h.users.Reconnect(ctx, email, username)
	if err != nil {
		return nil, err
	}
	return userResponse(user), nil
}

func (h *APIHandler) update(ctx context.Context, body map[string]any) (any, error) {
	id, err := service.ParseUserID(body["user_id"])
	if err != nil {
		return nil, err
	}

	totalXP := service.NormalizeXP(body["total_xp"])
	todayXP := service.NormalizeXP(body["today_xp"])
	if err := h.users.UpdateXP(ctx, id, totalXP, todayXP); err != nil {
		return nil, err
	}
	return StatusResponse{Status: "updated"}, nil
}

// HandleLeaderboard returns the top users as [username, total_xp, today_xp]
// triples.
//
// HTTP: GET /api/leaderboard
//
// RESPONSE FORMAT:
//
//	[["B", 20, 9], ["A", 10, 5]]
//
// An empty store gives [] rather than null.
func (h *APIHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	metrics.LeaderboardRequestsTotal.Inc()

	entries, err := h.users.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func userResponse(user *model.User) UserResponse {
	return UserResponse{
		Status:   "success",
		UserID:   user.FormattedID(),
		Username: user.Username,
		Email:    user.Email,
	}
}

// fieldError reports a body field that is present but not a string.
type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s must be a string", e.field)
}

func credentials(body map[string]any) (email, username string, err error) {
	if email, err = stringField(body, "email"); err != nil {
		return "", "", err
	}
	if username, err = stringField(body, "username"); err != nil {
		return "", "", err
	}
	return email, username, nil
}

// stringField reads an optional string field. An absent key reads as ""
// and flows on to the service (an empty email simply matches no user).
// A key holding null, a number, an object or an array is rejected.
func stringField(body map[string]any, field string) (string, error) {
	v, present := body[field]
	if !present {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &fieldError{field: field}
	}
	return s, nil
}
