// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → normalizes input, enforces rules
//	Repository (data layer)  → reads/writes the database
//
// UserService takes a repository.Store (interface), never a concrete
// database type, so tests run against an in-memory fake and production picks
// SQLite or Postgres in main.go.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/flux-server/internal/apperror"
	"github.com/sakif/flux-server/internal/model"
	"github.com/sakif/flux-server/internal/repository"
)

// UserService handles registration, reconnection, XP updates and the leaderboard.
type UserService struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(store repository.Store, logger *slog.Logger) *UserService {
	return &UserService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail trims surrounding whitespace and lowercases.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user.
//
// The email is normalized and the username trimmed. It fails with
// apperror.EmailExists if the email is taken, then with apperror.NameTaken
// if another user has exactly this username.
//
// Both checks and the insert run in one transaction, so two concurrent
// registrations can't both claim the same username.
func (s *UserService) Register(ctx context.Context, email, username string) (*model.User, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)

	user := &model.User{
		Username:   username,
		Email:      email,
		LastActive: s.now(),
	}

	err := s.store.WithinTx(ctx, func(users repository.UserRepository) error {
		if err := ensureAbsent(users.GetByEmail(ctx, email)); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return apperror.EmailExists(email)
			}
			return err
		}
		if err := ensureAbsent(users.GetByUsername(ctx, username)); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return apperror.NameTaken(username)
			}
			return err
		}
		return users.Create(ctx, user)
	})
	if err != nil {
		if apperror.KindOf(err) == "" {
			s.logger.Error("failed to register user",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("id", user.FormattedID()),
		slog.String("username", user.Username),
	)
	return user, nil
}

// Reconnect looks a user up by email and, if the stored username differs
// from the supplied one, overwrites it.
//
// The new username is NOT checked against other users: reconnecting may
// give two accounts the same name. Reconnecting with the current username
// changes nothing.
func (s *UserService) Reconnect(ctx context.Context, email, username string) (*model.User, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)

	var user *model.User
	err := s.store.WithinTx(ctx, func(users repository.UserRepository) error {
		found, err := users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.UserNotFound("email", email)
			}
			return err
		}

		if found.Username != username {
			if err := users.UpdateUsername(ctx, found.ID, username); err != nil {
				return err
			}
			s.logger.Info("username changed on reconnect",
				slog.String("id", found.FormattedID()),
				slog.String("from", found.Username),
				slog.String("to", username),
			)
			found.Username = username
		}

		user = found
		return nil
	})
	if err != nil {
		if apperror.KindOf(err) == "" {
			s.logger.Error("failed to reconnect user",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("reconnecting user: %w", err)
	}

	return user, nil
}

// UpdateXP overwrites a user's XP totals and marks them active now.
//
// totalXP and todayXP are stored as supplied: no type checks, no clamping,
// no merging with the previous values. Last write wins.
func (s *UserService) UpdateXP(ctx context.Context, id int64, totalXP, todayXP any) error {
	err := s.store.Users().UpdateXP(ctx, id, totalXP, todayXP, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.UserNotFound("id", model.FormatID(id))
		}
		s.logger.Error("failed to update xp",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating xp: %w", err)
	}

	s.logger.Debug("xp updated", slog.String("id", model.FormatID(id)))
	return nil
}

// Leaderboard returns the top users by today's XP.
func (s *UserService) Leaderboard(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, err := s.store.Users().TopByTodayXP(ctx, repository.LeaderboardLimit)
	if err != nil {
		s.logger.Error("failed to load leaderboard", slog.String("error", err.Error()))
		return nil, fmt.Errorf("loading leaderboard: %w", err)
	}
	return entries, nil
}

// Ping reports whether the backing store is reachable.
func (s *UserService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ensureAbsent turns the result of a lookup into "is there a row?":
// nil when the lookup found nothing, apperror.ErrConflict when it found one,
// and the lookup's error for anything else.
func ensureAbsent(_ *model.User, err error) error {
	switch {
	case err == nil:
		return apperror.ErrConflict
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return err
	}
}
