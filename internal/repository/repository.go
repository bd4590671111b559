// Package repository declares the storage interfaces the service layer depends on.
// Implementations live in sub-packages (sqlite, postgres).
package repository

import (
	"context"
	"time"

	"github.com/sakif/flux-server/internal/model"
)

// LeaderboardLimit is the maximum number of rows the leaderboard returns.
const LeaderboardLimit = 50

// UserRepository reads and writes the users table.
//
// Lookups that match nothing return an error wrapping apperror.ErrNotFound.
// Create returns apperror.EmailExists when the email is already stored.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUsername(ctx context.Context, id int64, username string) error
	UpdateXP(ctx context.Context, id int64, totalXP, todayXP any, lastActive time.Time) error
	TopByTodayXP(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// Store owns the database connection and hands out repositories.
//
// WithinTx runs fn against a repository bound to a single transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
// Read-write transactions are serialized against each other, so a
// check-then-insert inside fn is atomic.
type Store interface {
	Users() UserRepository
	WithinTx(ctx context.Context, fn func(users UserRepository) error) error
	Ping(ctx context.Context) error
	Close() error
}
