package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sakif/flux-server/internal/apperror"
	"github.com/sakif/flux-server/internal/model"
	"github.com/sakif/flux-server/internal/repository"
)

var _ repository.UserRepository = (*UserRepository)(nil)

// uniqueViolation is the SQLSTATE for a UNIQUE constraint failure.
const uniqueViolation = "23505"

// UserRepository implements repository.UserRepository on a Queryable.
type UserRepository struct {
	q Queryable
}

const userColumns = `id, username, email, total_xp, today_xp, last_active`

// Create inserts a new user with zeroed XP and fills in the generated id.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.LastActive.IsZero() {
		user.LastActive = time.Now().UTC()
	}
	user.TotalXP = int64(0)
	user.TodayXP = int64(0)

	err := r.q.QueryRow(ctx,
		`INSERT INTO users (username, email, total_xp, today_xp, last_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		user.Username, user.Email, user.TotalXP, user.TodayXP, user.LastActive,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.EmailExists(user.Email)
		}
		return fmt.Errorf("postgres: creating user: %w", err)
	}
	return nil
}

// GetByEmail retrieves a user by (already normalized) email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves the lowest-id user holding exactly this username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := r.getOne(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1 ORDER BY id LIMIT 1`, username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: getting user by username: %w", err)
	}
	return user, nil
}

// UpdateUsername overwrites a user's username.
func (r *UserRepository) UpdateUsername(ctx context.Context, id int64, username string) error {
	tag, err := r.q.Exec(ctx, `UPDATE users SET username = $1 WHERE id = $2`, username, id)
	if err != nil {
		return fmt.Errorf("postgres: renaming user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// UpdateXP overwrites both XP columns and last_active.
//
// The columns are BIGINT: integral numbers (and numeric strings) are
// accepted, anything else fails with a store error.
func (r *UserRepository) UpdateXP(ctx context.Context, id int64, totalXP, todayXP any, lastActive time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE users SET total_xp = $1, today_xp = $2, last_active = $3 WHERE id = $4`,
		totalXP, todayXP, lastActive, id)
	if err != nil {
		return fmt.Errorf("postgres: updating xp for user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

// TopByTodayXP returns at most limit entries ordered by today_xp, highest
// first. Postgres sorts NULLs first on DESC by default, so NULLS LAST is
// explicit to match the SQLite store.
func (r *UserRepository) TopByTodayXP(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT username, total_xp, today_xp
		 FROM users
		 ORDER BY today_xp DESC NULLS LAST, id ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e model.LeaderboardEntry
		var total, today *int64
		if err := rows.Scan(&e.Username, &total, &today); err != nil {
			return nil, fmt.Errorf("postgres: scanning leaderboard row: %w", err)
		}
		e.TotalXP = nullableXP(total)
		e.TodayXP = nullableXP(today)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating leaderboard: %w", err)
	}

	return entries, nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var user model.User
	var total, today *int64
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&total,
		&today,
		&user.LastActive,
	)
	if err != nil {
		return nil, err
	}
	user.TotalXP = nullableXP(total)
	user.TodayXP = nullableXP(today)
	return &user, nil
}

// nullableXP converts a scanned BIGINT into the model's untyped XP value,
// keeping SQL NULL as a nil interface rather than a typed nil pointer.
func nullableXP(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
