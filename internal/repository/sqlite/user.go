package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/flux-server/internal/apperror"
	"github.com/sakif/flux-server/internal/model"
	"github.com/sakif/flux-server/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB implements repository.UserRepository on top of a querier
// (the connection pool or an open transaction).
type UserDB struct {
	q querier
}

const userColumns = `id, username, email, total_xp, today_xp, last_active`

// Create inserts a new user and fills in user.ID from the assigned rowid.
//
// total_xp and today_xp start at 0. If LastActive is zero it is set to now.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	if user.LastActive.IsZero() {
		user.LastActive = time.Now().UTC()
	}
	user.TotalXP = int64(0)
	user.TodayXP = int64(0)

	result, err := u.q.ExecContext(ctx,
		`INSERT INTO users (username, email, total_xp, today_xp, last_active)
		 VALUES (?, ?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.TotalXP,
		user.TodayXP,
		user.LastActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.EmailExists(user.Email)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetByEmail retrieves a user by (already normalized) email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves the first user holding exactly this username.
// Usernames are not unique in the schema, so ties go to the lowest id.
func (u *UserDB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := u.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? ORDER BY id LIMIT 1`, username)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user by username: %w", err)
	}
	return user, nil
}

// UpdateUsername overwrites a user's username.
func (u *UserDB) UpdateUsername(ctx context.Context, id int64, username string) error {
	result, err := u.q.ExecContext(ctx,
		`UPDATE users SET username = ? WHERE id = ?`, username, id)
	if err != nil {
		return fmt.Errorf("sqlite: renaming user %d: %w", id, err)
	}
	return requireRow(result, id)
}

// UpdateXP overwrites both XP columns and last_active in one statement.
//
// SQLite columns are dynamically typed, so whatever value the caller passes
// (int64, float64, string, bool, nil) is stored as-is; INTEGER affinity
// turns integral values into integers.
func (u *UserDB) UpdateXP(ctx context.Context, id int64, totalXP, todayXP any, lastActive time.Time) error {
	result, err := u.q.ExecContext(ctx,
		`UPDATE users SET total_xp = ?, today_xp = ?, last_active = ? WHERE id = ?`,
		totalXP, todayXP, lastActive, id)
	if err != nil {
		return fmt.Errorf("sqlite: updating xp for user %d: %w", id, err)
	}
	return requireRow(result, id)
}

// TopByTodayXP returns at most limit entries ordered by today_xp, highest first.
// NULLs sort last; equal scores keep registration order.
func (u *UserDB) TopByTodayXP(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := u.q.QueryContext(ctx,
		`SELECT username, total_xp, today_xp
		 FROM users
		 ORDER BY today_xp DESC NULLS LAST, id ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.TotalXP, &e.TodayXP); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		e.TotalXP = normalizeScanned(e.TotalXP)
		e.TodayXP = normalizeScanned(e.TodayXP)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard: %w", err)
	}

	return entries, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.TotalXP,
		&user.TodayXP,
		&user.LastActive,
	); err != nil {
		return nil, err
	}
	user.TotalXP = normalizeScanned(user.TotalXP)
	user.TodayXP = normalizeScanned(user.TodayXP)
	return &user, nil
}

// normalizeScanned turns driver []byte values into strings so they encode
// as JSON strings rather than base64.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// requireRow maps "no rows affected" to a not-found error.
func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
