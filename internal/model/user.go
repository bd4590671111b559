// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// User is a player account.
//
// TotalXP and TodayXP are deliberately untyped: the API stores whatever the
// client sends (see service.NormalizeXP), and a NULL column scans back as nil.
// In practice they hold int64 values.
type User struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`   // Always trimmed and lowercased
	TotalXP    any       `json:"totalXp"` // Overwritten wholesale by update
	TodayXP    any       `json:"todayXp"` // Overwritten wholesale by update
	LastActive time.Time `json:"lastActive"`
}

// FormattedID returns the public, zero-padded form of the user's ID.
func (u *User) FormattedID() string {
	return FormatID(u.ID)
}

// FormatID renders an ID as a 6-digit zero-padded string. IDs of a million
// or more are rendered at their natural width.
//
//	FormatID(42)      → "000042"
//	FormatID(1234567) → "1234567"
func FormatID(id int64) string {
	return fmt.Sprintf("%06d", id)
}

// LeaderboardEntry is one row of the leaderboard.
//
// It is serialized as a positional triple, not an object:
//
//	["alice", 120, 30]
type LeaderboardEntry struct {
	Username string
	TotalXP  any
	TodayXP  any
}

// MarshalJSON encodes the entry as [username, total_xp, today_xp].
func (e LeaderboardEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]any{e.Username, e.TotalXP, e.TodayXP})
}
