package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatID(t *testing.T) {
	tests := []struct {
		id   int64
		want string
	}{
		{1, "000001"},
		{42, "000042"},
		{999999, "999999"},
		{1000000, "1000000"},
		{1234567, "1234567"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatID(tt.id))
		})
	}
}

func TestUserFormattedID(t *testing.T) {
	u := &User{ID: 7}
	assert.Equal(t, "000007", u.FormattedID())
}

func TestLeaderboardEntry_MarshalsAsTriple(t *testing.T) {
	entries := []LeaderboardEntry{
		{Username: "B", TotalXP: int64(20), TodayXP: int64(9)},
		{Username: "A", TotalXP: int64(10), TodayXP: nil},
	}

	b, err := json.Marshal(entries)
	require.NoError(t, err)
	assert.JSONEq(t, `[["B",20,9],["A",10,null]]`, string(b))
}
