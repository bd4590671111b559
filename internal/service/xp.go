package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sakif/flux-server/internal/apperror"
)

// ParseUserID converts a decoded JSON user_id into a primary key.
//
// Accepted: integers, numbers with a fraction (truncated toward zero),
// strings holding a base-10 integer (optionally surrounded by whitespace)
// and booleans, which count as 0 and 1. Everything else (missing, null,
// other strings, objects, arrays) is rejected with apperror.InvalidID.
func ParseUserID(v any) (int64, error) {
	switch id := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
			return n, nil
		}
		if f, err := id.Float64(); err == nil {
			if n, ok := truncate(f); ok {
				return n, nil
			}
		}
	case float64:
		if n, ok := truncate(id); ok {
			return n, nil
		}
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case bool:
		if id {
			return 1, nil
		}
		return 0, nil
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, apperror.InvalidID(fmt.Sprintf("%v", v))
}

func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

// NormalizeXP prepares a decoded JSON XP value for storage without
// judging it.
//
//	integer numbers   → int64
//	other numbers     → float64
//	strings, bools    → unchanged
//	null              → nil
//	objects, arrays   → their JSON text
//
// No range or type checks are applied: negative values, strings and
// nulls are stored exactly as sent.
func NormalizeXP(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(x.String(), 10, 64); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return NormalizeXP(f)
		}
		return x.String()
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x)
		}
		return x
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprintf("%v", x)
		}
		return string(b)
	default:
		return v
	}
}
