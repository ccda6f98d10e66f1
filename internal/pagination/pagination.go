package pagination

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const (
	DefaultLimit    = 50
	MaxLimit        = 100
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ClampLimit applies the default and upper bound to a cursor page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// ClampPage normalizes offset paging parameters.
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// ParseTime accepts unix milliseconds or any date string cast understands.
// Empty input yields the zero time.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := cast.ToTimeE(raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseCursor reads the exclusive "before" bound.
func ParseCursor(raw string) (time.Time, error) {
	return ParseTime(raw)
}

// ParseEnd reads an inclusive upper bound. A date without a time of day,
// in any layout ParseTime accepts, covers the whole day.
func ParseEnd(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := ParseTime(raw)
	if err != nil || t.IsZero() {
		return t, err
	}
	if dateOnly(raw, t) {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}

// dateOnly reports whether raw named a calendar day rather than an instant:
// not unix millis, no clock component, and parsed to midnight.
func dateOnly(raw string, t time.Time) bool {
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return false
	}
	if strings.Contains(raw, ":") {
		return false
	}
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// Cursor formats t the way ParseCursor reads it back.
func Cursor(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Trim takes a newest-first window fetched with limit+1 rows and returns at
// most limit rows in ascending order, plus whether older rows remain.
func Trim[T any](newestFirst []T, limit int) ([]T, bool) {
	hasMore := len(newestFirst) > limit
	if hasMore {
		newestFirst = newestFirst[:limit]
	}
	out := make([]T, len(newestFirst))
	for i, v := range newestFirst {
		out[len(newestFirst)-1-i] = v
	}
	return out, hasMore
}

// Slice returns one offset page of items and whether more follow.
func Slice[T any](items []T, page, size int) ([]T, bool) {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}, false
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], end < len(items)
}
