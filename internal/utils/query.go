package utils

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sohaibansari420/careease-backened/internal/store"
)

// QueryInt returns the integer value of key, or def when it is absent or malformed.
func QueryInt(q url.Values, key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(q.Get(key)))
	if err != nil {
		return def
	}
	return v
}

// ParsePage reads page and limit, clamped to page >= 1 and 1 <= limit <= 100.
func ParsePage(q url.Values) store.Page {
	p := store.Page{Number: QueryInt(q, "page", 1), Limit: QueryInt(q, "limit", store.DefaultPageLimit)}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	return p.Normalize()
}

// ParseSort reads sortBy and sortOrder. Ordering is descending unless sortOrder is "asc".
func ParseSort(q url.Values, defaultField string) store.Sort {
	field := q.Get("sortBy")
	if field == "" {
		field = defaultField
	}
	return store.Sort{Field: field, Desc: q.Get("sortOrder") != "asc"}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

var ErrInvalidTime = errors.New("invalid ISO 8601 time")

// ParseTime accepts ISO 8601 timestamps. Values without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTime
}
