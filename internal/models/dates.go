package models

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp.
// Empty input yields nil. Calendar dates are anchored at UTC midnight.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	t = t.UTC()
	return &t, nil
}

// FormatDate renders t as YYYY-MM-DD, or "" for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}
