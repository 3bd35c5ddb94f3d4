package config

import (
	"fmt"
	"time"
)

// ParseAsOf parses a reference instant given as RFC 3339 or a plain date.
// A plain date means noon UTC on that day.
func ParseAsOf(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Add(12 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("invalid as-of %q (want YYYY-MM-DD or RFC 3339)", s)
}
