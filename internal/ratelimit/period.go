package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
)

// Millisecond length of each supported period unit. Months and years are
// fixed at 30 and 365 days, not calendar-aware.
var unitMs = map[string]int64{
	"hour":  60 * 60 * 1000,
	"day":   24 * 60 * 60 * 1000,
	"week":  7 * 24 * 60 * 60 * 1000,
	"month": 30 * 24 * 60 * 60 * 1000,
	"year":  365 * 24 * 60 * 60 * 1000,
}

// ParsePeriod converts a human period string such as "1 hour" or "30 days"
// into milliseconds. Units may be singular or plural, in any case.
func ParsePeriod(s string) (int64, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid period %q: want \"<count> <unit>\"", s)
	}

	count, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if count <= 0 {
		return 0, fmt.Errorf("invalid period %q: count must be positive", s)
	}

	ms, ok := unitMs[strings.TrimSuffix(fields[1], "s")]
	if !ok {
		return 0, fmt.Errorf("invalid period %q: unknown unit %q", s, fields[1])
	}

	return count * ms, nil
}
