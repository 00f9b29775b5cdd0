package parse

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// A relative term is an optional "+" followed by one or more number+unit pairs, e.g. "1d12h".
	relativeRe = regexp.MustCompile(`^\+?((?:\d+\s*(?:w|d|h|m|s)\s*)+)$`)
	termRe     = regexp.MustCompile(`(\d+)\s*(w|d|h|m|s)`)
)

// ErrTooFar is returned when a relative paid_until does not fit in a time.Duration.
var ErrTooFar = errors.New("paid_until is too far in the future")

var unitDurations = map[string]time.Duration{
	"w": 7 * 24 * time.Hour,
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
	"s": time.Second,
}

// ParseUntil turns a paid_until value into an absolute time. It accepts an
// RFC3339 timestamp or a duration relative to now such as "90m", "+30d" or "1w2d".
// Whether the result lies in the future is for the caller to decide.
func ParseUntil(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("paid_until is empty")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	m := relativeRe.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("unable to parse paid_until: %q", raw)
	}

	var total time.Duration
	for _, term := range termRe.FindAllStringSubmatch(m[1], -1) {
		n, err := strconv.Atoi(term[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("unable to parse paid_until: %q: %w", raw, err)
		}
		unit := unitDurations[term[2]]
		if int64(n) > math.MaxInt64/int64(unit) {
			return time.Time{}, fmt.Errorf("%w: %q", ErrTooFar, raw)
		}
		d := time.Duration(n) * unit
		if total > math.MaxInt64-d {
			return time.Time{}, fmt.Errorf("%w: %q", ErrTooFar, raw)
		}
		total += d
	}
	if total <= 0 {
		return time.Time{}, fmt.Errorf("paid_until duration must be positive: %q", raw)
	}
	return now.Add(total), nil
}
