package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUntil(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name      string
		raw       string
		expected  time.Time
		expectErr bool
	}{
		{
			name:     "RFC3339 UTC",
			raw:      "2024-04-01T00:00:00Z",
			expected: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 with offset is normalised to UTC",
			raw:      "2024-04-01T08:00:00+08:00",
			expected: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "RFC3339 in the past still parses",
			raw:      "2020-01-01T00:00:00Z",
			expected: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "Hours",
			raw:      "2h",
			expected: now.Add(2 * time.Hour),
		},
		{
			name:     "Plus-prefixed days",
			raw:      "+30d",
			expected: now.Add(30 * 24 * time.Hour),
		},
		{
			name:     "Compound with spaces",
			raw:      " 1d 12h ",
			expected: now.Add(36 * time.Hour),
		},
		{
			name:     "Weeks and minutes, upper case",
			raw:      "1W90M",
			expected: now.Add(7*24*time.Hour + 90*time.Minute),
		},
		{
			name:     "Seconds",
			raw:      "45s",
			expected: now.Add(45 * time.Second),
		},
		{
			name:     "Largest whole weeks that fit",
			raw:      "15000w",
			expected: now.Add(15000 * 7 * 24 * time.Hour),
		},
		{
			name:      "Empty",
			raw:       "  ",
			expectErr: true,
		},
		{
			name:      "Zero duration",
			raw:       "0h",
			expectErr: true,
		},
		{
			name:      "Negative duration",
			raw:       "-1h",
			expectErr: true,
		},
		{
			name:      "Unknown unit",
			raw:       "3y",
			expectErr: true,
		},
		{
			name:      "Bare number",
			raw:       "3600",
			expectErr: true,
		},
		{
			name:      "Not a date",
			raw:       "next tuesday",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseUntil(tc.raw, now)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.True(t, tc.expected.Equal(parsed), "expected %s, got %s", tc.expected, parsed)
			}
		})
	}
}

func TestParseUntil_TooFar(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, raw := range []string{"20000w", "31000w", "15000w 15000w", "9223372036854775807s 1s"} {
		t.Run(raw, func(t *testing.T) {
			parsed, err := ParseUntil(raw, now)
			require.ErrorIs(t, err, ErrTooFar)
			assert.True(t, parsed.IsZero())
		})
	}
}
