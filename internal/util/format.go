package util

import (
	"fmt"
	"time"
)

// FormatNumber formats an int64 with K/M suffix for readability.
// Examples: 500 -> "500", 1500 -> "1.5K", 1500000 -> "1.5M"
func FormatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// FormatTime formats a time to date-time format (2006-01-02 15:04).
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// ParseTimeRFC3339 parses an RFC3339 timestamp string to time.Time.
// Returns zero time if parsing fails.
func ParseTimeRFC3339(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
