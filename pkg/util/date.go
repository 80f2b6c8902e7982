package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds or milliseconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return UnixAuto(ts), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// UnixAuto converts a unix timestamp given in seconds or milliseconds.
// Values above 1e12 are treated as milliseconds.
func UnixAuto(ts int64) time.Time {
	if ts > 1_000_000_000_000 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}

// BarOpen returns the open time of the bar of length d that contains t.
func BarOpen(t time.Time, d time.Duration) time.Time {
	if d <= 0 {
		return t
	}
	return t.Truncate(d)
}

// TimeAgo renders the distance from t to now in words, e.g. "about 3 hours ago".
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))

	switch {
	case d <= time.Minute:
		return fmt.Sprintf("%d seconds ago", int(d/time.Second)%60)
	case d <= time.Hour:
		if m := int(d/time.Minute) % 60; m > 1 {
			return fmt.Sprintf("about %d minutes ago", m)
		}
		return "about a minute ago"
	case d <= 24*time.Hour:
		if h := int(d/time.Hour) % 24; h > 1 {
			return fmt.Sprintf("about %d hours ago", h)
		}
		return "about an hour ago"
	case days <= 30:
		if days > 1 {
			return fmt.Sprintf("about %d days ago", days)
		}
		return "yesterday"
	case days <= 365:
		if days > 30 {
			return fmt.Sprintf("about %d months ago", days/30)
		}
		return "about a month ago"
	default:
		if days > 365 {
			return fmt.Sprintf("about %d years ago", days/365)
		}
		return "about a year ago"
	}
}
