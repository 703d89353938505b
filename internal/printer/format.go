package printer

import (
	"fmt"
	"strings"
	"time"
)

var agoUnits = []struct {
	d    time.Duration
	name string
}{
	{24 * time.Hour, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
	{time.Second, "second"},
}

// TimeAgo returns a human-readable relative time string.
// Examples: "just now", "1 minute ago", "3 hours ago".
func TimeAgo(t time.Time) string {
	return timeAgo(time.Now(), t)
}

func timeAgo(now, t time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in the future"
	}

	for _, u := range agoUnits {
		n := int(diff / u.d)
		if n < 1 {
			continue
		}
		if n == 1 {
			return fmt.Sprintf("1 %s ago", u.name)
		}
		return fmt.Sprintf("%d %ss ago", n, u.name)
	}

	return "just now"
}

// FormatTimestamp returns the time in UTC with "2006-01-02 15:04:05 UTC" format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatDuration rounds the duration for humans.
// Examples: "850ms", "1.2s", "3m4s".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return d.Round(100 * time.Millisecond).String()
	default:
		return d.Round(time.Second).String()
	}
}

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes returns a human-readable byte size string.
// Examples: "0 B", "512 B", "1.5 KB", "10.0 MB".
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		if bytes < 0 {
			bytes = 0
		}
		return fmt.Sprintf("%d B", bytes)
	}

	v := float64(bytes)
	unit := ""
	for _, u := range byteUnits {
		v /= 1024
		unit = u
		if v < 1024 {
			break
		}
	}

	return fmt.Sprintf("%.1f %s", v, unit)
}

// Shorten returns the first line of s limited to max runes, with an ellipsis when cut.
func Shorten(s string, max int) string {
	line, _, multiline := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(line)
	if len(r) <= max && !multiline {
		return line
	}
	if len(r) > max {
		r = r[:max]
	}
	return string(r) + "…"
}
