package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		time time.Time
		exp  string
	}{
		"less than a second":   {time: now.Add(-300 * time.Millisecond), exp: "just now"},
		"1 second ago":         {time: now.Add(-1 * time.Second), exp: "1 second ago"},
		"30 seconds ago":       {time: now.Add(-30 * time.Second), exp: "30 seconds ago"},
		"1 minute ago":         {time: now.Add(-1 * time.Minute), exp: "1 minute ago"},
		"45 minutes ago":       {time: now.Add(-45 * time.Minute), exp: "45 minutes ago"},
		"5 hours ago":          {time: now.Add(-5 * time.Hour), exp: "5 hours ago"},
		"1 day ago":            {time: now.Add(-24 * time.Hour), exp: "1 day ago"},
		"7 days ago":           {time: now.Add(-7 * 24 * time.Hour), exp: "7 days ago"},
		"future time":          {time: now.Add(5 * time.Minute), exp: "in the future"},
		"other timezones work": {time: now.In(time.FixedZone("EST", -5*3600)).Add(-2 * time.Hour), exp: "2 hours ago"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, timeAgo(now, test.time))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[string]struct {
		time time.Time
		exp  string
	}{
		"standard timestamp": {
			time: time.Date(2026, 1, 30, 10, 15, 30, 0, time.UTC),
			exp:  "2026-01-30 10:15:30 UTC",
		},
		"timestamp with different timezone gets converted to UTC": {
			time: time.Date(2026, 1, 30, 10, 15, 30, 0, time.FixedZone("EST", -5*3600)),
			exp:  "2026-01-30 15:15:30 UTC",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatTimestamp(test.time))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[string]struct {
		d   time.Duration
		exp string
	}{
		"milliseconds": {d: 850400 * time.Microsecond, exp: "850ms"},
		"seconds":      {d: 1234 * time.Millisecond, exp: "1.2s"},
		"minutes":      {d: 3*time.Minute + 4400*time.Millisecond, exp: "3m4s"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatDuration(test.d))
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		input int64
		exp   string
	}{
		"zero bytes":                         {input: 0, exp: "0 B"},
		"negative bytes should return zero":  {input: -100, exp: "0 B"},
		"small bytes":                        {input: 512, exp: "512 B"},
		"one kilobyte":                       {input: 1024, exp: "1.0 KB"},
		"kilobytes":                          {input: 1536, exp: "1.5 KB"},
		"ten megabytes (default output cap)": {input: 10 * 1024 * 1024, exp: "10.0 MB"},
		"one gigabyte":                       {input: 1024 * 1024 * 1024, exp: "1.0 GB"},
		"one terabyte":                       {input: 1024 * 1024 * 1024 * 1024, exp: "1.0 TB"},
		"huge values stay in terabytes":      {input: 2048 * 1024 * 1024 * 1024 * 1024, exp: "2048.0 TB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatBytes(test.input))
		})
	}
}

func TestShorten(t *testing.T) {
	tests := map[string]struct {
		s   string
		max int
		exp string
	}{
		"short strings are kept":         {s: "ls -la", max: 10, exp: "ls -la"},
		"long strings are cut":           {s: "echo 0123456789", max: 8, exp: "echo 012…"},
		"multiline strings show the 1st": {s: "cd x\nmake", max: 20, exp: "cd x…"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, Shorten(test.s, test.max))
		})
	}
}
