package util

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used in configs, files, and APIs.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date into midnight UTC.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// FormatDay renders t as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Weekdays returns every Monday-Friday date in [start, end], truncated to
// days. It is a holiday-unaware approximation of a trading calendar.
func Weekdays(start, end time.Time) []time.Time {
	var out []time.Time
	for d := Day(start); !d.After(Day(end)); d = d.AddDate(0, 0, 1) {
		if !IsWeekend(d) {
			out = append(out, d)
		}
	}
	return out
}
