// Package period handles the calendar arithmetic shared by the weekly alert
// pipeline and the daily signal tracker.
package period

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the canonical on-disk date format (YYYY-MM-DD).
const Layout = "2006-01-02"

// Date is a calendar day in UTC. It serializes as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Today returns the current UTC day.
func Today() Date {
	return NewDate(time.Now())
}

// String returns the date as YYYY-MM-DD, or "" for the zero value.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(Layout)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{d.AddDate(0, 0, n)}
}

// DaysSince returns the number of whole days from other to d.
func (d Date) DaysSince(other Date) int {
	return int(d.Sub(other.Time).Hours() / 24)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether d and other are the same day.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(Layout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Profile caches written by other tools sometimes carry a full timestamp.
	if len(s) > len(Layout) {
		s = s[:len(Layout)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	return d.UnmarshalJSON(text)
}

// WeekStart returns the Monday of the ISO week containing d.
func WeekStart(d Date) Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// WeekEnd returns the Sunday closing the week that starts at start.
func WeekEnd(start Date) Date {
	return start.AddDays(6)
}

// Range returns every date from start to end inclusive as YYYY-MM-DD strings.
func Range(start, end Date) []string {
	if end.Before(start) {
		return nil
	}
	var out []string
	for d := start; !d.After(end); d = d.AddDays(1) {
		out = append(out, d.String())
	}
	return out
}

// FormatDisplay formats a date for human-readable output, e.g. "Feb 06, 2026".
func FormatDisplay(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("Jan 02, 2006")
}

// FormatWeekDisplay formats a week as "Feb 02 - Feb 08, 2026".
func FormatWeekDisplay(start Date) string {
	if start.IsZero() {
		return ""
	}
	end := WeekEnd(start)
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
}
