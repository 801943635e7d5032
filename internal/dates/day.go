// Package dates provides the calendar primitives of the wizard: a Day
// without time of day, a TimeOfDay without date or zone, and an inclusive
// Range of days that the wizard walks one day at a time.
package dates

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date with no time component.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// Of returns the normalized Day for y-m-d (Jan 32 becomes Feb 1).
func Of(y int, m time.Month, d int) Day {
	return DayOf(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// Today returns the current date in loc.
func Today(loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	return DayOf(time.Now().In(loc))
}

// ParseDay parses a "2006-01-02" date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// AddDays returns d shifted by n days (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.utc().AddDate(0, 0, n))
}

// Compare returns -1, 0 or +1.
func (d Day) Compare(o Day) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Day) Before(o Day) bool { return d.Compare(o) < 0 }
func (d Day) After(o Day) bool  { return d.Compare(o) > 0 }

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Day) DaysUntil(o Day) int {
	return int(o.utc().Sub(d.utc()).Hours() / 24)
}

// Weekday returns the day of the week of d.
func (d Day) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// StartIn returns midnight of d in loc.
func (d Day) StartIn(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At combines d with a time of day in loc. Wall times that do not exist
// in loc (DST gaps) are normalized by time.Date.
func (d Day) At(tod TimeOfDay, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, tod.Hour, tod.Minute, 0, 0, loc)
}

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(b []byte) error {
	parsed, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Day) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
