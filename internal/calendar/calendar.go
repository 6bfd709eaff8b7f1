// Package calendar supplies "today" in a single reference timezone and the calendar date arithmetic the
// gamification rules depend on.
//
// Streak and weekly goal outcomes change when the day boundary moves, so all date math goes through Date, which
// carries no time of day and no location. The only place a location is consulted is Clock.Today.
package calendar

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/lockedin/internal/errors"
)

// DefaultTimezone is the reference timezone used when none is configured.
const DefaultTimezone = "Australia/Sydney"

const hoursPerDay = 24

// ErrInvalidDate is returned when a date string cannot be parsed.
var ErrInvalidDate = errors.NewSentinel("invalid date")

// Date is a calendar date. The zero value is not a valid date; use IsZero to detect it.
type Date struct {
	// t is always midnight UTC so that day differences are exact multiples of 24 hours.
	t time.Time
}

// NewDate returns the date for the given year, month and day. Out of range values are normalised the same way
// time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of the instant t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return NewDate(y, m, d)
}

// ParseDate parses an ISO 8601 date string (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: %w", ErrInvalidDate, s, err)
	}
	return Date{t: t}, nil
}

// MustParseDate is ParseDate for literals in tests and fixtures. It panics on malformed input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format(time.DateOnly)
}

// Display formats the date for humans, e.g. "Mon, Jan 2".
func (d Date) Display() string {
	return d.t.Format("Mon, Jan 2")
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return d.t
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.t.Weekday()
}

// AddDays returns the date n days after d. Negative n moves backwards.
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// DaysSince returns the number of whole calendar days from other to d. It is negative when other is after d.
func (d Date) DaysSince(other Date) int {
	return int(d.t.Sub(other.t).Hours()) / hoursPerDay
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// After reports whether d is after other.
func (d Date) After(other Date) bool {
	return d.t.After(other.t)
}

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool {
	return d.t.Equal(other.t)
}

// WeekStart returns the Monday on or before d. Weeks follow ISO 8601 and start on Monday.
func (d Date) WeekStart() Date {
	daysSinceMonday := (int(d.t.Weekday()) + 6) % 7 //nolint:mnd // Sunday is 0, shift so Monday is 0.
	return d.AddDays(-daysSinceMonday)
}

// Clock supplies the current calendar date.
type Clock interface {
	Today() Date
}

// LocationClock reports today's date in a fixed location.
type LocationClock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock returns a wall clock that reports today's date in loc.
func NewClock(loc *time.Location) *LocationClock {
	return &LocationClock{loc: loc, now: time.Now}
}

// LoadClock resolves the IANA timezone name and returns a clock for it.
func LoadClock(timezone string) (*LocationClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrap(err, "load timezone", slog.String("timezone", timezone))
	}
	return NewClock(loc), nil
}

// Today returns the current date in the clock's location.
func (c *LocationClock) Today() Date {
	return DateOf(c.now(), c.loc)
}

// Location returns the reference timezone.
func (c *LocationClock) Location() *time.Location {
	return c.loc
}

// FixedClock always reports the same date. Tests use it to pin "today".
type FixedClock struct {
	Date Date
}

// Today returns the fixed date.
func (c *FixedClock) Today() Date {
	return c.Date
}
