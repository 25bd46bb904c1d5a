package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// ErrInvalidDate is returned when a string cannot be read as a calendar date.
var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day without clock or zone. Two Dates are equal when
// year, month and day match.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes the given components, so NewDate(2025, 1, 32) is Feb 1st.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate reads "2006-01-02" or an RFC 3339 timestamp. Timestamps are
// converted into loc before the day is taken; a nil loc means UTC.
func ParseDate(s string, loc *time.Location) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(t.In(loc)), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.time().Format(dateLayout)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Weekday() time.Weekday {
	return d.time().Weekday()
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.time().Before(o.time())
}

func (d Date) After(o Date) bool {
	return o.Before(d)
}

// Between reports whether d lies in [from, to], inclusive on both ends.
func (d Date) Between(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text), time.UTC)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports membership, tolerating a range written end-first.
func (r DateRange) Contains(d Date) bool {
	start, end := r.Start, r.End
	if end.Before(start) {
		start, end = end, start
	}
	return d.Between(start, end)
}

// DaysBetween returns every day from a to b inclusive in chronological
// order, whichever of the two comes first.
func DaysBetween(a, b Date) []Date {
	if b.Before(a) {
		a, b = b, a
	}
	days := make([]Date, 0, 8)
	for d := a; !d.After(b); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
