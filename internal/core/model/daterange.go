package model

import (
	"fmt"
	"time"
)

const monthKeyLayout = "2006-01"

// DateRange is a half-open interval [Start, End)
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range, swapping the bounds if they are reversed
func NewDateRange(start, end time.Time) DateRange {
	if end.Before(start) {
		start, end = end, start
	}
	return DateRange{Start: start, End: end}
}

// IsEmpty reports whether the range contains no instant
func (r DateRange) IsEmpty() bool {
	return !r.End.After(r.Start)
}

// Overlaps reports whether two half-open ranges share at least one instant
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}

// Contains reports whether t lies in [Start, End)
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Shift moves both bounds by d
func (r DateRange) Shift(d time.Duration) DateRange {
	return DateRange{Start: r.Start.Add(d), End: r.End.Add(d)}
}

// Months returns the calendar months containing at least one instant of
// the range, in order. An empty range yields the month of Start.
func (r DateRange) Months() []MonthKey {
	first := StartOfMonth(r.Start)
	if r.IsEmpty() {
		return []MonthKey{MonthKeyOf(first)}
	}
	var keys []MonthKey
	for m := first; m.Before(r.End); m = m.AddDate(0, 1, 0) {
		keys = append(keys, MonthKeyOf(m))
	}
	return keys
}

// ExpandMonths widens the range to whole months plus n months on each side
func (r DateRange) ExpandMonths(n int) DateRange {
	months := r.Months()
	loc := r.Start.Location()
	first := months[0].Start(loc)
	last := months[len(months)-1].End(loc)
	return DateRange{Start: first.AddDate(0, -n, 0), End: last.AddDate(0, n, 0)}
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

// MonthKey identifies a calendar month as YYYY-MM
type MonthKey string

// MonthKeyOf returns the month containing t, in t's location
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(t.Format(monthKeyLayout))
}

// ParseMonthKey validates a YYYY-MM string
func ParseMonthKey(s string) (MonthKey, error) {
	if _, err := time.Parse(monthKeyLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonthKey, s)
	}
	return MonthKey(s), nil
}

// Start returns the first instant of the month in loc
func (k MonthKey) Start(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(monthKeyLayout, string(k), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the first instant of the following month in loc
func (k MonthKey) End(loc *time.Location) time.Time {
	return k.Start(loc).AddDate(0, 1, 0)
}

// Range returns the whole month as a half-open range
func (k MonthKey) Range(loc *time.Location) DateRange {
	return DateRange{Start: k.Start(loc), End: k.End(loc)}
}

func (k MonthKey) Next() MonthKey {
	return MonthKeyOf(k.Start(time.UTC).AddDate(0, 1, 0))
}

func (k MonthKey) Prev() MonthKey {
	return MonthKeyOf(k.Start(time.UTC).AddDate(0, -1, 0))
}

func (k MonthKey) String() string {
	return string(k)
}

// StartOfMonth returns midnight on the first day of t's month
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// StartOfDay returns midnight of t's day
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthsBetween lists every month from start's month through end's month, inclusive
func MonthsBetween(start, end time.Time) []MonthKey {
	if end.Before(start) {
		start, end = end, start
	}
	last := StartOfMonth(end)
	var keys []MonthKey
	for m := StartOfMonth(start); !m.After(last); m = m.AddDate(0, 1, 0) {
		keys = append(keys, MonthKeyOf(m))
	}
	return keys
}
