// Package period derives the queryable date range of a station and the
// year/month/day options offered inside it.
//
// Dates are civil dates carried as midnight UTC values; the timezone only
// matters when deciding what "today" is, which the Resolver handles.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and display format for civil dates.
const DateLayout = "2006-01-02"

// DefaultLagDays is how far behind today the newest usable record is.
const DefaultLagDays = 2

var (
	// ErrBoundsUnavailable is returned when a station's first or last date is
	// missing or malformed. There is no fallback range.
	ErrBoundsUnavailable = errors.New("bounds unavailable")

	// ErrInvalidWindow is returned when a query window is reversed or leaves the bounds.
	ErrInvalidWindow = errors.New("invalid date window")
)

// Bounds is the inclusive range of dates a station may be queried for.
type Bounds struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Window is an inclusive user-selected query range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Resolution is the outcome of resolving a station's bounds.
type Resolution struct {
	Bounds  Bounds `json:"bounds"`
	Default Window `json:"default"`
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CivilDate strips the clock part of t as observed in t's own location.
func CivilDate(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts "YYYY-MM-DD" as well as timestamps whose first ten
// characters are a date (RFC3339, "YYYY-MM-DDTHH:MM:SS", "YYYY-MM-DD HH:MM:SS").
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		switch s[len(DateLayout)] {
		case 'T', ' ':
			s = s[:len(DateLayout)]
		}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FormatDate renders a civil date as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DaysIn returns the number of days in the given month, leap years included.
func DaysIn(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// AddMonths shifts a civil date by n months, clamping the day to the target
// month's length (2024-03-31 minus one month is 2024-02-29).
func AddMonths(t time.Time, n int) time.Time {
	first := Date(t.Year(), t.Month()+time.Month(n), 1)
	day := t.Day()
	if last := DaysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return Date(first.Year(), first.Month(), day)
}

// ResolveQueryBounds computes the queryable range for a station whose stored
// data spans first..last. The end is capped at today minus lagDays because
// recent days are not reported yet. The default window covers the last month
// of that range, or the whole range when it is shorter.
func ResolveQueryBounds(first, last string, today time.Time, lagDays int) (Resolution, error) {
	if strings.TrimSpace(first) == "" || strings.TrimSpace(last) == "" {
		return Resolution{}, ErrBoundsUnavailable
	}
	start, err := ParseDate(first)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: first date %q: %v", ErrBoundsUnavailable, first, err)
	}
	lastDate, err := ParseDate(last)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: last date %q: %v", ErrBoundsUnavailable, last, err)
	}

	end := CivilDate(today).AddDate(0, 0, -lagDays)
	if lastDate.Before(end) {
		end = lastDate
	}
	if start.After(end) {
		return Resolution{}, fmt.Errorf("%w: first date %s is after usable end %s",
			ErrBoundsUnavailable, FormatDate(start), FormatDate(end))
	}

	defStart := AddMonths(end, -1)
	if defStart.Before(start) {
		defStart = start
	}

	return Resolution{
		Bounds:  Bounds{Start: start, End: end},
		Default: Window{Start: defStart, End: end},
	}, nil
}

// Contains reports whether the civil date d lies within the bounds.
func (b Bounds) Contains(d time.Time) bool {
	return !d.Before(b.Start) && !d.After(b.End)
}

// Validate checks that w is ordered and inside the bounds.
func (b Bounds) Validate(w Window) error {
	if w.Start.After(w.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow, FormatDate(w.Start), FormatDate(w.End))
	}
	if !b.Contains(w.Start) || !b.Contains(w.End) {
		return fmt.Errorf("%w: %s..%s is outside %s..%s", ErrInvalidWindow,
			FormatDate(w.Start), FormatDate(w.End), FormatDate(b.Start), FormatDate(b.End))
	}
	return nil
}

// YearOptions lists every year from the start year to the end year inclusive.
func YearOptions(b Bounds) []int {
	return seq(b.Start.Year(), b.End.Year())
}

// MonthOptions lists the selectable months of year, narrowed at the boundary
// years. It is empty when year lies outside the bounds.
func MonthOptions(b Bounds, year int) []int {
	if year < b.Start.Year() || year > b.End.Year() {
		return nil
	}
	lo, hi := 1, 12
	if year == b.Start.Year() {
		lo = int(b.Start.Month())
	}
	if year == b.End.Year() {
		hi = int(b.End.Month())
	}
	return seq(lo, hi)
}

// DayOptions lists the selectable days of year/month, narrowed at the boundary
// months and never past the month's true length. It is empty when the month
// lies outside the bounds.
func DayOptions(b Bounds, year, month int) []int {
	if month < 1 || month > 12 {
		return nil
	}
	ym := monthIndex(year, month)
	startYM := monthIndex(b.Start.Year(), int(b.Start.Month()))
	endYM := monthIndex(b.End.Year(), int(b.End.Month()))
	if ym < startYM || ym > endYM {
		return nil
	}

	n := DaysIn(year, time.Month(month))
	lo, hi := 1, n
	if ym == startYM {
		lo = b.Start.Day()
	}
	if ym == endYM && b.End.Day() < hi {
		hi = b.End.Day()
	}
	return seq(lo, hi)
}

func monthIndex(year, month int) int {
	return year*12 + month - 1
}

func seq(lo, hi int) []int {
	if hi < lo {
		return nil
	}
	out := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		out = append(out, v)
	}
	return out
}
