package generic

import (
	"time"

	"cloud.google.com/go/civil"
)

// =============================================================================
// TIME POINT - Calendar day abstraction (rentals and bonds are day-granular)
// =============================================================================

// TimePoint is a calendar day. The wrapped time is always UTC midnight once it
// has passed through a constructor; comparisons normalize anyway so values
// built by hand (e.g. from a database scan) still behave.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Day truncates any instant to its calendar day (in the instant's own location).
func Day(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return Day(time.Now())
}

// FromCivil converts a date-only value into a TimePoint.
func FromCivil(d civil.Date) TimePoint {
	return NewTimePoint(d.Year, d.Month, d.Day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return TimePoint{}, err
	}
	return FromCivil(d), nil
}

// Civil returns the date-only representation.
func (tp TimePoint) Civil() civil.Date {
	n := tp.normalize()
	return civil.Date{Year: n.Year(), Month: n.Month(), Day: n.Day()}
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.normalize().AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.normalize().AddDate(0, n, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.normalize().Format(time.DateOnly)
}

// MinTime returns the earlier of two points.
func MinTime(a, b TimePoint) TimePoint {
	if b.Before(a) {
		return b
	}
	return a
}

// MaxTime returns the later of two points.
func MaxTime(a, b TimePoint) TimePoint {
	if b.After(a) {
		return b
	}
	return a
}

// Ptr returns a pointer to a copy of tp. Handy for optional interval ends.
func (tp TimePoint) Ptr() *TimePoint { return &tp }

// =============================================================================
// CLOCK - Injectable "today"
// =============================================================================

// Clock supplies the current calendar day. Everything that depends on "today"
// takes one so tests and replays can pin the date.
type Clock interface {
	Today() TimePoint
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Today() TimePoint { return Today() }

// FixedClock always returns the same day.
type FixedClock struct {
	Day TimePoint
}

func (c FixedClock) Today() TimePoint { return c.Day }

// =============================================================================
// TIME UTILITIES
// =============================================================================

// DaysBetween returns the signed number of days from `from` to `to`.
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

func EndOfMonth(year int, month time.Month) TimePoint {
	return NewTimePoint(year, month+1, 1).AddDays(-1)
}
