package generic

// =============================================================================
// INTERVAL - Closed day range, optionally open-ended
// =============================================================================

// Interval is a closed range of calendar days [Start, End]. A nil End means the
// interval continues indefinitely. Open ends compare as +infinity for overlap
// questions, but an open interval has no duration: callers clamp it first.
//
// Every other component does its day arithmetic through these methods so that
// inclusive/exclusive rounding is decided in exactly one place.
type Interval struct {
	Start TimePoint
	End   *TimePoint
}

// NewInterval builds a closed interval, rejecting end < start.
func NewInterval(start, end TimePoint) (Interval, error) {
	i := Interval{Start: start, End: end.Ptr()}
	if err := i.Validate(); err != nil {
		return Interval{}, err
	}
	return i, nil
}

// MustInterval is NewInterval for literals known to be well-formed.
func MustInterval(start, end TimePoint) Interval {
	i, err := NewInterval(start, end)
	if err != nil {
		panic(err)
	}
	return i
}

// OpenInterval starts at start and never ends.
func OpenInterval(start TimePoint) Interval {
	return Interval{Start: start}
}

// Validate checks Start <= End.
func (i Interval) Validate() error {
	if i.Start.IsZero() {
		return &MalformedIntervalError{Start: i.Start, End: i.End, Reason: "missing start"}
	}
	if i.End != nil && i.End.Before(i.Start) {
		return &MalformedIntervalError{Start: i.Start, End: i.End, Reason: "end before start"}
	}
	return nil
}

func (i Interval) IsOpenEnded() bool { return i.End == nil }

// endsBefore reports whether the interval ends strictly before t.
func (i Interval) endsBefore(t TimePoint) bool {
	return i.End != nil && i.End.Before(t)
}

// Contains returns true if t is within [Start, End].
func (i Interval) Contains(t TimePoint) bool {
	return t.AfterOrEqual(i.Start) && !i.endsBefore(t)
}

// ContainsInterval returns true if o lies entirely inside i.
func (i Interval) ContainsInterval(o Interval) bool {
	if o.Start.Before(i.Start) {
		return false
	}
	if i.End == nil {
		return true
	}
	return o.End != nil && o.End.BeforeOrEqual(*i.End)
}

// Overlaps returns true if the intervals share at least one day.
func (i Interval) Overlaps(o Interval) bool {
	_, ok := Intersect(i, o)
	return ok
}

// Intersect returns the overlap of a and b, or false if they are disjoint.
func Intersect(a, b Interval) (Interval, bool) {
	start := MaxTime(a.Start, b.Start)
	var end *TimePoint
	switch {
	case a.End == nil && b.End == nil:
		end = nil
	case a.End == nil:
		end = b.End.Ptr()
	case b.End == nil:
		end = a.End.Ptr()
	default:
		end = MinTime(*a.End, *b.End).Ptr()
	}
	if end != nil && end.Before(start) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Subtract returns the parts of a not covered by b: zero, one or two intervals.
func Subtract(a, b Interval) []Interval {
	overlap, ok := Intersect(a, b)
	if !ok {
		return []Interval{a}
	}

	var out []Interval
	if a.Start.Before(overlap.Start) {
		out = append(out, Interval{Start: a.Start, End: overlap.Start.AddDays(-1).Ptr()})
	}
	if overlap.End != nil && (a.End == nil || overlap.End.Before(*a.End)) {
		rest := Interval{Start: overlap.End.AddDays(1)}
		if a.End != nil {
			rest.End = a.End.Ptr()
		}
		out = append(out, rest)
	}
	return out
}

// SubtractAll removes every interval in bs from a.
func SubtractAll(a Interval, bs []Interval) []Interval {
	remaining := []Interval{a}
	for _, b := range bs {
		var next []Interval
		for _, r := range remaining {
			next = append(next, Subtract(r, b)...)
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}
	}
	return remaining
}

// DurationDays returns the inclusive day count. Open-ended intervals have no
// duration; clamp them first.
func (i Interval) DurationDays() (int, error) {
	if i.End == nil {
		return 0, ErrOpenEndedInterval
	}
	return DaysBetween(i.Start, *i.End) + 1, nil
}

// ClampToToday replaces an absent end, or an end after today, with today.
// The result may be malformed when the interval starts after today; check
// Validate before using it for amounts.
func (i Interval) ClampToToday(today TimePoint) Interval {
	if i.End == nil || i.End.After(today) {
		return Interval{Start: i.Start, End: today.Ptr()}
	}
	return i
}

// Equal compares start and end (both open counts as equal).
func (i Interval) Equal(o Interval) bool {
	if !i.Start.Equal(o.Start) {
		return false
	}
	if i.End == nil || o.End == nil {
		return i.End == nil && o.End == nil
	}
	return i.End.Equal(*o.End)
}

// String returns a string representation of the interval.
func (i Interval) String() string {
	end := "…"
	if i.End != nil {
		end = i.End.String()
	}
	return "[" + i.Start.String() + ", " + end + "]"
}
