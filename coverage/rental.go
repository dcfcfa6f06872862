package coverage

import "github.com/espace-elite/rental-engine/generic"

// =============================================================================
// RENTAL PERIOD - Parent interval of the engagement
// =============================================================================

// RentalPeriod is created once when the rental configuration is confirmed.
// Extend is the only mutation.
type RentalPeriod struct {
	ID          RentalID
	StartDate   generic.TimePoint
	EndDate     *generic.TimePoint
	IsOpenEnded bool
	IsUrgent    bool
	ProductIDs  []ProductID
}

func (r RentalPeriod) Validate() error {
	if r.StartDate.IsZero() {
		return invalidRental(r.ID, "start date is required")
	}
	if r.IsOpenEnded && r.EndDate != nil {
		return invalidRental(r.ID, "open-ended rental cannot carry an end date")
	}
	if !r.IsOpenEnded && r.EndDate == nil {
		return invalidRental(r.ID, "fixed-term rental needs an end date")
	}
	return r.Interval().Validate()
}

// Interval is the rental's own interval; open-ended rentals stay open.
func (r RentalPeriod) Interval() generic.Interval {
	if r.IsOpenEnded || r.EndDate == nil {
		return generic.OpenInterval(r.StartDate)
	}
	return generic.Interval{Start: r.StartDate, End: r.EndDate.Ptr()}
}

// DisplayWindow is the span the timeline covers: the rental interval, with an
// open end clamped to today. False when an open-ended rental has not started.
func (r RentalPeriod) DisplayWindow(today generic.TimePoint) (generic.Interval, bool) {
	i := r.Interval()
	if !i.IsOpenEnded() {
		return i, true
	}
	if today.Before(i.Start) {
		return generic.Interval{}, false
	}
	return generic.Interval{Start: i.Start, End: today.Ptr()}, true
}

// ExposureWindow is [start, min(end or today, today)]: the days for which an
// uncovered segment is already a financial exposure.
func (r RentalPeriod) ExposureWindow(today generic.TimePoint) (generic.Interval, bool) {
	i := r.Interval().ClampToToday(today)
	if i.Validate() != nil {
		return generic.Interval{}, false
	}
	return i, true
}

// Extend moves the end date. An open-ended rental becomes fixed-term.
func (r *RentalPeriod) Extend(newEnd generic.TimePoint) error {
	if newEnd.Before(r.StartDate) {
		return &generic.MalformedIntervalError{Start: r.StartDate, End: newEnd.Ptr(), Reason: "end before start"}
	}
	r.EndDate = newEnd.Ptr()
	r.IsOpenEnded = false
	return nil
}

// DaysUntilEnd returns the signed day count to the committed end date, false
// for open-ended rentals.
func (r RentalPeriod) DaysUntilEnd(today generic.TimePoint) (int, bool) {
	if r.IsOpenEnded || r.EndDate == nil {
		return 0, false
	}
	return generic.DaysBetween(today, *r.EndDate), true
}

func (r RentalPeriod) clone() RentalPeriod {
	c := r
	if r.EndDate != nil {
		c.EndDate = r.EndDate.Ptr()
	}
	c.ProductIDs = append([]ProductID(nil), r.ProductIDs...)
	return c
}
