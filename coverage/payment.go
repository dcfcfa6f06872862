package coverage

import (
	"sort"

	"github.com/espace-elite/rental-engine/generic"
)

// =============================================================================
// PAYMENT PERIOD - One billable interval
// =============================================================================

// PaymentPeriod is either recorded by the operator or synthesized for a gap.
// A gap period records intent to bill; it is not a payment.
type PaymentPeriod struct {
	ID          PaymentPeriodID
	Interval    generic.Interval
	Amount      generic.Amount
	Method      PaymentMethod
	IsGapPeriod bool
	GapReason   GapReason // set iff IsGapPeriod
	ProductIDs  []ProductID
	Notes       string
	NeedsReview bool
}

func (p PaymentPeriod) Validate() error {
	if p.ID == "" {
		return invalidPeriod(p.ID, "id is required")
	}
	if err := p.Interval.Validate(); err != nil {
		return err
	}
	if p.Interval.IsOpenEnded() {
		return invalidPeriod(p.ID, "payment period needs an end date")
	}
	if !p.Method.Valid() {
		return invalidPeriod(p.ID, "unknown payment method %q", p.Method)
	}
	if p.Amount.IsNegative() {
		return invalidPeriod(p.ID, "amount cannot be negative")
	}
	if p.IsGapPeriod {
		if p.GapReason == "" {
			return invalidPeriod(p.ID, "gap period needs a reason")
		}
		if !p.GapReason.Valid() {
			return invalidPeriod(p.ID, "unknown gap reason %q", p.GapReason)
		}
		if p.Method == MethodCNAM {
			return invalidPeriod(p.ID, "gap period cannot be paid by CNAM")
		}
	} else if p.GapReason != "" {
		return invalidPeriod(p.ID, "only gap periods carry a reason")
	}
	return nil
}

// DurationDays is the inclusive day count of a validated period.
func (p PaymentPeriod) DurationDays() int {
	d, _ := p.Interval.DurationDays()
	return d
}

// sharesProducts reports whether two periods bill a common product. An empty
// product list means the whole rental.
func (p PaymentPeriod) sharesProducts(o PaymentPeriod) bool {
	if len(p.ProductIDs) == 0 || len(o.ProductIDs) == 0 {
		return true
	}
	for _, a := range p.ProductIDs {
		for _, b := range o.ProductIDs {
			if a == b {
				return true
			}
		}
	}
	return false
}

// ValidatePaymentPeriods validates each period and rejects overlapping
// non-gap periods. Overlaps are reported, never truncated.
func ValidatePaymentPeriods(periods []PaymentPeriod) error {
	seen := make(map[PaymentPeriodID]bool, len(periods))
	for _, p := range periods {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.ID] {
			return invalidPeriod(p.ID, "duplicate payment period id")
		}
		seen[p.ID] = true
	}

	direct := make([]PaymentPeriod, 0, len(periods))
	for _, p := range periods {
		if !p.IsGapPeriod {
			direct = append(direct, p)
		}
	}
	sortPeriods(direct)

	for i := range direct {
		for j := i + 1; j < len(direct); j++ {
			a, b := direct[i], direct[j]
			overlap, ok := generic.Intersect(a.Interval, b.Interval)
			if ok && a.sharesProducts(b) {
				return &OverlappingPaymentPeriodError{First: a.ID, Second: b.ID, Overlap: overlap}
			}
		}
	}
	return nil
}

// sortPeriods orders by start then id.
func sortPeriods(periods []PaymentPeriod) {
	sort.SliceStable(periods, func(i, j int) bool {
		a, b := periods[i], periods[j]
		if !a.Interval.Start.Equal(b.Interval.Start) {
			return a.Interval.Start.Before(b.Interval.Start)
		}
		return a.ID < b.ID
	})
}

func (p PaymentPeriod) clone() PaymentPeriod {
	c := p
	if p.Interval.End != nil {
		c.Interval.End = p.Interval.End.Ptr()
	}
	c.ProductIDs = append([]ProductID(nil), p.ProductIDs...)
	return c
}
