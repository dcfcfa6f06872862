/*
gaps.go - Finds, classifies and prices uncovered days

PURPOSE:
  A gap is a NONE segment of the timeline clipped to the exposure window
  [rentalStart, min(rentalEnd or today, today)]. Future uncovered days are
  not exposure yet; only alerts look forward.

PRICING:
  amount = monthlyRate(products, gapStart) * days / 30, rounded to millimes.
  The rate comes from the caller's PricingFunc; the engine owns no prices.

REASON PRECEDENCE:
  1. The reason recorded on a gap payment period covering the gap
  2. CNAM_PENDING - gap precedes every qualifying bond and a pending bond
     covers it
  3. CNAM_EXPIRED - gap follows a completed bond that ended before the
     rental did, with no successor covering the gap
  4. NO_COVERAGE

SEVERITY:
  HIGH if the gap is longer than 14 days or precedes approval, else MEDIUM.
*/
package coverage

import (
	"github.com/espace-elite/rental-engine/generic"
	"github.com/shopspring/decimal"
)

// PricingFunc returns the monthly rate of the product set in effect on a day.
// A gap is priced entirely at the rate in effect on its first day, even when
// a dated rate change falls inside it.
type PricingFunc func(products []ProductID, on generic.TimePoint) decimal.Decimal

// FlatRate prices every product set at the same monthly rate.
func FlatRate(monthly decimal.Decimal) PricingFunc {
	return func([]ProductID, generic.TimePoint) decimal.Decimal { return monthly }
}

type Gap struct {
	Interval         generic.Interval
	DurationDays     int
	Amount           generic.Amount
	Severity         Severity
	Reason           GapReason
	RelatedBondID    BondID
	BilledByPeriodID PaymentPeriodID // gap period already recording billing intent
}

// IsBilled reports whether a gap payment period already covers the gap.
func (g Gap) IsBilled() bool {
	return g.BilledByPeriodID != ""
}

type Analysis struct {
	Gaps           []Gap
	TotalAmount    generic.Amount
	UnbilledAmount generic.Amount
}

// =============================================================================
// ANALYZER
// =============================================================================

// DefaultHighSeverityDays is the gap length above which severity is HIGH.
const DefaultHighSeverityDays = 14

type Analyzer struct {
	Pricing          PricingFunc
	Currency         generic.Currency
	HighSeverityDays int
}

func NewAnalyzer(pricing PricingFunc) *Analyzer {
	return &Analyzer{
		Pricing:          pricing,
		Currency:         generic.CurrencyTND,
		HighSeverityDays: DefaultHighSeverityDays,
	}
}

// Analyze walks tl and reports the gaps inside the exposure window.
func (a *Analyzer) Analyze(tl Timeline, rental RentalPeriod, bonds []CoverageBond, periods []PaymentPeriod, today generic.TimePoint) Analysis {
	out := Analysis{
		TotalAmount:    generic.ZeroAmount(a.Currency),
		UnbilledAmount: generic.ZeroAmount(a.Currency),
	}
	exposure, ok := rental.ExposureWindow(today)
	if !ok {
		return out
	}

	for _, seg := range tl.Segments {
		if seg.Source != SourceNone {
			continue
		}
		iv, ok := generic.Intersect(seg.Interval, exposure)
		if !ok {
			continue
		}

		reason, bondID := a.inferReason(iv, rental, bonds, today)
		if p, found := findPeriod(periods, seg.GapPeriodID); found && p.GapReason != reason {
			reason, bondID = p.GapReason, ""
		}

		g := a.price(iv, rental.ProductIDs, reason, bondID)
		g.BilledByPeriodID = seg.GapPeriodID

		out.Gaps = append(out.Gaps, g)
		out.TotalAmount = out.TotalAmount.Add(g.Amount)
		if !g.IsBilled() {
			out.UnbilledAmount = out.UnbilledAmount.Add(g.Amount)
		}
	}
	return out
}

// price builds a Gap for a closed interval at the rate on its start date.
func (a *Analyzer) price(iv generic.Interval, products []ProductID, reason GapReason, bondID BondID) Gap {
	days, _ := iv.DurationDays()
	monthly := decimal.Zero
	if a.Pricing != nil {
		monthly = a.Pricing(products, iv.Start)
	}

	severity := SeverityMedium
	if days > a.HighSeverityDays || reason == ReasonCnamPending {
		severity = SeverityHigh
	}

	return Gap{
		Interval:      iv,
		DurationDays:  days,
		Amount:        generic.ProRata(generic.NewAmountFromDecimal(monthly, a.Currency), days),
		Severity:      severity,
		Reason:        reason,
		RelatedBondID: bondID,
	}
}

// inferReason applies the insurer rules; operator reasons are layered on top
// by the caller.
func (a *Analyzer) inferReason(gap generic.Interval, rental RentalPeriod, bonds []CoverageBond, today generic.TimePoint) (GapReason, BondID) {
	var earliest *generic.TimePoint
	for _, b := range bonds {
		if w, ok := b.coverage(); ok && (earliest == nil || w.Start.Before(*earliest)) {
			earliest = w.Start.Ptr()
		}
	}

	if earliest == nil || gap.Start.Before(*earliest) {
		if b, ok := pendingBondCovering(bonds, gap); ok {
			return ReasonCnamPending, b.ID
		}
	}

	if prior, ok := latestBondBefore(bonds, gap.Start); ok {
		endedEarly := rental.IsOpenEnded || rental.EndDate == nil || prior.CoverageEnd.Before(*rental.EndDate)
		if prior.EffectiveStatus(today) == BondCompleted && endedEarly && !successorCovers(bonds, prior.ID, gap) {
			return ReasonCnamExpired, prior.ID
		}
	}

	return ReasonNoCoverage, ""
}

// pendingBondCovering returns the first pending bond whose window overlaps
// gap. A pending bond without dates covers everything.
func pendingBondCovering(bonds []CoverageBond, gap generic.Interval) (CoverageBond, bool) {
	var pending []CoverageBond
	for _, b := range bonds {
		if b.Status != BondPendingApproval {
			continue
		}
		w, dated := b.Window()
		if !dated || w.Overlaps(gap) {
			pending = append(pending, b)
		}
	}
	if len(pending) == 0 {
		return CoverageBond{}, false
	}
	sortBonds(pending)
	return pending[0], true
}

// latestBondBefore returns the qualifying bond with the latest coverage end
// strictly before day.
func latestBondBefore(bonds []CoverageBond, day generic.TimePoint) (CoverageBond, bool) {
	var best CoverageBond
	found := false
	for _, b := range bonds {
		w, ok := b.coverage()
		if !ok || !w.End.Before(day) {
			continue
		}
		if !found || w.End.After(*best.CoverageEnd) || (w.End.Equal(*best.CoverageEnd) && b.ID < best.ID) {
			best, found = b, true
		}
	}
	return best, found
}

func successorCovers(bonds []CoverageBond, id BondID, gap generic.Interval) bool {
	for _, s := range Successors(bonds, id) {
		if w, ok := s.coverage(); ok && w.Overlaps(gap) {
			return true
		}
	}
	return false
}

func findPeriod(periods []PaymentPeriod, id PaymentPeriodID) (PaymentPeriod, bool) {
	if id == "" {
		return PaymentPeriod{}, false
	}
	for _, p := range periods {
		if p.ID == id {
			return p, true
		}
	}
	return PaymentPeriod{}, false
}
