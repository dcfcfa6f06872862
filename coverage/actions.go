/*
actions.go - Gap filling, renewals and other Session mutations

PURPOSE:
  Every action validates against the Session's current collections and
  either applies fully or returns an error with the Session unchanged.
  Callers rebuild the timeline after a successful action.

  CreatePaymentPeriodForGap      one gap -> one CASH gap period (needs review)
  AutoGeneratePaymentPeriods     every uncovered run -> gap periods, in bulk
  InitiateCnamRenewal            completed/active bond -> PENDING_APPROVAL draft
  UpdateBondDraft                operator edits of a pending bond
  ApplyBondStatus                insurer decision on a bond

SEE ALSO:
  - gaps.go: reason inference and pricing shared with the bulk variant
  - service.go: journaling and per-rental serialization around these
*/
package coverage

import (
	"fmt"

	"github.com/espace-elite/rental-engine/generic"
	"github.com/google/uuid"
)

func newPaymentPeriodID() PaymentPeriodID { return PaymentPeriodID(uuid.NewString()) }
func newBondID() BondID                   { return BondID(uuid.NewString()) }

// newGapPeriod turns a priced gap into a billing-intent period.
func newGapPeriod(g Gap, products []ProductID) PaymentPeriod {
	reason := g.Reason
	if reason == "" {
		reason = ReasonNoCoverage
	}
	return PaymentPeriod{
		ID:          newPaymentPeriodID(),
		Interval:    generic.Interval{Start: g.Interval.Start, End: g.Interval.End.Ptr()},
		Amount:      g.Amount,
		Method:      MethodCash,
		IsGapPeriod: true,
		GapReason:   reason,
		ProductIDs:  append([]ProductID(nil), products...),
		Notes:       fmt.Sprintf("gap %s (%s), %d days", g.Interval, reason, g.DurationDays),
		NeedsReview: true,
	}
}

// =============================================================================
// GAP FILLING
// =============================================================================

// CreatePaymentPeriodForGap records intent to bill gap. It fails with a
// StaleTimelineError when anything in the current snapshot already covers
// part of the gap, which means the caller's timeline is out of date.
func (s *Session) CreatePaymentPeriodForGap(gap Gap) (PaymentPeriod, error) {
	iv := gap.Interval
	if err := iv.Validate(); err != nil {
		return PaymentPeriod{}, err
	}
	if iv.IsOpenEnded() {
		return PaymentPeriod{}, fmt.Errorf("gap %s: %w", iv, generic.ErrOpenEndedInterval)
	}
	if !s.Rental.Interval().ContainsInterval(iv) {
		return PaymentPeriod{}, &StaleTimelineError{Gap: iv, ConflictKind: "rental"}
	}
	for _, p := range s.PaymentPeriods {
		if p.Interval.Overlaps(iv) {
			return PaymentPeriod{}, &StaleTimelineError{Gap: iv, ConflictKind: "payment period", ConflictID: string(p.ID)}
		}
	}
	for _, b := range s.Bonds {
		if w, ok := b.coverage(); ok && w.Overlaps(iv) {
			return PaymentPeriod{}, &StaleTimelineError{Gap: iv, ConflictKind: "bond", ConflictID: string(b.ID)}
		}
	}

	p := newGapPeriod(gap, s.Rental.ProductIDs)
	if err := p.Validate(); err != nil {
		return PaymentPeriod{}, err
	}
	s.PaymentPeriods = append(s.PaymentPeriods, p)
	return p.clone(), nil
}

// AutoGeneratePaymentPeriods returns a gap period for every run of the rental
// not covered by a qualifying bond. Open-ended rentals are considered up to
// today. Payment periods are ignored; see Session.AutoGeneratePaymentPeriods.
func AutoGeneratePaymentPeriods(bonds []CoverageBond, rental RentalPeriod, pricing PricingFunc, today generic.TimePoint) ([]PaymentPeriod, error) {
	return NewAnalyzer(pricing).GeneratePaymentPeriods(bonds, rental, today)
}

// GeneratePaymentPeriods is AutoGeneratePaymentPeriods with this analyzer's
// currency and thresholds.
func (a *Analyzer) GeneratePaymentPeriods(bonds []CoverageBond, rental RentalPeriod, today generic.TimePoint) ([]PaymentPeriod, error) {
	tl, err := BuildTimeline(rental, bonds, nil, today)
	if err != nil {
		return nil, err
	}

	var out []PaymentPeriod
	for _, seg := range tl.BySource(SourceNone) {
		out = append(out, a.gapPeriod(seg.Interval, rental, bonds, today))
	}
	return out, nil
}

func (a *Analyzer) gapPeriod(iv generic.Interval, rental RentalPeriod, bonds []CoverageBond, today generic.TimePoint) PaymentPeriod {
	reason, bondID := a.inferReason(iv, rental, bonds, today)
	return newGapPeriod(a.price(iv, rental.ProductIDs, reason, bondID), rental.ProductIDs)
}

// AutoGeneratePaymentPeriods fills every uncovered run not already covered by
// a recorded payment period, so repeated passes add nothing new.
func (s *Session) AutoGeneratePaymentPeriods(a *Analyzer, today generic.TimePoint) ([]PaymentPeriod, error) {
	generated, err := a.GeneratePaymentPeriods(s.Bonds, s.Rental, today)
	if err != nil {
		return nil, err
	}

	existing := make([]generic.Interval, len(s.PaymentPeriods))
	for i, p := range s.PaymentPeriods {
		existing[i] = p.Interval
	}

	var added []PaymentPeriod
	for _, p := range generated {
		for _, piece := range generic.SubtractAll(p.Interval, existing) {
			added = append(added, a.gapPeriod(piece, s.Rental, s.Bonds, today))
		}
	}
	if len(added) == 0 {
		return nil, nil
	}

	next := append(append([]PaymentPeriod(nil), s.PaymentPeriods...), added...)
	if err := ValidatePaymentPeriods(next); err != nil {
		return nil, err
	}
	s.PaymentPeriods = next
	return added, nil
}

// =============================================================================
// BONDS
// =============================================================================

// InitiateCnamRenewal drafts a PENDING_APPROVAL renewal of bondID starting
// the day after its coverage ends. The predecessor is not modified.
func (s *Session) InitiateCnamRenewal(bondID BondID) (CoverageBond, error) {
	i, err := s.bondIndex(bondID)
	if err != nil {
		return CoverageBond{}, fmt.Errorf("renew %s: %w", bondID, err)
	}
	pred := s.Bonds[i]
	if !pred.CanRenew() || pred.CoverageEnd == nil {
		return CoverageBond{}, &InvalidBondTransitionError{BondID: pred.ID, From: pred.Status, To: BondPendingApproval, Action: "renew"}
	}

	currency := pred.TotalAmount.Currency
	if currency == "" {
		currency = s.Currency()
	}
	draft := CoverageBond{
		ID:                newBondID(),
		BondType:          pred.BondType,
		Status:            BondPendingApproval,
		CoverageStart:     pred.CoverageEnd.AddDays(1).Ptr(),
		CoveredMonths:     pred.CoveredMonths,
		TotalAmount:       generic.ZeroAmount(currency),
		PredecessorBondID: pred.ID,
	}
	if err := draft.Validate(); err != nil {
		return CoverageBond{}, err
	}
	s.Bonds = append(s.Bonds, draft)
	return draft.clone(), nil
}

// BondDraft holds the operator-editable terms of a pending bond. Nil fields
// keep their current value.
type BondDraft struct {
	CoverageStart  *generic.TimePoint
	CoverageEnd    *generic.TimePoint
	CoveredMonths  *int
	TotalAmount    *generic.Amount
	BondNumber     *string
	SubmissionDate *generic.TimePoint
}

// IsEmpty reports whether the draft changes nothing.
func (d BondDraft) IsEmpty() bool {
	return d.CoverageStart == nil && d.CoverageEnd == nil && d.CoveredMonths == nil &&
		d.TotalAmount == nil && d.BondNumber == nil && d.SubmissionDate == nil
}

// UpdateBondDraft edits the terms of a PENDING_APPROVAL bond, typically a
// renewal draft before it goes to the insurer. Setting SubmissionDate marks
// the draft as submitted. Other statuses are frozen.
func (s *Session) UpdateBondDraft(bondID BondID, d BondDraft, today generic.TimePoint) (CoverageBond, error) {
	i, err := s.bondIndex(bondID)
	if err != nil {
		return CoverageBond{}, fmt.Errorf("edit %s: %w", bondID, err)
	}
	b := s.Bonds[i].clone()
	if b.Status != BondPendingApproval {
		return CoverageBond{}, &InvalidBondTransitionError{BondID: b.ID, From: b.Status, To: b.Status, Action: "edit"}
	}
	if d.IsEmpty() {
		return CoverageBond{}, invalidBond(b.ID, "nothing to update")
	}

	if d.CoverageStart != nil {
		b.CoverageStart = d.CoverageStart.Ptr()
	}
	if d.CoverageEnd != nil {
		b.CoverageEnd = d.CoverageEnd.Ptr()
	}
	if d.CoveredMonths != nil {
		b.CoveredMonths = *d.CoveredMonths
	}
	if d.TotalAmount != nil {
		b.TotalAmount = *d.TotalAmount
	}
	if d.BondNumber != nil {
		b.BondNumber = *d.BondNumber
	}
	if d.SubmissionDate != nil {
		if d.SubmissionDate.After(today) {
			return CoverageBond{}, invalidBond(b.ID, "submission date %s is in the future", *d.SubmissionDate)
		}
		b.SubmissionDate = d.SubmissionDate.Ptr()
	}
	if err := b.Validate(); err != nil {
		return CoverageBond{}, err
	}

	next := append([]CoverageBond(nil), s.Bonds...)
	next[i] = b
	if err := ValidateChain(next); err != nil {
		return CoverageBond{}, err
	}
	s.Bonds = next
	return b.clone(), nil
}

// ApplyBondStatus applies an insurer decision to a bond.
func (s *Session) ApplyBondStatus(bondID BondID, status BondStatus, today generic.TimePoint) (CoverageBond, error) {
	i, err := s.bondIndex(bondID)
	if err != nil {
		return CoverageBond{}, fmt.Errorf("update %s: %w", bondID, err)
	}
	b := s.Bonds[i].clone()
	if err := b.Transition(status, today); err != nil {
		return CoverageBond{}, err
	}
	s.Bonds[i] = b
	return b.clone(), nil
}

// AddBond records a bond, assigning an id when missing.
func (s *Session) AddBond(b CoverageBond) (CoverageBond, error) {
	b = b.clone()
	if b.ID == "" {
		b.ID = newBondID()
	}
	if err := b.Validate(); err != nil {
		return CoverageBond{}, err
	}
	next := append(append([]CoverageBond(nil), s.Bonds...), b)
	if err := ValidateChain(next); err != nil {
		return CoverageBond{}, err
	}
	s.Bonds = next
	return b.clone(), nil
}

// =============================================================================
// PAYMENT PERIODS & RENTAL
// =============================================================================

// AddPaymentPeriod records an operator payment period, assigning an id when
// missing. Overlapping non-gap periods are rejected, never truncated.
func (s *Session) AddPaymentPeriod(p PaymentPeriod) (PaymentPeriod, error) {
	p = p.clone()
	if p.ID == "" {
		p.ID = newPaymentPeriodID()
	}
	next := append(append([]PaymentPeriod(nil), s.PaymentPeriods...), p)
	if err := ValidatePaymentPeriods(next); err != nil {
		return PaymentPeriod{}, err
	}
	s.PaymentPeriods = next
	return p.clone(), nil
}

// ExtendRental changes the rental's end date.
func (s *Session) ExtendRental(newEnd generic.TimePoint) error {
	r := s.Rental.clone()
	if err := r.Extend(newEnd); err != nil {
		return err
	}
	s.Rental = r
	return nil
}
