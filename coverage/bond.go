/*
bond.go - CNAM coverage bonds and their status state machine

PURPOSE:
  A bond is one insurer authorization to cover equipment rental costs for
  a fixed window. Only APPROVED, IN_PROGRESS and COMPLETED bonds contribute
  coverage; PENDING_APPROVAL and REJECTED contribute nothing.

STATE MACHINE:
  PENDING_APPROVAL -> APPROVED -> IN_PROGRESS -> COMPLETED
  PENDING_APPROVAL -> REJECTED
  REJECTED and COMPLETED are terminal.

  APPROVED -> IN_PROGRESS and IN_PROGRESS -> COMPLETED are also inferred
  from the calendar (see EffectiveStatus); the stored status is never
  rewritten by inference.

RENEWALS:
  A renewal is a new PENDING_APPROVAL bond whose PredecessorBondID points at
  the expiring bond. The predecessor is never touched.
*/
package coverage

import (
	"sort"

	"github.com/espace-elite/rental-engine/generic"
)

type CoverageBond struct {
	ID                BondID
	BondType          string
	Status            BondStatus
	CoverageStart     *generic.TimePoint
	CoverageEnd       *generic.TimePoint
	CoveredMonths     int
	TotalAmount       generic.Amount
	BondNumber        string
	SubmissionDate    *generic.TimePoint
	PredecessorBondID BondID // empty when this is not a renewal
}

// Validate checks the bond in isolation. Chain rules live in ValidateChain.
func (b CoverageBond) Validate() error {
	if b.ID == "" {
		return invalidBond(b.ID, "id is required")
	}
	if !b.Status.Valid() {
		return invalidBond(b.ID, "unknown status %q", b.Status)
	}
	if b.Status.Qualifies() && (b.CoverageStart == nil || b.CoverageEnd == nil) {
		return invalidBond(b.ID, "status %s requires coverage start and end", b.Status)
	}
	if b.CoverageStart != nil && b.CoverageEnd != nil && b.CoverageEnd.Before(*b.CoverageStart) {
		return &generic.MalformedIntervalError{Start: *b.CoverageStart, End: b.CoverageEnd, Reason: "coverage ends before it starts"}
	}
	if b.CoverageStart == nil && b.CoverageEnd != nil {
		return invalidBond(b.ID, "coverage end without a start")
	}
	if b.CoveredMonths < 0 {
		return invalidBond(b.ID, "covered months cannot be negative")
	}
	if b.TotalAmount.IsNegative() {
		return invalidBond(b.ID, "total amount cannot be negative")
	}
	if b.PredecessorBondID == b.ID {
		return &BondChainError{BondID: b.ID, Cause: ErrBondChainCycle, Reason: "bond renews itself"}
	}
	return nil
}

// Qualifies reports whether the bond contributes coverage.
func (b CoverageBond) Qualifies() bool {
	return b.Status.Qualifies()
}

// Window returns the coverage window. A bond with a start but no end (only
// possible before approval) yields an open interval; no start yields false.
func (b CoverageBond) Window() (generic.Interval, bool) {
	if b.CoverageStart == nil {
		return generic.Interval{}, false
	}
	i := generic.Interval{Start: *b.CoverageStart}
	if b.CoverageEnd != nil {
		i.End = b.CoverageEnd.Ptr()
	}
	return i, true
}

// coverage returns the window of a qualifying bond.
func (b CoverageBond) coverage() (generic.Interval, bool) {
	if !b.Qualifies() {
		return generic.Interval{}, false
	}
	return b.Window()
}

// EffectiveStatus applies the calendar inferences to the stored status.
func (b CoverageBond) EffectiveStatus(today generic.TimePoint) BondStatus {
	switch b.Status {
	case BondApproved, BondInProgress:
		if b.CoverageEnd != nil && today.After(*b.CoverageEnd) {
			return BondCompleted
		}
		if b.CoverageStart != nil && b.CoverageStart.BeforeOrEqual(today) {
			return BondInProgress
		}
		return b.Status
	case BondPendingApproval, BondCompleted, BondRejected:
		return b.Status
	}
	return b.Status
}

// =============================================================================
// TRANSITIONS
// =============================================================================

var bondTransitions = map[BondStatus][]BondStatus{
	BondPendingApproval: {BondApproved, BondRejected},
	BondApproved:        {BondInProgress},
	BondInProgress:      {BondCompleted},
}

// CanTransition reports whether from -> to is an allowed external step.
func CanTransition(from, to BondStatus) bool {
	for _, next := range bondTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition applies an externally triggered status change. A transition the
// calendar has already inferred (APPROVED -> COMPLETED after coverage ended)
// is accepted too. On error the bond is unchanged.
func (b *CoverageBond) Transition(to BondStatus, today generic.TimePoint) error {
	if !to.Valid() {
		return invalidBond(b.ID, "unknown status %q", to)
	}
	effective := b.EffectiveStatus(today)
	allowed := CanTransition(b.Status, to) || (to == effective && to != b.Status)
	if !allowed {
		return &InvalidBondTransitionError{BondID: b.ID, From: b.Status, To: to, Action: "transition"}
	}

	next := *b
	next.Status = to
	if err := next.Validate(); err != nil {
		return err
	}
	*b = next
	return nil
}

// CanRenew reports whether the bond was ever valid.
func (b CoverageBond) CanRenew() bool {
	return b.Qualifies()
}

// =============================================================================
// RENEWAL CHAINS
// =============================================================================

// ValidateChain checks ids are unique, predecessors exist, chains are acyclic
// and each renewal starts after its predecessor's coverage ends.
func ValidateChain(bonds []CoverageBond) error {
	byID := make(map[BondID]CoverageBond, len(bonds))
	for _, b := range bonds {
		if _, dup := byID[b.ID]; dup {
			return invalidBond(b.ID, "duplicate bond id")
		}
		byID[b.ID] = b
	}

	for _, b := range bonds {
		if b.PredecessorBondID == "" {
			continue
		}
		pred, ok := byID[b.PredecessorBondID]
		if !ok {
			return &BondChainError{BondID: b.ID, Cause: ErrInvalidBond, Reason: "predecessor " + string(b.PredecessorBondID) + " not found"}
		}

		seen := map[BondID]bool{b.ID: true}
		for cur := pred; ; {
			if seen[cur.ID] {
				return &BondChainError{BondID: b.ID, Cause: ErrBondChainCycle, Reason: "cycle through " + string(cur.ID)}
			}
			seen[cur.ID] = true
			next, ok := byID[cur.PredecessorBondID]
			if cur.PredecessorBondID == "" || !ok {
				break
			}
			cur = next
		}

		if b.Status == BondRejected || b.CoverageStart == nil || pred.CoverageEnd == nil {
			continue
		}
		if b.CoverageStart.BeforeOrEqual(*pred.CoverageEnd) {
			return &BondChainError{
				BondID: b.ID,
				Cause:  ErrInvalidBond,
				Reason: "renewal starts on " + b.CoverageStart.String() + ", before predecessor ends on " + pred.CoverageEnd.String(),
			}
		}
	}
	return nil
}

// ChainOf returns the renewal lineage ending at id, root first.
// The chain must already be valid.
func ChainOf(bonds []CoverageBond, id BondID) ([]CoverageBond, error) {
	byID := make(map[BondID]CoverageBond, len(bonds))
	for _, b := range bonds {
		byID[b.ID] = b
	}

	cur, ok := byID[id]
	if !ok {
		return nil, ErrBondNotFound
	}
	chain := []CoverageBond{cur}
	for cur.PredecessorBondID != "" && len(chain) <= len(bonds) {
		cur, ok = byID[cur.PredecessorBondID]
		if !ok {
			break
		}
		chain = append(chain, cur)
	}
	if len(chain) > len(bonds) {
		return nil, &BondChainError{BondID: id, Cause: ErrBondChainCycle, Reason: "cycle in lineage"}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Successors returns the direct renewals of id ordered by start then id.
func Successors(bonds []CoverageBond, id BondID) []CoverageBond {
	var out []CoverageBond
	for _, b := range bonds {
		if b.PredecessorBondID == id {
			out = append(out, b)
		}
	}
	sortBonds(out)
	return out
}

// sortBonds orders by coverage start (undated last) then id.
func sortBonds(bonds []CoverageBond) {
	sort.SliceStable(bonds, func(i, j int) bool {
		a, b := bonds[i], bonds[j]
		switch {
		case a.CoverageStart == nil && b.CoverageStart == nil:
			return a.ID < b.ID
		case a.CoverageStart == nil:
			return false
		case b.CoverageStart == nil:
			return true
		case !a.CoverageStart.Equal(*b.CoverageStart):
			return a.CoverageStart.Before(*b.CoverageStart)
		}
		return a.ID < b.ID
	})
}

func (b CoverageBond) clone() CoverageBond {
	c := b
	if b.CoverageStart != nil {
		c.CoverageStart = b.CoverageStart.Ptr()
	}
	if b.CoverageEnd != nil {
		c.CoverageEnd = b.CoverageEnd.Ptr()
	}
	if b.SubmissionDate != nil {
		c.SubmissionDate = b.SubmissionDate.Ptr()
	}
	return c
}
