/*
errors.go - Error kinds of the reconciliation engine

PURPOSE:
  Every engine error is returned to the caller, never corrected. A failed
  action leaves the Session exactly as it was so the operator can fix the
  input and retry.

ERROR CATEGORIES:
  1. Input errors     - malformed intervals, invalid bonds/periods, unknown enum values
  2. Conflict errors  - overlapping periods, invalid transitions, stale gaps, chain cycles
  3. Lookup errors    - unknown rental or bond

USAGE:
  var overlap *coverage.OverlappingPaymentPeriodError
  if errors.As(err, &overlap) {
      // show both period ids to the operator
  }
*/
package coverage

import (
	"errors"
	"fmt"

	"github.com/espace-elite/rental-engine/generic"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOverlappingPaymentPeriod is returned when two non-gap payment periods
	// bill the same product on the same day.
	ErrOverlappingPaymentPeriod = errors.New("overlapping payment period")

	// ErrInvalidBondTransition is returned when a status change or a renewal
	// is applied to a bond in the wrong state.
	ErrInvalidBondTransition = errors.New("invalid bond transition")

	// ErrStaleTimeline is returned when a gap-filling action references a gap
	// that no longer matches the current snapshot. Rebuild and retry.
	ErrStaleTimeline = errors.New("stale timeline")

	ErrInvalidBond          = errors.New("invalid coverage bond")
	ErrInvalidPaymentPeriod = errors.New("invalid payment period")
	ErrInvalidRental        = errors.New("invalid rental period")
	ErrBondChainCycle       = errors.New("bond renewal chain has a cycle")
	ErrUnknownValue         = errors.New("unknown value")

	ErrBondNotFound   = errors.New("bond not found")
	ErrRentalNotFound = errors.New("rental not found")
	ErrRentalExists   = errors.New("rental already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverlappingPaymentPeriodError names the two conflicting periods.
type OverlappingPaymentPeriodError struct {
	First   PaymentPeriodID
	Second  PaymentPeriodID
	Overlap generic.Interval
}

func (e *OverlappingPaymentPeriodError) Error() string {
	return fmt.Sprintf("payment periods %s and %s overlap on %s", e.First, e.Second, e.Overlap)
}

func (e *OverlappingPaymentPeriodError) Unwrap() error {
	return ErrOverlappingPaymentPeriod
}

// InvalidBondTransitionError describes a rejected status change or renewal.
type InvalidBondTransitionError struct {
	BondID BondID
	From   BondStatus
	To     BondStatus
	Action string // "transition", "renew" or "edit"
}

func (e *InvalidBondTransitionError) Error() string {
	switch e.Action {
	case "renew":
		return fmt.Sprintf("bond %s cannot be renewed from status %s", e.BondID, e.From)
	case "edit":
		return fmt.Sprintf("bond %s cannot be edited in status %s", e.BondID, e.From)
	}
	return fmt.Sprintf("bond %s cannot move from %s to %s", e.BondID, e.From, e.To)
}

func (e *InvalidBondTransitionError) Unwrap() error {
	return ErrInvalidBondTransition
}

// StaleTimelineError identifies what already covers the requested gap.
type StaleTimelineError struct {
	Gap          generic.Interval
	ConflictKind string // "payment period", "bond", "rental" or "timeline"
	ConflictID   string
}

func (e *StaleTimelineError) Error() string {
	if e.ConflictID == "" {
		return fmt.Sprintf("gap %s no longer matches the %s", e.Gap, e.ConflictKind)
	}
	return fmt.Sprintf("gap %s already covered by %s %s", e.Gap, e.ConflictKind, e.ConflictID)
}

func (e *StaleTimelineError) Unwrap() error {
	return ErrStaleTimeline
}

// ValidationError is a field-level rejection of a bond, payment period or
// rental. Kind is one of the ErrInvalid* sentinels.
type ValidationError struct {
	Kind   error
	ID     string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.ID, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func invalidBond(id BondID, format string, args ...any) error {
	return &ValidationError{Kind: ErrInvalidBond, ID: string(id), Reason: fmt.Sprintf(format, args...)}
}

func invalidPeriod(id PaymentPeriodID, format string, args ...any) error {
	return &ValidationError{Kind: ErrInvalidPaymentPeriod, ID: string(id), Reason: fmt.Sprintf(format, args...)}
}

func invalidRental(id RentalID, format string, args ...any) error {
	return &ValidationError{Kind: ErrInvalidRental, ID: string(id), Reason: fmt.Sprintf(format, args...)}
}

// BondChainError reports a broken renewal chain.
type BondChainError struct {
	BondID BondID
	Cause  error // ErrBondChainCycle or ErrInvalidBond
	Reason string
}

func (e *BondChainError) Error() string {
	return fmt.Sprintf("renewal chain at bond %s: %s", e.BondID, e.Reason)
}

func (e *BondChainError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// CLASSIFICATION - Drives HTTP status mapping
// =============================================================================

// IsClientError reports whether err was caused by malformed input.
func IsClientError(err error) bool {
	return errors.Is(err, generic.ErrMalformedInterval) ||
		errors.Is(err, generic.ErrOpenEndedInterval) ||
		errors.Is(err, ErrInvalidBond) ||
		errors.Is(err, ErrInvalidPaymentPeriod) ||
		errors.Is(err, ErrInvalidRental) ||
		errors.Is(err, ErrUnknownValue)
}

// IsConflict reports whether err rejects an action against the current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlappingPaymentPeriod) ||
		errors.Is(err, ErrInvalidBondTransition) ||
		errors.Is(err, ErrStaleTimeline) ||
		errors.Is(err, ErrBondChainCycle) ||
		errors.Is(err, ErrRentalExists) ||
		errors.Is(err, generic.ErrDuplicateIdempotencyKey)
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRentalNotFound) || errors.Is(err, ErrBondNotFound)
}
