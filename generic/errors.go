/*
errors.go - Centralized error types for the generic primitives

PURPOSE:
  All error types of the generic package in one place. Domain packages
  (coverage) define their own kinds and wrap these where relevant.

ERROR CATEGORIES:
  1. Interval errors - malformed or unbounded ranges
  2. Journal errors  - append-only log failures

USAGE:
  if errors.Is(err, generic.ErrMalformedInterval) {
      // surface to the operator, do not correct
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedInterval is returned when an interval's end precedes its start.
	ErrMalformedInterval = errors.New("malformed interval")

	// ErrOpenEndedInterval is returned when a duration is requested for an
	// interval with no end. Clamp to today first.
	ErrOpenEndedInterval = errors.New("interval is open-ended")

	// ErrDuplicateIdempotencyKey is returned when a journal entry with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedIntervalError provides details about a rejected interval.
type MalformedIntervalError struct {
	Start  TimePoint
	End    *TimePoint
	Reason string
}

func (e *MalformedIntervalError) Error() string {
	end := "open"
	if e.End != nil {
		end = e.End.String()
	}
	return fmt.Sprintf("malformed interval %s..%s: %s", e.Start, end, e.Reason)
}

func (e *MalformedIntervalError) Unwrap() error {
	return ErrMalformedInterval
}
