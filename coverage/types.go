// Package coverage implements the rental coverage and payment-gap
// reconciliation engine on top of the generic interval and money primitives.
//
// The engine is a pure pipeline: a Session snapshot (rental, bonds, payment
// periods) goes through BuildTimeline, then the Analyzer and AlertScheduler,
// and Summarize folds the result into a FinancialSummary. Actions on a Session
// mutate its collections; callers rebuild afterwards.
package coverage

import "fmt"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RentalID string
type BondID string
type PaymentPeriodID string
type ProductID string

// =============================================================================
// BOND STATUS
// =============================================================================

// BondStatus is the insurer-authorization lifecycle.
//
//	PENDING_APPROVAL -> APPROVED -> IN_PROGRESS -> COMPLETED
//	PENDING_APPROVAL -> REJECTED
type BondStatus string

const (
	BondPendingApproval BondStatus = "PENDING_APPROVAL"
	BondApproved        BondStatus = "APPROVED"
	BondInProgress      BondStatus = "IN_PROGRESS"
	BondCompleted       BondStatus = "COMPLETED"
	BondRejected        BondStatus = "REJECTED"
)

func (s BondStatus) Valid() bool {
	switch s {
	case BondPendingApproval, BondApproved, BondInProgress, BondCompleted, BondRejected:
		return true
	}
	return false
}

// Qualifies reports whether a bond in this status contributes coverage.
func (s BondStatus) Qualifies() bool {
	switch s {
	case BondApproved, BondInProgress, BondCompleted:
		return true
	case BondPendingApproval, BondRejected:
		return false
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s BondStatus) IsTerminal() bool {
	return s == BondCompleted || s == BondRejected
}

func ParseBondStatus(s string) (BondStatus, error) {
	return parseEnum("bond status", s, BondStatus.Valid)
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodCheque   PaymentMethod = "CHEQUE"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodTraite   PaymentMethod = "TRAITE" // bill of exchange
	MethodCNAM     PaymentMethod = "CNAM"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCheque, MethodTransfer, MethodTraite, MethodCNAM:
		return true
	}
	return false
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	return parseEnum("payment method", s, PaymentMethod.Valid)
}

// =============================================================================
// GAP REASON
// =============================================================================

type GapReason string

const (
	ReasonCnamPending  GapReason = "CNAM_PENDING"
	ReasonCnamExpired  GapReason = "CNAM_EXPIRED"
	ReasonPatientPause GapReason = "PATIENT_PAUSE"
	ReasonMaintenance  GapReason = "MAINTENANCE"
	ReasonOther        GapReason = "OTHER"

	// ReasonNoCoverage is what the analyzer reports when neither insurer
	// rule applies and no operator reason is recorded.
	ReasonNoCoverage GapReason = "NO_COVERAGE"
)

func (r GapReason) Valid() bool {
	switch r {
	case ReasonCnamPending, ReasonCnamExpired, ReasonPatientPause, ReasonMaintenance, ReasonOther, ReasonNoCoverage:
		return true
	}
	return false
}

// OperatorOnly reports whether only an operator may set this reason.
func (r GapReason) OperatorOnly() bool {
	switch r {
	case ReasonPatientPause, ReasonMaintenance, ReasonOther:
		return true
	case ReasonCnamPending, ReasonCnamExpired, ReasonNoCoverage:
		return false
	}
	return false
}

func ParseGapReason(s string) (GapReason, error) {
	return parseEnum("gap reason", s, GapReason.Valid)
}

// =============================================================================
// DERIVED ENUMS
// =============================================================================

type CoverageSource string

const (
	SourceCNAM   CoverageSource = "CNAM"
	SourceDirect CoverageSource = "DIRECT"
	SourceNone   CoverageSource = "NONE"
)

func (s CoverageSource) Valid() bool {
	switch s {
	case SourceCNAM, SourceDirect, SourceNone:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "LOW" // reserved, not produced by the analyzer
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

type AlertType string

const (
	AlertCnamExpiring AlertType = "CNAM_EXPIRING"
	AlertCnamPending  AlertType = "CNAM_PENDING"
	AlertRentalEnding AlertType = "RENTAL_ENDING"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertCnamExpiring, AlertCnamPending, AlertRentalEnding:
		return true
	}
	return false
}

func ParseAlertType(s string) (AlertType, error) {
	return parseEnum("alert type", s, AlertType.Valid)
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// rank orders priorities, higher first.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func parseEnum[T ~string](kind, s string, valid func(T) bool) (T, error) {
	v := T(s)
	if !valid(v) {
		return "", fmt.Errorf("%w: %q is not a %s", ErrUnknownValue, s, kind)
	}
	return v, nil
}
