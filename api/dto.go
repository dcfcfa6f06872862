/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Request bodies and response shapes specific to the HTTP API. Rentals,
  bonds, payment periods and reports reuse the factory documents so the API
  and the snapshot files share one contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Rental:        factory.SnapshotDoc (create, get), ExtendRentalRequest
  Bond:          factory.BondDoc, factory.BondDraftDoc, BondStatusRequest
  Payment:       factory.PaymentPeriodDoc, FillGapRequest, AutoFillResponse
  Reconcile:     factory.ReportDoc, AlertsResponse
  Journal:       JournalResponse, EntryDTO

VALIDATION:
  Done by the factory converters and the coverage engine, not here.
*/
package api

import (
	"time"

	"github.com/espace-elite/rental-engine/factory"
	"github.com/espace-elite/rental-engine/generic"
)

// =============================================================================
// RENTAL
// =============================================================================

type ExtendRentalRequest struct {
	EndDate string `json:"end_date"`
}

type RentalListResponse struct {
	Rentals []factory.RentalDoc `json:"rentals"`
}

// =============================================================================
// BONDS & PAYMENT PERIODS
// =============================================================================

type BondStatusRequest struct {
	Status string `json:"status"`
}

// FillGapRequest names the gap to bill by its exact interval, as reported by
// GET /api/rentals/{id}/reconciliation.
type FillGapRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type AutoFillResponse struct {
	Created []factory.PaymentPeriodDoc `json:"created"`
}

// =============================================================================
// ALERTS & JOURNAL
// =============================================================================

type AlertsResponse struct {
	Today  string             `json:"today"`
	Alerts []factory.AlertDoc `json:"alerts"`
}

type JournalResponse struct {
	Entries []EntryDTO `json:"entries"`
}

// EntryDTO is a journal entry.
type EntryDTO struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	EffectiveAt string            `json:"effective_at"`
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedBy   string            `json:"created_by,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func toEntryDTO(e generic.Entry) EntryDTO {
	return EntryDTO{
		ID:          string(e.ID),
		Kind:        string(e.Kind),
		EffectiveAt: e.EffectiveAt.String(),
		Amount:      e.Amount.Value.Round(generic.MoneyPlaces).InexactFloat64(),
		Currency:    string(e.Amount.Currency),
		ReferenceID: e.ReferenceID,
		Reason:      e.Reason,
		Metadata:    e.Metadata,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Today  string `json:"today"`
}
