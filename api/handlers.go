/*
handlers.go - HTTP request handlers for the rental engine API

PURPOSE:
  Implements the REST API endpoints. Handlers decode requests into factory
  documents, convert them to coverage types, call the Service, and render
  the result.

ENDPOINTS:
  Reconciliation:
    POST /api/reconcile                          - Reconcile a posted snapshot (no storage)
    GET  /api/rentals/{id}/reconciliation        - Timeline, gaps, alerts and summary
    GET  /api/alerts                             - Alerts across every rental

  Rentals:
    GET  /api/rentals                            - List rentals
    POST /api/rentals                            - Create a rental (snapshot document)
    GET  /api/rentals/{id}                       - Get a rental with bonds and periods
    PUT  /api/rentals/{id}/end                   - Set or move the end date
    GET  /api/rentals/{id}/journal               - Recorded actions

  Bonds:
    POST /api/rentals/{id}/bonds                 - Record a CNAM bond
    POST /api/rentals/{id}/bonds/{bondID}/status - Apply an insurer decision
    POST /api/rentals/{id}/bonds/{bondID}/renew  - Draft a renewal

  Payment periods:
    POST /api/rentals/{id}/payment-periods       - Record an operator payment
    POST /api/rentals/{id}/payment-periods/auto  - Bill every uncovered span
    POST /api/rentals/{id}/gaps/fill             - Bill one reported gap

ERROR HANDLING:
  400: malformed body, invalid dates or records
  404: unknown rental or bond
  409: overlap, stale gap, invalid transition, duplicate rental
  500: storage failures

CONTENT TYPES:
  Snapshot bodies are JSON, or YAML when Content-Type names yaml. Reports are
  rendered as YAML when the Accept header asks for it.

SEE ALSO:
  - dto.go: Request/response types
  - coverage/service.go: Business logic
*/
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/factory"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service *coverage.Service
	Logger  zerolog.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *coverage.Service, logger zerolog.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  logger.With().Str("component", "api").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Today: h.Service.Clock.Today().String()})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconcileSnapshot reconciles a posted snapshot without storing it.
// POST /api/reconcile?today=YYYY-MM-DD
//
// The date comes from the query, then the document's "today", then the clock.
func (h *Handler) ReconcileSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.decodeSnapshot(r)
	if err != nil {
		h.respondError(w, "reconcile_snapshot", err)
		return
	}

	today := h.Service.Clock.Today()
	if snap.Today != nil {
		today = *snap.Today
	}
	if q := r.URL.Query().Get("today"); q != "" {
		if today, err = generic.ParseDate(q); err != nil {
			h.respondError(w, "reconcile_snapshot", fmt.Errorf("%w: today: %v", factory.ErrMalformedDocument, err))
			return
		}
	}

	report, err := h.Service.Reconciler.Reconcile(snap.Session, today)
	if err != nil {
		h.respondError(w, "reconcile_snapshot", err)
		return
	}
	observeReport("snapshot", report)
	h.writeReport(w, r, report)
}

// GetReconciliation reconciles a stored rental as of today.
// GET /api/rentals/{id}/reconciliation
func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.Reconcile(r.Context(), rentalID(r))
	if err != nil {
		h.respondError(w, "reconcile", err)
		return
	}
	observeReport("rental", report)
	h.writeReport(w, r, report)
}

// ListAlerts returns the alerts of every stored rental.
// GET /api/alerts?type=CNAM_EXPIRING
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Service.Alerts(r.Context())
	if err != nil {
		h.respondError(w, "alerts", err)
		return
	}

	if q := r.URL.Query().Get("type"); q != "" {
		t, err := coverage.ParseAlertType(q)
		if err != nil {
			h.respondError(w, "alerts", fmt.Errorf("%w: type: %v", factory.ErrMalformedDocument, err))
			return
		}
		filtered := alerts[:0]
		for _, a := range alerts {
			if a.Type == t {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	writeJSON(w, http.StatusOK, AlertsResponse{
		Today:  h.Service.Clock.Today().String(),
		Alerts: factory.NewAlertDocs(alerts),
	})
}

// =============================================================================
// RENTALS
// =============================================================================

// ListRentals returns all stored rentals.
// GET /api/rentals
func (h *Handler) ListRentals(w http.ResponseWriter, r *http.Request) {
	rentals, err := h.Service.List(r.Context())
	if err != nil {
		h.respondError(w, "list_rentals", err)
		return
	}
	resp := RentalListResponse{Rentals: make([]factory.RentalDoc, 0, len(rentals))}
	for _, rental := range rentals {
		resp.Rentals = append(resp.Rentals, factory.NewRentalDoc(rental))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateRental stores a new rental from a snapshot document.
// POST /api/rentals
func (h *Handler) CreateRental(w http.ResponseWriter, r *http.Request) {
	snap, err := h.decodeSnapshot(r)
	if err != nil {
		h.respondError(w, "create_rental", err)
		return
	}
	if snap.Session.Rental.ID == "" {
		h.respondError(w, "create_rental", fmt.Errorf("%w: rental.id is required", factory.ErrMalformedDocument))
		return
	}
	if err := h.Service.CreateRental(r.Context(), snap.Session); err != nil {
		h.respondError(w, "create_rental", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.NewSnapshotDoc(snap.Session))
}

// GetRental returns a rental with its bonds and payment periods.
// GET /api/rentals/{id}
func (h *Handler) GetRental(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.Get(r.Context(), rentalID(r))
	if err != nil {
		h.respondError(w, "get_rental", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.NewSnapshotDoc(sess))
}

// ExtendRental sets the rental's end date. Open-ended rentals become fixed.
// PUT /api/rentals/{id}/end
func (h *Handler) ExtendRental(w http.ResponseWriter, r *http.Request) {
	var req ExtendRentalRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, "extend_rental", err)
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		h.respondError(w, "extend_rental", fmt.Errorf("%w: end_date: %v", factory.ErrMalformedDocument, err))
		return
	}

	sess, err := h.Service.ExtendRental(r.Context(), rentalID(r), end)
	if err != nil {
		h.respondError(w, "extend_rental", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.NewSnapshotDoc(sess))
}

// GetJournal returns the rental's recorded actions, oldest first.
// GET /api/rentals/{id}/journal
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.JournalEntries(r.Context(), rentalID(r))
	if err != nil {
		h.respondError(w, "journal", err)
		return
	}
	resp := JournalResponse{Entries: make([]EntryDTO, 0, len(entries))}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// BONDS
// =============================================================================

// AddBond records a CNAM bond.
// POST /api/rentals/{id}/bonds
func (h *Handler) AddBond(w http.ResponseWriter, r *http.Request) {
	var doc factory.BondDoc
	if err := decodeJSON(r, &doc); err != nil {
		h.respondError(w, "add_bond", err)
		return
	}
	currency, err := h.currencyOf(r)
	if err != nil {
		h.respondError(w, "add_bond", err)
		return
	}
	bond, err := doc.ToBond(currency)
	if err != nil {
		h.respondError(w, "add_bond", err)
		return
	}

	added, err := h.Service.AddBond(r.Context(), rentalID(r), bond)
	if err != nil {
		h.respondError(w, "add_bond", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.NewBondDoc(added))
}

// UpdateBondStatus applies an insurer decision or submission.
// POST /api/rentals/{id}/bonds/{bondID}/status
func (h *Handler) UpdateBondStatus(w http.ResponseWriter, r *http.Request) {
	var req BondStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, "bond_status", err)
		return
	}
	status, err := coverage.ParseBondStatus(req.Status)
	if err != nil {
		h.respondError(w, "bond_status", err)
		return
	}

	bond, err := h.Service.ApplyBondStatus(r.Context(), rentalID(r), bondID(r), status)
	if err != nil {
		h.respondError(w, "bond_status", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.NewBondDoc(bond))
}

// UpdateBondDraft edits the terms of a pending bond, typically a renewal
// draft before submission. Only fields present in the body change.
// PATCH /api/rentals/{id}/bonds/{bondID}
func (h *Handler) UpdateBondDraft(w http.ResponseWriter, r *http.Request) {
	var doc factory.BondDraftDoc
	if err := decodeJSON(r, &doc); err != nil {
		h.respondError(w, "update_bond_draft", err)
		return
	}
	currency, err := h.currencyOf(r)
	if err != nil {
		h.respondError(w, "update_bond_draft", err)
		return
	}
	draft, err := doc.ToBondDraft(currency)
	if err != nil {
		h.respondError(w, "update_bond_draft", err)
		return
	}

	bond, err := h.Service.UpdateBondDraft(r.Context(), rentalID(r), bondID(r), draft)
	if err != nil {
		h.respondError(w, "update_bond_draft", err)
		return
	}
	writeJSON(w, http.StatusOK, factory.NewBondDoc(bond))
}

// RenewBond drafts the renewal of a bond.
// POST /api/rentals/{id}/bonds/{bondID}/renew
func (h *Handler) RenewBond(w http.ResponseWriter, r *http.Request) {
	draft, err := h.Service.RenewBond(r.Context(), rentalID(r), bondID(r))
	if err != nil {
		h.respondError(w, "renew_bond", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.NewBondDoc(draft))
}

// =============================================================================
// PAYMENT PERIODS
// =============================================================================

// AddPaymentPeriod records an operator payment period.
// POST /api/rentals/{id}/payment-periods
func (h *Handler) AddPaymentPeriod(w http.ResponseWriter, r *http.Request) {
	var doc factory.PaymentPeriodDoc
	if err := decodeJSON(r, &doc); err != nil {
		h.respondError(w, "add_payment_period", err)
		return
	}
	currency, err := h.currencyOf(r)
	if err != nil {
		h.respondError(w, "add_payment_period", err)
		return
	}
	period, err := doc.ToPaymentPeriod(currency)
	if err != nil {
		h.respondError(w, "add_payment_period", err)
		return
	}

	added, err := h.Service.AddPaymentPeriod(r.Context(), rentalID(r), period)
	if err != nil {
		h.respondError(w, "add_payment_period", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.NewPaymentPeriodDoc(added))
}

// FillGap bills one reported gap.
// POST /api/rentals/{id}/gaps/fill
func (h *Handler) FillGap(w http.ResponseWriter, r *http.Request) {
	var req FillGapRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, "fill_gap", err)
		return
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		h.respondError(w, "fill_gap", fmt.Errorf("%w: start_date: %v", factory.ErrMalformedDocument, err))
		return
	}
	end, err := generic.ParseDate(req.EndDate)
	if err != nil {
		h.respondError(w, "fill_gap", fmt.Errorf("%w: end_date: %v", factory.ErrMalformedDocument, err))
		return
	}
	iv, err := generic.NewInterval(start, end)
	if err != nil {
		h.respondError(w, "fill_gap", err)
		return
	}

	period, err := h.Service.FillGap(r.Context(), rentalID(r), iv)
	if err != nil {
		h.respondError(w, "fill_gap", err)
		return
	}
	writeJSON(w, http.StatusCreated, factory.NewPaymentPeriodDoc(period))
}

// AutoFill bills every uncovered span of the rental.
// POST /api/rentals/{id}/payment-periods/auto
func (h *Handler) AutoFill(w http.ResponseWriter, r *http.Request) {
	created, err := h.Service.AutoFill(r.Context(), rentalID(r))
	if err != nil {
		h.respondError(w, "auto_fill", err)
		return
	}
	resp := AutoFillResponse{Created: make([]factory.PaymentPeriodDoc, 0, len(created))}
	for _, p := range created {
		resp.Created = append(resp.Created, factory.NewPaymentPeriodDoc(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func rentalID(r *http.Request) coverage.RentalID {
	return coverage.RentalID(chi.URLParam(r, "id"))
}

func bondID(r *http.Request) coverage.BondID {
	return coverage.BondID(chi.URLParam(r, "bondID"))
}

// currencyOf returns the stored rental's currency.
func (h *Handler) currencyOf(r *http.Request) (generic.Currency, error) {
	sess, err := h.Service.Get(r.Context(), rentalID(r))
	if err != nil {
		return "", err
	}
	return sess.Currency(), nil
}

func (h *Handler) decodeSnapshot(r *http.Request) (factory.Snapshot, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return factory.Snapshot{}, fmt.Errorf("%w: %v", factory.ErrMalformedDocument, err)
	}
	format := factory.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = factory.FormatYAML
	}
	return factory.DecodeSnapshot(body, format)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", factory.ErrMalformedDocument, err)
	}
	return nil
}

func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, report coverage.Report) {
	if strings.Contains(r.Header.Get("Accept"), "yaml") {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		if err := factory.EncodeReport(w, report, factory.FormatYAML); err != nil {
			h.Logger.Error().Err(err).Msg("encode report")
		}
		return
	}
	writeJSON(w, http.StatusOK, factory.NewReportDoc(report))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func isBadRequest(err error) bool {
	return errors.Is(err, factory.ErrMalformedDocument) || coverage.IsClientError(err)
}

// respondError maps err to a status code and counts the failure.
func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	class := errorClass(err)
	ActionFailures.WithLabelValues(action, class).Inc()

	switch class {
	case "invalid":
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case "not_found":
		writeError(w, http.StatusNotFound, "Not found", err)
	case "conflict":
		resp := ErrorResponse{Error: "Conflict", Code: conflictCode(err), Details: err.Error()}
		writeJSON(w, http.StatusConflict, resp)
	default:
		h.Logger.Error().Err(err).Str("action", action).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, coverage.ErrStaleTimeline):
		return "STALE_TIMELINE"
	case errors.Is(err, coverage.ErrOverlappingPaymentPeriod):
		return "OVERLAPPING_PAYMENT_PERIOD"
	case errors.Is(err, coverage.ErrInvalidBondTransition):
		return "INVALID_BOND_TRANSITION"
	case errors.Is(err, coverage.ErrRentalExists):
		return "RENTAL_EXISTS"
	default:
		return "CONFLICT"
	}
}
