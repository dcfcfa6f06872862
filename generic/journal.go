/*
journal.go - Append-only log of reconciliation actions

PURPOSE:
  The Journal records every action that changed a rental's bond or
  payment-period collections: gap periods synthesized, renewals drafted,
  insurer decisions applied, rental extensions. The engine itself is pure;
  the journal is how the service layer keeps an audit trail of what the
  operator (or the auto-generation pass) did and when.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, entries cannot be modified
  3. IDEMPOTENT: Same idempotency key = same entry (no duplicates)

CORRECTIONS:
  Bonds are superseded, never deleted; payment periods are corrected by
  the operator and re-reconciled. Either way a new entry is appended and the
  old one stays.

SEE ALSO:
  - store.go: Low-level persistence interface
  - coverage/service.go: Writes entries after each successful action
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// ENTRY - One recorded action
// =============================================================================

type EntryID string

type EntryKind string

const (
	EntryPaymentPeriodAdded EntryKind = "payment_period_added"
	EntryGapFilled          EntryKind = "gap_filled"
	EntryPeriodsAutoFilled  EntryKind = "periods_auto_generated"
	EntryBondAdded          EntryKind = "bond_added"
	EntryBondStatusChanged  EntryKind = "bond_status_changed"
	EntryRenewalInitiated   EntryKind = "renewal_initiated"
	EntryBondDraftUpdated   EntryKind = "bond_draft_updated"
	EntryRentalExtended     EntryKind = "rental_extended"
	EntryReconciliationRun  EntryKind = "reconciliation_run"
)

type Entry struct {
	ID             EntryID
	StreamID       string // rental id
	Kind           EntryKind
	EffectiveAt    TimePoint
	Amount         Amount
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// JOURNAL
// =============================================================================

// Journal is the audit trail of a rental's reconciliation actions.
type Journal interface {
	// Append adds an entry. Fails if the idempotency key exists.
	Append(ctx context.Context, e Entry) error

	// AppendBatch adds multiple entries atomically.
	AppendBatch(ctx context.Context, es []Entry) error

	// Entries returns all entries for a stream, chronologically.
	Entries(ctx context.Context, streamID string) ([]Entry, error)

	// EntriesInRange returns entries effective in [from, to].
	EntriesInRange(ctx context.Context, streamID string, from, to TimePoint) ([]Entry, error)
}

// =============================================================================
// DEFAULT JOURNAL - Implementation using Store
// =============================================================================

type DefaultJournal struct {
	Store Store
}

func NewJournal(store Store) *DefaultJournal {
	return &DefaultJournal{Store: store}
}

func (j *DefaultJournal) Append(ctx context.Context, e Entry) error {
	if e.IdempotencyKey != "" {
		exists, err := j.Store.Exists(ctx, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return j.Store.Append(ctx, e)
}

func (j *DefaultJournal) AppendBatch(ctx context.Context, es []Entry) error {
	seen := make(map[string]bool, len(es))
	for _, e := range es {
		if e.IdempotencyKey == "" {
			continue
		}
		if seen[e.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
		exists, err := j.Store.Exists(ctx, e.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return j.Store.AppendBatch(ctx, es)
}

func (j *DefaultJournal) Entries(ctx context.Context, streamID string) ([]Entry, error) {
	return j.Store.Load(ctx, streamID)
}

func (j *DefaultJournal) EntriesInRange(ctx context.Context, streamID string, from, to TimePoint) ([]Entry, error) {
	return j.Store.LoadRange(ctx, streamID, from, to)
}
