/*
service.go - Stateful wrapper around the pure engine

PURPOSE:
  Service loads a rental's Session, runs one action or reconciliation on a
  private copy, saves the copy and appends journal entries. The engine
  assumes a consistent snapshot for Timeline -> Analyzer -> Action, so one
  operation per rental id is in flight at a time.

FLOW (mutating actions):
  lock(rental) -> LoadSession -> action on clone -> SaveSession -> Journal
  A failed action saves nothing and journals nothing.

IDEMPOTENCY:
  Journal keys are derived from the action and its target; edits that can
  repeat (extensions, draft updates) get a key per call. A duplicate key
  means the entry is already recorded and is not an error here. Entries of
  one action are appended as a batch.
*/
package coverage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/espace-elite/rental-engine/generic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	Store      SessionStore
	Journal    generic.Journal
	Reconciler Reconciler
	Clock      generic.Clock
	Logger     zerolog.Logger

	locks rentalLocks
}

func NewService(store SessionStore, journal generic.Journal, reconciler Reconciler, clock generic.Clock, logger zerolog.Logger) *Service {
	return &Service{
		Store:      store,
		Journal:    journal,
		Reconciler: reconciler,
		Clock:      clock,
		Logger:     logger.With().Str("component", "coverage").Logger(),
	}
}

// rentalLocks is a keyed mutex. Locks are never released from the map; the
// number of rentals is bounded by the store.
type rentalLocks struct {
	mu    sync.Mutex
	locks map[RentalID]*sync.Mutex
}

func (l *rentalLocks) lock(id RentalID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[RentalID]*sync.Mutex)
	}
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, id RentalID) (*Session, error) {
	return s.Store.LoadSession(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]RentalPeriod, error) {
	return s.Store.ListRentals(ctx)
}

// Reconcile runs the pipeline for one rental and journals the run once per day.
func (s *Service) Reconcile(ctx context.Context, id RentalID) (Report, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	sess, err := s.Store.LoadSession(ctx, id)
	if err != nil {
		return Report{}, err
	}
	today := s.Clock.Today()
	report, err := s.Reconciler.Reconcile(sess, today)
	if err != nil {
		return Report{}, err
	}

	s.record(ctx, generic.Entry{
		StreamID:       string(id),
		Kind:           generic.EntryReconciliationRun,
		EffectiveAt:    today,
		Amount:         report.Analysis.TotalAmount,
		IdempotencyKey: fmt.Sprintf("reconcile-%s-%s", id, today),
		Metadata: map[string]string{
			"gaps":   fmt.Sprint(len(report.Analysis.Gaps)),
			"alerts": fmt.Sprint(len(report.Alerts)),
		},
	})
	s.Logger.Debug().
		Str("rental_id", string(id)).
		Int("gaps", len(report.Analysis.Gaps)).
		Str("gap_total", report.Analysis.TotalAmount.String()).
		Msg("reconciled")
	return report, nil
}

// Alerts computes the alerts of every stored rental.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	rentals, err := s.Store.ListRentals(ctx)
	if err != nil {
		return nil, err
	}

	today := s.Clock.Today()
	var alerts []Alert
	for _, r := range rentals {
		sess, err := s.Store.LoadSession(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", r.ID, err)
		}
		alerts = append(alerts, s.Reconciler.Scheduler.Alerts(today, sess.Rental, sess.Bonds)...)
	}
	SortAlerts(alerts)
	return alerts, nil
}

func (s *Service) JournalEntries(ctx context.Context, id RentalID) ([]generic.Entry, error) {
	if _, err := s.Store.LoadSession(ctx, id); err != nil {
		return nil, err
	}
	return s.Journal.Entries(ctx, string(id))
}

// =============================================================================
// WRITES
// =============================================================================

// CreateRental stores a new session.
func (s *Service) CreateRental(ctx context.Context, sess *Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	id := sess.Rental.ID
	unlock := s.locks.lock(id)
	defer unlock()

	if _, err := s.Store.LoadSession(ctx, id); err == nil {
		return fmt.Errorf("%w: %s", ErrRentalExists, id)
	} else if !errors.Is(err, ErrRentalNotFound) {
		return err
	}
	if err := s.Store.SaveSession(ctx, sess); err != nil {
		return err
	}
	s.Logger.Info().Str("rental_id", string(id)).Msg("rental created")
	return nil
}

// mutate runs action on a copy of the stored session and saves it on success.
func (s *Service) mutate(ctx context.Context, id RentalID, action string, fn func(sess *Session, today generic.TimePoint) ([]generic.Entry, error)) error {
	unlock := s.locks.lock(id)
	defer unlock()

	stored, err := s.Store.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	sess := stored.Clone()
	today := s.Clock.Today()

	entries, err := fn(sess, today)
	if err != nil {
		s.Logger.Warn().Err(err).Str("rental_id", string(id)).Str("action", action).Msg("action rejected")
		return err
	}
	if err := s.Store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save %s: %w", id, err)
	}

	for i := range entries {
		entries[i].StreamID = string(id)
		entries[i].EffectiveAt = today
	}
	s.recordAll(ctx, entries)
	s.Logger.Info().Str("rental_id", string(id)).Str("action", action).Msg("action applied")
	return nil
}

// record appends a journal entry, tolerating replays.
func (s *Service) record(ctx context.Context, e generic.Entry) {
	if s.Journal == nil {
		return
	}
	e = stamp(e)
	err := s.Journal.Append(ctx, e)
	switch {
	case err == nil:
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		s.Logger.Debug().Str("key", e.IdempotencyKey).Msg("journal entry already recorded")
	default:
		s.Logger.Error().Err(err).Str("stream", e.StreamID).Str("kind", string(e.Kind)).Msg("journal append failed")
	}
}

// recordAll appends the entries of one action as a single batch. A batch
// rejected for a replayed key is retried entry by entry so the new ones land.
func (s *Service) recordAll(ctx context.Context, es []generic.Entry) {
	if s.Journal == nil || len(es) == 0 {
		return
	}
	if len(es) == 1 {
		s.record(ctx, es[0])
		return
	}

	for i := range es {
		es[i] = stamp(es[i])
	}
	err := s.Journal.AppendBatch(ctx, es)
	switch {
	case err == nil:
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		for _, e := range es {
			s.record(ctx, e)
		}
	default:
		s.Logger.Error().Err(err).Str("stream", es[0].StreamID).Int("entries", len(es)).Msg("journal batch append failed")
	}
}

func stamp(e generic.Entry) generic.Entry {
	if e.ID == "" {
		e.ID = generic.EntryID(uuid.NewString())
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.CreatedBy == "" {
		e.CreatedBy = "system"
	}
	return e
}

func (s *Service) ExtendRental(ctx context.Context, id RentalID, newEnd generic.TimePoint) (*Session, error) {
	var out *Session
	err := s.mutate(ctx, id, "extend_rental", func(sess *Session, _ generic.TimePoint) ([]generic.Entry, error) {
		prev := "open"
		if !sess.Rental.IsOpenEnded && sess.Rental.EndDate != nil {
			prev = sess.Rental.EndDate.String()
		}
		if err := sess.ExtendRental(newEnd); err != nil {
			return nil, err
		}
		out = sess.Clone()
		// Extensions may revisit an earlier end date, so the key is per call.
		return []generic.Entry{{
			Kind:           generic.EntryRentalExtended,
			Reason:         "end date " + prev + " -> " + newEnd.String(),
			IdempotencyKey: fmt.Sprintf("extend-%s-%s", id, uuid.NewString()),
			Metadata:       map[string]string{"previous_end": prev, "new_end": newEnd.String()},
		}}, nil
	})
	return out, err
}

func (s *Service) AddBond(ctx context.Context, id RentalID, b CoverageBond) (CoverageBond, error) {
	var out CoverageBond
	err := s.mutate(ctx, id, "add_bond", func(sess *Session, _ generic.TimePoint) ([]generic.Entry, error) {
		added, err := sess.AddBond(b)
		if err != nil {
			return nil, err
		}
		out = added
		return []generic.Entry{{
			Kind:           generic.EntryBondAdded,
			Amount:         added.TotalAmount,
			ReferenceID:    string(added.ID),
			IdempotencyKey: "bond-" + string(added.ID),
			Metadata:       map[string]string{"status": string(added.Status)},
		}}, nil
	})
	return out, err
}

func (s *Service) ApplyBondStatus(ctx context.Context, id RentalID, bondID BondID, status BondStatus) (CoverageBond, error) {
	var out CoverageBond
	err := s.mutate(ctx, id, "bond_status", func(sess *Session, today generic.TimePoint) ([]generic.Entry, error) {
		prev, err := sess.Bond(bondID)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", bondID, err)
		}
		updated, err := sess.ApplyBondStatus(bondID, status, today)
		if err != nil {
			return nil, err
		}
		out = updated
		return []generic.Entry{{
			Kind:           generic.EntryBondStatusChanged,
			ReferenceID:    string(bondID),
			Reason:         string(prev.Status) + " -> " + string(status),
			IdempotencyKey: fmt.Sprintf("bond-%s-%s", bondID, status),
		}}, nil
	})
	return out, err
}

func (s *Service) RenewBond(ctx context.Context, id RentalID, bondID BondID) (CoverageBond, error) {
	var out CoverageBond
	err := s.mutate(ctx, id, "renew_bond", func(sess *Session, _ generic.TimePoint) ([]generic.Entry, error) {
		draft, err := sess.InitiateCnamRenewal(bondID)
		if err != nil {
			return nil, err
		}
		out = draft
		return []generic.Entry{{
			Kind:           generic.EntryRenewalInitiated,
			ReferenceID:    string(draft.ID),
			Reason:         "renewal of " + string(bondID),
			IdempotencyKey: "renewal-" + string(draft.ID),
		}}, nil
	})
	return out, err
}

// UpdateBondDraft edits a pending bond. Every edit is journaled.
func (s *Service) UpdateBondDraft(ctx context.Context, id RentalID, bondID BondID, d BondDraft) (CoverageBond, error) {
	var out CoverageBond
	err := s.mutate(ctx, id, "update_bond_draft", func(sess *Session, today generic.TimePoint) ([]generic.Entry, error) {
		updated, err := sess.UpdateBondDraft(bondID, d, today)
		if err != nil {
			return nil, err
		}
		out = updated

		meta := map[string]string{}
		if w, ok := updated.Window(); ok {
			meta["coverage"] = w.String()
		}
		if updated.SubmissionDate != nil {
			meta["submitted"] = updated.SubmissionDate.String()
		}
		return []generic.Entry{{
			Kind:           generic.EntryBondDraftUpdated,
			Amount:         updated.TotalAmount,
			ReferenceID:    string(bondID),
			IdempotencyKey: "draft-" + string(bondID) + "-" + uuid.NewString(),
			Metadata:       meta,
		}}, nil
	})
	return out, err
}

func (s *Service) AddPaymentPeriod(ctx context.Context, id RentalID, p PaymentPeriod) (PaymentPeriod, error) {
	var out PaymentPeriod
	err := s.mutate(ctx, id, "add_payment_period", func(sess *Session, _ generic.TimePoint) ([]generic.Entry, error) {
		added, err := sess.AddPaymentPeriod(p)
		if err != nil {
			return nil, err
		}
		out = added
		return []generic.Entry{{
			Kind:           generic.EntryPaymentPeriodAdded,
			Amount:         added.Amount,
			ReferenceID:    string(added.ID),
			IdempotencyKey: "period-" + string(added.ID),
			Metadata:       map[string]string{"method": string(added.Method), "interval": added.Interval.String()},
		}}, nil
	})
	return out, err
}

// FillGap bills the gap whose interval is exactly gapInterval in the current
// reconciliation. A gap that is no longer reported, or is already billed,
// yields a StaleTimelineError.
func (s *Service) FillGap(ctx context.Context, id RentalID, gapInterval generic.Interval) (PaymentPeriod, error) {
	var out PaymentPeriod
	err := s.mutate(ctx, id, "fill_gap", func(sess *Session, today generic.TimePoint) ([]generic.Entry, error) {
		report, err := s.Reconciler.Reconcile(sess, today)
		if err != nil {
			return nil, err
		}
		gap, found := Gap{Interval: gapInterval}, false
		for _, g := range report.Analysis.Gaps {
			if g.Interval.Equal(gapInterval) {
				gap, found = g, true
				break
			}
		}
		if !found {
			return nil, &StaleTimelineError{Gap: gapInterval, ConflictKind: "timeline"}
		}

		p, err := sess.CreatePaymentPeriodForGap(gap)
		if err != nil {
			return nil, err
		}
		out = p
		return []generic.Entry{{
			Kind:           generic.EntryGapFilled,
			Amount:         p.Amount,
			ReferenceID:    string(p.ID),
			Reason:         string(p.GapReason),
			IdempotencyKey: fmt.Sprintf("gap-%s-%s", id, gapInterval),
		}}, nil
	})
	return out, err
}

// AutoFill runs the bulk gap-period generation.
func (s *Service) AutoFill(ctx context.Context, id RentalID) ([]PaymentPeriod, error) {
	var out []PaymentPeriod
	err := s.mutate(ctx, id, "auto_fill", func(sess *Session, today generic.TimePoint) ([]generic.Entry, error) {
		added, err := sess.AutoGeneratePaymentPeriods(s.Reconciler.Analyzer, today)
		if err != nil {
			return nil, err
		}
		out = added
		if len(added) == 0 {
			return nil, nil
		}

		entries := make([]generic.Entry, len(added))
		for i, p := range added {
			entries[i] = generic.Entry{
				Kind:           generic.EntryPeriodsAutoFilled,
				Amount:         p.Amount,
				ReferenceID:    string(p.ID),
				Reason:         string(p.GapReason),
				IdempotencyKey: "auto-" + string(p.ID),
				Metadata:       map[string]string{"interval": p.Interval.String(), "batch": fmt.Sprint(len(added))},
			}
		}
		return entries, nil
	})
	return out, err
}
