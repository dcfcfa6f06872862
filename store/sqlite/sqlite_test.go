package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func sampleSession() *coverage.Session {
	tnd := func(v int64) generic.Amount { return generic.NewAmountFromInt(v, generic.CurrencyTND) }
	return &coverage.Session{
		Rental: coverage.RentalPeriod{
			ID:         "rental-1",
			StartDate:  date(2025, 1, 1),
			EndDate:    date(2025, 3, 31).Ptr(),
			IsUrgent:   true,
			ProductIDs: []coverage.ProductID{"concentrator", "humidifier"},
		},
		Bonds: []coverage.CoverageBond{
			{
				ID: "b1", BondType: "oxygen", Status: coverage.BondCompleted,
				CoverageStart: date(2025, 1, 1).Ptr(), CoverageEnd: date(2025, 1, 31).Ptr(),
				CoveredMonths: 1, TotalAmount: tnd(300), BondNumber: "CN-001",
			},
			{
				ID: "b2", BondType: "oxygen", Status: coverage.BondPendingApproval,
				CoverageStart: date(2025, 2, 1).Ptr(), TotalAmount: tnd(0),
				SubmissionDate: date(2025, 1, 20).Ptr(), PredecessorBondID: "b1",
			},
		},
		PaymentPeriods: []coverage.PaymentPeriod{
			{
				ID: "p2", Interval: generic.MustInterval(date(2025, 3, 1), date(2025, 3, 31)),
				Amount: generic.NewAmountFromDecimal(decimal.RequireFromString("310.250"), generic.CurrencyTND),
				Method: coverage.MethodCash, IsGapPeriod: true, GapReason: coverage.ReasonCnamPending,
				Notes: "waiting for CNAM", NeedsReview: true,
			},
			{
				ID: "p1", Interval: generic.MustInterval(date(2025, 2, 1), date(2025, 2, 10)),
				Amount: tnd(100), Method: coverage.MethodTraite,
				ProductIDs: []coverage.ProductID{"humidifier"},
			},
		},
		Deposit:       tnd(200),
		DepositMethod: coverage.MethodCheque,
	}
}

// =============================================================================
// SESSION STORE
// =============================================================================

func TestStore_SaveAndLoadSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	want := sampleSession()

	require.NoError(t, s.SaveSession(ctx, want))

	got, err := s.LoadSession(ctx, "rental-1")
	require.NoError(t, err)

	assert.Equal(t, want.Rental.ID, got.Rental.ID)
	assert.True(t, got.Rental.StartDate.Equal(want.Rental.StartDate))
	assert.True(t, got.Rental.EndDate.Equal(*want.Rental.EndDate))
	assert.True(t, got.Rental.IsUrgent)
	assert.False(t, got.Rental.IsOpenEnded)
	assert.Equal(t, want.Rental.ProductIDs, got.Rental.ProductIDs)
	assert.True(t, got.Deposit.Equal(want.Deposit))
	assert.Equal(t, coverage.MethodCheque, got.DepositMethod)

	require.Len(t, got.Bonds, 2)
	assert.Equal(t, coverage.BondID("b1"), got.Bonds[0].ID)
	assert.Equal(t, "CN-001", got.Bonds[0].BondNumber)
	assert.Nil(t, got.Bonds[1].CoverageEnd)
	assert.Equal(t, coverage.BondID("b1"), got.Bonds[1].PredecessorBondID)
	assert.True(t, got.Bonds[1].SubmissionDate.Equal(date(2025, 1, 20)))

	require.Len(t, got.PaymentPeriods, 2)
	assert.Equal(t, coverage.PaymentPeriodID("p2"), got.PaymentPeriods[0].ID, "slice order is kept")
	assert.True(t, got.PaymentPeriods[0].Amount.Value.Equal(decimal.RequireFromString("310.25")))
	assert.Equal(t, coverage.ReasonCnamPending, got.PaymentPeriods[0].GapReason)
	assert.True(t, got.PaymentPeriods[0].NeedsReview)
	assert.Nil(t, got.PaymentPeriods[0].ProductIDs)
	assert.Equal(t, []coverage.ProductID{"humidifier"}, got.PaymentPeriods[1].ProductIDs)

	require.NoError(t, got.Validate())
}

func TestStore_SaveSessionReplacesCollections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := sampleSession()
	require.NoError(t, s.SaveSession(ctx, sess))

	sess.Bonds = sess.Bonds[:1]
	sess.PaymentPeriods = nil
	require.NoError(t, sess.ExtendRental(date(2025, 4, 30)))
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.LoadSession(ctx, "rental-1")
	require.NoError(t, err)
	assert.Len(t, got.Bonds, 1)
	assert.Empty(t, got.PaymentPeriods)
	assert.True(t, got.Rental.EndDate.Equal(date(2025, 4, 30)))
}

func TestStore_OpenEndedRental(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess := &coverage.Session{Rental: coverage.RentalPeriod{ID: "open", StartDate: date(2025, 1, 1), IsOpenEnded: true}}
	require.NoError(t, s.SaveSession(ctx, sess))

	got, err := s.LoadSession(ctx, "open")
	require.NoError(t, err)
	assert.True(t, got.Rental.IsOpenEnded)
	assert.Nil(t, got.Rental.EndDate)
	assert.Nil(t, got.Rental.ProductIDs)
	assert.Equal(t, generic.CurrencyTND, got.Deposit.Currency)
}

func TestStore_LoadUnknownRental(t *testing.T) {
	_, err := newTestStore(t).LoadSession(context.Background(), "nope")
	assert.ErrorIs(t, err, coverage.ErrRentalNotFound)
}

func TestStore_CorruptAmountIsAnError(t *testing.T) {
	tests := []struct {
		name   string
		update string
	}{
		{"bond total", `UPDATE bonds SET total_value = 'n/a'`},
		{"payment period amount", `UPDATE payment_periods SET amount_value = ''`},
		{"deposit", `UPDATE rentals SET deposit_value = '12,5'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)
			require.NoError(t, s.SaveSession(ctx, sampleSession()))

			_, err := s.db.ExecContext(ctx, tt.update)
			require.NoError(t, err)

			_, err = s.LoadSession(ctx, "rental-1")
			assert.Error(t, err, "a corrupt amount is never read as zero")
		})
	}
}

func TestStore_ListRentals(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, id := range []coverage.RentalID{"c", "a", "b"} {
		sess := sampleSession()
		sess.Rental.ID = id
		require.NoError(t, s.SaveSession(ctx, sess))
	}

	rentals, err := s.ListRentals(ctx)
	require.NoError(t, err)
	require.Len(t, rentals, 3)
	assert.Equal(t, coverage.RentalID("a"), rentals[0].ID)
	assert.Equal(t, coverage.RentalID("c"), rentals[2].ID)
}

// =============================================================================
// JOURNAL STORE
// =============================================================================

func entry(id, key string, day generic.TimePoint) generic.Entry {
	return generic.Entry{
		ID:             generic.EntryID(id),
		StreamID:       "rental-1",
		Kind:           generic.EntryGapFilled,
		EffectiveAt:    day,
		Amount:         generic.NewAmountFromInt(150, generic.CurrencyTND),
		ReferenceID:    "p1",
		IdempotencyKey: key,
		Metadata:       map[string]string{"reason": "CNAM_EXPIRED"},
		CreatedBy:      "system",
		CreatedAt:      time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_JournalAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Append(ctx, entry("e2", "k2", date(2025, 3, 20))))
	require.NoError(t, s.Append(ctx, entry("e1", "k1", date(2025, 3, 15))))

	entries, err := s.Load(ctx, "rental-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, generic.EntryID("e1"), entries[0].ID)
	assert.Equal(t, generic.EntryGapFilled, entries[0].Kind)
	assert.True(t, entries[0].Amount.Value.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "CNAM_EXPIRED", entries[0].Metadata["reason"])
	assert.Equal(t, 10, entries[0].CreatedAt.Hour())

	inRange, err := s.LoadRange(ctx, "rental-1", date(2025, 3, 16), date(2025, 3, 31))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, generic.EntryID("e2"), inRange[0].ID)
}

func TestStore_JournalIdempotency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Append(ctx, entry("e1", "k1", date(2025, 3, 15))))
	assert.ErrorIs(t, s.Append(ctx, entry("e2", "k1", date(2025, 3, 15))), generic.ErrDuplicateIdempotencyKey)

	exists, err := s.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	// A batch with a replayed key writes nothing.
	err = s.AppendBatch(ctx, []generic.Entry{entry("e3", "k3", date(2025, 3, 16)), entry("e4", "k1", date(2025, 3, 16))})
	assert.ErrorIs(t, err, generic.ErrDuplicateIdempotencyKey)
	exists, err = s.Exists(ctx, "k3")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_BacksTheService(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	svc := coverage.NewService(s, generic.NewJournal(s),
		coverage.NewReconciler(coverage.FlatRate(decimal.NewFromInt(300)), coverage.DefaultAlertPolicy()),
		generic.FixedClock{Day: date(2025, 4, 15)}, zerolog.Nop())

	require.NoError(t, svc.CreateRental(ctx, &coverage.Session{Rental: coverage.RentalPeriod{
		ID: "r", StartDate: date(2025, 1, 1), EndDate: date(2025, 3, 31).Ptr(),
	}}))

	report, err := svc.Reconcile(ctx, "r")
	require.NoError(t, err)
	require.Len(t, report.Analysis.Gaps, 1)

	_, err = svc.FillGap(ctx, "r", report.Analysis.Gaps[0].Interval)
	require.NoError(t, err)
	_, err = svc.FillGap(ctx, "r", report.Analysis.Gaps[0].Interval)
	assert.ErrorIs(t, err, coverage.ErrStaleTimeline)

	entries, err := svc.JournalEntries(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
