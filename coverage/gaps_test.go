package coverage_test

import (
	"testing"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, rental coverage.RentalPeriod, bonds []coverage.CoverageBond, periods []coverage.PaymentPeriod, today generic.TimePoint) coverage.Analysis {
	t.Helper()
	tl, err := coverage.BuildTimeline(rental, bonds, periods, today)
	require.NoError(t, err)
	return coverage.NewAnalyzer(flat300).Analyze(tl, rental, bonds, periods, today)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAnalyze_UnpaidTailAfterOneCashMonth(t *testing.T) {
	// GIVEN: rental 01/01-31/03, no bonds, January paid in cash (300)
	// WHEN: analyzed after the rental ended
	// THEN: one gap 01/02-31/03 of 59 days costing 300/30*59 = 590
	periods := []coverage.PaymentPeriod{cashPeriod("p1", date(2025, 1, 1), date(2025, 1, 31), 300)}

	a := analyze(t, q1Rental(), nil, periods, date(2025, 4, 15))

	require.Len(t, a.Gaps, 1)
	g := a.Gaps[0]
	assert.True(t, g.Interval.Equal(span(date(2025, 2, 1), date(2025, 3, 31))))
	assert.Equal(t, 59, g.DurationDays)
	assert.True(t, decimalEq("590", g.Amount), "got %s", g.Amount)
	assert.Equal(t, coverage.ReasonNoCoverage, g.Reason)
	assert.Equal(t, coverage.SeverityHigh, g.Severity)
	assert.True(t, decimalEq("590", a.TotalAmount))
	assert.True(t, decimalEq("590", a.UnbilledAmount))
}

func TestAnalyze_ExpiredBondGapClampedToToday(t *testing.T) {
	// GIVEN: approved bond 01/01-28/02 (2 months, 600) in rental 01/01-31/03
	// WHEN: today is 15/03
	// THEN: gap 01/03-15/03 with reason CNAM_EXPIRED; cnam total 600
	bonds := []coverage.CoverageBond{bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600)}
	today := date(2025, 3, 15)

	a := analyze(t, q1Rental(), bonds, nil, today)

	require.Len(t, a.Gaps, 1)
	g := a.Gaps[0]
	assert.True(t, g.Interval.Equal(span(date(2025, 3, 1), date(2025, 3, 15))), "got %s", g.Interval)
	assert.Equal(t, 15, g.DurationDays)
	assert.Equal(t, coverage.ReasonCnamExpired, g.Reason)
	assert.Equal(t, coverage.BondID("b1"), g.RelatedBondID)
	assert.True(t, decimalEq("150", g.Amount))

	assert.True(t, decimalEq("600", coverage.TotalCnamAmount(bonds, generic.CurrencyTND)))
}

func TestAnalyze_GapBeforeApprovalIsPendingAndHigh(t *testing.T) {
	// GIVEN: a pending bond without dates and a short 5-day window
	// THEN: CNAM_PENDING, HIGH even though the gap is short
	rental := fixedRental("r", date(2025, 1, 1), date(2025, 1, 5))
	bonds := []coverage.CoverageBond{pendingBond("pending", date(2024, 12, 20))}

	a := analyze(t, rental, bonds, nil, date(2025, 2, 1))

	require.Len(t, a.Gaps, 1)
	assert.Equal(t, coverage.ReasonCnamPending, a.Gaps[0].Reason)
	assert.Equal(t, coverage.BondID("pending"), a.Gaps[0].RelatedBondID)
	assert.Equal(t, coverage.SeverityHigh, a.Gaps[0].Severity)
}

func TestAnalyze_PendingBondOutsideGapDoesNotApply(t *testing.T) {
	rental := q1Rental()
	pending := pendingBond("pending", date(2024, 12, 20))
	pending.CoverageStart = date(2025, 6, 1).Ptr()
	pending.CoverageEnd = date(2025, 7, 31).Ptr()

	a := analyze(t, rental, []coverage.CoverageBond{pending}, nil, date(2025, 1, 10))

	require.Len(t, a.Gaps, 1)
	assert.Equal(t, coverage.ReasonNoCoverage, a.Gaps[0].Reason)
	assert.Equal(t, coverage.SeverityMedium, a.Gaps[0].Severity, "10 days is not HIGH")
}

func TestAnalyze_LateRenewalLeavesExpiredGap(t *testing.T) {
	// GIVEN: b1 ends 31/01, its renewal b2 only starts 16/02
	// THEN: 01/02-15/02 is CNAM_EXPIRED against b1
	b1 := bond("b1", coverage.BondCompleted, date(2025, 1, 1), date(2025, 1, 31), 300)
	b2 := bond("b2", coverage.BondApproved, date(2025, 2, 16), date(2025, 3, 31), 450)
	b2.PredecessorBondID = "b1"

	a := analyze(t, q1Rental(), []coverage.CoverageBond{b1, b2}, nil, date(2025, 4, 1))

	require.Len(t, a.Gaps, 1)
	assert.True(t, a.Gaps[0].Interval.Equal(span(date(2025, 2, 1), date(2025, 2, 15))))
	assert.Equal(t, coverage.ReasonCnamExpired, a.Gaps[0].Reason)
	assert.Equal(t, coverage.SeverityHigh, a.Gaps[0].Severity)
}

func TestAnalyze_OperatorReasonWins(t *testing.T) {
	bonds := []coverage.CoverageBond{bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600)}
	periods := []coverage.PaymentPeriod{gapPeriod("g1", date(2025, 3, 1), date(2025, 3, 31), coverage.ReasonMaintenance)}

	a := analyze(t, q1Rental(), bonds, periods, date(2025, 4, 1))

	require.Len(t, a.Gaps, 1)
	g := a.Gaps[0]
	assert.Equal(t, coverage.ReasonMaintenance, g.Reason)
	assert.Empty(t, g.RelatedBondID)
	assert.Equal(t, coverage.PaymentPeriodID("g1"), g.BilledByPeriodID)
	assert.True(t, g.IsBilled())
	assert.True(t, a.UnbilledAmount.IsZero())
	assert.True(t, decimalEq("310", a.TotalAmount))
}

func TestAnalyze_FutureDaysAreNotExposure(t *testing.T) {
	a := analyze(t, q1Rental(), nil, nil, date(2025, 1, 10))

	require.Len(t, a.Gaps, 1)
	assert.True(t, a.Gaps[0].Interval.Equal(span(date(2025, 1, 1), date(2025, 1, 10))))

	notStarted := analyze(t, q1Rental(), nil, nil, date(2024, 12, 1))
	assert.Empty(t, notStarted.Gaps)
	assert.True(t, notStarted.TotalAmount.IsZero())
}

func TestAnalyze_PricingSeesProductsAndGapStart(t *testing.T) {
	var gotProducts []coverage.ProductID
	var gotDay generic.TimePoint
	pricing := func(products []coverage.ProductID, on generic.TimePoint) decimal.Decimal {
		gotProducts, gotDay = products, on
		return flat300(products, on)
	}

	rental := q1Rental()
	tl, err := coverage.BuildTimeline(rental, nil, nil, date(2025, 1, 30))
	require.NoError(t, err)
	coverage.NewAnalyzer(pricing).Analyze(tl, rental, nil, nil, date(2025, 1, 30))

	assert.Equal(t, rental.ProductIDs, gotProducts)
	assert.True(t, gotDay.Equal(date(2025, 1, 1)))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestProperty_GapsAreExactlyTheUncoveredExposure(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		rental, bonds, periods, today := randomInput(seed)
		tl, err := coverage.BuildTimeline(rental, bonds, periods, today)
		require.NoError(t, err)
		a := coverage.NewAnalyzer(flat300).Analyze(tl, rental, bonds, periods, today)

		var want []generic.Interval
		if exposure, ok := rental.ExposureWindow(today); ok {
			for _, seg := range tl.BySource(coverage.SourceNone) {
				if iv, ok := generic.Intersect(seg.Interval, exposure); ok {
					want = append(want, iv)
				}
			}
		}

		require.Len(t, a.Gaps, len(want), "seed %d", seed)
		total := generic.ZeroAmount(generic.CurrencyTND)
		for i, g := range a.Gaps {
			assert.True(t, g.Interval.Equal(want[i]), "seed %d: gap %d is %s, want %s", seed, i, g.Interval, want[i])
			assert.NotEqual(t, coverage.SeverityLow, g.Severity)
			total = total.Add(g.Amount)
		}
		assert.True(t, total.Equal(a.TotalAmount), "seed %d", seed)
	}
}
