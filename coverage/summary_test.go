package coverage_test

import (
	"testing"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTotalPaymentAmount(t *testing.T) {
	periods := []coverage.PaymentPeriod{
		cashPeriod("p1", date(2025, 1, 1), date(2025, 1, 31), 300),
		gapPeriod("g1", date(2025, 2, 1), date(2025, 2, 10), coverage.ReasonPatientPause),
	}
	periods[1].Amount = tnd(100)

	total := coverage.CalculateTotalPaymentAmount(periods, tnd(50))
	assert.True(t, decimalEq("450", total))
	assert.Equal(t, generic.CurrencyTND, total.Currency)

	assert.True(t, coverage.CalculateTotalPaymentAmount(nil, tnd(0)).IsZero())
}

func TestSummarize_BucketsAreNotNetted(t *testing.T) {
	// GIVEN: February is billed to both CNAM and the patient
	// THEN: both amounts are counted and the overlap is listed
	sess := &coverage.Session{
		Rental:         q1Rental(),
		Bonds:          []coverage.CoverageBond{bond("b1", coverage.BondApproved, date(2025, 2, 1), date(2025, 3, 31), 600)},
		PaymentPeriods: []coverage.PaymentPeriod{cashPeriod("p1", date(2025, 1, 1), date(2025, 2, 28), 600)},
		Deposit:        tnd(200),
		DepositMethod:  coverage.MethodCheque,
	}

	s := reconcile(t, sess, date(2025, 4, 1)).Summary

	assert.True(t, decimalEq("600", s.CnamTotal))
	assert.True(t, decimalEq("600", s.DirectTotal))
	assert.True(t, s.GapTotal.IsZero())
	assert.True(t, decimalEq("200", s.DepositTotal))
	assert.True(t, decimalEq("1400", s.GrandTotal))
	assert.True(t, s.UnbilledGapExposure.IsZero())

	require.Len(t, s.DoubleFunded, 1)
	d := s.DoubleFunded[0]
	assert.Equal(t, coverage.BondID("b1"), d.BondID)
	assert.Equal(t, coverage.PaymentPeriodID("p1"), d.PaymentPeriodID)
	assert.True(t, d.Interval.Equal(span(date(2025, 2, 1), date(2025, 2, 28))))
}

func TestSummarize_RejectedBondsAreNotCounted(t *testing.T) {
	sess := &coverage.Session{
		Rental: q1Rental(),
		Bonds: []coverage.CoverageBond{
			bond("b1", coverage.BondRejected, date(2025, 1, 1), date(2025, 2, 28), 600),
			bond("b2", coverage.BondCompleted, date(2025, 3, 1), date(2025, 3, 31), 300),
		},
	}

	s := reconcile(t, sess, date(2025, 4, 1)).Summary
	assert.True(t, decimalEq("300", s.CnamTotal))
	assert.True(t, decimalEq("590", s.UnbilledGapExposure))
}

func TestProperty_GrandTotalIsTheSumOfBuckets(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		rental, bonds, periods, today := randomInput(seed)
		sess := &coverage.Session{Rental: rental, Bonds: bonds, PaymentPeriods: periods, Deposit: tnd(seed % 7 * 10)}

		report, err := coverage.NewReconciler(flat300, coverage.DefaultAlertPolicy()).Reconcile(sess, today)
		require.NoError(t, err, "seed %d", seed)
		s := report.Summary

		sum := s.CnamTotal.Add(s.DirectTotal).Add(s.GapTotal).Add(s.DepositTotal)
		assert.True(t, sum.Equal(s.GrandTotal), "seed %d: %s != %s", seed, sum, s.GrandTotal)

		paid := coverage.CalculateTotalPaymentAmount(periods, sess.Deposit)
		assert.True(t, paid.Equal(s.DirectTotal.Add(s.GapTotal).Add(s.DepositTotal)), "seed %d", seed)
		assert.True(t, coverage.TotalCnamAmount(bonds, generic.CurrencyTND).Equal(s.CnamTotal), "seed %d", seed)
		assert.True(t, s.UnbilledGapExposure.Equal(report.Analysis.UnbilledAmount), "seed %d", seed)
		assert.Len(t, s.DoubleFunded, len(report.Timeline.DoubleFunded()), "seed %d", seed)
	}
}
