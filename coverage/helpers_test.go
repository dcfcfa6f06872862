package coverage_test

import (
	"time"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/shopspring/decimal"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func span(from, to generic.TimePoint) generic.Interval {
	return generic.MustInterval(from, to)
}

func tnd(v int64) generic.Amount {
	return generic.NewAmountFromInt(v, generic.CurrencyTND)
}

func decimalEq(want string, got generic.Amount) bool {
	return got.Value.Equal(decimal.RequireFromString(want))
}

var flat300 = coverage.FlatRate(decimal.NewFromInt(300))

func fixedRental(id string, start, end generic.TimePoint) coverage.RentalPeriod {
	return coverage.RentalPeriod{
		ID:         coverage.RentalID(id),
		StartDate:  start,
		EndDate:    end.Ptr(),
		ProductIDs: []coverage.ProductID{"concentrator"},
	}
}

func openRental(id string, start generic.TimePoint) coverage.RentalPeriod {
	return coverage.RentalPeriod{
		ID:          coverage.RentalID(id),
		StartDate:   start,
		IsOpenEnded: true,
		ProductIDs:  []coverage.ProductID{"concentrator"},
	}
}

// q1Rental is 2025-01-01..2025-03-31 (90 days).
func q1Rental() coverage.RentalPeriod {
	return fixedRental("rental-1", date(2025, 1, 1), date(2025, 3, 31))
}

func bond(id string, status coverage.BondStatus, start, end generic.TimePoint, total int64) coverage.CoverageBond {
	return coverage.CoverageBond{
		ID:            coverage.BondID(id),
		BondType:      "oxygen",
		Status:        status,
		CoverageStart: start.Ptr(),
		CoverageEnd:   end.Ptr(),
		CoveredMonths: 2,
		TotalAmount:   tnd(total),
	}
}

func pendingBond(id string, submitted generic.TimePoint) coverage.CoverageBond {
	return coverage.CoverageBond{
		ID:             coverage.BondID(id),
		BondType:       "oxygen",
		Status:         coverage.BondPendingApproval,
		CoveredMonths:  2,
		TotalAmount:    tnd(0),
		SubmissionDate: submitted.Ptr(),
	}
}

func cashPeriod(id string, from, to generic.TimePoint, amount int64) coverage.PaymentPeriod {
	return coverage.PaymentPeriod{
		ID:       coverage.PaymentPeriodID(id),
		Interval: span(from, to),
		Amount:   tnd(amount),
		Method:   coverage.MethodCash,
	}
}

func gapPeriod(id string, from, to generic.TimePoint, reason coverage.GapReason) coverage.PaymentPeriod {
	return coverage.PaymentPeriod{
		ID:          coverage.PaymentPeriodID(id),
		Interval:    span(from, to),
		Amount:      tnd(0),
		Method:      coverage.MethodCash,
		IsGapPeriod: true,
		GapReason:   reason,
	}
}
