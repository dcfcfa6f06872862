package coverage

import "github.com/espace-elite/rental-engine/generic"

// =============================================================================
// FINANCIAL SUMMARY - Totals per paying party, never netted
// =============================================================================

// DoubleFunding is a span billed to both the insurer and the patient.
type DoubleFunding struct {
	Interval        generic.Interval
	BondID          BondID
	PaymentPeriodID PaymentPeriodID
}

// FinancialSummary keeps each bucket separate: the insurer and the patient
// are reconciled independently.
//
//	GrandTotal == CnamTotal + DirectTotal + GapTotal + DepositTotal
type FinancialSummary struct {
	CnamTotal           generic.Amount
	DirectTotal         generic.Amount
	GapTotal            generic.Amount // gap payment periods (billing intent)
	DepositTotal        generic.Amount
	GrandTotal          generic.Amount
	UnbilledGapExposure generic.Amount // analyzed gaps with no gap period yet
	DoubleFunded        []DoubleFunding
}

// CalculateTotalPaymentAmount sums every payment period, gap or not, plus the
// deposit. The result carries the deposit's currency.
func CalculateTotalPaymentAmount(periods []PaymentPeriod, deposit generic.Amount) generic.Amount {
	total := deposit
	for _, p := range periods {
		total = total.Add(p.Amount)
	}
	return total
}

// TotalCnamAmount sums TotalAmount over bonds that contribute coverage.
func TotalCnamAmount(bonds []CoverageBond, currency generic.Currency) generic.Amount {
	total := generic.ZeroAmount(currency)
	for _, b := range bonds {
		if b.Qualifies() {
			total = total.Add(b.TotalAmount)
		}
	}
	return total
}

// Summarize builds the summary for one reconciliation.
func Summarize(tl Timeline, analysis Analysis, bonds []CoverageBond, periods []PaymentPeriod, deposit generic.Amount, currency generic.Currency) FinancialSummary {
	direct := generic.ZeroAmount(currency)
	gap := generic.ZeroAmount(currency)
	for _, p := range periods {
		if p.IsGapPeriod {
			gap = gap.Add(p.Amount)
		} else {
			direct = direct.Add(p.Amount)
		}
	}

	s := FinancialSummary{
		CnamTotal:           TotalCnamAmount(bonds, currency),
		DirectTotal:         direct,
		GapTotal:            gap,
		DepositTotal:        generic.NewAmountFromDecimal(deposit.Value, currency),
		UnbilledGapExposure: generic.NewAmountFromDecimal(analysis.UnbilledAmount.Value, currency),
	}
	s.GrandTotal = generic.SumAmounts(currency, s.CnamTotal, s.DirectTotal, s.GapTotal, s.DepositTotal)

	for _, seg := range tl.DoubleFunded() {
		s.DoubleFunded = append(s.DoubleFunded, DoubleFunding{
			Interval:        seg.Interval,
			BondID:          seg.BondID,
			PaymentPeriodID: seg.PaymentPeriodID,
		})
	}
	return s
}
