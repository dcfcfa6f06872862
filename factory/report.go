package factory

import (
	"io"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
)

// =============================================================================
// REPORT DOCUMENTS - What the API and the reconcile command print
// =============================================================================

type ReportDoc struct {
	RentalID       string       `json:"rental_id" yaml:"rental_id"`
	Today          string       `json:"today" yaml:"today"`
	Timeline       []SegmentDoc `json:"timeline" yaml:"timeline"`
	Gaps           []GapDoc     `json:"gaps" yaml:"gaps"`
	TotalGapAmount float64      `json:"total_gap_amount" yaml:"total_gap_amount"`
	UnbilledAmount float64      `json:"unbilled_gap_amount" yaml:"unbilled_gap_amount"`
	Alerts         []AlertDoc   `json:"alerts" yaml:"alerts"`
	Summary        SummaryDoc   `json:"summary" yaml:"summary"`
}

type SegmentDoc struct {
	StartDate       string `json:"start_date" yaml:"start_date"`
	EndDate         string `json:"end_date" yaml:"end_date"`
	Days            int    `json:"days" yaml:"days"`
	Source          string `json:"source" yaml:"source"`
	BondID          string `json:"bond_id,omitempty" yaml:"bond_id,omitempty"`
	PaymentPeriodID string `json:"payment_period_id,omitempty" yaml:"payment_period_id,omitempty"`
	GapPeriodID     string `json:"gap_period_id,omitempty" yaml:"gap_period_id,omitempty"`
	DoubleFunded    bool   `json:"double_funded,omitempty" yaml:"double_funded,omitempty"`
}

type GapDoc struct {
	StartDate        string  `json:"start_date" yaml:"start_date"`
	EndDate          string  `json:"end_date" yaml:"end_date"`
	DurationDays     int     `json:"duration_days" yaml:"duration_days"`
	Amount           float64 `json:"amount" yaml:"amount"`
	Severity         string  `json:"severity" yaml:"severity"`
	Reason           string  `json:"reason" yaml:"reason"`
	RelatedBondID    string  `json:"related_bond_id,omitempty" yaml:"related_bond_id,omitempty"`
	BilledByPeriodID string  `json:"billed_by_period_id,omitempty" yaml:"billed_by_period_id,omitempty"`
}

type AlertDoc struct {
	Type      string `json:"type" yaml:"type"`
	RentalID  string `json:"rental_id" yaml:"rental_id"`
	DueDate   string `json:"due_date" yaml:"due_date"`
	DaysUntil int    `json:"days_until" yaml:"days_until"`
	RelatedID string `json:"related_id,omitempty" yaml:"related_id,omitempty"`
	Priority  string `json:"priority" yaml:"priority"`
}

type SummaryDoc struct {
	Currency            string            `json:"currency" yaml:"currency"`
	CnamTotal           float64           `json:"cnam_total" yaml:"cnam_total"`
	DirectTotal         float64           `json:"direct_total" yaml:"direct_total"`
	GapTotal            float64           `json:"gap_total" yaml:"gap_total"`
	DepositTotal        float64           `json:"deposit_total" yaml:"deposit_total"`
	GrandTotal          float64           `json:"grand_total" yaml:"grand_total"`
	UnbilledGapExposure float64           `json:"unbilled_gap_exposure" yaml:"unbilled_gap_exposure"`
	DoubleFunded        []DoubleFundedDoc `json:"double_funded,omitempty" yaml:"double_funded,omitempty"`
}

type DoubleFundedDoc struct {
	StartDate       string `json:"start_date" yaml:"start_date"`
	EndDate         string `json:"end_date" yaml:"end_date"`
	BondID          string `json:"bond_id" yaml:"bond_id"`
	PaymentPeriodID string `json:"payment_period_id" yaml:"payment_period_id"`
}

// EncodeReport writes report in the given format.
func EncodeReport(w io.Writer, report coverage.Report, format Format) error {
	return Encode(w, NewReportDoc(report), format)
}

func NewReportDoc(r coverage.Report) ReportDoc {
	d := ReportDoc{
		RentalID:       string(r.RentalID),
		Today:          r.Today.String(),
		Timeline:       make([]SegmentDoc, 0, len(r.Timeline.Segments)),
		Gaps:           make([]GapDoc, 0, len(r.Analysis.Gaps)),
		TotalGapAmount: money(r.Analysis.TotalAmount),
		UnbilledAmount: money(r.Analysis.UnbilledAmount),
		Alerts:         NewAlertDocs(r.Alerts),
		Summary:        NewSummaryDoc(r.Summary),
	}
	for _, s := range r.Timeline.Segments {
		d.Timeline = append(d.Timeline, SegmentDoc{
			StartDate:       s.Interval.Start.String(),
			EndDate:         formatOptionalDate(s.Interval.End),
			Days:            s.DurationDays(),
			Source:          string(s.Source),
			BondID:          string(s.BondID),
			PaymentPeriodID: string(s.PaymentPeriodID),
			GapPeriodID:     string(s.GapPeriodID),
			DoubleFunded:    s.DoubleFunded,
		})
	}
	for _, g := range r.Analysis.Gaps {
		d.Gaps = append(d.Gaps, GapDoc{
			StartDate:        g.Interval.Start.String(),
			EndDate:          formatOptionalDate(g.Interval.End),
			DurationDays:     g.DurationDays,
			Amount:           money(g.Amount),
			Severity:         string(g.Severity),
			Reason:           string(g.Reason),
			RelatedBondID:    string(g.RelatedBondID),
			BilledByPeriodID: string(g.BilledByPeriodID),
		})
	}
	return d
}

func NewAlertDocs(alerts []coverage.Alert) []AlertDoc {
	out := make([]AlertDoc, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertDoc{
			Type:      string(a.Type),
			RentalID:  string(a.RentalID),
			DueDate:   a.DueDate.String(),
			DaysUntil: a.DaysUntil,
			RelatedID: a.RelatedID,
			Priority:  string(a.Priority),
		})
	}
	return out
}

func NewSummaryDoc(s coverage.FinancialSummary) SummaryDoc {
	d := SummaryDoc{
		Currency:            string(s.GrandTotal.Currency),
		CnamTotal:           money(s.CnamTotal),
		DirectTotal:         money(s.DirectTotal),
		GapTotal:            money(s.GapTotal),
		DepositTotal:        money(s.DepositTotal),
		GrandTotal:          money(s.GrandTotal),
		UnbilledGapExposure: money(s.UnbilledGapExposure),
	}
	for _, df := range s.DoubleFunded {
		d.DoubleFunded = append(d.DoubleFunded, DoubleFundedDoc{
			StartDate:       df.Interval.Start.String(),
			EndDate:         formatOptionalDate(df.Interval.End),
			BondID:          string(df.BondID),
			PaymentPeriodID: string(df.PaymentPeriodID),
		})
	}
	return d
}

func money(a generic.Amount) float64 {
	return a.Value.Round(generic.MoneyPlaces).InexactFloat64()
}
