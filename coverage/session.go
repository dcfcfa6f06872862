/*
session.go - One rental's snapshot and the reconciliation pipeline

PURPOSE:
  A Session is everything the engine knows about one rental: the rental
  period, its bonds, its payment periods and the deposit. Reconciler runs
  the pure pipeline over a Session:

    BuildTimeline -> Analyzer.Analyze -> AlertScheduler.Alerts -> Summarize

  Actions (actions.go) mutate the Session's collections; a failed action
  leaves them untouched. The derived Report is never mutated, only rebuilt.

CONCURRENCY:
  A Session is not safe for concurrent use. Service serializes access per
  rental id.
*/
package coverage

import "github.com/espace-elite/rental-engine/generic"

type Session struct {
	Rental         RentalPeriod
	Bonds          []CoverageBond
	PaymentPeriods []PaymentPeriod
	Deposit        generic.Amount
	DepositMethod  PaymentMethod
}

// Currency is the label used for totals: the deposit's, else TND.
func (s *Session) Currency() generic.Currency {
	if s.Deposit.Currency != "" {
		return s.Deposit.Currency
	}
	return generic.CurrencyTND
}

// Validate checks the whole snapshot.
func (s *Session) Validate() error {
	if err := s.Rental.Validate(); err != nil {
		return err
	}
	for _, b := range s.Bonds {
		if err := b.Validate(); err != nil {
			return err
		}
	}
	if err := ValidateChain(s.Bonds); err != nil {
		return err
	}
	if err := ValidatePaymentPeriods(s.PaymentPeriods); err != nil {
		return err
	}
	if s.Deposit.IsNegative() {
		return invalidRental(s.Rental.ID, "deposit cannot be negative")
	}
	if s.DepositMethod != "" && !s.DepositMethod.Valid() {
		return invalidRental(s.Rental.ID, "unknown deposit method %q", s.DepositMethod)
	}
	return nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := &Session{
		Rental:        s.Rental.clone(),
		Deposit:       s.Deposit,
		DepositMethod: s.DepositMethod,
	}
	if s.Bonds != nil {
		c.Bonds = make([]CoverageBond, len(s.Bonds))
		for i, b := range s.Bonds {
			c.Bonds[i] = b.clone()
		}
	}
	if s.PaymentPeriods != nil {
		c.PaymentPeriods = make([]PaymentPeriod, len(s.PaymentPeriods))
		for i, p := range s.PaymentPeriods {
			c.PaymentPeriods[i] = p.clone()
		}
	}
	return c
}

// Timeline builds the current timeline.
func (s *Session) Timeline(today generic.TimePoint) (Timeline, error) {
	return BuildTimeline(s.Rental, s.Bonds, s.PaymentPeriods, today)
}

func (s *Session) bondIndex(id BondID) (int, error) {
	for i, b := range s.Bonds {
		if b.ID == id {
			return i, nil
		}
	}
	return -1, ErrBondNotFound
}

// Bond returns a copy of the bond with the given id.
func (s *Session) Bond(id BondID) (CoverageBond, error) {
	i, err := s.bondIndex(id)
	if err != nil {
		return CoverageBond{}, err
	}
	return s.Bonds[i].clone(), nil
}

// =============================================================================
// RECONCILER - The full pipeline
// =============================================================================

type Report struct {
	RentalID RentalID
	Today    generic.TimePoint
	Timeline Timeline
	Analysis Analysis
	Alerts   []Alert
	Summary  FinancialSummary
}

type Reconciler struct {
	Analyzer  *Analyzer
	Scheduler AlertScheduler
}

func NewReconciler(pricing PricingFunc, policy AlertPolicy) Reconciler {
	return Reconciler{
		Analyzer:  NewAnalyzer(pricing),
		Scheduler: NewAlertScheduler(policy),
	}
}

// Reconcile runs the pipeline over a snapshot. The session is not modified.
func (r Reconciler) Reconcile(s *Session, today generic.TimePoint) (Report, error) {
	if err := s.Validate(); err != nil {
		return Report{}, err
	}
	tl, err := s.Timeline(today)
	if err != nil {
		return Report{}, err
	}

	analysis := r.Analyzer.Analyze(tl, s.Rental, s.Bonds, s.PaymentPeriods, today)
	return Report{
		RentalID: s.Rental.ID,
		Today:    today,
		Timeline: tl,
		Analysis: analysis,
		Alerts:   r.Scheduler.Alerts(today, s.Rental, s.Bonds),
		Summary:  Summarize(tl, analysis, s.Bonds, s.PaymentPeriods, s.Deposit, s.Currency()),
	}, nil
}
