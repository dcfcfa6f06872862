package coverage

import (
	"sort"

	"github.com/espace-elite/rental-engine/generic"
)

// =============================================================================
// ALERTS - Derived, recomputed on every call, never persisted
// =============================================================================

type Alert struct {
	Type      AlertType
	RentalID  RentalID
	DueDate   generic.TimePoint
	DaysUntil int // negative once overdue
	RelatedID string
	Priority  Priority
}

// AlertPolicy holds the alert thresholds, in days.
type AlertPolicy struct {
	ExpiryLookahead int // CNAM_EXPIRING when coverage ends within this many days
	UrgentExpiry    int // ... and HIGH priority within this many
	StalePending    int // CNAM_PENDING when submitted longer ago than this
	RentalEnding    int // RENTAL_ENDING when the rental ends within this many days
	UrgentRentalEnd int // ... and MEDIUM priority within this many
}

func DefaultAlertPolicy() AlertPolicy {
	return AlertPolicy{
		ExpiryLookahead: 30,
		UrgentExpiry:    7,
		StalePending:    14,
		RentalEnding:    14,
		UrgentRentalEnd: 7,
	}
}

type AlertScheduler struct {
	Policy AlertPolicy
}

func NewAlertScheduler(policy AlertPolicy) AlertScheduler {
	return AlertScheduler{Policy: policy}
}

// Alerts returns the alerts due for one rental, sorted by due date then
// priority (highest first).
func (s AlertScheduler) Alerts(today generic.TimePoint, rental RentalPeriod, bonds []CoverageBond) []Alert {
	var alerts []Alert
	alerts = append(alerts, s.expiring(today, rental, bonds)...)
	alerts = append(alerts, s.stalePending(today, rental, bonds)...)
	if a, ok := s.rentalEnding(today, rental); ok {
		alerts = append(alerts, a)
	}
	SortAlerts(alerts)
	return alerts
}

func (s AlertScheduler) expiring(today generic.TimePoint, rental RentalPeriod, bonds []CoverageBond) []Alert {
	var out []Alert
	for _, b := range bonds {
		w, ok := b.coverage()
		if !ok {
			continue
		}
		days := generic.DaysBetween(today, *w.End)
		if days < 0 || days > s.Policy.ExpiryLookahead {
			continue
		}
		// Coverage running through the rental's committed end needs no renewal.
		if !rental.IsOpenEnded && rental.EndDate != nil && w.End.AfterOrEqual(*rental.EndDate) {
			continue
		}
		if coveredOn(bonds, w.End.AddDays(1)) {
			continue
		}

		priority := PriorityMedium
		if days <= s.Policy.UrgentExpiry {
			priority = PriorityHigh
		}
		out = append(out, Alert{
			Type:      AlertCnamExpiring,
			RentalID:  rental.ID,
			DueDate:   *w.End,
			DaysUntil: days,
			RelatedID: string(b.ID),
			Priority:  priority,
		})
	}
	return out
}

// coveredOn reports whether a qualifying bond covers day. A renewal still
// awaiting approval does not count.
func coveredOn(bonds []CoverageBond, day generic.TimePoint) bool {
	for _, b := range bonds {
		if w, ok := b.coverage(); ok && w.Contains(day) {
			return true
		}
	}
	return false
}

func (s AlertScheduler) stalePending(today generic.TimePoint, rental RentalPeriod, bonds []CoverageBond) []Alert {
	var out []Alert
	for _, b := range bonds {
		if b.Status != BondPendingApproval || b.SubmissionDate == nil {
			continue
		}
		if generic.DaysBetween(*b.SubmissionDate, today) <= s.Policy.StalePending {
			continue
		}

		due := b.SubmissionDate.AddDays(s.Policy.StalePending)
		priority := PriorityMedium
		if rental.IsUrgent {
			priority = PriorityHigh
		}
		out = append(out, Alert{
			Type:      AlertCnamPending,
			RentalID:  rental.ID,
			DueDate:   due,
			DaysUntil: generic.DaysBetween(today, due),
			RelatedID: string(b.ID),
			Priority:  priority,
		})
	}
	return out
}

func (s AlertScheduler) rentalEnding(today generic.TimePoint, rental RentalPeriod) (Alert, bool) {
	days, fixed := rental.DaysUntilEnd(today)
	if !fixed || days < 0 || days > s.Policy.RentalEnding {
		return Alert{}, false
	}

	priority := PriorityLow
	if days <= s.Policy.UrgentRentalEnd {
		priority = PriorityMedium
	}
	return Alert{
		Type:      AlertRentalEnding,
		RentalID:  rental.ID,
		DueDate:   *rental.EndDate,
		DaysUntil: days,
		RelatedID: string(rental.ID),
		Priority:  priority,
	}, true
}

// SortAlerts orders by due date, then priority (highest first), then type
// and related id.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.Priority.rank() != b.Priority.rank() {
			return a.Priority.rank() > b.Priority.rank()
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.RelatedID < b.RelatedID
	})
}
