package coverage_test

import (
	"testing"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduler() coverage.AlertScheduler {
	return coverage.NewAlertScheduler(coverage.DefaultAlertPolicy())
}

func TestAlerts_CnamExpiring(t *testing.T) {
	rental := openRental("r", date(2025, 1, 1))
	bonds := []coverage.CoverageBond{bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600)}

	tests := []struct {
		name     string
		today    int // day of February, may be negative
		want     bool
		priority coverage.Priority
		days     int
	}{
		{"outside lookahead", -30, false, "", 0},
		{"eight days out", 20, true, coverage.PriorityMedium, 8},
		{"urgent", 22, true, coverage.PriorityHigh, 6},
		{"last day", 28, true, coverage.PriorityHigh, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today := date(2025, 2, 1).AddDays(tt.today - 1)
			alerts := scheduler().Alerts(today, rental, bonds)
			if !tt.want {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			a := alerts[0]
			assert.Equal(t, coverage.AlertCnamExpiring, a.Type)
			assert.Equal(t, "b1", a.RelatedID)
			assert.Equal(t, tt.priority, a.Priority)
			assert.Equal(t, tt.days, a.DaysUntil)
			assert.True(t, a.DueDate.Equal(date(2025, 2, 28)))
		})
	}
}

func TestAlerts_CnamExpiringUntilRenewalApproved(t *testing.T) {
	// GIVEN: an approved bond ending 28/02 on an open-ended rental
	rental := openRental("r", date(2025, 1, 1))
	today := date(2025, 2, 20)

	sess := &coverage.Session{Rental: rental}
	_, err := sess.AddBond(bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600))
	require.NoError(t, err)
	require.Len(t, scheduler().Alerts(today, rental, sess.Bonds), 1)

	// WHEN: a renewal is drafted
	draft, err := sess.InitiateCnamRenewal("b1")
	require.NoError(t, err)

	// THEN: the pending draft covers nothing, so the alert stays
	alerts := scheduler().Alerts(today, rental, sess.Bonds)
	require.Len(t, alerts, 1)
	assert.Equal(t, coverage.AlertCnamExpiring, alerts[0].Type)
	assert.Equal(t, "b1", alerts[0].RelatedID)

	// WHEN: the draft is completed and approved
	_, err = sess.UpdateBondDraft(draft.ID, coverage.BondDraft{CoverageEnd: date(2025, 4, 30).Ptr()}, today)
	require.NoError(t, err)
	_, err = sess.ApplyBondStatus(draft.ID, coverage.BondApproved, today)
	require.NoError(t, err)

	// THEN: the day after expiry is covered and the alert clears
	assert.Empty(t, scheduler().Alerts(today, rental, sess.Bonds))
}

func TestAlerts_SubmittedRenewalGoesStale(t *testing.T) {
	rental := openRental("r", date(2025, 1, 1))
	sess := &coverage.Session{Rental: rental}
	_, err := sess.AddBond(bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600))
	require.NoError(t, err)
	draft, err := sess.InitiateCnamRenewal("b1")
	require.NoError(t, err)

	_, err = sess.UpdateBondDraft(draft.ID, coverage.BondDraft{SubmissionDate: date(2025, 2, 1).Ptr()}, date(2025, 2, 1))
	require.NoError(t, err)

	var pending []coverage.Alert
	for _, a := range scheduler().Alerts(date(2025, 2, 20), rental, sess.Bonds) {
		if a.Type == coverage.AlertCnamPending {
			pending = append(pending, a)
		}
	}
	require.Len(t, pending, 1)
	assert.Equal(t, string(draft.ID), pending[0].RelatedID)
	assert.True(t, pending[0].DueDate.Equal(date(2025, 2, 15)))
}

func TestAlerts_CnamExpiringNotRaisedWhenCoverageOutlastsRental(t *testing.T) {
	rental := fixedRental("r", date(2025, 1, 1), date(2025, 2, 15))
	bonds := []coverage.CoverageBond{bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600)}

	for _, a := range scheduler().Alerts(date(2025, 2, 20), rental, bonds) {
		assert.NotEqual(t, coverage.AlertCnamExpiring, a.Type)
	}
}

func TestAlerts_StalePending(t *testing.T) {
	rental := openRental("r", date(2025, 1, 1))
	bonds := []coverage.CoverageBond{pendingBond("p1", date(2025, 1, 1))}

	assert.Empty(t, scheduler().Alerts(date(2025, 1, 15), rental, bonds), "14 days is not stale yet")

	alerts := scheduler().Alerts(date(2025, 2, 1), rental, bonds)
	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, coverage.AlertCnamPending, a.Type)
	assert.True(t, a.DueDate.Equal(date(2025, 1, 15)))
	assert.Equal(t, -17, a.DaysUntil)
	assert.Equal(t, coverage.PriorityMedium, a.Priority)

	rental.IsUrgent = true
	alerts = scheduler().Alerts(date(2025, 2, 1), rental, bonds)
	require.Len(t, alerts, 1)
	assert.Equal(t, coverage.PriorityHigh, alerts[0].Priority)
}

func TestAlerts_RentalEnding(t *testing.T) {
	rental := q1Rental()

	assert.Empty(t, scheduler().Alerts(date(2025, 3, 1), rental, nil))

	alerts := scheduler().Alerts(date(2025, 3, 20), rental, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, coverage.AlertRentalEnding, alerts[0].Type)
	assert.Equal(t, 11, alerts[0].DaysUntil)
	assert.Equal(t, coverage.PriorityLow, alerts[0].Priority)

	alerts = scheduler().Alerts(date(2025, 3, 27), rental, nil)
	require.Len(t, alerts, 1)
	assert.Equal(t, coverage.PriorityMedium, alerts[0].Priority)

	assert.Empty(t, scheduler().Alerts(date(2025, 4, 1), rental, nil), "ended rentals do not alert")
	assert.Empty(t, scheduler().Alerts(date(2025, 3, 20), openRental("r", date(2025, 1, 1)), nil))
}

func TestAlerts_SortedByDueDateThenPriority(t *testing.T) {
	rental := fixedRental("r", date(2025, 1, 1), date(2025, 3, 10))
	rental.IsUrgent = true
	bonds := []coverage.CoverageBond{
		bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 3, 5), 600),
		pendingBond("p1", date(2025, 1, 1)),
	}

	alerts := scheduler().Alerts(date(2025, 3, 1), rental, bonds)

	require.Len(t, alerts, 3)
	assert.Equal(t, coverage.AlertCnamPending, alerts[0].Type)  // due 15/01
	assert.Equal(t, coverage.AlertCnamExpiring, alerts[1].Type) // due 05/03
	assert.Equal(t, coverage.AlertRentalEnding, alerts[2].Type) // due 10/03
}

func TestAlerts_PolicyIsConfigurable(t *testing.T) {
	policy := coverage.DefaultAlertPolicy()
	policy.ExpiryLookahead = 60

	rental := openRental("r", date(2025, 1, 1))
	bonds := []coverage.CoverageBond{bond("b1", coverage.BondApproved, date(2025, 1, 1), date(2025, 2, 28), 600)}

	assert.Empty(t, scheduler().Alerts(date(2025, 1, 10), rental, bonds))
	assert.Len(t, coverage.NewAlertScheduler(policy).Alerts(date(2025, 1, 10), rental, bonds), 1)
}
