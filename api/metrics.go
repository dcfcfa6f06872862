package api

import (
	"github.com/espace-elite/rental-engine/coverage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PROMETHEUS METRICS
// =============================================================================

// ReconciliationsTotal counts reconciliations by origin (snapshot, rental, sweep).
var ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rental_engine",
	Subsystem: "reconciler",
	Name:      "runs_total",
	Help:      "Total reconciliations by origin.",
}, []string{"origin"})

// GapsDetected counts reported gaps by severity.
var GapsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rental_engine",
	Subsystem: "reconciler",
	Name:      "gaps_total",
	Help:      "Total coverage gaps reported by severity.",
}, []string{"severity"})

// ActionFailures counts rejected or failed actions by outcome class.
var ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rental_engine",
	Subsystem: "api",
	Name:      "action_failures_total",
	Help:      "Total failed API actions by action and class (invalid, not_found, conflict, internal).",
}, []string{"action", "class"})

// ActiveAlerts is the alert count of the last sweep.
var ActiveAlerts = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "rental_engine",
	Subsystem: "alerts",
	Name:      "active",
	Help:      "Alerts computed by the last sweep, by type and priority.",
}, []string{"type", "priority"})

// UnbilledGapExposure is the unbilled gap amount across rentals at the last sweep.
var UnbilledGapExposure = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "rental_engine",
	Subsystem: "alerts",
	Name:      "unbilled_gap_exposure",
	Help:      "Unbilled gap amount summed over all rentals at the last sweep.",
})

// SweepDuration tracks how long alert sweeps take.
var SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "rental_engine",
	Subsystem: "alerts",
	Name:      "sweep_seconds",
	Help:      "Alert sweep duration in seconds.",
	Buckets:   prometheus.DefBuckets,
})

func observeReport(origin string, r coverage.Report) {
	ReconciliationsTotal.WithLabelValues(origin).Inc()
	for _, g := range r.Analysis.Gaps {
		GapsDetected.WithLabelValues(string(g.Severity)).Inc()
	}
}

func errorClass(err error) string {
	switch {
	case isBadRequest(err):
		return "invalid"
	case coverage.IsNotFound(err):
		return "not_found"
	case coverage.IsConflict(err):
		return "conflict"
	default:
		return "internal"
	}
}
