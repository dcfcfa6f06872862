/*
scheduler.go - Periodic alert sweep

PURPOSE:
  Periodically reconciles every stored rental so expiring bonds, stale CNAM
  submissions and ending rentals surface without anyone opening the rental.
  Alerts are derived data: the sweep logs them and publishes gauges, it
  never stores them.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Reconciles each rental through the Service (one journal entry per rental per day)
  - A rental that fails to load or reconcile is logged and skipped
  - ActiveAlerts and UnbilledGapExposure reflect the last completed sweep

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour, ALERT_SWEEP_INTERVAL)
  - Enabled: Whether the sweep is active (default: true)

USAGE:
  sweeper := NewAlertSweeper(service, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - coverage/alerts.go: AlertScheduler rules
  - handlers.go: ListAlerts endpoint (on-demand alerts)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/rs/zerolog"
)

// AlertSweeper reconciles all rentals on a ticker.
type AlertSweeper struct {
	Service       *coverage.Service
	Logger        zerolog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Rentals  int
	Failed   int
	Alerts   []coverage.Alert
	Unbilled float64
}

// NewAlertSweeper creates a sweeper with the default one-hour interval.
func NewAlertSweeper(svc *coverage.Service, logger zerolog.Logger) *AlertSweeper {
	return &AlertSweeper{
		Service:       svc,
		Logger:        logger.With().Str("component", "alert_sweeper").Logger(),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the sweep loop. The first sweep runs immediately.
func (s *AlertSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info().Msg("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info().Dur("interval", s.CheckInterval).Msg("started")
}

// Stop stops the sweep loop and waits for a running sweep to finish.
func (s *AlertSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info().Msg("stopped")
	}
}

func (s *AlertSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow sweeps synchronously and publishes the result.
func (s *AlertSweeper) RunNow(ctx context.Context) SweepResult {
	start := time.Now()
	defer func() { SweepDuration.Observe(time.Since(start).Seconds()) }()

	var res SweepResult
	rentals, err := s.Service.List(ctx)
	if err != nil {
		s.Logger.Error().Err(err).Msg("list rentals")
		return res
	}

	for _, rental := range rentals {
		res.Rentals++
		report, err := s.Service.Reconcile(ctx, rental.ID)
		if err != nil {
			res.Failed++
			s.Logger.Error().Err(err).Str("rental_id", string(rental.ID)).Msg("reconcile")
			continue
		}
		observeReport("sweep", report)
		res.Alerts = append(res.Alerts, report.Alerts...)
		res.Unbilled += report.Summary.UnbilledGapExposure.Value.InexactFloat64()
	}
	coverage.SortAlerts(res.Alerts)

	s.publish(res)
	return res
}

func (s *AlertSweeper) publish(res SweepResult) {
	ActiveAlerts.Reset()
	for _, a := range res.Alerts {
		ActiveAlerts.WithLabelValues(string(a.Type), string(a.Priority)).Inc()

		evt := s.Logger.Info()
		if a.Priority == coverage.PriorityHigh {
			evt = s.Logger.Warn()
		}
		evt.
			Str("rental_id", string(a.RentalID)).
			Str("type", string(a.Type)).
			Str("priority", string(a.Priority)).
			Str("due_date", a.DueDate.String()).
			Int("days_until", a.DaysUntil).
			Str("related_id", a.RelatedID).
			Msg("alert")
	}
	UnbilledGapExposure.Set(res.Unbilled)

	s.Logger.Info().
		Int("rentals", res.Rentals).
		Int("failed", res.Failed).
		Int("alerts", len(res.Alerts)).
		Float64("unbilled", res.Unbilled).
		Msg("sweep completed")
}
