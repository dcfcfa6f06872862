/*
main.go - Application entry point

PURPOSE:
  CLI for the rental reconciliation engine.

COMMANDS:
  serve       Start the HTTP API and the periodic alert sweep
  reconcile   Reconcile a snapshot file and print the report

STARTUP SEQUENCE (serve):
  1. Load configuration (env, optional config file)
  2. Open the SQLite store
  3. Load the price catalog (or use the flat default rate)
  4. Wire Service -> Handler -> Router, start the alert sweep
  5. Serve with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the alert sweep
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Serve with a file database and a catalog
  DB_PATH=./data/engine.db CATALOG_PATH=./catalog.toml ./server serve

  # Reconcile a snapshot as of a given day, YAML output
  ./server reconcile --snapshot rental.yaml --today 2025-03-15 --format yaml

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/espace-elite/rental-engine/api"
	"github.com/espace-elite/rental-engine/config"
	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/factory"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/espace-elite/rental-engine/generic/store"
	"github.com/espace-elite/rental-engine/store/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "rental-engine",
		Short:        "Rental coverage and payment-gap reconciliation engine",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "config file (default: optional .env)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(w io.Writer, env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// newReconciler prices with the catalog when one is configured.
func newReconciler(cfg *config.Config, catalogPath string) (coverage.Reconciler, error) {
	pricing := coverage.FlatRate(decimal.NewFromFloat(cfg.DefaultMonthlyRate))
	currency := cfg.Currency()
	if catalogPath != "" {
		catalog, err := factory.LoadCatalog(catalogPath)
		if err != nil {
			return coverage.Reconciler{}, err
		}
		pricing = catalog.Pricing()
		currency = catalog.Currency
	}

	r := coverage.NewReconciler(pricing, cfg.AlertPolicy())
	r.Analyzer.Currency = currency
	return r, nil
}

// =============================================================================
// SERVE
// =============================================================================

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {
	logger := newLogger(os.Stdout, cfg.Env)

	// Database
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		return err
	}
	defer db.Close()
	logger.Info().Str("path", cfg.DBPath).Msg("database ready")

	reconciler, err := newReconciler(cfg, cfg.CatalogPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load catalog")
		return err
	}

	svc := coverage.NewService(db, generic.NewJournal(db), reconciler, cfg.Clock(), logger)
	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	sweeper := api.NewAlertSweeper(svc, logger)
	sweeper.CheckInterval = cfg.AlertSweepInterval
	sweeper.Enabled = cfg.AlertSweepInterval > 0
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.Env).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server failed")
		return err
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// =============================================================================
// RECONCILE
// =============================================================================

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a snapshot file and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			snapshot, _ := cmd.Flags().GetString("snapshot")
			today, _ := cmd.Flags().GetString("today")
			format, _ := cmd.Flags().GetString("format")
			catalog, _ := cmd.Flags().GetString("catalog")
			autoFill, _ := cmd.Flags().GetBool("auto-fill")
			if catalog == "" {
				catalog = cfg.CatalogPath
			}

			return runReconcile(cmd.Context(), cmd.OutOrStdout(), cfg, reconcileOptions{
				SnapshotPath: snapshot,
				Today:        today,
				Format:       factory.Format(format),
				CatalogPath:  catalog,
				AutoFill:     autoFill,
			})
		},
	}
	cmd.Flags().String("snapshot", "", "snapshot file (.json, .yaml)")
	cmd.Flags().String("today", "", "reconciliation date YYYY-MM-DD (default: snapshot date, then TODAY, then the clock)")
	cmd.Flags().String("format", string(factory.FormatJSON), "output format: json or yaml")
	cmd.Flags().String("catalog", "", "price catalog (default: CATALOG_PATH)")
	cmd.Flags().Bool("auto-fill", false, "bill every uncovered span before reporting")
	cmd.MarkFlagRequired("snapshot")
	return cmd
}

type reconcileOptions struct {
	SnapshotPath string
	Today        string
	Format       factory.Format
	CatalogPath  string
	AutoFill     bool
}

// runReconcile replays the snapshot through an in-memory Service so the
// report matches what the API would return for the same rental.
func runReconcile(ctx context.Context, out io.Writer, cfg *config.Config, opts reconcileOptions) error {
	logger := newLogger(os.Stderr, cfg.Env).Level(zerolog.WarnLevel)

	snap, err := factory.LoadSnapshot(opts.SnapshotPath)
	if err != nil {
		return err
	}

	clock := cfg.Clock()
	if snap.Today != nil {
		clock = generic.FixedClock{Day: *snap.Today}
	}
	if opts.Today != "" {
		day, err := generic.ParseDate(opts.Today)
		if err != nil {
			return fmt.Errorf("--today: %w", err)
		}
		clock = generic.FixedClock{Day: day}
	}

	reconciler, err := newReconciler(cfg, opts.CatalogPath)
	if err != nil {
		return err
	}

	svc := coverage.NewService(coverage.NewMemorySessionStore(), generic.NewJournal(store.NewMemory()), reconciler, clock, logger)
	if err := svc.CreateRental(ctx, snap.Session); err != nil {
		return err
	}
	if opts.AutoFill {
		if _, err := svc.AutoFill(ctx, snap.Session.Rental.ID); err != nil {
			return err
		}
	}

	report, err := svc.Reconcile(ctx, snap.Session.Rental.ID)
	if err != nil {
		return err
	}
	return factory.EncodeReport(out, report, opts.Format)
}
