package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/espace-elite/rental-engine/config"
	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/factory"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const snapshotYAML = `
today: 2025-03-15
rental:
  id: rental-1
  start_date: 2025-01-01
  end_date: 2025-03-31
  is_open_ended: false
  product_ids: [concentrator]
bonds:
  - id: b1
    status: APPROVED
    coverage_start: 2025-01-01
    coverage_end: 2025-02-28
    total_amount: 600
`

const catalogTOML = `
default_monthly_rate = 300.0

[[product]]
id = "concentrator"
monthly_rate = 600.0
`

func testConfig() *config.Config {
	p := coverage.DefaultAlertPolicy()
	return &config.Config{
		Env:                 "production",
		DefaultMonthlyRate:  300,
		DefaultCurrency:     "TND",
		ExpiryLookaheadDays: p.ExpiryLookahead,
		UrgentExpiryDays:    p.UrgentExpiry,
		StalePendingDays:    p.StalePending,
		RentalEndingDays:    p.RentalEnding,
		UrgentRentalEndDays: p.UrgentRentalEnd,
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func reconcileJSON(t *testing.T, opts reconcileOptions) factory.ReportDoc {
	t.Helper()
	opts.Format = factory.FormatJSON
	var out bytes.Buffer
	require.NoError(t, runReconcile(context.Background(), &out, testConfig(), opts))

	var doc factory.ReportDoc
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	return doc
}

func TestRunReconcile_FlatRate(t *testing.T) {
	doc := reconcileJSON(t, reconcileOptions{SnapshotPath: writeFile(t, "rental.yaml", snapshotYAML)})

	require.Len(t, doc.Gaps, 1)
	assert.Equal(t, "2025-03-15", doc.Today)
	assert.Equal(t, 150.0, doc.Gaps[0].Amount)
}

func TestRunReconcile_CatalogAndTodayOverride(t *testing.T) {
	doc := reconcileJSON(t, reconcileOptions{
		SnapshotPath: writeFile(t, "rental.yaml", snapshotYAML),
		CatalogPath:  writeFile(t, "catalog.toml", catalogTOML),
		Today:        "2025-03-10",
	})

	require.Len(t, doc.Gaps, 1)
	assert.Equal(t, "2025-03-10", doc.Gaps[0].EndDate)
	assert.Equal(t, 200.0, doc.Gaps[0].Amount, "10 days at 600/month")
}

func TestRunReconcile_AutoFill(t *testing.T) {
	doc := reconcileJSON(t, reconcileOptions{
		SnapshotPath: writeFile(t, "rental.yaml", snapshotYAML),
		AutoFill:     true,
	})

	require.Len(t, doc.Gaps, 1)
	assert.NotEmpty(t, doc.Gaps[0].BilledByPeriodID)
	assert.Zero(t, doc.UnbilledAmount)
	assert.Equal(t, 310.0, doc.Summary.GapTotal, "31 days of March at 300 per 30 days")
}

func TestRunReconcile_Errors(t *testing.T) {
	var out bytes.Buffer
	err := runReconcile(context.Background(), &out, testConfig(), reconcileOptions{
		SnapshotPath: writeFile(t, "rental.yaml", snapshotYAML),
		Today:        "tomorrow",
		Format:       factory.FormatJSON,
	})
	assert.Error(t, err)

	err = runReconcile(context.Background(), &out, testConfig(), reconcileOptions{
		SnapshotPath: filepath.Join(t.TempDir(), "missing.json"),
		Format:       factory.FormatJSON,
	})
	assert.Error(t, err)
}
