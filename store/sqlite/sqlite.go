/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists rental sessions and the reconciliation journal in one database.

INTERFACES IMPLEMENTED:
  coverage.SessionStore: rentals with their bonds and payment periods
  generic.Store:         journal entries (append-only)

KEY TABLES:
  rentals:          One row per rental, including the deposit
  bonds:            CNAM coverage bonds, keyed by (rental_id, id)
  payment_periods:  Direct payments and gap periods, keyed by (rental_id, id)
  journal_entries:  Immutable log of reconciliation actions

SNAPSHOT SEMANTICS:
  SaveSession replaces a rental's bonds and payment periods in a single
  transaction, so a reader never sees half of an action. Rows keep the
  slice order of the Session through a position column.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on journal_entries
  - No DELETE statements on journal_entries
  - idempotency_key is UNIQUE; a replay returns ErrDuplicateIdempotencyKey

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

USAGE:
  store, err := sqlite.New("./data/rentals.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := coverage.NewService(store, generic.NewJournal(store), ...)

SEE ALSO:
  - coverage/store.go: SessionStore
  - generic/store.go: journal Store
  - generic/store/memory.go, coverage/memory.go: in-memory equivalents
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-sqlite3"
)

// Store implements coverage.SessionStore and generic.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rentals (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT,
		is_open_ended INTEGER NOT NULL DEFAULT 0,
		is_urgent INTEGER NOT NULL DEFAULT 0,
		product_ids_json TEXT,
		deposit_value TEXT NOT NULL DEFAULT '0',
		deposit_currency TEXT NOT NULL,
		deposit_method TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bonds (
		rental_id TEXT NOT NULL REFERENCES rentals(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		bond_type TEXT,
		status TEXT NOT NULL,
		coverage_start TEXT,
		coverage_end TEXT,
		covered_months INTEGER NOT NULL DEFAULT 0,
		total_value TEXT NOT NULL,
		total_currency TEXT NOT NULL,
		bond_number TEXT,
		submission_date TEXT,
		predecessor_bond_id TEXT,
		PRIMARY KEY (rental_id, id)
	);

	-- Alert sweeps look for expiring and stale bonds across rentals
	CREATE INDEX IF NOT EXISTS idx_bonds_status_end
		ON bonds(status, coverage_end);

	CREATE TABLE IF NOT EXISTS payment_periods (
		rental_id TEXT NOT NULL REFERENCES rentals(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		amount_value TEXT NOT NULL,
		amount_currency TEXT NOT NULL,
		method TEXT NOT NULL,
		is_gap_period INTEGER NOT NULL DEFAULT 0,
		gap_reason TEXT,
		product_ids_json TEXT,
		notes TEXT,
		needs_review INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (rental_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_payment_periods_rental_dates
		ON payment_periods(rental_id, start_date, end_date);

	-- Journal (append-only)
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		stream_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		amount_value TEXT NOT NULL DEFAULT '0',
		amount_currency TEXT,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_stream_date
		ON journal_entries(stream_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_journal_idempotency
		ON journal_entries(idempotency_key) WHERE idempotency_key IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SESSION STORE (coverage.SessionStore interface)
// =============================================================================

// SaveSession upserts the rental and replaces its bonds and payment periods.
func (s *Store) SaveSession(ctx context.Context, sess *coverage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveRental(ctx, sqlTx, sess); err != nil {
		return err
	}
	rentalID := string(sess.Rental.ID)
	for _, table := range []string{"bonds", "payment_periods"} {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table+" WHERE rental_id = ?", rentalID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for i, b := range sess.Bonds {
		if err := insertBond(ctx, sqlTx, rentalID, i, b); err != nil {
			return err
		}
	}
	for i, p := range sess.PaymentPeriods {
		if err := insertPaymentPeriod(ctx, sqlTx, rentalID, i, p); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func saveRental(ctx context.Context, db execer, sess *coverage.Session) error {
	r := sess.Rental
	productsJSON, err := json.Marshal(r.ProductIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rentals
		(id, start_date, end_date, is_open_ended, is_urgent, product_ids_json,
		 deposit_value, deposit_currency, deposit_method, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_open_ended = excluded.is_open_ended,
			is_urgent = excluded.is_urgent,
			product_ids_json = excluded.product_ids_json,
			deposit_value = excluded.deposit_value,
			deposit_currency = excluded.deposit_currency,
			deposit_method = excluded.deposit_method,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.ExecContext(ctx, query,
		r.ID,
		r.StartDate.String(),
		nullDate(r.EndDate),
		r.IsOpenEnded,
		r.IsUrgent,
		string(productsJSON),
		sess.Deposit.Value.String(),
		sess.Currency(),
		nullString(string(sess.DepositMethod)),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save rental: %w", err)
	}
	return nil
}

func insertBond(ctx context.Context, db execer, rentalID string, position int, b coverage.CoverageBond) error {
	query := `
		INSERT INTO bonds
		(rental_id, id, position, bond_type, status, coverage_start, coverage_end, covered_months,
		 total_value, total_currency, bond_number, submission_date, predecessor_bond_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		rentalID,
		b.ID,
		position,
		nullString(b.BondType),
		b.Status,
		nullDate(b.CoverageStart),
		nullDate(b.CoverageEnd),
		b.CoveredMonths,
		b.TotalAmount.Value.String(),
		b.TotalAmount.Currency,
		nullString(b.BondNumber),
		nullDate(b.SubmissionDate),
		nullString(string(b.PredecessorBondID)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bond %s: %w", b.ID, err)
	}
	return nil
}

func insertPaymentPeriod(ctx context.Context, db execer, rentalID string, position int, p coverage.PaymentPeriod) error {
	productsJSON, err := json.Marshal(p.ProductIDs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_periods
		(rental_id, id, position, start_date, end_date, amount_value, amount_currency, method,
		 is_gap_period, gap_reason, product_ids_json, notes, needs_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		rentalID,
		p.ID,
		position,
		p.Interval.Start.String(),
		nullDate(p.Interval.End),
		p.Amount.Value.String(),
		p.Amount.Currency,
		p.Method,
		p.IsGapPeriod,
		nullString(string(p.GapReason)),
		string(productsJSON),
		nullString(p.Notes),
		p.NeedsReview,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment period %s: %w", p.ID, err)
	}
	return nil
}

// LoadSession returns coverage.ErrRentalNotFound for an unknown id.
func (s *Store) LoadSession(ctx context.Context, id coverage.RentalID) (*coverage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, rentalColumns+" WHERE id = ?", id)
	sess, err := scanRental(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coverage.ErrRentalNotFound
	}
	if err != nil {
		return nil, err
	}

	if sess.Bonds, err = s.loadBonds(ctx, id); err != nil {
		return nil, err
	}
	if sess.PaymentPeriods, err = s.loadPaymentPeriods(ctx, id); err != nil {
		return nil, err
	}
	return sess, nil
}

// ListRentals returns every rental ordered by id.
func (s *Store) ListRentals(ctx context.Context) ([]coverage.RentalPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, rentalColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer rows.Close()

	var rentals []coverage.RentalPeriod
	for rows.Next() {
		sess, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, sess.Rental)
	}
	return rentals, rows.Err()
}

const rentalColumns = `
	SELECT id, start_date, end_date, is_open_ended, is_urgent, product_ids_json,
	       deposit_value, deposit_currency, deposit_method
	FROM rentals`

type scanner interface {
	Scan(dest ...any) error
}

func scanRental(row scanner) (*coverage.Session, error) {
	var (
		sess          coverage.Session
		id            string
		startDate     string
		endDate       sql.NullString
		productsJSON  sql.NullString
		depositValue  string
		currency      string
		depositMethod sql.NullString
	)

	err := row.Scan(&id, &startDate, &endDate, &sess.Rental.IsOpenEnded, &sess.Rental.IsUrgent,
		&productsJSON, &depositValue, &currency, &depositMethod)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rental: %w", err)
	}

	sess.Rental.ID = coverage.RentalID(id)
	if sess.Rental.StartDate, err = generic.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("rental %s: start_date: %w", id, err)
	}
	if sess.Rental.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, fmt.Errorf("rental %s: end_date: %w", id, err)
	}
	if sess.Rental.ProductIDs, err = parseProductIDs(productsJSON); err != nil {
		return nil, fmt.Errorf("rental %s: product_ids: %w", id, err)
	}
	if sess.Deposit, err = parseAmount(depositValue, currency); err != nil {
		return nil, fmt.Errorf("rental %s: deposit_value: %w", id, err)
	}
	sess.DepositMethod = coverage.PaymentMethod(depositMethod.String)
	return &sess, nil
}

func (s *Store) loadBonds(ctx context.Context, id coverage.RentalID) ([]coverage.CoverageBond, error) {
	query := `
		SELECT id, bond_type, status, coverage_start, coverage_end, covered_months,
		       total_value, total_currency, bond_number, submission_date, predecessor_bond_id
		FROM bonds
		WHERE rental_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query bonds: %w", err)
	}
	defer rows.Close()

	var bonds []coverage.CoverageBond
	for rows.Next() {
		var (
			b                                         coverage.CoverageBond
			bondID, status, totalValue, currency      string
			bondType, bondNumber, predecessor         sql.NullString
			coverageStart, coverageEnd, submittedDate sql.NullString
		)
		err := rows.Scan(&bondID, &bondType, &status, &coverageStart, &coverageEnd, &b.CoveredMonths,
			&totalValue, &currency, &bondNumber, &submittedDate, &predecessor)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bond: %w", err)
		}

		b.ID = coverage.BondID(bondID)
		b.BondType = bondType.String
		b.Status = coverage.BondStatus(status)
		if b.TotalAmount, err = parseAmount(totalValue, currency); err != nil {
			return nil, fmt.Errorf("bond %s: total_value: %w", bondID, err)
		}
		b.BondNumber = bondNumber.String
		b.PredecessorBondID = coverage.BondID(predecessor.String)
		if b.CoverageStart, err = parseNullDate(coverageStart); err != nil {
			return nil, fmt.Errorf("bond %s: coverage_start: %w", bondID, err)
		}
		if b.CoverageEnd, err = parseNullDate(coverageEnd); err != nil {
			return nil, fmt.Errorf("bond %s: coverage_end: %w", bondID, err)
		}
		if b.SubmissionDate, err = parseNullDate(submittedDate); err != nil {
			return nil, fmt.Errorf("bond %s: submission_date: %w", bondID, err)
		}
		bonds = append(bonds, b)
	}
	return bonds, rows.Err()
}

func (s *Store) loadPaymentPeriods(ctx context.Context, id coverage.RentalID) ([]coverage.PaymentPeriod, error) {
	query := `
		SELECT id, start_date, end_date, amount_value, amount_currency, method,
		       is_gap_period, gap_reason, product_ids_json, notes, needs_review
		FROM payment_periods
		WHERE rental_id = ?
		ORDER BY position ASC
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment periods: %w", err)
	}
	defer rows.Close()

	var periods []coverage.PaymentPeriod
	for rows.Next() {
		var (
			p                                     coverage.PaymentPeriod
			periodID, start, end, value, currency string
			method                                string
			gapReason, productsJSON, notes        sql.NullString
		)
		err := rows.Scan(&periodID, &start, &end, &value, &currency, &method,
			&p.IsGapPeriod, &gapReason, &productsJSON, &notes, &p.NeedsReview)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment period: %w", err)
		}

		from, err := generic.ParseDate(start)
		if err != nil {
			return nil, fmt.Errorf("payment period %s: start_date: %w", periodID, err)
		}
		to, err := generic.ParseDate(end)
		if err != nil {
			return nil, fmt.Errorf("payment period %s: end_date: %w", periodID, err)
		}

		p.ID = coverage.PaymentPeriodID(periodID)
		p.Interval = generic.Interval{Start: from, End: &to}
		if p.Amount, err = parseAmount(value, currency); err != nil {
			return nil, fmt.Errorf("payment period %s: amount_value: %w", periodID, err)
		}
		p.Method = coverage.PaymentMethod(method)
		p.GapReason = coverage.GapReason(gapReason.String)
		p.Notes = notes.String
		if p.ProductIDs, err = parseProductIDs(productsJSON); err != nil {
			return nil, fmt.Errorf("payment period %s: product_ids: %w", periodID, err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// =============================================================================
// JOURNAL STORE (generic.Store interface)
// =============================================================================

// Append adds an entry to the journal.
func (s *Store) Append(ctx context.Context, e generic.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, db execer, e generic.Entry) error {
	metadataJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO journal_entries
		(id, stream_id, kind, effective_at, amount_value, amount_currency,
		 reference_id, reason, idempotency_key, metadata_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		e.ID,
		e.StreamID,
		e.Kind,
		e.EffectiveAt.String(),
		e.Amount.Value.String(),
		nullString(string(e.Amount.Currency)),
		nullString(e.ReferenceID),
		nullString(e.Reason),
		nullString(e.IdempotencyKey),
		string(metadataJSON),
		nullString(e.CreatedBy),
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	return nil
}

// AppendBatch adds multiple entries atomically.
func (s *Store) AppendBatch(ctx context.Context, es []generic.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, e := range es {
		if e.IdempotencyKey != "" {
			if keys[e.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			keys[e.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range es {
		if err := appendEntry(ctx, sqlTx, e); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns all entries of a stream.
func (s *Store) Load(ctx context.Context, streamID string) ([]generic.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := entryColumns + `
		WHERE stream_id = ?
		ORDER BY effective_at ASC, created_at ASC
	`
	return s.queryEntries(ctx, query, streamID)
}

// LoadRange returns entries effective in [from, to].
func (s *Store) LoadRange(ctx context.Context, streamID string, from, to generic.TimePoint) ([]generic.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := entryColumns + `
		WHERE stream_id = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, created_at ASC
	`
	return s.queryEntries(ctx, query, streamID, from.String(), to.String())
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM journal_entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

const entryColumns = `
	SELECT id, stream_id, kind, effective_at, amount_value, amount_currency,
	       reference_id, reason, idempotency_key, metadata_json, created_by, created_at
	FROM journal_entries`

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]generic.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []generic.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (generic.Entry, error) {
	var (
		e              generic.Entry
		id, kind       string
		effectiveAt    string
		amountValue    string
		currency       sql.NullString
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&id, &e.StreamID, &kind, &effectiveAt, &amountValue, &currency,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan journal entry: %w", err)
	}

	e.ID = generic.EntryID(id)
	e.Kind = generic.EntryKind(kind)
	if e.EffectiveAt, err = generic.ParseDate(effectiveAt); err != nil {
		return e, fmt.Errorf("journal entry %s: effective_at: %w", id, err)
	}
	if e.Amount, err = parseAmount(amountValue, currency.String); err != nil {
		return e, fmt.Errorf("journal entry %s: amount_value: %w", id, err)
	}
	e.ReferenceID = referenceID.String
	e.Reason = reason.String
	e.IdempotencyKey = idempotencyKey.String
	e.CreatedBy = createdBy.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &e.Metadata); err != nil {
			return e, fmt.Errorf("journal entry %s: metadata: %w", id, err)
		}
	}

	return e, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseNullDate(s sql.NullString) (*generic.TimePoint, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	tp, err := generic.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func parseProductIDs(s sql.NullString) ([]coverage.ProductID, error) {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil, nil
	}
	var ids []coverage.ProductID
	if err := json.Unmarshal([]byte(s.String), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func parseAmount(value, currency string) (generic.Amount, error) {
	return generic.ParseAmount(value, generic.Currency(currency))
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
