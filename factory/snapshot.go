package factory

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// ErrMalformedDocument wraps every decoding failure of a snapshot document.
var ErrMalformedDocument = errors.New("malformed document")

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks YAML for .yaml/.yml files and JSON otherwise.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// =============================================================================
// SNAPSHOT DOCUMENTS
// =============================================================================
//
// Dates are YYYY-MM-DD strings. Amounts are plain numbers in the snapshot's
// currency (TND when omitted).

type SnapshotDoc struct {
	Today          string             `json:"today,omitempty" yaml:"today,omitempty"`
	Currency       string             `json:"currency,omitempty" yaml:"currency,omitempty"`
	Rental         RentalDoc          `json:"rental" yaml:"rental"`
	Bonds          []BondDoc          `json:"bonds,omitempty" yaml:"bonds,omitempty"`
	PaymentPeriods []PaymentPeriodDoc `json:"payment_periods,omitempty" yaml:"payment_periods,omitempty"`
	Deposit        float64            `json:"deposit,omitempty" yaml:"deposit,omitempty"`
	DepositMethod  string             `json:"deposit_method,omitempty" yaml:"deposit_method,omitempty"`
}

type RentalDoc struct {
	ID          string   `json:"id" yaml:"id"`
	StartDate   string   `json:"start_date" yaml:"start_date"`
	EndDate     string   `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	IsOpenEnded bool     `json:"is_open_ended" yaml:"is_open_ended"`
	IsUrgent    bool     `json:"is_urgent,omitempty" yaml:"is_urgent,omitempty"`
	ProductIDs  []string `json:"product_ids,omitempty" yaml:"product_ids,omitempty"`
}

type BondDoc struct {
	ID                string  `json:"id,omitempty" yaml:"id,omitempty"`
	BondType          string  `json:"bond_type,omitempty" yaml:"bond_type,omitempty"`
	Status            string  `json:"status" yaml:"status"`
	CoverageStart     string  `json:"coverage_start,omitempty" yaml:"coverage_start,omitempty"`
	CoverageEnd       string  `json:"coverage_end,omitempty" yaml:"coverage_end,omitempty"`
	CoveredMonths     int     `json:"covered_months,omitempty" yaml:"covered_months,omitempty"`
	TotalAmount       float64 `json:"total_amount" yaml:"total_amount"`
	BondNumber        string  `json:"bond_number,omitempty" yaml:"bond_number,omitempty"`
	SubmissionDate    string  `json:"submission_date,omitempty" yaml:"submission_date,omitempty"`
	PredecessorBondID string  `json:"predecessor_bond_id,omitempty" yaml:"predecessor_bond_id,omitempty"`
}

// BondDraftDoc is a partial edit of a pending bond. Absent fields are kept.
type BondDraftDoc struct {
	CoverageStart  *string  `json:"coverage_start,omitempty" yaml:"coverage_start,omitempty"`
	CoverageEnd    *string  `json:"coverage_end,omitempty" yaml:"coverage_end,omitempty"`
	CoveredMonths  *int     `json:"covered_months,omitempty" yaml:"covered_months,omitempty"`
	TotalAmount    *float64 `json:"total_amount,omitempty" yaml:"total_amount,omitempty"`
	BondNumber     *string  `json:"bond_number,omitempty" yaml:"bond_number,omitempty"`
	SubmissionDate *string  `json:"submission_date,omitempty" yaml:"submission_date,omitempty"`
}

type PaymentPeriodDoc struct {
	ID            string   `json:"id,omitempty" yaml:"id,omitempty"`
	StartDate     string   `json:"start_date" yaml:"start_date"`
	EndDate       string   `json:"end_date" yaml:"end_date"`
	Amount        float64  `json:"amount" yaml:"amount"`
	PaymentMethod string   `json:"payment_method" yaml:"payment_method"`
	IsGapPeriod   bool     `json:"is_gap_period,omitempty" yaml:"is_gap_period,omitempty"`
	GapReason     string   `json:"gap_reason,omitempty" yaml:"gap_reason,omitempty"`
	ProductIDs    []string `json:"product_ids,omitempty" yaml:"product_ids,omitempty"`
	Notes         string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	NeedsReview   bool     `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
}

// Snapshot is a decoded SnapshotDoc.
type Snapshot struct {
	Session *coverage.Session
	Today   *generic.TimePoint // nil when the document does not pin a date
}

// =============================================================================
// DECODING
// =============================================================================

// LoadSnapshot reads a snapshot file, choosing the format from its extension.
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return DecodeSnapshot(data, FormatFromPath(path))
}

// DecodeSnapshot parses and validates a snapshot document.
func DecodeSnapshot(data []byte, format Format) (Snapshot, error) {
	var doc SnapshotDoc
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	default:
		return Snapshot{}, fmt.Errorf("%w: unsupported format %q", ErrMalformedDocument, format)
	}
	return doc.ToSnapshot()
}

// ToSnapshot converts the document and validates the resulting session.
func (d SnapshotDoc) ToSnapshot() (Snapshot, error) {
	var snap Snapshot
	if d.Today != "" {
		today, err := parseDate("today", d.Today)
		if err != nil {
			return Snapshot{}, err
		}
		snap.Today = &today
	}

	sess, err := d.ToSession()
	if err != nil {
		return Snapshot{}, err
	}
	if err := sess.Validate(); err != nil {
		return Snapshot{}, err
	}
	snap.Session = sess
	return snap, nil
}

// ToSession converts the document without validating cross-record rules.
func (d SnapshotDoc) ToSession() (*coverage.Session, error) {
	currency := generic.Currency(d.Currency)
	if currency == "" {
		currency = generic.CurrencyTND
	}

	rental, err := d.Rental.ToRental()
	if err != nil {
		return nil, err
	}
	sess := &coverage.Session{
		Rental:  rental,
		Deposit: toAmount(d.Deposit, currency),
	}
	if d.DepositMethod != "" {
		m, err := coverage.ParsePaymentMethod(d.DepositMethod)
		if err != nil {
			return nil, fmt.Errorf("%w: deposit_method: %v", ErrMalformedDocument, err)
		}
		sess.DepositMethod = m
	}

	for i, bd := range d.Bonds {
		b, err := bd.ToBond(currency)
		if err != nil {
			return nil, fmt.Errorf("bonds[%d]: %w", i, err)
		}
		sess.Bonds = append(sess.Bonds, b)
	}
	for i, pd := range d.PaymentPeriods {
		p, err := pd.ToPaymentPeriod(currency)
		if err != nil {
			return nil, fmt.Errorf("payment_periods[%d]: %w", i, err)
		}
		sess.PaymentPeriods = append(sess.PaymentPeriods, p)
	}
	return sess, nil
}

func (d RentalDoc) ToRental() (coverage.RentalPeriod, error) {
	start, err := parseDate("start_date", d.StartDate)
	if err != nil {
		return coverage.RentalPeriod{}, err
	}
	end, err := parseOptionalDate("end_date", d.EndDate)
	if err != nil {
		return coverage.RentalPeriod{}, err
	}
	return coverage.RentalPeriod{
		ID:          coverage.RentalID(d.ID),
		StartDate:   start,
		EndDate:     end,
		IsOpenEnded: d.IsOpenEnded,
		IsUrgent:    d.IsUrgent,
		ProductIDs:  toProductIDs(d.ProductIDs),
	}, nil
}

func (d BondDoc) ToBond(currency generic.Currency) (coverage.CoverageBond, error) {
	status, err := coverage.ParseBondStatus(d.Status)
	if err != nil {
		return coverage.CoverageBond{}, fmt.Errorf("%w: status: %v", ErrMalformedDocument, err)
	}
	b := coverage.CoverageBond{
		ID:                coverage.BondID(d.ID),
		BondType:          d.BondType,
		Status:            status,
		CoveredMonths:     d.CoveredMonths,
		TotalAmount:       toAmount(d.TotalAmount, currency),
		BondNumber:        d.BondNumber,
		PredecessorBondID: coverage.BondID(d.PredecessorBondID),
	}
	if b.CoverageStart, err = parseOptionalDate("coverage_start", d.CoverageStart); err != nil {
		return coverage.CoverageBond{}, err
	}
	if b.CoverageEnd, err = parseOptionalDate("coverage_end", d.CoverageEnd); err != nil {
		return coverage.CoverageBond{}, err
	}
	if b.SubmissionDate, err = parseOptionalDate("submission_date", d.SubmissionDate); err != nil {
		return coverage.CoverageBond{}, err
	}
	return b, nil
}

func (d BondDraftDoc) ToBondDraft(currency generic.Currency) (coverage.BondDraft, error) {
	draft := coverage.BondDraft{
		CoveredMonths: d.CoveredMonths,
		BondNumber:    d.BondNumber,
	}
	if d.TotalAmount != nil {
		amount := toAmount(*d.TotalAmount, currency)
		draft.TotalAmount = &amount
	}

	dates := []struct {
		field string
		value *string
		dst   **generic.TimePoint
	}{
		{"coverage_start", d.CoverageStart, &draft.CoverageStart},
		{"coverage_end", d.CoverageEnd, &draft.CoverageEnd},
		{"submission_date", d.SubmissionDate, &draft.SubmissionDate},
	}
	for _, f := range dates {
		if f.value == nil {
			continue
		}
		tp, err := parseDate(f.field, *f.value)
		if err != nil {
			return coverage.BondDraft{}, err
		}
		*f.dst = &tp
	}
	return draft, nil
}

func (d PaymentPeriodDoc) ToPaymentPeriod(currency generic.Currency) (coverage.PaymentPeriod, error) {
	start, err := parseDate("start_date", d.StartDate)
	if err != nil {
		return coverage.PaymentPeriod{}, err
	}
	end, err := parseDate("end_date", d.EndDate)
	if err != nil {
		return coverage.PaymentPeriod{}, err
	}
	iv, err := generic.NewInterval(start, end)
	if err != nil {
		return coverage.PaymentPeriod{}, err
	}
	method, err := coverage.ParsePaymentMethod(d.PaymentMethod)
	if err != nil {
		return coverage.PaymentPeriod{}, fmt.Errorf("%w: payment_method: %v", ErrMalformedDocument, err)
	}

	p := coverage.PaymentPeriod{
		ID:          coverage.PaymentPeriodID(d.ID),
		Interval:    iv,
		Amount:      toAmount(d.Amount, currency),
		Method:      method,
		IsGapPeriod: d.IsGapPeriod,
		ProductIDs:  toProductIDs(d.ProductIDs),
		Notes:       d.Notes,
		NeedsReview: d.NeedsReview,
	}
	if d.GapReason != "" {
		if p.GapReason, err = coverage.ParseGapReason(d.GapReason); err != nil {
			return coverage.PaymentPeriod{}, fmt.Errorf("%w: gap_reason: %v", ErrMalformedDocument, err)
		}
	}
	return p, nil
}

// =============================================================================
// ENCODING
// =============================================================================

// NewSnapshotDoc renders a session back into its document form.
func NewSnapshotDoc(s *coverage.Session) SnapshotDoc {
	d := SnapshotDoc{
		Currency:      string(s.Currency()),
		Rental:        NewRentalDoc(s.Rental),
		Deposit:       s.Deposit.Value.InexactFloat64(),
		DepositMethod: string(s.DepositMethod),
	}
	for _, b := range s.Bonds {
		d.Bonds = append(d.Bonds, NewBondDoc(b))
	}
	for _, p := range s.PaymentPeriods {
		d.PaymentPeriods = append(d.PaymentPeriods, NewPaymentPeriodDoc(p))
	}
	return d
}

func NewRentalDoc(r coverage.RentalPeriod) RentalDoc {
	return RentalDoc{
		ID:          string(r.ID),
		StartDate:   r.StartDate.String(),
		EndDate:     formatOptionalDate(r.EndDate),
		IsOpenEnded: r.IsOpenEnded,
		IsUrgent:    r.IsUrgent,
		ProductIDs:  fromProductIDs(r.ProductIDs),
	}
}

func NewBondDoc(b coverage.CoverageBond) BondDoc {
	return BondDoc{
		ID:                string(b.ID),
		BondType:          b.BondType,
		Status:            string(b.Status),
		CoverageStart:     formatOptionalDate(b.CoverageStart),
		CoverageEnd:       formatOptionalDate(b.CoverageEnd),
		CoveredMonths:     b.CoveredMonths,
		TotalAmount:       b.TotalAmount.Value.InexactFloat64(),
		BondNumber:        b.BondNumber,
		SubmissionDate:    formatOptionalDate(b.SubmissionDate),
		PredecessorBondID: string(b.PredecessorBondID),
	}
}

func NewPaymentPeriodDoc(p coverage.PaymentPeriod) PaymentPeriodDoc {
	return PaymentPeriodDoc{
		ID:            string(p.ID),
		StartDate:     p.Interval.Start.String(),
		EndDate:       formatOptionalDate(p.Interval.End),
		Amount:        p.Amount.Value.InexactFloat64(),
		PaymentMethod: string(p.Method),
		IsGapPeriod:   p.IsGapPeriod,
		GapReason:     string(p.GapReason),
		ProductIDs:    fromProductIDs(p.ProductIDs),
		Notes:         p.Notes,
		NeedsReview:   p.NeedsReview,
	}
}

// Encode writes v as indented JSON or YAML.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDate(field, s string) (generic.TimePoint, error) {
	if s == "" {
		return generic.TimePoint{}, fmt.Errorf("%w: %s is required", ErrMalformedDocument, field)
	}
	tp, err := generic.ParseDate(s)
	if err != nil {
		return generic.TimePoint{}, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, field, err)
	}
	return tp, nil
}

func parseOptionalDate(field, s string) (*generic.TimePoint, error) {
	if s == "" {
		return nil, nil
	}
	tp, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &tp, nil
}

func formatOptionalDate(tp *generic.TimePoint) string {
	if tp == nil {
		return ""
	}
	return tp.String()
}

func toAmount(v float64, currency generic.Currency) generic.Amount {
	return generic.NewAmountFromDecimal(toDecimal(v), currency)
}

func toProductIDs(ids []string) []coverage.ProductID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]coverage.ProductID, len(ids))
	for i, id := range ids {
		out[i] = coverage.ProductID(id)
	}
	return out
}

func fromProductIDs(ids []coverage.ProductID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
