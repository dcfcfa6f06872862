/*
Package factory converts external documents into engine values.

PURPOSE:
  The engine prices gaps through a coverage.PricingFunc and reconciles
  coverage.Session snapshots; neither knows where its inputs come from.
  This package builds them from documents an operator can edit:

    catalog.toml   -> Catalog -> coverage.PricingFunc
    snapshot.json  -> SnapshotDoc -> coverage.Session
    snapshot.yaml  -> SnapshotDoc -> coverage.Session
    Report         -> ReportDoc (JSON or YAML)

CATALOG SCHEMA (TOML):
  currency = "TND"
  default_monthly_rate = 300.0

  [[product]]
  id = "concentrator"
  name = "Oxygen concentrator"
  monthly_rate = 250.0

    [[product.rate_change]]
    from = 2025-03-01
    monthly_rate = 280.0

PRICING:
  The monthly rate of a rental is the sum of its products' rates in effect
  on the priced day. Products missing from the catalog, and rentals with no
  products, are priced at default_monthly_rate.

SEE ALSO:
  - coverage/gaps.go: PricingFunc and how gap amounts are prorated
  - snapshot.go: snapshot and report documents
*/
package factory

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/espace-elite/rental-engine/coverage"
	"github.com/espace-elite/rental-engine/generic"
	"github.com/shopspring/decimal"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// =============================================================================
// TOML SCHEMA TYPES
// =============================================================================

// CatalogTOML is the TOML representation of a price catalog.
type CatalogTOML struct {
	Currency           string        `toml:"currency"`
	DefaultMonthlyRate float64       `toml:"default_monthly_rate"`
	Products           []ProductTOML `toml:"product"`
}

// ProductTOML is one rentable product.
type ProductTOML struct {
	ID          string           `toml:"id"`
	Name        string           `toml:"name"`
	MonthlyRate float64          `toml:"monthly_rate"`
	RateChanges []RateChangeTOML `toml:"rate_change"`
}

// RateChangeTOML replaces a product's monthly rate from a given day on.
type RateChangeTOML struct {
	From        time.Time `toml:"from"`
	MonthlyRate float64   `toml:"monthly_rate"`
}

// =============================================================================
// CATALOG
// =============================================================================

type Rate struct {
	From    generic.TimePoint // zero for the base rate
	Monthly decimal.Decimal
}

type Product struct {
	ID    coverage.ProductID
	Name  string
	Rates []Rate // ascending by From; Rates[0] is the base rate
}

// RateOn returns the monthly rate in effect on day.
func (p Product) RateOn(day generic.TimePoint) decimal.Decimal {
	rate := p.Rates[0].Monthly
	for _, r := range p.Rates[1:] {
		if r.From.After(day) {
			break
		}
		rate = r.Monthly
	}
	return rate
}

type Catalog struct {
	Currency           generic.Currency
	DefaultMonthlyRate decimal.Decimal
	products           map[coverage.ProductID]Product
}

// LoadCatalog reads a TOML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(string(data))
}

// ParseCatalog parses a TOML catalog. Unknown keys are rejected.
func ParseCatalog(data string) (*Catalog, error) {
	var ct CatalogTOML
	md, err := toml.Decode(data, &ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %s", ErrInvalidCatalog, undecoded[0])
	}
	return FromTOML(ct)
}

// FromTOML converts CatalogTOML into a Catalog.
func FromTOML(ct CatalogTOML) (*Catalog, error) {
	c := &Catalog{
		Currency:           generic.Currency(ct.Currency),
		DefaultMonthlyRate: toDecimal(ct.DefaultMonthlyRate),
		products:           make(map[coverage.ProductID]Product, len(ct.Products)),
	}
	if c.Currency == "" {
		c.Currency = generic.CurrencyTND
	}
	if c.DefaultMonthlyRate.IsNegative() {
		return nil, fmt.Errorf("%w: default_monthly_rate is negative", ErrInvalidCatalog)
	}

	for _, pt := range ct.Products {
		p, err := parseProduct(pt)
		if err != nil {
			return nil, err
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %q", ErrInvalidCatalog, p.ID)
		}
		c.products[p.ID] = p
	}
	return c, nil
}

// Product looks up a product by id.
func (c *Catalog) Product(id coverage.ProductID) (Product, bool) {
	p, ok := c.products[id]
	return p, ok
}

// Products returns every product, ordered by id.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MonthlyRate is the combined monthly rate of products on day.
func (c *Catalog) MonthlyRate(products []coverage.ProductID, day generic.TimePoint) decimal.Decimal {
	if len(products) == 0 {
		return c.DefaultMonthlyRate
	}
	total := decimal.Zero
	for _, id := range products {
		p, ok := c.products[id]
		if !ok {
			total = total.Add(c.DefaultMonthlyRate)
			continue
		}
		total = total.Add(p.RateOn(day))
	}
	return total
}

// Pricing adapts the catalog to the engine's pricing callback.
func (c *Catalog) Pricing() coverage.PricingFunc {
	return c.MonthlyRate
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseProduct(pt ProductTOML) (Product, error) {
	if pt.ID == "" {
		return Product{}, fmt.Errorf("%w: product without id", ErrInvalidCatalog)
	}
	p := Product{
		ID:    coverage.ProductID(pt.ID),
		Name:  pt.Name,
		Rates: []Rate{{Monthly: toDecimal(pt.MonthlyRate)}},
	}
	for _, rc := range pt.RateChanges {
		if rc.From.IsZero() {
			return Product{}, fmt.Errorf("%w: product %q: rate change without a date", ErrInvalidCatalog, pt.ID)
		}
		p.Rates = append(p.Rates, Rate{From: generic.Day(rc.From), Monthly: toDecimal(rc.MonthlyRate)})
	}
	for _, r := range p.Rates {
		if r.Monthly.IsNegative() {
			return Product{}, fmt.Errorf("%w: product %q: negative monthly rate", ErrInvalidCatalog, pt.ID)
		}
	}

	changes := p.Rates[1:]
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].From.Before(changes[j].From) })
	for i := 1; i < len(changes); i++ {
		if changes[i].From.Equal(changes[i-1].From) {
			return Product{}, fmt.Errorf("%w: product %q: two rate changes on %s", ErrInvalidCatalog, pt.ID, changes[i].From)
		}
	}
	return p, nil
}

func toDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(generic.MoneyPlaces)
}
