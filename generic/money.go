/*
money.go - Monetary amounts for rentals, bonds and payment periods

PURPOSE:
  All money in the engine flows through Amount so that rounding happens in
  one place and no float ever touches a total.

KEY CONCEPTS:
  - Amount: a decimal value labelled with a currency code
  - ProRata: monthly rate -> amount for N days (30-day month convention)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal, never float64
  2. No conversion: the currency is a label; adding two amounts keeps the
     left-hand label and never converts
  3. Rounding: only at the edge (ProRata rounds to MoneyPlaces)

USAGE:
  rate := generic.NewAmount(300, generic.CurrencyTND)
  owed := generic.ProRata(rate, 59) // 590.000 TND
*/
package generic

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Decimal value with a currency label
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

const (
	CurrencyTND Currency = "TND"
)

// MoneyPlaces is the rounding scale for computed amounts (millimes).
const MoneyPlaces int32 = 3

// DaysPerBillingMonth is the divisor used to turn a monthly rate into a daily one.
const DaysPerBillingMonth = 30

func NewAmount(value float64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewAmountFromInt(value int64, currency Currency) Amount {
	return Amount{Value: decimal.NewFromInt(value), Currency: currency}
}

func NewAmountFromDecimal(value decimal.Decimal, currency Currency) Amount {
	return Amount{Value: value, Currency: currency}
}

func ZeroAmount(currency Currency) Amount {
	return Amount{Value: decimal.Zero, Currency: currency}
}

// ParseAmount parses a decimal string such as "150.500".
func ParseAmount(value string, currency Currency) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, fmt.Errorf("amount %q: %w", value, err)
	}
	return Amount{Value: d, Currency: currency}, nil
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.Currency} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.Currency} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.Currency} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }

func (a Amount) String() string {
	return a.Value.StringFixed(MoneyPlaces) + " " + string(a.Currency)
}

// ProRata converts a monthly amount into the amount owed for `days` days.
// Multiplication happens before division to keep exact results exact.
func ProRata(monthly Amount, days int) Amount {
	v := monthly.Value.
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(DaysPerBillingMonth)).
		Round(MoneyPlaces)
	return Amount{Value: v, Currency: monthly.Currency}
}

// SumAmounts adds amounts, labelling the result with `currency`.
func SumAmounts(currency Currency, amounts ...Amount) Amount {
	total := ZeroAmount(currency)
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
