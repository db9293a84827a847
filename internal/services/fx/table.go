// Package fx converts amounts between the supported currencies using a
// static rate table.
package fx

import (
	"errors"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
)

// Reference is the currency every rate is expressed in.
const Reference = models.USD

// ErrUnsupportedCurrency is returned for a code that has no rate.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// DefaultRates is the value of one unit of each currency in USD.
var DefaultRates = map[models.Currency]decimal.Decimal{
	models.USD: decimal.NewFromInt(1),
	models.COP: decimal.RequireFromString("0.00024"),
	models.EUR: decimal.RequireFromString("1.08"),
	models.GBP: decimal.RequireFromString("1.27"),
	models.JPY: decimal.RequireFromString("0.0067"),
	models.CAD: decimal.RequireFromString("0.74"),
	models.AUD: decimal.RequireFromString("0.66"),
}

// divisionPrecision bounds the quotient digits of a conversion; results are
// rounded only for display.
const divisionPrecision = 16

// Table is an immutable set of rates. The zero value is not usable; build
// one with NewTable or Default.
type Table struct {
	rates map[models.Currency]decimal.Decimal
}

// NewTable validates rates and returns a table holding a copy of them.
func NewTable(rates map[models.Currency]decimal.Decimal) (*Table, error) {
	ref, ok := rates[Reference]
	if !ok || !ref.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("rate table must define %s = 1", Reference)
	}
	for c, r := range rates {
		if !r.IsPositive() {
			return nil, fmt.Errorf("rate for %s must be positive, got %s", c, r)
		}
	}
	return &Table{rates: maps.Clone(rates)}, nil
}

// Default returns the table built from DefaultRates.
func Default() *Table {
	t, err := NewTable(DefaultRates)
	if err != nil {
		panic(err)
	}
	return t
}

// WithRates returns a new table with the given rates replaced or added.
func (t *Table) WithRates(updates map[models.Currency]decimal.Decimal) (*Table, error) {
	merged := maps.Clone(t.rates)
	maps.Copy(merged, updates)
	return NewTable(merged)
}

// Rate returns the USD value of one unit of c.
func (t *Table) Rate(c models.Currency) (decimal.Decimal, error) {
	r, ok := t.rates[c]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, c)
	}
	return r, nil
}

// Convert returns amount * rate[from] / rate[to]. The amount is returned
// untouched when from and to are the same supported currency.
func (t *Table) Convert(amount decimal.Decimal, from, to models.Currency) (decimal.Decimal, error) {
	fromRate, err := t.Rate(from)
	if err != nil {
		return decimal.Zero, err
	}
	toRate, err := t.Rate(to)
	if err != nil {
		return decimal.Zero, err
	}
	if from == to {
		return amount, nil
	}
	return amount.Mul(fromRate).DivRound(toRate, divisionPrecision), nil
}

// Currencies lists the currencies the table can convert.
func (t *Table) Currencies() []models.Currency {
	out := make([]models.Currency, 0, len(t.rates))
	for _, c := range models.SupportedCurrencies {
		if _, ok := t.rates[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
