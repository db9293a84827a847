// Package aggregate derives net worth and period totals from AppData in a
// single target currency.
package aggregate

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/services/fx"
	"github.com/bobmcallan/networth/internal/services/valuation"
)

// Engine computes totals on demand. It holds no state derived from the data
// it is given.
type Engine struct {
	fx  *fx.Table
	now func() time.Time // injectable clock for testing
}

// NewEngine returns an engine using table for conversion and the local
// wall clock for period boundaries.
func NewEngine(table *fx.Table) *Engine {
	return &Engine{fx: table, now: time.Now}
}

// Rates returns the conversion table in use.
func (e *Engine) Rates() *fx.Table {
	return e.fx
}

// NetWorth is the converted value of every stock, crypto holding, fixed
// income note and variable investment. Expenses and income are cash flow
// and never count.
func (e *Engine) NetWorth(data models.AppData, target models.Currency) (decimal.Decimal, error) {
	kinds, err := e.HoldingTotals(data, target)
	if err != nil {
		return decimal.Zero, err
	}
	return kinds.Total(), nil
}

// HoldingTotals is net worth split by holding kind.
func (e *Engine) HoldingTotals(data models.AppData, target models.Currency) (HoldingTotals, error) {
	var out HoldingTotals
	for _, s := range data.Stocks {
		v, err := e.convert(valuation.StockValue(s), s.Currency, target, "stock", s.ID)
		if err != nil {
			return HoldingTotals{}, err
		}
		out.Stocks = out.Stocks.Add(v)
	}
	for _, c := range data.Crypto {
		v, err := e.convert(valuation.CryptoValue(c), c.Currency, target, "crypto", c.ID)
		if err != nil {
			return HoldingTotals{}, err
		}
		out.Crypto = out.Crypto.Add(v)
	}
	for _, f := range data.FixedIncome {
		v, err := e.convert(valuation.FixedIncomeValue(f), f.Currency, target, "fixed income", f.ID)
		if err != nil {
			return HoldingTotals{}, err
		}
		out.FixedIncome = out.FixedIncome.Add(v)
	}
	for _, vi := range data.VariableInvestments {
		v, err := e.convert(valuation.VariableValue(vi), vi.Currency, target, "variable investment", vi.ID)
		if err != nil {
			return HoldingTotals{}, err
		}
		out.Variable = out.Variable.Add(v)
	}
	return out, nil
}

// TotalExpenses sums expenses dated within period.
func (e *Engine) TotalExpenses(data models.AppData, target models.Currency, period Period) (decimal.Decimal, error) {
	now := e.now()
	total := decimal.Zero
	for _, x := range data.Expenses {
		if !inPeriod(x.Date, period, now) {
			continue
		}
		v, err := e.convert(x.Amount, x.Currency, target, "expense", x.ID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}

// TotalIncome sums one-off income dated within period plus the
// contribution of every active recurring income.
func (e *Engine) TotalIncome(data models.AppData, target models.Currency, period Period) (decimal.Decimal, error) {
	now := e.now()
	total := decimal.Zero
	for _, in := range data.Incomes {
		if !inPeriod(in.Date, period, now) {
			continue
		}
		v, err := e.convert(in.Amount, in.Currency, target, "income", in.ID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	recurring, err := e.RecurringIncome(data, target, period)
	if err != nil {
		return decimal.Zero, err
	}
	return total.Add(recurring), nil
}

// RecurringIncome is the sum of RecurringContribution for period, each
// income converted to target first.
func (e *Engine) RecurringIncome(data models.AppData, target models.Currency, period Period) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range data.RecurringIncomes {
		if !r.IsActive {
			continue
		}
		v, err := e.convert(r.Amount, r.Currency, target, "recurring income", r.ID)
		if err != nil {
			return decimal.Zero, err
		}
		converted := r
		converted.Amount, converted.Currency = v, target
		total = total.Add(RecurringContribution(converted, period))
	}
	return total, nil
}

func (e *Engine) convert(amount decimal.Decimal, from, to models.Currency, kind, id string) (decimal.Decimal, error) {
	v, err := e.fx.Convert(amount, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %s: %w", kind, id, err)
	}
	return v, nil
}

// HoldingTotals is converted value per holding kind.
type HoldingTotals struct {
	Stocks      decimal.Decimal `json:"stocks"`
	Crypto      decimal.Decimal `json:"crypto"`
	FixedIncome decimal.Decimal `json:"fixed_income"`
	Variable    decimal.Decimal `json:"variable_investments"`
}

// Total is the sum of all kinds.
func (h HoldingTotals) Total() decimal.Decimal {
	return h.Stocks.Add(h.Crypto).Add(h.FixedIncome).Add(h.Variable)
}
