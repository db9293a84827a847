package aggregate

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
	"github.com/bobmcallan/networth/internal/services/valuation"
)

// Summary is the dashboard view of one AppData in one currency.
type Summary struct {
	Currency        models.Currency       `json:"currency"`
	AsOf            time.Time             `json:"as_of"`
	NetWorth        decimal.Decimal       `json:"net_worth"`
	Holdings        HoldingTotals         `json:"holdings"`
	MonthlyExpenses decimal.Decimal       `json:"monthly_expenses"`
	MonthlyIncome   decimal.Decimal       `json:"monthly_income"`
	YearlyExpenses  decimal.Decimal       `json:"yearly_expenses"`
	YearlyIncome    decimal.Decimal       `json:"yearly_income"`
	NetMonthly      decimal.Decimal       `json:"net_monthly"`
	Investments     valuation.Performance `json:"investments"`
	Categories      []CategoryTotal       `json:"expense_categories"`
	Counts          Counts                `json:"counts"`
}

// CategoryTotal is the current month's spending in one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Counts is the number of records of each kind.
type Counts struct {
	Expenses         int `json:"expenses"`
	Incomes          int `json:"incomes"`
	RecurringIncomes int `json:"recurring_incomes"`
	ActiveRecurring  int `json:"active_recurring"`
	Stocks           int `json:"stocks"`
	Crypto           int `json:"crypto"`
	FixedIncome      int `json:"fixed_income"`
	Variable         int `json:"variable_investments"`
}

// Summary computes every dashboard figure from data.
func (e *Engine) Summary(data models.AppData, target models.Currency) (*Summary, error) {
	s := &Summary{Currency: target, AsOf: e.now(), Counts: countRecords(data)}

	var err error
	if s.Holdings, err = e.HoldingTotals(data, target); err != nil {
		return nil, err
	}
	s.NetWorth = s.Holdings.Total()

	if s.MonthlyExpenses, err = e.TotalExpenses(data, target, PeriodMonth); err != nil {
		return nil, err
	}
	if s.MonthlyIncome, err = e.TotalIncome(data, target, PeriodMonth); err != nil {
		return nil, err
	}
	if s.YearlyExpenses, err = e.TotalExpenses(data, target, PeriodYear); err != nil {
		return nil, err
	}
	if s.YearlyIncome, err = e.TotalIncome(data, target, PeriodYear); err != nil {
		return nil, err
	}
	s.NetMonthly = s.MonthlyIncome.Sub(s.MonthlyExpenses)

	if s.Investments, err = e.Investments(data, target); err != nil {
		return nil, err
	}
	if s.Categories, err = e.ExpensesByCategory(data, target, PeriodMonth); err != nil {
		return nil, err
	}
	return s, nil
}

// Investments is the combined cost, value and gain of stock and crypto
// holdings in target.
func (e *Engine) Investments(data models.AppData, target models.Currency) (valuation.Performance, error) {
	positions := make([]models.Position, 0, len(data.Stocks)+len(data.Crypto))
	for _, s := range data.Stocks {
		positions = append(positions, s.Position())
	}
	for _, c := range data.Crypto {
		positions = append(positions, c.Position())
	}

	var total valuation.Performance
	for _, p := range positions {
		perf := valuation.Evaluate(p)
		cost, err := e.convert(perf.Cost, p.Currency, target, "position", p.Symbol)
		if err != nil {
			return valuation.Performance{}, err
		}
		value, err := e.convert(perf.Value, p.Currency, target, "position", p.Symbol)
		if err != nil {
			return valuation.Performance{}, err
		}
		total = total.Add(valuation.Performance{Cost: cost, Value: value})
	}
	return total, nil
}

// ExpensesByCategory totals expenses in period per category, largest first.
// Entries without a category are grouped under "Other".
func (e *Engine) ExpensesByCategory(data models.AppData, target models.Currency, period Period) ([]CategoryTotal, error) {
	now := e.now()
	byCategory := make(map[string]decimal.Decimal)
	for _, x := range data.Expenses {
		if !inPeriod(x.Date, period, now) {
			continue
		}
		v, err := e.convert(x.Amount, x.Currency, target, "expense", x.ID)
		if err != nil {
			return nil, err
		}
		cat := x.Category
		if cat == "" {
			cat = "Other"
		}
		byCategory[cat] = byCategory[cat].Add(v)
	}

	out := make([]CategoryTotal, 0, len(byCategory))
	for cat, amt := range byCategory {
		out = append(out, CategoryTotal{Category: cat, Amount: amt})
	}
	slices.SortFunc(out, func(a, b CategoryTotal) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out, nil
}

func countRecords(data models.AppData) Counts {
	c := Counts{
		Expenses:         len(data.Expenses),
		Incomes:          len(data.Incomes),
		RecurringIncomes: len(data.RecurringIncomes),
		Stocks:           len(data.Stocks),
		Crypto:           len(data.Crypto),
		FixedIncome:      len(data.FixedIncome),
		Variable:         len(data.VariableInvestments),
	}
	for _, r := range data.RecurringIncomes {
		if r.IsActive {
			c.ActiveRecurring++
		}
	}
	return c
}
