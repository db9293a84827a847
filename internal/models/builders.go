package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QuantityPrecision is the number of decimal places kept on holding quantities.
const QuantityPrecision = 8

// Suggested categories offered by entry forms. Categories are free text;
// these lists are hints, not a closed set.
var (
	ExpenseCategories = []string{"Transport", "Shopping", "Bills", "Entertainment", "Healthcare", "Other"}
	IncomeCategories  = []string{"Salary", "Freelance", "Investment", "Business", "Rental", "Other"}
)

// ErrNonPositivePrice is returned when a quantity is derived from a money
// amount and the purchase price cannot divide it.
var ErrNonPositivePrice = errors.New("purchase price must be greater than zero")

// QuantityFromAmount derives a holding quantity from the total money spent.
func QuantityFromAmount(total, purchasePrice decimal.Decimal) (decimal.Decimal, error) {
	if !purchasePrice.IsPositive() {
		return decimal.Zero, ErrNonPositivePrice
	}
	return total.DivRound(purchasePrice, QuantityPrecision), nil
}

// NormalizeSymbol upper-cases and trims a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// NewStock builds a stock holding with a fresh ID.
func NewStock(symbol string, shares, purchasePrice decimal.Decimal, currency Currency) Stock {
	return Stock{
		ID:            uuid.NewString(),
		Symbol:        NormalizeSymbol(symbol),
		Shares:        shares.Round(QuantityPrecision),
		PurchasePrice: purchasePrice,
		Currency:      currency,
	}
}

// NewCrypto builds a crypto holding with a fresh ID.
func NewCrypto(symbol string, amount, purchasePrice decimal.Decimal, currency Currency) Crypto {
	return Crypto{
		ID:            uuid.NewString(),
		Symbol:        NormalizeSymbol(symbol),
		Amount:        amount.Round(QuantityPrecision),
		PurchasePrice: purchasePrice,
		Currency:      currency,
	}
}

func NewExpense(amount decimal.Decimal, currency Currency, description, category string, date Date) Expense {
	return Expense{ID: uuid.NewString(), Amount: amount, Currency: currency, Description: description, Category: category, Date: date}
}

func NewIncome(amount decimal.Decimal, currency Currency, description, category string, date Date) Income {
	return Income{ID: uuid.NewString(), Amount: amount, Currency: currency, Description: description, Category: category, Date: date}
}

func NewRecurringIncome(amount decimal.Decimal, currency Currency, description, category string, dayOfMonth int) RecurringIncome {
	return RecurringIncome{ID: uuid.NewString(), Amount: amount, Currency: currency, Description: description, Category: category, DayOfMonth: dayOfMonth, IsActive: true}
}

func NewFixedIncome(name string, amount, interestRate decimal.Decimal, maturity Date, currency Currency) FixedIncome {
	return FixedIncome{ID: uuid.NewString(), Name: name, Amount: amount, InterestRate: interestRate, MaturityDate: maturity, Currency: currency}
}

func NewVariableInvestment(name string, amount decimal.Decimal, currency Currency) VariableInvestment {
	return VariableInvestment{ID: uuid.NewString(), Name: name, Amount: amount, Currency: currency, Type: "other"}
}

// Validate checks every record for a supported currency, well formed dates
// and sane ranges.
func (d AppData) Validate() error {
	if problems := d.problems(); len(problems) > 0 {
		return problems[0].err
	}
	return nil
}

// ValidateChange is Validate for data derived from prev. Records that were
// already invalid in prev are tolerated, so a bad record loaded from
// storage does not block unrelated saves; the change may not introduce a
// new invalid record or break one that was valid.
func (d AppData) ValidateChange(prev AppData) error {
	known := make(map[string]bool)
	for _, p := range prev.problems() {
		known[p.key()] = true
	}
	for _, p := range d.problems() {
		if !known[p.key()] {
			return p.err
		}
	}
	return nil
}

type problem struct {
	kind string
	id   string
	err  error
}

func (p problem) key() string {
	return p.kind + "\x00" + p.id
}

// problems lists every invalid record, at most one entry per record.
func (d AppData) problems() []problem {
	var out []problem
	add := func(kind, id string, err error) {
		if err != nil {
			out = append(out, problem{kind: kind, id: id, err: err})
		}
	}

	if !d.BaseCurrency.IsSupported() {
		add("base currency", "", fmt.Errorf("base currency %q is not supported", d.BaseCurrency))
	}
	for _, e := range d.Expenses {
		add("expense", e.ID, checkEntry("expense", e.ID, e.Currency, e.Date))
	}
	for _, i := range d.Incomes {
		add("income", i.ID, checkEntry("income", i.ID, i.Currency, i.Date))
	}
	for _, r := range d.RecurringIncomes {
		add("recurring income", r.ID, checkRecurring(r))
	}
	for _, st := range d.Stocks {
		add("stock", st.ID, checkPosition("stock", st.ID, st.Position()))
	}
	for _, c := range d.Crypto {
		add("crypto", c.ID, checkPosition("crypto", c.ID, c.Position()))
	}
	for _, f := range d.FixedIncome {
		add("fixed income", f.ID, checkFixedIncome(f))
	}
	for _, v := range d.VariableInvestments {
		if !v.Currency.IsSupported() {
			add("variable investment", v.ID, fmt.Errorf("variable investment %s: unsupported currency %q", v.ID, v.Currency))
		}
	}
	return out
}

func checkRecurring(r RecurringIncome) error {
	if !r.Currency.IsSupported() {
		return fmt.Errorf("recurring income %s: unsupported currency %q", r.ID, r.Currency)
	}
	if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
		return fmt.Errorf("recurring income %s: day of month %d out of range 1-31", r.ID, r.DayOfMonth)
	}
	return nil
}

func checkFixedIncome(f FixedIncome) error {
	if !f.Currency.IsSupported() {
		return fmt.Errorf("fixed income %s: unsupported currency %q", f.ID, f.Currency)
	}
	if !f.MaturityDate.IsZero() {
		if err := f.MaturityDate.Validate(); err != nil {
			return fmt.Errorf("fixed income %s: %w", f.ID, err)
		}
	}
	return nil
}

func checkEntry(kind, id string, c Currency, date Date) error {
	if !c.IsSupported() {
		return fmt.Errorf("%s %s: unsupported currency %q", kind, id, c)
	}
	if err := date.Validate(); err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	return nil
}

func checkPosition(kind, id string, p Position) error {
	if p.Symbol == "" {
		return fmt.Errorf("%s %s: symbol is required", kind, id)
	}
	if !p.Currency.IsSupported() {
		return fmt.Errorf("%s %s: unsupported currency %q", kind, id, p.Currency)
	}
	return nil
}
