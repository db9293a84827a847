package models

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a one-off outgoing ledger entry.
type Expense struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        Date            `json:"date"`
}

// Income is a one-off incoming ledger entry.
type Income struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Date        Date            `json:"date"`
}

// RecurringIncome repeats every month on DayOfMonth. It has no start or end
// date; it contributes to totals only while IsActive.
type RecurringIncome struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	DayOfMonth  int             `json:"day_of_month"`
	IsActive    bool            `json:"is_active"`
}

// Stock is an equity holding. CurrentPrice is absent until a quote arrives.
type Stock struct {
	ID            string              `json:"id"`
	Symbol        string              `json:"symbol"`
	Shares        decimal.Decimal     `json:"shares"`
	PurchasePrice decimal.Decimal     `json:"purchase_price"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	Currency      Currency            `json:"currency"`
}

// Crypto is a crypto-asset holding.
type Crypto struct {
	ID            string              `json:"id"`
	Symbol        string              `json:"symbol"`
	Amount        decimal.Decimal     `json:"amount"`
	PurchasePrice decimal.Decimal     `json:"purchase_price"`
	CurrentPrice  decimal.NullDecimal `json:"current_price"`
	Currency      Currency            `json:"currency"`
}

// FixedIncome is a note or deposit valued at its principal. InterestRate is
// a percentage kept for display; no accrual schedule is modelled.
type FixedIncome struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	MaturityDate Date            `json:"maturity_date,omitempty"`
	Currency     Currency        `json:"currency"`
}

// VariableInvestment is any other asset with an optional current value.
type VariableInvestment struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Amount       decimal.Decimal     `json:"amount"`
	CurrentValue decimal.NullDecimal `json:"current_value"`
	Currency     Currency            `json:"currency"`
	Type         string              `json:"type"`
}

// Position is the common view of a per-unit holding (stock or crypto).
type Position struct {
	Symbol        string
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	CurrentPrice  decimal.NullDecimal
	Currency      Currency
}

// Position returns the stock as a Position.
func (s Stock) Position() Position {
	return Position{Symbol: s.Symbol, Quantity: s.Shares, PurchasePrice: s.PurchasePrice, CurrentPrice: s.CurrentPrice, Currency: s.Currency}
}

// Position returns the crypto holding as a Position.
func (c Crypto) Position() Position {
	return Position{Symbol: c.Symbol, Quantity: c.Amount, PurchasePrice: c.PurchasePrice, CurrentPrice: c.CurrentPrice, Currency: c.Currency}
}

// Settings holds user preferences persisted with the data set.
type Settings struct {
	AutoUpdatePrices bool `json:"auto_update_prices"`
}

// AppData is the entire persisted state of one user. It is saved and
// loaded as a unit; there is no partial save of one collection.
type AppData struct {
	Expenses            []Expense            `json:"expenses"`
	Incomes             []Income             `json:"incomes"`
	RecurringIncomes    []RecurringIncome    `json:"recurring_incomes"`
	Stocks              []Stock              `json:"stocks"`
	Crypto              []Crypto             `json:"crypto"`
	FixedIncome         []FixedIncome        `json:"fixed_income"`
	VariableInvestments []VariableInvestment `json:"variable_investments"`
	BaseCurrency        Currency             `json:"base_currency"`
	Settings            Settings             `json:"settings"`
}

// DefaultAppData is the state of a user with nothing stored.
func DefaultAppData() AppData {
	return AppData{
		Expenses:            []Expense{},
		Incomes:             []Income{},
		RecurringIncomes:    []RecurringIncome{},
		Stocks:              []Stock{},
		Crypto:              []Crypto{},
		FixedIncome:         []FixedIncome{},
		VariableInvestments: []VariableInvestment{},
		BaseCurrency:        USD,
		Settings:            Settings{AutoUpdatePrices: true},
	}
}

// UnmarshalJSON decodes on top of DefaultAppData so documents written by
// older versions (no incomes, no settings) pick up the defaults.
func (d *AppData) UnmarshalJSON(b []byte) error {
	type plain AppData
	p := plain(DefaultAppData())
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = AppData(p)
	d.normalize()
	return nil
}

func (d *AppData) normalize() {
	if d.Expenses == nil {
		d.Expenses = []Expense{}
	}
	if d.Incomes == nil {
		d.Incomes = []Income{}
	}
	if d.RecurringIncomes == nil {
		d.RecurringIncomes = []RecurringIncome{}
	}
	if d.Stocks == nil {
		d.Stocks = []Stock{}
	}
	if d.Crypto == nil {
		d.Crypto = []Crypto{}
	}
	if d.FixedIncome == nil {
		d.FixedIncome = []FixedIncome{}
	}
	if d.VariableInvestments == nil {
		d.VariableInvestments = []VariableInvestment{}
	}
	if d.BaseCurrency == "" {
		d.BaseCurrency = USD
	}
}

// Clone returns a copy that shares no slice storage with d.
// decimal values are immutable and safe to share.
func (d AppData) Clone() AppData {
	c := d
	c.Expenses = slices.Clone(d.Expenses)
	c.Incomes = slices.Clone(d.Incomes)
	c.RecurringIncomes = slices.Clone(d.RecurringIncomes)
	c.Stocks = slices.Clone(d.Stocks)
	c.Crypto = slices.Clone(d.Crypto)
	c.FixedIncome = slices.Clone(d.FixedIncome)
	c.VariableInvestments = slices.Clone(d.VariableInvestments)
	c.normalize()
	return c
}

func (d AppData) WithExpenses(v []Expense) AppData {
	c := d.Clone()
	c.Expenses = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithIncomes(v []Income) AppData {
	c := d.Clone()
	c.Incomes = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithRecurringIncomes(v []RecurringIncome) AppData {
	c := d.Clone()
	c.RecurringIncomes = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithStocks(v []Stock) AppData {
	c := d.Clone()
	c.Stocks = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithCrypto(v []Crypto) AppData {
	c := d.Clone()
	c.Crypto = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithFixedIncome(v []FixedIncome) AppData {
	c := d.Clone()
	c.FixedIncome = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithVariableInvestments(v []VariableInvestment) AppData {
	c := d.Clone()
	c.VariableInvestments = slices.Clone(v)
	c.normalize()
	return c
}

func (d AppData) WithBaseCurrency(cur Currency) AppData {
	c := d.Clone()
	c.BaseCurrency = cur
	return c
}

func (d AppData) WithSettings(s Settings) AppData {
	c := d.Clone()
	c.Settings = s
	return c
}

// HoldingCount is the number of holdings that contribute to net worth.
func (d AppData) HoldingCount() int {
	return len(d.Stocks) + len(d.Crypto) + len(d.FixedIncome) + len(d.VariableInvestments)
}

// Snapshot is a versioned copy of AppData read from the remote store.
type Snapshot struct {
	Data      AppData   `json:"data"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}
