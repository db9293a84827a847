// Package valuation computes the present value of single holdings in their
// native currency.
package valuation

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Price is the per-unit price used for valuation: the current price when one
// is known, otherwise the purchase price. A known price of zero is used as is.
func Price(p models.Position) decimal.Decimal {
	if p.CurrentPrice.Valid {
		return p.CurrentPrice.Decimal
	}
	return p.PurchasePrice
}

// PositionValue is Price * Quantity.
func PositionValue(p models.Position) decimal.Decimal {
	return Price(p).Mul(p.Quantity)
}

func StockValue(s models.Stock) decimal.Decimal {
	return PositionValue(s.Position())
}

func CryptoValue(c models.Crypto) decimal.Decimal {
	return PositionValue(c.Position())
}

// VariableValue is the current value when known, otherwise the amount invested.
func VariableValue(v models.VariableInvestment) decimal.Decimal {
	if v.CurrentValue.Valid {
		return v.CurrentValue.Decimal
	}
	return v.Amount
}

// FixedIncomeValue is the principal. Interest is not accrued.
func FixedIncomeValue(f models.FixedIncome) decimal.Decimal {
	return f.Amount
}

// Performance is the gain or loss of a position in its native currency.
type Performance struct {
	Cost        decimal.Decimal `json:"cost"`
	Value       decimal.Decimal `json:"value"`
	Gain        decimal.Decimal `json:"gain"`
	GainPercent decimal.Decimal `json:"gain_percent"`
}

// Evaluate returns cost, value and gain for one position.
func Evaluate(p models.Position) Performance {
	cost := p.PurchasePrice.Mul(p.Quantity)
	value := PositionValue(p)
	return newPerformance(cost, value)
}

// Add combines two performances that share a currency.
func (p Performance) Add(o Performance) Performance {
	return newPerformance(p.Cost.Add(o.Cost), p.Value.Add(o.Value))
}

func newPerformance(cost, value decimal.Decimal) Performance {
	gain := value.Sub(cost)
	return Performance{
		Cost:        cost,
		Value:       value,
		Gain:        gain,
		GainPercent: GainPercent(gain, cost),
	}
}

// GainPercent is gain / cost * 100, or zero when cost is not positive.
func GainPercent(gain, cost decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() {
		return decimal.Zero
	}
	return gain.Div(cost).Mul(hundred)
}
