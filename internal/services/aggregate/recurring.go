package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/bobmcallan/networth/internal/models"
)

var monthsPerYear = decimal.NewFromInt(12)

// RecurringContribution is what an active recurring income adds to a
// period's income, in its own currency. A month counts it once and a year
// twelve times. All-time also counts it once: there is no start date, so
// the number of months it has run is unknown.
func RecurringContribution(r models.RecurringIncome, period Period) decimal.Decimal {
	if !r.IsActive {
		return decimal.Zero
	}
	return r.Amount.Mul(periodMultiplier(period))
}

func periodMultiplier(period Period) decimal.Decimal {
	if period == PeriodYear {
		return monthsPerYear
	}
	return decimal.NewFromInt(1)
}
