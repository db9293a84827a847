package aggregate

import (
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/networth/internal/models"
)

// Period scopes income and expense totals.
type Period string

const (
	PeriodAll   Period = ""
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod accepts "", "all", "month" and "year".
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return PeriodAll, nil
	case "month":
		return PeriodMonth, nil
	case "year":
		return PeriodYear, nil
	}
	return PeriodAll, fmt.Errorf("unknown period %q", s)
}

// inPeriod compares the stored calendar date with now's calendar fields in
// now's location. The date itself is never placed in a time zone.
// Unparseable dates only count towards all-time totals.
func inPeriod(date models.Date, period Period, now time.Time) bool {
	if period == PeriodAll {
		return true
	}
	y, m, _, err := date.Parts()
	if err != nil {
		return false
	}
	nowY, nowM, _ := now.Date()
	switch period {
	case PeriodMonth:
		return y == nowY && m == nowM
	case PeriodYear:
		return y == nowY
	}
	return false
}
