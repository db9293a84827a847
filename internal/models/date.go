package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateFormat is the on-disk layout of a Date.
const DateFormat = "2006-01-02"

// Date is a calendar date stored as YYYY-MM-DD. It carries no time of day
// and no zone; components are read as plain integers so a date never shifts
// across a day boundary when compared with a local clock.
type Date string

// NewDate formats year, month and day as a Date.
func NewDate(year int, month time.Month, day int) Date {
	return Date(fmt.Sprintf("%04d-%02d-%02d", year, int(month), day))
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Parts splits the date into integer year, month and day.
func (d Date) Parts() (year int, month time.Month, day int, err error) {
	fields := strings.Split(string(d), "-")
	if len(fields) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", string(d))
	}
	y, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in date %q", string(d))
	}
	m, err := strconv.Atoi(fields[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, 0, fmt.Errorf("invalid month in date %q", string(d))
	}
	dd, err := strconv.Atoi(fields[2])
	if err != nil || dd < 1 || dd > daysIn(time.Month(m), y) {
		return 0, 0, 0, fmt.Errorf("invalid day in date %q", string(d))
	}
	return y, time.Month(m), dd, nil
}

// Validate returns an error when the date is not a real YYYY-MM-DD day.
func (d Date) Validate() error {
	_, _, _, err := d.Parts()
	return err
}

// IsZero reports an unset date.
func (d Date) IsZero() bool {
	return d == ""
}

func (d Date) String() string {
	return string(d)
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
