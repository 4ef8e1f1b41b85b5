package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// InterestMode is the compounding-period convention an exchange uses to turn
// elapsed time into borrowing-interest periods.
//
// The period policy is a fixed per-mode table, not derived from the mode name:
//
//	HOURSPER4   one full period is charged up front, then one per started
//	            4-hour window: periods = ceil(1 + hours/4). Kraken-style.
//	HOURSPERDAY elapsed time is rounded up to whole hours and expressed in
//	            days: periods = ceil(hours)/24. Binance-style daily rate.
type InterestMode string

const (
	InterestHoursPer4   InterestMode = "HOURSPER4"
	InterestHoursPerDay InterestMode = "HOURSPERDAY"
	InterestModeNone    InterestMode = "NONE"
)

var hoursPerDay = decimal.NewFromInt(24)

// Periods converts elapsed hours into the number of interest periods charged
// under this mode. Negative elapsed time counts as zero.
func (m InterestMode) Periods(hours float64) (decimal.Decimal, error) {
	if hours < 0 {
		hours = 0
	}
	switch m {
	case InterestHoursPer4:
		return decimal.NewFromFloat(math.Ceil(1 + hours/4)), nil
	case InterestHoursPerDay:
		return decimal.NewFromFloat(math.Ceil(hours)).Div(hoursPerDay), nil
	default:
		return decimal.Zero, ErrUnknownInterestMode
	}
}

// Valid reports whether the mode has a configured period policy.
func (m InterestMode) Valid() bool {
	return m == InterestHoursPer4 || m == InterestHoursPerDay
}

// accrueInterest computes borrowed * rate * periods(hours) in full precision.
func accrueInterest(borrowed, rate float64, hours float64, mode InterestMode) (decimal.Decimal, error) {
	if borrowed == 0 || rate == 0 {
		return decimal.Zero, nil
	}
	periods, err := mode.Periods(hours)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(borrowed).
		Mul(decimal.NewFromFloat(rate)).
		Mul(periods), nil
}
