package domain

import "github.com/shopspring/decimal"

// Monetary outputs are rounded to 8 fractional digits at the API boundary;
// internal arithmetic keeps full decimal precision.
const moneyPlaces = 8

// Round8 rounds a monetary value to 8 fractional digits.
func Round8(v float64) float64 {
	return decimal.NewFromFloat(v).Round(moneyPlaces).InexactFloat64()
}

func round8d(v decimal.Decimal) float64 {
	return v.Round(moneyPlaces).InexactFloat64()
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
