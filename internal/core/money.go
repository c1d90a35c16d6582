package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AmountDue is the share of amount currently due at the given progress
// percentage, rounded to cents.
func AmountDue(amount, progress float64) float64 {
	due := decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(progress)).
		Div(hundred).
		Round(2)
	f, _ := due.Float64()
	return f
}

// ParseAmount parses a decimal string. Thousands separators (",") and
// surrounding spaces are ignored; "1,234.50" is 1234.5.
func ParseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	return f, nil
}

// Multiply returns a*b rounded to cents.
func Multiply(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(2).Float64()
	return f
}
