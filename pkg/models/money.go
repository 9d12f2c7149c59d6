package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value as exchanged with the invoice backend.
// It decodes JSON numbers, numeric strings, empty strings and null; anything
// unparseable decodes to zero.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// AmountFromString parses s, returning zero for empty or invalid input.
func AmountFromString(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}
	}
	return Amount{Decimal: d}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = AmountFromString(strings.Trim(string(b), `"`))
	return nil
}

// Round2 rounds half away from zero to two decimal places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Floor0 is the presentation form of a monetary value: rounded to two
// places and never below zero.
func Floor0(d decimal.Decimal) decimal.Decimal {
	r := d.Round(2)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// FormatMoney renders non-positive values as "0.00" and everything else
// with exactly two decimals.
func FormatMoney(d decimal.Decimal) string {
	if !d.IsPositive() {
		return "0.00"
	}
	return d.StringFixed(2)
}

// ParsePercent returns the numeric value of a percentage label such as "18%".
// Empty or invalid input yields zero.
func ParsePercent(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
