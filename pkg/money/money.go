// Package money renders stored minor-unit amounts.
package money

import (
	"github.com/shopspring/decimal"
)

// Amount is a minor-unit value paired with its currency rendering.
type Amount struct {
	Minor    int64  `json:"minor"`
	Display  string `json:"display"`
	Currency string `json:"currency"`
}

// Formatter converts minor units for a single currency.
type Formatter struct {
	currency string
	exponent int32
}

// NewFormatter returns a formatter for currency with exponent decimal places.
func NewFormatter(currency string, exponent int32) Formatter {
	if exponent < 0 {
		exponent = 0
	}
	return Formatter{currency: currency, exponent: exponent}
}

// Decimal converts minor units to a major-unit decimal.
func (f Formatter) Decimal(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-f.exponent)
}

// Format renders minor units with a fixed number of decimals.
func (f Formatter) Format(minor int64) string {
	return f.Decimal(minor).StringFixed(f.exponent)
}

// Amount bundles the raw value with its rendering.
func (f Formatter) Amount(minor int64) Amount {
	return Amount{Minor: minor, Display: f.Format(minor), Currency: f.currency}
}

// Currency reports the ISO currency code.
func (f Formatter) Currency() string {
	return f.currency
}

// Float returns the major-unit value as a float64 for analytics sinks.
func (f Formatter) Float(minor int64) float64 {
	v, _ := f.Decimal(minor).Float64()
	return v
}
