package decimal

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// tolerance is the rounding slack allowed when checking totals
var tolerance = decimal.NewFromFloat(0.01)

// FromInt creates decimal from int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromFloat creates decimal from float with 2-place rounding
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NetFromGross strips VAT from a gross (tax-inclusive) amount:
// gross / (1 + rate/100), rounded to 2 places
func NetFromGross(gross, ratePercent decimal.Decimal) decimal.Decimal {
	divisor := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	if divisor.IsZero() {
		return Zero
	}
	return gross.Div(divisor).Round(2)
}

// TaxFromGross returns the VAT portion of a gross amount:
// gross - NetFromGross(gross, rate)
func TaxFromGross(gross, ratePercent decimal.Decimal) decimal.Decimal {
	return gross.Sub(NetFromGross(gross, ratePercent)).Round(2)
}

// WithinTolerance reports whether a and b differ by at most 0.01
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// Format2 renders a decimal with exactly 2 fraction digits, the form
// required for monetary fields in the invoice document and QR payload
func Format2(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}
