package decimal_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	dec "github.com/rezonia/fatoora/internal/decimal"
)

func TestNetFromGross(t *testing.T) {
	tests := []struct {
		name  string
		gross string
		rate  int64
		want  string
	}{
		{"standard rate", "57.50", 15, "50.00"},
		{"single unit", "28.75", 15, "25.00"},
		{"zero rate", "100.00", 0, "100.00"},
		{"five percent", "105.00", 5, "100.00"},
		{"rounding", "10.00", 15, "8.70"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dec.NetFromGross(
				decimal.RequireFromString(tt.gross),
				decimal.NewFromInt(tt.rate))
			assert.Equal(t, tt.want, dec.Format2(got))
		})
	}
}

func TestTaxFromGross(t *testing.T) {
	gross := decimal.RequireFromString("57.50")
	rate := decimal.NewFromInt(15)

	tax := dec.TaxFromGross(gross, rate)
	assert.Equal(t, "7.50", dec.Format2(tax))

	// net + tax reassembles the gross amount
	net := dec.NetFromGross(gross, rate)
	assert.True(t, net.Add(tax).Equal(gross))
}

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("57.50")

	assert.True(t, dec.WithinTolerance(a, decimal.RequireFromString("57.50")))
	assert.True(t, dec.WithinTolerance(a, decimal.RequireFromString("57.51")))
	assert.True(t, dec.WithinTolerance(a, decimal.RequireFromString("57.49")))
	assert.False(t, dec.WithinTolerance(a, decimal.RequireFromString("57.52")))
}

func TestFormat2(t *testing.T) {
	assert.Equal(t, "7.50", dec.Format2(decimal.RequireFromString("7.5")))
	assert.Equal(t, "57.00", dec.Format2(decimal.NewFromInt(57)))
}

func TestSum(t *testing.T) {
	values := []decimal.Decimal{
		decimal.RequireFromString("1.10"),
		decimal.RequireFromString("2.20"),
		decimal.RequireFromString("3.30"),
	}
	assert.Equal(t, "6.60", dec.Format2(dec.Sum(values)))
}
