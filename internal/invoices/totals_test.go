package invoices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	lines, totals, err := Compute([]LineInput{
		{Description: "Day shift guard", Quantity: 2, UnitPrice: 10.005},
		{Description: "   ", Quantity: 5, UnitPrice: 100},
		{Description: "Supervisor visits", Quantity: 1.5, UnitPrice: 3.333},
	}, 16)
	require.NoError(t, err)

	require.Len(t, lines, 2, "lines without a description are dropped")
	assert.Equal(t, 1, lines[0].Position)
	assert.Equal(t, 2, lines[1].Position)
	assert.Equal(t, 20.01, lines[0].Amount)
	assert.Equal(t, 5.0, lines[1].Amount)

	assert.Equal(t, 25.01, totals.Subtotal)
	assert.Equal(t, 4.0, totals.TaxAmount)
	assert.Equal(t, 29.01, totals.Total)
}

func TestCompute_NoTax(t *testing.T) {
	_, totals, err := Compute([]LineInput{{Description: "Guards", Quantity: 30, UnitPrice: 1500}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 45000.0, totals.Subtotal)
	assert.Zero(t, totals.TaxAmount)
	assert.Equal(t, 45000.0, totals.Total)
}

func TestCompute_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines []LineInput
		rate  float64
		want  error
	}{
		{"no lines", nil, 0, ErrNoLineItems},
		{"only blank lines", []LineInput{{Description: " ", Quantity: 1, UnitPrice: 1}}, 0, ErrNoLineItems},
		{"zero quantity", []LineInput{{Description: "x", Quantity: 0, UnitPrice: 1}}, 0, ErrBadQuantity},
		{"negative price", []LineInput{{Description: "x", Quantity: 1, UnitPrice: -1}}, 0, ErrBadUnitPrice},
		{"negative tax", []LineInput{{Description: "x", Quantity: 1, UnitPrice: 1}}, -1, ErrBadTaxRate},
		{"tax over 100", []LineInput{{Description: "x", Quantity: 1, UnitPrice: 1}}, 100.5, ErrBadTaxRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Compute(tt.lines, tt.rate)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSum(t *testing.T) {
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 0.0, Sum())
}

func TestNumbering(t *testing.T) {
	d := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "INV-202601-", NumberPrefix("INV", d))
	assert.Equal(t, "INV-202601-0007", FormatNumber("INV", d, 7))
	assert.Equal(t, "SSG-202601-12345", FormatNumber("SSG", d, 12345))

	tests := []struct {
		number string
		seq    int
		ok     bool
	}{
		{"INV-202601-0007", 7, true},
		{"INV-202601-12345", 12345, true},
		{"INV-202602-0001", 0, false},
		{"INV-202601-abc", 0, false},
		{"INV-202601-0000", 0, false},
		{"INV-202601-", 0, false},
	}
	for _, tt := range tests {
		seq, ok := sequenceOf(tt.number, "INV-202601-")
		assert.Equal(t, tt.ok, ok, tt.number)
		assert.Equal(t, tt.seq, seq, tt.number)
	}
}
