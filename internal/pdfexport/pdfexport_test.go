package pdfexport

import (
	"bytes"
	"testing"

	"sheriff-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	assert.Equal(t, "Rs. 1,234,567.50", Money("PKR", 1234567.5))
	assert.Equal(t, "Rs. 0.00", Money("", 0))
	assert.Equal(t, "USD 99.90", Money("usd", 99.9))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "12,500", Number(12500))
	assert.Equal(t, "75%", Percent(75))
}

func TestDocument_Write(t *testing.T) {
	doc := New("Monthly Summary", models.DefaultCompanySettings())
	doc.Heading("Totals")
	doc.KeyValues([][2]string{{"Guards", "12"}, {"Rate", "90%"}})
	doc.Table([]string{"Name", "Amount"}, []float64{3, 1}, [][]string{{"Alpha Plaza", Money("PKR", 1500)}}, 1)
	doc.Table([]string{"Empty"}, nil, nil)
	doc.Totals([][2]string{{"Subtotal", "1"}, {"Total", "1"}})

	var buf bytes.Buffer
	require.NoError(t, doc.Write(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestFit(t *testing.T) {
	assert.Equal(t, "short", fit("short", 40))
	long := fit("a very long description that will not fit", 20)
	assert.LessOrEqual(t, len(long), 10)
	assert.Contains(t, long, "...")
}
