package invoices

import (
	"errors"
	"strings"

	"sheriff-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNoLineItems  = errors.New("at least one line item with a description is required")
	ErrBadQuantity  = errors.New("line item quantity must be greater than zero")
	ErrBadUnitPrice = errors.New("line item unit price cannot be negative")
	ErrBadTaxRate   = errors.New("tax rate must be between 0 and 100")
)

type LineInput struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type Totals struct {
	Subtotal  float64
	TaxAmount float64
	Total     float64
}

var hundred = decimal.NewFromInt(100)

// Compute drops lines without a description, prices the rest and returns the
// rounded totals. Amounts are rounded to two places per line and again on
// the totals.
func Compute(lines []LineInput, taxRate float64) ([]models.InvoiceLineItem, Totals, error) {
	if taxRate < 0 || taxRate > 100 {
		return nil, Totals{}, ErrBadTaxRate
	}

	items := make([]models.InvoiceLineItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		desc := strings.TrimSpace(l.Description)
		if desc == "" {
			continue
		}
		if l.Quantity <= 0 {
			return nil, Totals{}, ErrBadQuantity
		}
		if l.UnitPrice < 0 {
			return nil, Totals{}, ErrBadUnitPrice
		}

		amount := decimal.NewFromFloat(l.Quantity).Mul(decimal.NewFromFloat(l.UnitPrice)).Round(2)
		subtotal = subtotal.Add(amount)

		items = append(items, models.InvoiceLineItem{
			Position:    len(items) + 1,
			Description: desc,
			Quantity:    l.Quantity,
			UnitPrice:   decimal.NewFromFloat(l.UnitPrice).Round(2).InexactFloat64(),
			Amount:      amount.InexactFloat64(),
		})
	}
	if len(items) == 0 {
		return nil, Totals{}, ErrNoLineItems
	}

	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Div(hundred).Round(2)
	return items, Totals{
		Subtotal:  subtotal.Round(2).InexactFloat64(),
		TaxAmount: tax.InexactFloat64(),
		Total:     subtotal.Add(tax).Round(2).InexactFloat64(),
	}, nil
}

// Sum adds invoice amounts without float drift.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}
