package invoices

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/pdfexport"
)

// RenderPDF writes the printable invoice: company header, client, period,
// line items and totals.
func RenderPDF(w io.Writer, settings models.CompanySettings, inv models.Invoice) error {
	doc := pdfexport.New("Invoice "+inv.InvoiceNumber, settings)
	money := func(v float64) string { return pdfexport.Money(settings.Currency, v) }

	doc.KeyValues([][2]string{
		{"Invoice number", inv.InvoiceNumber},
		{"Status", strings.ToUpper(string(inv.Status))},
		{"Invoice date", httputil.FormatDate(inv.InvoiceDate)},
		{"Due date", httputil.FormatDate(inv.DueDate)},
		{"Service period", httputil.FormatDate(inv.PeriodStart) + " to " + httputil.FormatDate(inv.PeriodEnd)},
	})

	doc.Heading("Bill to")
	client := [][2]string{{"Client", inv.Place.Name}}
	if inv.Place.Address != "" || inv.Place.City != "" {
		client = append(client, [2]string{"Address", strings.Trim(inv.Place.Address+", "+inv.Place.City, ", ")})
	}
	if inv.Place.ContactPerson != "" {
		client = append(client, [2]string{"Contact", strings.TrimSpace(inv.Place.ContactPerson + " " + inv.Place.ContactPhone)})
	}
	doc.KeyValues(client)

	doc.Heading("Services")
	rows := make([][]string, 0, len(inv.LineItems))
	for _, l := range inv.LineItems {
		rows = append(rows, []string{
			strconv.Itoa(l.Position),
			l.Description,
			strconv.FormatFloat(l.Quantity, 'f', -1, 64),
			money(l.UnitPrice),
			money(l.Amount),
		})
	}
	doc.Table([]string{"#", "Description", "Qty", "Unit price", "Amount"}, []float64{1, 8, 2, 3.5, 3.5}, rows, 2, 3, 4)

	doc.Totals([][2]string{
		{"Subtotal", money(inv.Subtotal)},
		{fmt.Sprintf("Tax (%s%%)", strconv.FormatFloat(inv.TaxRate, 'f', -1, 64)), money(inv.TaxAmount)},
		{"Total", money(inv.Total)},
	})

	if inv.Notes != "" {
		doc.Heading("Notes")
		doc.Paragraph(inv.Notes)
	}
	return doc.Write(w)
}
