// Package pdfexport renders simple A4 documents: a company header, headings,
// key/value blocks and tables.
package pdfexport

import (
	"fmt"
	"io"
	"strings"

	"sheriff-backend/internal/models"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	pageWidth   = 210.0
	margin      = 12.0
	usableWidth = pageWidth - 2*margin
	lineHeight  = 6.0
)

var printer = message.NewPrinter(language.English)

// Money formats an amount with thousands separators, e.g. "Rs. 12,500.00".
func Money(currency string, amount float64) string {
	label := strings.ToUpper(strings.TrimSpace(currency))
	switch label {
	case "", "PKR":
		label = "Rs."
	}
	return printer.Sprintf("%s %.2f", label, amount)
}

// Number formats an integer with thousands separators.
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// Percent formats a whole-number rate.
func Percent(rate int) string {
	return fmt.Sprintf("%d%%", rate)
}

type Document struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// New starts a portrait A4 document headed with the company details.
func New(title string, company models.CompanySettings) *Document {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(title, true)
	pdf.SetCreator(company.CompanyName, true)
	pdf.AddPage()

	d := &Document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(usableWidth, 9, d.tr(company.CompanyName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	if company.Tagline != "" {
		pdf.CellFormat(usableWidth, 5, d.tr(company.Tagline), "", 1, "L", false, 0, "")
	}
	contact := joinNonEmpty(" | ", company.Address, company.Phone, company.Email, company.Website)
	if contact != "" {
		pdf.CellFormat(usableWidth, 5, d.tr(contact), "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)

	pdf.SetDrawColor(180, 180, 180)
	y := pdf.GetY() + 2
	pdf.Line(margin, y, pageWidth-margin, y)
	pdf.SetY(y + 4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(usableWidth, 8, d.tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	return d
}

func (d *Document) Heading(text string) {
	d.pdf.Ln(3)
	d.pdf.SetFont("Helvetica", "B", 11)
	d.pdf.CellFormat(usableWidth, 7, d.tr(text), "", 1, "L", false, 0, "")
}

func (d *Document) Paragraph(text string) {
	d.pdf.SetFont("Helvetica", "", 9)
	d.pdf.MultiCell(usableWidth, 5, d.tr(text), "", "L", false)
}

// KeyValues prints label/value pairs in two columns.
func (d *Document) KeyValues(pairs [][2]string) {
	for _, p := range pairs {
		d.pdf.SetFont("Helvetica", "B", 9)
		d.pdf.CellFormat(45, lineHeight, d.tr(p[0]), "", 0, "L", false, 0, "")
		d.pdf.SetFont("Helvetica", "", 9)
		d.pdf.CellFormat(usableWidth-45, lineHeight, d.tr(p[1]), "", 1, "L", false, 0, "")
	}
}

// Table draws a bordered table. widths are relative and scaled to the page.
// Columns listed in rightAlign are right aligned.
func (d *Document) Table(headers []string, widths []float64, rows [][]string, rightAlign ...int) {
	cols := scale(widths, len(headers))
	right := make(map[int]bool, len(rightAlign))
	for _, i := range rightAlign {
		right[i] = true
	}

	header := func() {
		d.pdf.SetFont("Helvetica", "B", 9)
		d.pdf.SetFillColor(230, 233, 240)
		for i, h := range headers {
			d.pdf.CellFormat(cols[i], 7, d.tr(h), "1", 0, "C", true, 0, "")
		}
		d.pdf.Ln(-1)
	}

	header()
	d.pdf.SetFont("Helvetica", "", 9)
	_, pageHeight := d.pdf.GetPageSize()
	for _, row := range rows {
		if d.pdf.GetY()+lineHeight > pageHeight-margin {
			d.pdf.AddPage()
			header()
			d.pdf.SetFont("Helvetica", "", 9)
		}
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			align := "L"
			if right[i] {
				align = "R"
			}
			d.pdf.CellFormat(cols[i], lineHeight, d.tr(fit(cell, cols[i])), "1", 0, align, false, 0, "")
		}
		d.pdf.Ln(-1)
	}
	if len(rows) == 0 {
		d.pdf.SetFont("Helvetica", "I", 9)
		d.pdf.CellFormat(usableWidth, lineHeight, "No records", "1", 1, "C", false, 0, "")
	}
}

// Totals prints right-aligned label/value lines, the last one in bold.
func (d *Document) Totals(lines [][2]string) {
	d.pdf.Ln(2)
	for i, l := range lines {
		style := ""
		if i == len(lines)-1 {
			style = "B"
		}
		d.pdf.SetFont("Helvetica", style, 10)
		d.pdf.CellFormat(usableWidth-45, lineHeight, d.tr(l[0]), "", 0, "R", false, 0, "")
		d.pdf.CellFormat(45, lineHeight, d.tr(l[1]), "", 1, "R", false, 0, "")
	}
}

func (d *Document) Write(w io.Writer) error {
	return d.pdf.Output(w)
}

func scale(widths []float64, n int) []float64 {
	if len(widths) != n {
		widths = make([]float64, n)
		for i := range widths {
			widths[i] = 1
		}
	}
	var sum float64
	for _, w := range widths {
		sum += w
	}
	out := make([]float64, n)
	for i, w := range widths {
		out[i] = usableWidth * w / sum
	}
	return out
}

// fit truncates text that would overflow a cell of width mm.
func fit(s string, width float64) string {
	limit := int(width / 1.9)
	if limit < 4 || len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
