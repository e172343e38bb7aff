package reports

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"regexp"
	"strings"
	"time"

	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/pdfexport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Views returns the template engine used for ?format=html.
func Views() *html.Engine {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("alignRight", func(t Table, col int) bool { return t.rightAligned(col) })
	return engine
}

// Document is the format-independent shape of a report: a summary block
// followed by tables.
type Document struct {
	Title    string
	Subtitle string
	Summary  [][2]string
	Tables   []Table
}

type Table struct {
	Title      string
	Headers    []string
	Widths     []float64 // relative, PDF only
	Rows       [][]string
	RightAlign []int
}

func (t Table) rightAligned(col int) bool {
	for _, c := range t.RightAlign {
		if c == col {
			return true
		}
	}
	return false
}

const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
	FormatHTML = "html"
)

func parseFormat(c *fiber.Ctx) (string, error) {
	f := strings.ToLower(c.Query("format", FormatJSON))
	switch f {
	case FormatJSON, FormatPDF, FormatXLSX, FormatHTML:
		return f, nil
	}
	return "", fiber.NewError(fiber.StatusBadRequest, "format must be json, pdf, xlsx or html")
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

func fileName(title string) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if base == "" {
		base = "report"
	}
	return base
}

// respond sends data as JSON or renders doc in the requested format.
func respond(c *fiber.Ctx, format string, data any, doc func() Document) error {
	if format == FormatJSON {
		return c.JSON(data)
	}

	settings, err := database.CompanySettings(database.DB)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
	}
	d := doc()
	name := fileName(d.Title)

	switch format {
	case FormatHTML:
		return c.Render("report", fiber.Map{
			"Company":     settings,
			"Doc":         d,
			"GeneratedAt": time.Now().Format("2006-01-02 15:04"),
		})
	case FormatPDF:
		var buf bytes.Buffer
		if err := writePDF(&buf, settings, d); err != nil {
			zap.L().Error("report pdf failed", zap.String("report", d.Title), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not render report")
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, name))
		return c.Send(buf.Bytes())
	default:
		buf, err := writeXLSX(d)
		if err != nil {
			zap.L().Error("report xlsx failed", zap.String("report", d.Title), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not render report")
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
		return c.Send(buf.Bytes())
	}
}

func writePDF(buf *bytes.Buffer, settings models.CompanySettings, d Document) error {
	pdf := pdfexport.New(d.Title, settings)
	if d.Subtitle != "" {
		pdf.Paragraph(d.Subtitle)
	}
	if len(d.Summary) > 0 {
		pdf.KeyValues(d.Summary)
	}
	for _, t := range d.Tables {
		pdf.Heading(t.Title)
		if len(t.Rows) == 0 {
			pdf.Paragraph("No records.")
			continue
		}
		pdf.Table(t.Headers, t.Widths, t.Rows, t.RightAlign...)
	}
	return pdf.Write(buf)
}

// writeXLSX puts the summary on the first sheet and each table on its own.
func writeXLSX(d Document) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	first := sheetName("Summary", nil)
	if err := f.SetSheetName("Sheet1", first); err != nil {
		return nil, err
	}
	row := 1
	put := func(sheet string, r int, values []string, style int) error {
		cell, err := excelize.CoordinatesToCellName(1, r)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(values))
		for i, v := range values {
			vals[i] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
		if style != 0 && len(values) > 0 {
			end, _ := excelize.CoordinatesToCellName(len(values), r)
			return f.SetCellStyle(sheet, cell, end, style)
		}
		return nil
	}

	if err := put(first, row, []string{d.Title}, bold); err != nil {
		return nil, err
	}
	row++
	if d.Subtitle != "" {
		if err := put(first, row, []string{d.Subtitle}, 0); err != nil {
			return nil, err
		}
		row++
	}
	row++
	for _, kv := range d.Summary {
		if err := put(first, row, []string{kv[0], kv[1]}, 0); err != nil {
			return nil, err
		}
		row++
	}
	if err := f.SetColWidth(first, "A", "B", 28); err != nil {
		return nil, err
	}

	used := map[string]bool{first: true}
	for _, t := range d.Tables {
		sheet := sheetName(t.Title, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
		if err := put(sheet, 1, t.Headers, bold); err != nil {
			return nil, err
		}
		for i, r := range t.Rows {
			if err := put(sheet, i+2, r, 0); err != nil {
				return nil, err
			}
		}
	}

	return f.WriteToBuffer()
}

// sheetName trims to the 31 characters Excel allows and keeps names unique.
func sheetName(title string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return ' '
		}
		return r
	}, title)
	if clean == "" {
		clean = "Sheet"
	}
	if len(clean) > 31 {
		clean = clean[:31]
	}
	name := clean
	for i := 2; used[name]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		base := clean
		if len(base)+len(suffix) > 31 {
			base = base[:31-len(suffix)]
		}
		name = base + suffix
	}
	if used != nil {
		used[name] = true
	}
	return name
}
