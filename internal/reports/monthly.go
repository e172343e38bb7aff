package reports

import (
	"fmt"
	"strconv"
	"time"

	"sheriff-backend/internal/attendance"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/invoices"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/pdfexport"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type MonthlySummary struct {
	Year              int     `json:"year"`
	Month             int     `json:"month"`
	MonthName         string  `json:"month_name"`
	TotalGuards       int64   `json:"total_guards"`
	ActiveAssignments int64   `json:"active_assignments"`
	TotalAttendance   int     `json:"total_attendance"`
	PresentDays       int     `json:"present_days"`
	AbsentDays        int     `json:"absent_days"`
	AttendanceRate    int     `json:"attendance_rate"`
	TotalRevenue      float64 `json:"total_revenue"`
	PendingInvoices   int64   `json:"pending_invoices"`
	PendingAmount     float64 `json:"pending_amount"`

	currency string
}

// parseMonth reads year and month, defaulting to the current month.
func parseMonth(c *fiber.Ctx) (int, time.Month, error) {
	now := httputil.Today()
	year, month := now.Year(), now.Month()
	if s := c.Query("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 2000 || y > 2100 {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid year")
		}
		year = y
	}
	if s := c.Query("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fiber.NewError(fiber.StatusBadRequest, "month must be between 1 and 12")
		}
		month = time.Month(m)
	}
	return year, month, nil
}

// Monthly runs the month's aggregate queries concurrently.
func Monthly(db *gorm.DB, branchID *uint, year int, month time.Month) (MonthlySummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	out := MonthlySummary{Year: year, Month: int(month), MonthName: month.String()}
	scoped := func(model any) *gorm.DB {
		return auth.Apply(db.Model(model), "branch_id", branchID)
	}

	var g errgroup.Group
	var summary attendance.Summary
	var paid, pending []float64

	g.Go(func() error {
		return scoped(&models.Guard{}).Where("status = ?", models.StatusActive).Count(&out.TotalGuards).Error
	})
	g.Go(func() error {
		// active during some day of the month
		return scoped(&models.Assignment{}).
			Where("status = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)", models.AssignmentActive, end, start).
			Count(&out.ActiveAssignments).Error
	})
	g.Go(func() error {
		var statuses []models.AttendanceStatus
		if err := scoped(&models.Attendance{}).
			Where("date BETWEEN ? AND ?", start, end).
			Pluck("status", &statuses).Error; err != nil {
			return err
		}
		for _, s := range statuses {
			summary.Add(s)
		}
		return nil
	})
	g.Go(func() error {
		return scoped(&models.Invoice{}).
			Where("status = ? AND invoice_date BETWEEN ? AND ?", models.InvoicePaid, start, end).
			Pluck("total", &paid).Error
	})
	g.Go(func() error {
		return scoped(&models.Invoice{}).
			Where("status IN ?", []models.InvoiceStatus{models.InvoiceSent, models.InvoiceOverdue}).
			Pluck("total", &pending).Error
	})
	if err := g.Wait(); err != nil {
		return MonthlySummary{}, fmt.Errorf("monthly summary: %w", err)
	}

	out.TotalAttendance = summary.Total
	out.PresentDays = summary.Present
	out.AbsentDays = summary.Absent
	out.AttendanceRate = summary.AttendanceRate
	out.TotalRevenue = invoices.Sum(paid...)
	out.PendingInvoices = int64(len(pending))
	out.PendingAmount = invoices.Sum(pending...)
	return out, nil
}

func (m MonthlySummary) document() Document {
	return Document{
		Title:    fmt.Sprintf("Monthly Summary %s %d", m.MonthName, m.Year),
		Subtitle: "Operations and billing for the month",
		Summary: [][2]string{
			{"Active guards", pdfexport.Number(m.TotalGuards)},
			{"Active assignments", pdfexport.Number(m.ActiveAssignments)},
			{"Attendance records", pdfexport.Number(int64(m.TotalAttendance))},
			{"Present", pdfexport.Number(int64(m.PresentDays))},
			{"Absent", pdfexport.Number(int64(m.AbsentDays))},
			{"Attendance rate", pdfexport.Percent(m.AttendanceRate)},
			{"Revenue (paid)", pdfexport.Money(m.currency, m.TotalRevenue)},
			{"Pending invoices", fmt.Sprintf("%d (%s)", m.PendingInvoices, pdfexport.Money(m.currency, m.PendingAmount))},
		},
	}
}

// GET /api/reports/monthly?year&month&format
func MonthlySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := parseFormat(c)
		if err != nil {
			return err
		}
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}
		year, month, err := parseMonth(c)
		if err != nil {
			return err
		}

		summary, err := Monthly(database.DB, branchID, year, month)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not build monthly summary")
		}
		if format != FormatJSON {
			settings, err := database.CompanySettings(database.DB)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
			}
			summary.currency = settings.Currency
		}
		return respond(c, format, summary, summary.document)
	}
}
