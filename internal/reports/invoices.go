package reports

import (
	"fmt"
	"sort"
	"time"

	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/invoices"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/pdfexport"

	"github.com/gofiber/fiber/v2"
)

type StatusCounts struct {
	Draft     int `json:"draft"`
	Sent      int `json:"sent"`
	Paid      int `json:"paid"`
	Overdue   int `json:"overdue"`
	Cancelled int `json:"cancelled"`
}

type ClientTotal struct {
	PlaceID  uint    `json:"place_id"`
	Name     string  `json:"name"`
	City     string  `json:"city"`
	Invoices int     `json:"invoices"`
	Billed   float64 `json:"billed"`
	Paid     float64 `json:"paid"`
}

type InvoiceSummary struct {
	TotalInvoices      int           `json:"total_invoices"`
	Counts             StatusCounts  `json:"counts"`
	TotalBilled        float64       `json:"total_billed"`
	TotalPaid          float64       `json:"total_paid"`
	TotalPending       float64       `json:"total_pending"`
	CurrentMonthBilled float64       `json:"current_month_billed"`
	CurrentMonthPaid   float64       `json:"current_month_paid"`
	TopClients         []ClientTotal `json:"top_clients"`

	currency string
}

// SummarizeInvoices aggregates invoices; now selects the current month.
// Billed totals include every invoice regardless of status.
func SummarizeInvoices(rows []models.Invoice, now time.Time) InvoiceSummary {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var billed, paid, pending, monthBilled, monthPaid []float64
	clients := map[uint]*ClientTotal{}
	clientBilled := map[uint][]float64{}
	clientPaid := map[uint][]float64{}

	s := InvoiceSummary{TotalInvoices: len(rows)}
	for _, inv := range rows {
		switch inv.Status {
		case models.InvoiceDraft:
			s.Counts.Draft++
		case models.InvoiceSent:
			s.Counts.Sent++
		case models.InvoicePaid:
			s.Counts.Paid++
		case models.InvoiceOverdue:
			s.Counts.Overdue++
		case models.InvoiceCancelled:
			s.Counts.Cancelled++
		}

		billed = append(billed, inv.Total)
		if inv.Status == models.InvoicePaid {
			paid = append(paid, inv.Total)
		}
		if inv.Status.Pending() {
			pending = append(pending, inv.Total)
		}
		if !inv.InvoiceDate.Before(monthStart) && inv.InvoiceDate.Before(monthEnd) {
			monthBilled = append(monthBilled, inv.Total)
			if inv.Status == models.InvoicePaid {
				monthPaid = append(monthPaid, inv.Total)
			}
		}

		ct, ok := clients[inv.PlaceID]
		if !ok {
			ct = &ClientTotal{PlaceID: inv.PlaceID, Name: inv.Place.Name, City: inv.Place.City}
			clients[inv.PlaceID] = ct
		}
		ct.Invoices++
		clientBilled[inv.PlaceID] = append(clientBilled[inv.PlaceID], inv.Total)
		if inv.Status == models.InvoicePaid {
			clientPaid[inv.PlaceID] = append(clientPaid[inv.PlaceID], inv.Total)
		}
	}

	s.TotalBilled = invoices.Sum(billed...)
	s.TotalPaid = invoices.Sum(paid...)
	s.TotalPending = invoices.Sum(pending...)
	s.CurrentMonthBilled = invoices.Sum(monthBilled...)
	s.CurrentMonthPaid = invoices.Sum(monthPaid...)

	s.TopClients = make([]ClientTotal, 0, len(clients))
	for id, ct := range clients {
		ct.Billed = invoices.Sum(clientBilled[id]...)
		ct.Paid = invoices.Sum(clientPaid[id]...)
		s.TopClients = append(s.TopClients, *ct)
	}
	sort.Slice(s.TopClients, func(a, b int) bool {
		if s.TopClients[a].Billed != s.TopClients[b].Billed {
			return s.TopClients[a].Billed > s.TopClients[b].Billed
		}
		return s.TopClients[a].PlaceID < s.TopClients[b].PlaceID
	})
	if len(s.TopClients) > 5 {
		s.TopClients = s.TopClients[:5]
	}
	return s
}

func (s InvoiceSummary) document() Document {
	money := func(v float64) string { return pdfexport.Money(s.currency, v) }
	top := Table{
		Title:      "Top clients",
		Headers:    []string{"Client", "City", "Invoices", "Billed", "Paid"},
		Widths:     []float64{5, 3, 2, 3.5, 3.5},
		RightAlign: []int{2, 3, 4},
	}
	for _, ct := range s.TopClients {
		top.Rows = append(top.Rows, []string{ct.Name, ct.City, fmt.Sprint(ct.Invoices), money(ct.Billed), money(ct.Paid)})
	}
	return Document{
		Title: "Invoice Summary",
		Summary: [][2]string{
			{"Invoices", fmt.Sprint(s.TotalInvoices)},
			{"Draft / Sent / Paid", fmt.Sprintf("%d / %d / %d", s.Counts.Draft, s.Counts.Sent, s.Counts.Paid)},
			{"Overdue / Cancelled", fmt.Sprintf("%d / %d", s.Counts.Overdue, s.Counts.Cancelled)},
			{"Total billed", money(s.TotalBilled)},
			{"Total paid", money(s.TotalPaid)},
			{"Pending", money(s.TotalPending)},
			{"Billed this month", money(s.CurrentMonthBilled)},
			{"Paid this month", money(s.CurrentMonthPaid)},
		},
		Tables: []Table{top},
	}
}

// GET /api/reports/invoices?format
func InvoiceSummaryHandler() fiber.Handler {
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

		var rows []models.Invoice
		if err := auth.Apply(database.DB.Preload("Place"), "branch_id", branchID).
			Order("invoice_date DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load invoices")
		}

		summary := SummarizeInvoices(rows, httputil.Today())
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
