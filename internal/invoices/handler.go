package invoices

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LineItemResponse struct {
	ID          uint    `json:"id"`
	Position    int     `json:"position"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

type InvoiceResponse struct {
	ID            uint                 `json:"id"`
	BranchID      uint                 `json:"branch_id"`
	PlaceID       uint                 `json:"place_id"`
	PlaceName     string               `json:"place_name"`
	InvoiceNumber string               `json:"invoice_number"`
	InvoiceDate   string               `json:"invoice_date"`
	DueDate       string               `json:"due_date"`
	PeriodStart   string               `json:"period_start"`
	PeriodEnd     string               `json:"period_end"`
	Subtotal      float64              `json:"subtotal"`
	TaxRate       float64              `json:"tax_rate"`
	TaxAmount     float64              `json:"tax_amount"`
	Total         float64              `json:"total"`
	Status        models.InvoiceStatus `json:"status"`
	Notes         string               `json:"notes"`
	CreatedAt     string               `json:"created_at"`
	LineItems     []LineItemResponse   `json:"line_items,omitempty"`
}

type InvoiceRequest struct {
	PlaceID       uint        `json:"place_id"`
	InvoiceNumber string      `json:"invoice_number"` // optional, generated when empty
	InvoiceDate   string      `json:"invoice_date"`
	DueDate       string      `json:"due_date"`
	PeriodStart   string      `json:"period_start"`
	PeriodEnd     string      `json:"period_end"`
	TaxRate       *float64    `json:"tax_rate"` // defaults to the company rate
	Notes         string      `json:"notes"`
	LineItems     []LineInput `json:"line_items"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func toInvoiceResponse(inv models.Invoice, withLines bool) InvoiceResponse {
	r := InvoiceResponse{
		ID:            inv.ID,
		BranchID:      inv.BranchID,
		PlaceID:       inv.PlaceID,
		PlaceName:     inv.Place.Name,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   httputil.FormatDate(inv.InvoiceDate),
		DueDate:       httputil.FormatDate(inv.DueDate),
		PeriodStart:   httputil.FormatDate(inv.PeriodStart),
		PeriodEnd:     httputil.FormatDate(inv.PeriodEnd),
		Subtotal:      inv.Subtotal,
		TaxRate:       inv.TaxRate,
		TaxAmount:     inv.TaxAmount,
		Total:         inv.Total,
		Status:        inv.Status,
		Notes:         inv.Notes,
		CreatedAt:     httputil.FormatDateTime(inv.CreatedAt),
	}
	if withLines {
		r.LineItems = make([]LineItemResponse, 0, len(inv.LineItems))
		for _, l := range inv.LineItems {
			r.LineItems = append(r.LineItems, LineItemResponse{
				ID:          l.ID,
				Position:    l.Position,
				Description: l.Description,
				Quantity:    l.Quantity,
				UnitPrice:   l.UnitPrice,
				Amount:      l.Amount,
			})
		}
	}
	return r
}

func stripInvoice(inv models.Invoice) models.Invoice {
	inv.Place = models.Place{}
	return inv
}

func loadInvoice(c *fiber.Ctx, scope auth.Scope) (models.Invoice, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.Invoice{}, err
	}
	var inv models.Invoice
	if err := database.DB.Preload("Place").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&inv, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.Invoice{}, fiber.NewError(fiber.StatusNotFound, "Invoice not found")
		}
		return models.Invoice{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load invoice")
	}
	if !scope.CanAccess(inv.BranchID) {
		return models.Invoice{}, fiber.NewError(fiber.StatusForbidden, "This invoice belongs to another branch")
	}
	return inv, nil
}

// build validates body into inv: dates, place, line items and totals.
func build(scope auth.Scope, body InvoiceRequest, settings models.CompanySettings, inv *models.Invoice) error {
	var err error
	if inv.InvoiceDate, err = httputil.ParseDate(body.InvoiceDate); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invoice_date must be YYYY-MM-DD")
	}
	if inv.DueDate, err = httputil.ParseDate(body.DueDate); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "due_date must be YYYY-MM-DD")
	}
	if inv.PeriodStart, err = httputil.ParseDate(body.PeriodStart); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "period_start must be YYYY-MM-DD")
	}
	if inv.PeriodEnd, err = httputil.ParseDate(body.PeriodEnd); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "period_end must be YYYY-MM-DD")
	}
	if inv.DueDate.Before(inv.InvoiceDate) {
		return fiber.NewError(fiber.StatusBadRequest, "due_date must not be before invoice_date")
	}
	if inv.PeriodEnd.Before(inv.PeriodStart) {
		return fiber.NewError(fiber.StatusBadRequest, "period_end must not be before period_start")
	}

	if body.PlaceID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "place_id is required")
	}
	var place models.Place
	if err := database.DB.First(&place, body.PlaceID).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Place not found")
	}
	if !scope.CanAccess(place.BranchID) {
		return fiber.NewError(fiber.StatusForbidden, "This place belongs to another branch")
	}
	if inv.ID != 0 && inv.BranchID != place.BranchID {
		return fiber.NewError(fiber.StatusBadRequest, "An invoice cannot move to another branch")
	}

	taxRate := settings.DefaultTaxRate
	if body.TaxRate != nil {
		taxRate = *body.TaxRate
	}
	lines, totals, err := Compute(body.LineItems, taxRate)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	inv.BranchID = place.BranchID
	inv.PlaceID = place.ID
	inv.Place = place
	inv.TaxRate = taxRate
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.Total = totals.Total
	inv.Notes = strings.TrimSpace(body.Notes)
	inv.LineItems = lines
	return nil
}

func numberTaken(tx *gorm.DB, number string, exceptID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Invoice{}).Where("invoice_number = ? AND id <> ?", number, exceptID).Count(&n).Error
	return n > 0, err
}

// GET /api/invoices/next-number?date=2026-01-15
func NextNumberHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		date := httputil.Today()
		if s := c.Query("date"); s != "" {
			d, err := httputil.ParseDate(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
			date = d
		}

		settings, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}
		number, err := NextNumber(database.DB, settings.InvoicePrefix, date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not generate invoice number")
		}
		return c.JSON(fiber.Map{"invoice_number": number})
	}
}

// GET /api/invoices?status=sent&place_id=1&start_date&end_date&branch_id
func ListInvoicesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Preload("Place"), "branch_id", branchID)
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}
		placeID, err := httputil.QueryUint(c, "place_id")
		if err != nil {
			return err
		}
		if placeID != nil {
			dbq = dbq.Where("place_id = ?", *placeID)
		}
		if s := c.Query("start_date"); s != "" {
			d, err := httputil.ParseDate(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
			}
			dbq = dbq.Where("invoice_date >= ?", d)
		}
		if s := c.Query("end_date"); s != "" {
			d, err := httputil.ParseDate(s)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
			}
			dbq = dbq.Where("invoice_date <= ?", d)
		}

		var rows []models.Invoice
		if err := dbq.Order("invoice_date DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list invoices")
		}

		res := make([]InvoiceResponse, 0, len(rows))
		for _, inv := range rows {
			res = append(res, toInvoiceResponse(inv, false))
		}
		return c.JSON(res)
	}
}

// GET /api/invoices/:id
func GetInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(c, scope)
		if err != nil {
			return err
		}
		return c.JSON(toInvoiceResponse(inv, true))
	}
}

// POST /api/invoices
func CreateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body InvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		settings, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}

		inv := models.Invoice{Status: models.InvoiceDraft, CreatedBy: scope.UserID}
		if err := build(scope, body, settings, &inv); err != nil {
			return err
		}
		place := inv.Place
		actor := audit.Actor(c, &inv.BranchID)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			inv.InvoiceNumber = strings.TrimSpace(body.InvoiceNumber)
			if inv.InvoiceNumber == "" {
				n, err := NextNumber(tx, settings.InvoicePrefix, inv.InvoiceDate)
				if err != nil {
					return err
				}
				inv.InvoiceNumber = n
			}
			taken, err := numberTaken(tx, inv.InvoiceNumber, 0)
			if err != nil {
				return err
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "Invoice number already exists")
			}

			if err := tx.Omit("Place").Create(&inv).Error; err != nil {
				return err
			}
			return audit.WriteLogTx(tx, actor.Entity(audit.EntityInvoice, inv.ID, models.AuditActionCreate,
				fmt.Sprintf("Invoice %s created for %s", inv.InvoiceNumber, place.Name), nil, stripInvoice(inv)))
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			zap.L().Error("create invoice failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create invoice")
		}

		inv.Place = place
		return c.Status(fiber.StatusCreated).JSON(toInvoiceResponse(inv, true))
	}
}

// PUT /api/invoices/:id (drafts only)
func UpdateInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(c, scope)
		if err != nil {
			return err
		}
		if inv.Status != models.InvoiceDraft {
			return fiber.NewError(fiber.StatusConflict, "Only draft invoices can be edited")
		}
		before := stripInvoice(inv)

		var body InvoiceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		settings, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}
		if err := build(scope, body, settings, &inv); err != nil {
			return err
		}
		if n := strings.TrimSpace(body.InvoiceNumber); n != "" {
			inv.InvoiceNumber = n
		}
		place := inv.Place
		actor := audit.Actor(c, &inv.BranchID)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			taken, err := numberTaken(tx, inv.InvoiceNumber, inv.ID)
			if err != nil {
				return err
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "Invoice number already exists")
			}

			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLineItem{}).Error; err != nil {
				return err
			}
			for i := range inv.LineItems {
				inv.LineItems[i].InvoiceID = inv.ID
			}
			if err := tx.Create(&inv.LineItems).Error; err != nil {
				return err
			}
			if err := tx.Omit("Place", "LineItems").Save(&inv).Error; err != nil {
				return err
			}
			return audit.WriteLogTx(tx, actor.Entity(audit.EntityInvoice, inv.ID, models.AuditActionUpdate,
				"Invoice "+inv.InvoiceNumber+" updated", before, stripInvoice(inv)))
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			zap.L().Error("update invoice failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update invoice")
		}

		inv.Place = place
		return c.JSON(toInvoiceResponse(inv, true))
	}
}

// PUT /api/invoices/:id/status
func UpdateStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(c, scope)
		if err != nil {
			return err
		}

		var body UpdateStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		next := models.InvoiceStatus(strings.ToLower(strings.TrimSpace(body.Status)))
		if !next.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
		}
		if !inv.Status.CanTransition(next) {
			return fiber.NewError(fiber.StatusConflict,
				fmt.Sprintf("Cannot change invoice status from %s to %s", inv.Status, next))
		}

		prev := inv.Status
		res := database.DB.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", inv.ID, prev).
			Update("status", next)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update invoice status")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusConflict, "Invoice status changed concurrently, reload and retry")
		}
		inv.Status = next

		audit.Record(audit.Actor(c, &inv.BranchID).Entity(audit.EntityInvoice, inv.ID, models.AuditActionUpdate,
			fmt.Sprintf("Invoice %s: %s -> %s", inv.InvoiceNumber, prev, next),
			fiber.Map{"status": prev}, fiber.Map{"status": next}))

		return c.JSON(toInvoiceResponse(inv, true))
	}
}

// DELETE /api/invoices/:id
func DeleteInvoiceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(c, scope)
		if err != nil {
			return err
		}
		if inv.Status != models.InvoiceDraft && inv.Status != models.InvoiceCancelled {
			return fiber.NewError(fiber.StatusConflict, "Only draft or cancelled invoices can be deleted")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLineItem{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Invoice{}, inv.ID).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete invoice")
		}

		audit.Record(audit.Actor(c, &inv.BranchID).Entity(audit.EntityInvoice, inv.ID, models.AuditActionDelete,
			"Invoice "+inv.InvoiceNumber+" deleted", stripInvoice(inv), nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/invoices/:id/pdf
func InvoicePDFHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		inv, err := loadInvoice(c, scope)
		if err != nil {
			return err
		}
		settings, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}

		var buf bytes.Buffer
		if err := RenderPDF(&buf, settings, inv); err != nil {
			zap.L().Error("invoice pdf failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not render invoice")
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.pdf"`, inv.InvoiceNumber))
		return c.Send(buf.Bytes())
	}
}
