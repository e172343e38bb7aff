package admin

import (
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type InquiryResponse struct {
	ID        uint                 `json:"id"`
	Name      string               `json:"name"`
	Phone     string               `json:"phone"`
	Email     string               `json:"email"`
	Message   string               `json:"message"`
	Status    models.InquiryStatus `json:"status"`
	CreatedAt string               `json:"created_at"`
}

type UpdateInquiryStatusRequest struct {
	Status string `json:"status"`
}

func toInquiryResponse(q models.Inquiry) InquiryResponse {
	return InquiryResponse{
		ID:        q.ID,
		Name:      q.Name,
		Phone:     q.Phone,
		Email:     q.Email,
		Message:   q.Message,
		Status:    q.Status,
		CreatedAt: httputil.FormatDateTime(q.CreatedAt),
	}
}

// GET /api/admin/inquiries?status=new
func ListInquiriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Order("created_at DESC, id DESC")
		if s := c.Query("status"); s != "" {
			if !models.InquiryStatus(s).Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid status")
			}
			dbq = dbq.Where("status = ?", s)
		}

		var inquiries []models.Inquiry
		if err := dbq.Find(&inquiries).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list inquiries")
		}

		res := make([]InquiryResponse, 0, len(inquiries))
		for _, q := range inquiries {
			res = append(res, toInquiryResponse(q))
		}
		return c.JSON(res)
	}
}

// PUT /api/admin/inquiries/:id/status
func UpdateInquiryStatusHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}

		var body UpdateInquiryStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		status := models.InquiryStatus(strings.ToLower(strings.TrimSpace(body.Status)))
		if !status.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "status must be new, read or archived")
		}

		var inquiry models.Inquiry
		if err := database.DB.First(&inquiry, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Inquiry not found")
		}
		before := inquiry.Status

		if err := database.DB.Model(&inquiry).Update("status", status).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update inquiry")
		}
		inquiry.Status = status

		audit.Record(audit.Actor(c, nil).Entity(audit.EntityInquiry, inquiry.ID,
			models.AuditActionUpdate, "Inquiry marked "+string(status),
			fiber.Map{"status": before}, fiber.Map{"status": status}))

		return c.JSON(toInquiryResponse(inquiry))
	}
}
