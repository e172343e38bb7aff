// Package marketing serves the unauthenticated endpoints behind the public site.
package marketing

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/mailer"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	MinMessageLength = 10
	MaxMessageLength = 4000
)

type CompanyResponse struct {
	CompanyName string `json:"company_name"`
	Tagline     string `json:"tagline"`
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	LogoURL     string `json:"logo_url"`
}

type BranchResponse struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type InquiryRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// GET /api/public/company
func CompanyHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company info")
		}
		return c.JSON(CompanyResponse{
			CompanyName: s.CompanyName,
			Tagline:     s.Tagline,
			Address:     s.Address,
			Phone:       s.Phone,
			Email:       s.Email,
			Website:     s.Website,
			LogoURL:     s.LogoURL,
		})
	}
}

// GET /api/public/branches
func BranchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var branches []models.Branch
		if err := database.DB.Where("status = ?", models.StatusActive).
			Order("city ASC, name ASC").Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load branches")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, BranchResponse{ID: b.ID, Name: b.Name, City: b.City, Address: b.Address, Phone: b.Phone})
		}
		return c.JSON(res)
	}
}

// Validate trims body in place and checks the contact form rules.
func (body *InquiryRequest) Validate() error {
	body.Name = strings.TrimSpace(body.Name)
	body.Phone = strings.TrimSpace(body.Phone)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	body.Message = strings.TrimSpace(body.Message)

	switch {
	case body.Name == "":
		return fiber.NewError(fiber.StatusBadRequest, "Name is required")
	case !httputil.ValidEmail(body.Email):
		return fiber.NewError(fiber.StatusBadRequest, "A valid email is required")
	case utf8.RuneCountInString(body.Message) < MinMessageLength:
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("Message must be at least %d characters", MinMessageLength))
	case utf8.RuneCountInString(body.Message) > MaxMessageLength:
		return fiber.NewError(fiber.StatusBadRequest, "Message is too long")
	}
	return nil
}

// POST /api/public/inquiries
func SubmitInquiryHandler(sender mailer.Sender, notifyTo string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body InquiryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := body.Validate(); err != nil {
			return err
		}

		inquiry := models.Inquiry{
			Name:    body.Name,
			Phone:   body.Phone,
			Email:   body.Email,
			Message: body.Message,
			Status:  models.InquiryNew,
		}
		if err := database.DB.Create(&inquiry).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not save your message")
		}

		if notifyTo != "" {
			err := sender.Send(mailer.Message{
				To:      []string{notifyTo},
				Subject: "New inquiry from " + inquiry.Name,
				Body: fmt.Sprintf("Name: %s\nPhone: %s\nEmail: %s\n\n%s",
					inquiry.Name, inquiry.Phone, inquiry.Email, inquiry.Message),
				ReplyTo: inquiry.Email,
			})
			if err != nil {
				zap.L().Warn("inquiry notification failed", zap.Uint("inquiry_id", inquiry.ID), zap.Error(err))
			}
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":      inquiry.ID,
			"message": "Thank you, we will contact you shortly",
		})
	}
}
