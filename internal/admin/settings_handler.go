package admin

import (
	"errors"
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type CompanySettingsResponse struct {
	CompanyName    string  `json:"company_name"`
	Tagline        string  `json:"tagline"`
	Address        string  `json:"address"`
	Phone          string  `json:"phone"`
	Email          string  `json:"email"`
	Website        string  `json:"website"`
	LogoURL        string  `json:"logo_url"`
	InvoicePrefix  string  `json:"invoice_prefix"`
	DefaultTaxRate float64 `json:"default_tax_rate"`
	Currency       string  `json:"currency"`
}

type UpdateCompanySettingsRequest struct {
	CompanyName    *string  `json:"company_name"`
	Tagline        *string  `json:"tagline"`
	Address        *string  `json:"address"`
	Phone          *string  `json:"phone"`
	Email          *string  `json:"email"`
	Website        *string  `json:"website"`
	InvoicePrefix  *string  `json:"invoice_prefix"`
	DefaultTaxRate *float64 `json:"default_tax_rate"`
	Currency       *string  `json:"currency"`
}

func ToSettingsResponse(s models.CompanySettings) CompanySettingsResponse {
	return CompanySettingsResponse{
		CompanyName:    s.CompanyName,
		Tagline:        s.Tagline,
		Address:        s.Address,
		Phone:          s.Phone,
		Email:          s.Email,
		Website:        s.Website,
		LogoURL:        s.LogoURL,
		InvoicePrefix:  s.InvoicePrefix,
		DefaultTaxRate: s.DefaultTaxRate,
		Currency:       s.Currency,
	}
}

// ApplySettings validates body and copies the provided fields onto s.
func ApplySettings(s *models.CompanySettings, body UpdateCompanySettingsRequest) error {
	trim := func(p *string) string { return strings.TrimSpace(*p) }

	if body.CompanyName != nil {
		if trim(body.CompanyName) == "" {
			return errors.New("company name is required")
		}
		s.CompanyName = trim(body.CompanyName)
	}
	if body.Tagline != nil {
		s.Tagline = trim(body.Tagline)
	}
	if body.Address != nil {
		s.Address = trim(body.Address)
	}
	if body.Phone != nil {
		s.Phone = trim(body.Phone)
	}
	if body.Email != nil {
		s.Email = trim(body.Email)
	}
	if body.Website != nil {
		s.Website = trim(body.Website)
	}
	if body.InvoicePrefix != nil {
		prefix := strings.ToUpper(trim(body.InvoicePrefix))
		if prefix == "" || len(prefix) > 10 || strings.ContainsAny(prefix, " -/") {
			return errors.New("invoice prefix must be 1-10 characters without spaces, dashes or slashes")
		}
		s.InvoicePrefix = prefix
	}
	if body.DefaultTaxRate != nil {
		if *body.DefaultTaxRate < 0 || *body.DefaultTaxRate > 100 {
			return errors.New("default tax rate must be between 0 and 100")
		}
		s.DefaultTaxRate = *body.DefaultTaxRate
	}
	if body.Currency != nil {
		cur := strings.ToUpper(trim(body.Currency))
		if cur == "" {
			return errors.New("currency is required")
		}
		s.Currency = cur
	}
	return nil
}

// GET /api/settings/company
func GetCompanySettingsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}
		return c.JSON(ToSettingsResponse(s))
	}
}

// PUT /api/admin/settings/company
func UpdateCompanySettingsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateCompanySettingsRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		s, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}
		before := s

		if err := ApplySettings(&s, body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := database.DB.Save(&s).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not save company settings")
		}

		audit.Record(audit.Actor(c, nil).Entity(audit.EntityCompanySettings, s.ID,
			models.AuditActionUpdate, "Company settings updated", before, s))

		return c.JSON(ToSettingsResponse(s))
	}
}

// POST /api/admin/settings/logo (multipart "logo")
func UploadLogoHandler(store *storage.Local) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("logo")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "logo file is required")
		}

		url, err := store.SaveImage("logos", fh)
		if err != nil {
			return uploadError(err)
		}

		s, err := database.CompanySettings(database.DB)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load company settings")
		}
		old := s.LogoURL
		s.LogoURL = url

		if err := database.DB.Save(&s).Error; err != nil {
			_ = store.Remove(url)
			return fiber.NewError(fiber.StatusInternalServerError, "Could not save company settings")
		}
		if err := store.Remove(old); err != nil {
			zap.L().Warn("could not remove old logo", zap.String("url", old), zap.Error(err))
		}

		return c.JSON(fiber.Map{"logo_url": url})
	}
}

// uploadError maps storage errors to HTTP responses.
func uploadError(err error) error {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "File is too large")
	case errors.Is(err, storage.ErrUnsupportedType):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	}
	zap.L().Error("upload failed", zap.Error(err))
	return fiber.NewError(fiber.StatusInternalServerError, "Could not store file")
}
