// Package server assembles the fiber application and its route table.
package server

import (
	"errors"
	"strings"

	"sheriff-backend/internal/admin"
	"sheriff-backend/internal/assignments"
	"sheriff-backend/internal/attendance"
	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/cache"
	"sheriff-backend/internal/config"
	"sheriff-backend/internal/dashboard"
	"sheriff-backend/internal/guards"
	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/invoices"
	"sheriff-backend/internal/mailer"
	"sheriff-backend/internal/marketing"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/places"
	"sheriff-backend/internal/reports"
	"sheriff-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Deps are the collaborators built in main (or by tests).
type Deps struct {
	Cache   cache.Store
	Mailer  mailer.Sender
	Storage *storage.Local
	// AccessLog enables the per-request log line.
	AccessLog bool
}

// ErrorHandler renders every error as {"error": "..."}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		if e.Code >= fiber.StatusInternalServerError {
			zap.L().Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Int("status", e.Code),
				zap.String("error", e.Message))
		}
		return c.Status(e.Code).JSON(fiber.Map{"error": e.Message})
	}

	zap.L().Error("unexpected error",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Unexpected server error"})
}

func New(cfg *config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "sheriff-backend",
		ErrorHandler: ErrorHandler,
		BodyLimit:    int(cfg.UploadMaxBytes) + 1<<20,
		Views:        reports.Views(),
	})

	app.Use(requestid.New())
	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}

	origins := strings.Split(cfg.CORSOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Static(storage.PublicPrefix, deps.Storage.Root())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	sessions := auth.NewSessions(deps.Cache, cfg.LoginMaxAttempts, cfg.LoginLockout)

	api := app.Group("/api")

	// Public
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg, sessions))

	public := api.Group("/public")
	public.Get("/company", marketing.CompanyHandler())
	public.Get("/branches", marketing.BranchesHandler())
	public.Post("/inquiries", marketing.SubmitInquiryHandler(deps.Mailer, cfg.InquiryNotifyTo))

	// Authenticated
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg, sessions))

	protected.Post("/auth/logout", auth.LogoutHandler(sessions))
	protected.Get("/auth/me", auth.MeHandler())
	protected.Put("/auth/profile", auth.UpdateProfileHandler())
	protected.Put("/auth/password", auth.ChangePasswordHandler())

	protected.Get("/settings/company", admin.GetCompanySettingsHandler())

	// Super admin
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	adminRoutes.Post("/branches", admin.CreateBranchHandler())
	adminRoutes.Get("/branches", admin.ListBranchesHandler())
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler())
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler())
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler())
	adminRoutes.Post("/branches/:id/admins", admin.CreateBranchAdminHandler())
	adminRoutes.Get("/branches/:id/admins", admin.ListBranchAdminsHandler())
	adminRoutes.Delete("/users/:id", admin.DeleteBranchAdminHandler())

	adminRoutes.Put("/settings/company", admin.UpdateCompanySettingsHandler())
	adminRoutes.Post("/settings/logo", admin.UploadLogoHandler(deps.Storage))

	adminRoutes.Get("/inquiries", admin.ListInquiriesHandler())
	adminRoutes.Put("/inquiries/:id/status", admin.UpdateInquiryStatusHandler())

	// Guards
	protected.Get("/guards", guards.ListGuardsHandler())
	protected.Post("/guards", guards.CreateGuardHandler())
	protected.Post("/guards/import", guards.ImportGuardsHandler())
	protected.Get("/guards/:id", guards.GetGuardHandler())
	protected.Put("/guards/:id", guards.UpdateGuardHandler())
	protected.Delete("/guards/:id", guards.DeleteGuardHandler())
	protected.Post("/guards/:id/photo", guards.UploadPhotoHandler(deps.Storage))

	// Places
	protected.Get("/places", places.ListPlacesHandler())
	protected.Post("/places", places.CreatePlaceHandler())
	protected.Get("/places/:id", places.GetPlaceHandler())
	protected.Put("/places/:id", places.UpdatePlaceHandler())
	protected.Delete("/places/:id", places.DeletePlaceHandler())

	// Assignments
	protected.Get("/assignments", assignments.ListAssignmentsHandler())
	protected.Get("/assignments/stats", assignments.AssignmentStatsHandler())
	protected.Post("/assignments", assignments.CreateAssignmentHandler())
	protected.Get("/assignments/:id", assignments.GetAssignmentHandler())
	protected.Put("/assignments/:id", assignments.UpdateAssignmentHandler())
	protected.Delete("/assignments/:id", assignments.DeleteAssignmentHandler())

	// Attendance
	protected.Get("/attendance", attendance.ListAttendanceHandler())
	protected.Get("/attendance/sheet", attendance.SheetHandler())
	protected.Post("/attendance/mark", attendance.MarkHandler())
	protected.Delete("/attendance/:id", attendance.DeleteAttendanceHandler())

	// Inventory
	protected.Get("/inventory/categories", inventory.ListCategoriesHandler())
	protected.Get("/inventory/summary", inventory.SummaryHandler())
	protected.Get("/inventory/items", inventory.ListItemsHandler())
	protected.Post("/inventory/items", inventory.CreateItemHandler())
	protected.Get("/inventory/items/:id", inventory.GetItemHandler())
	protected.Put("/inventory/items/:id", inventory.UpdateItemHandler())
	protected.Delete("/inventory/items/:id", inventory.DeleteItemHandler())
	protected.Get("/inventory/units", inventory.ListUnitsHandler())
	protected.Post("/inventory/units", inventory.CreateUnitHandler())
	protected.Put("/inventory/units/:id", inventory.UpdateUnitHandler())
	protected.Delete("/inventory/units/:id", inventory.DeleteUnitHandler())
	protected.Post("/inventory/assign", inventory.AssignHandler())
	protected.Get("/inventory/assignments", inventory.ListAssignmentsHandler())
	protected.Post("/inventory/assignments/:id/return", inventory.ReturnHandler())

	// Invoices
	protected.Get("/invoices", invoices.ListInvoicesHandler())
	protected.Get("/invoices/next-number", invoices.NextNumberHandler())
	protected.Post("/invoices", invoices.CreateInvoiceHandler())
	protected.Get("/invoices/:id", invoices.GetInvoiceHandler())
	protected.Put("/invoices/:id", invoices.UpdateInvoiceHandler())
	protected.Put("/invoices/:id/status", invoices.UpdateStatusHandler())
	protected.Delete("/invoices/:id", invoices.DeleteInvoiceHandler())
	protected.Get("/invoices/:id/pdf", invoices.InvoicePDFHandler())

	// Reports
	protected.Get("/reports/guard-attendance", reports.GuardAttendanceHandler())
	protected.Get("/reports/place", reports.PlaceReportHandler())
	protected.Get("/reports/invoices", reports.InvoiceSummaryHandler())
	protected.Get("/reports/monthly", reports.MonthlySummaryHandler())

	// Dashboard
	protected.Get("/dashboard/stats", dashboard.StatsHandler(deps.Cache, cfg.StatsCacheTTL))

	// Audit
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	return app
}
