package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/cache"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Stats struct {
	ActiveGuards      int64  `json:"active_guards"`
	ActivePlaces      int64  `json:"active_places"`
	ActiveAssignments int64  `json:"active_assignments"`
	TodayPresent      int64  `json:"today_present"`
	TodayAbsent       int64  `json:"today_absent"`
	OpenInventory     int64  `json:"open_inventory_assignments"`
	PendingInvoices   int64  `json:"pending_invoices"`
	GeneratedAt       string `json:"generated_at"`
}

// Compute fans the counts out over the pool. today is the attendance date.
func Compute(ctx context.Context, db *gorm.DB, branchID *uint, today time.Time) (Stats, error) {
	var s Stats
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, model any, where string, args ...any) {
		g.Go(func() error {
			q := auth.Apply(db.WithContext(ctx).Model(model), "branch_id", branchID)
			return q.Where(where, args...).Count(dst).Error
		})
	}

	count(&s.ActiveGuards, &models.Guard{}, "status = ?", models.StatusActive)
	count(&s.ActivePlaces, &models.Place{}, "status = ?", models.StatusActive)
	count(&s.ActiveAssignments, &models.Assignment{}, "status = ?", models.AssignmentActive)
	// late arrivals are on site
	count(&s.TodayPresent, &models.Attendance{}, "date = ? AND status IN ?", today,
		[]models.AttendanceStatus{models.AttendancePresent, models.AttendanceLate, models.AttendanceHalfDay})
	count(&s.TodayAbsent, &models.Attendance{}, "date = ? AND status = ?", today, models.AttendanceAbsent)
	count(&s.OpenInventory, &models.InventoryAssignment{}, "returned_at IS NULL")
	count(&s.PendingInvoices, &models.Invoice{}, "status IN ?",
		[]models.InvoiceStatus{models.InvoiceSent, models.InvoiceOverdue})

	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	s.GeneratedAt = httputil.FormatDateTime(time.Now())
	return s, nil
}

func cacheKey(branchID *uint, today time.Time) string {
	scope := "all"
	if branchID != nil {
		scope = fmt.Sprintf("branch:%d", *branchID)
	}
	return fmt.Sprintf("dashboard:stats:%s:%s", scope, httputil.FormatDate(today))
}

// GET /api/dashboard/stats[?branch_id=1][&refresh=true]
func StatsHandler(store cache.Store, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		today := httputil.Today()
		key := cacheKey(branchID, today)

		if !c.QueryBool("refresh") {
			raw, err := store.Get(ctx, key)
			switch {
			case err == nil:
				var cached Stats
				if json.Unmarshal([]byte(raw), &cached) == nil {
					c.Set("X-Cache", "HIT")
					return c.JSON(cached)
				}
			case !errors.Is(err, cache.ErrMiss):
				zap.L().Warn("stats cache read failed", zap.Error(err))
			}
		}

		stats, err := Compute(ctx, database.DB, branchID, today)
		if err != nil {
			zap.L().Error("dashboard stats failed", zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load dashboard stats")
		}

		if raw, err := json.Marshal(stats); err == nil {
			if err := store.Set(ctx, key, string(raw), ttl); err != nil {
				zap.L().Warn("stats cache write failed", zap.Error(err))
			}
		}
		c.Set("X-Cache", "MISS")
		return c.JSON(stats)
	}
}
