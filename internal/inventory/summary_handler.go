package inventory

import (
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SummaryResponse struct {
	ItemTypes        int64 `json:"item_types"`
	TotalUnits       int64 `json:"total_units"`
	AvailableUnits   int64 `json:"available_units"`
	QuantityInStock  int64 `json:"quantity_in_stock"`
	GuardAssignments int64 `json:"guard_assignments"`
	PlaceAssignments int64 `json:"place_assignments"`
}

// Summarize counts stock and open assignments, optionally for one branch.
func Summarize(db *gorm.DB, branchID *uint) (SummaryResponse, error) {
	var s SummaryResponse

	if err := auth.Apply(db.Model(&models.InventoryItem{}), "branch_id", branchID).
		Count(&s.ItemTypes).Error; err != nil {
		return s, err
	}
	if err := auth.Apply(db.Model(&models.InventoryUnit{}), "branch_id", branchID).
		Count(&s.TotalUnits).Error; err != nil {
		return s, err
	}
	if err := auth.Apply(db.Model(&models.InventoryUnit{}), "branch_id", branchID).
		Where("status = ?", models.UnitAvailable).
		Count(&s.AvailableUnits).Error; err != nil {
		return s, err
	}
	if err := auth.Apply(db.Model(&models.InventoryItem{}), "branch_id", branchID).
		Where("tracking_type = ?", models.TrackingQuantity).
		Select("COALESCE(SUM(total_quantity), 0)").
		Scan(&s.QuantityInStock).Error; err != nil {
		return s, err
	}
	if err := auth.Apply(db.Model(&models.InventoryAssignment{}), "branch_id", branchID).
		Where("returned_at IS NULL AND assigned_to_type = ?", models.AssigneeGuard).
		Count(&s.GuardAssignments).Error; err != nil {
		return s, err
	}
	if err := auth.Apply(db.Model(&models.InventoryAssignment{}), "branch_id", branchID).
		Where("returned_at IS NULL AND assigned_to_type = ?", models.AssigneePlace).
		Count(&s.PlaceAssignments).Error; err != nil {
		return s, err
	}
	return s, nil
}

// GET /api/inventory/summary?branch_id=1
func SummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		s, err := Summarize(database.DB, branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not build inventory summary")
		}
		return c.JSON(s)
	}
}
