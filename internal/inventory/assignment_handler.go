package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AssignmentResponse struct {
	ID             uint                `json:"id"`
	BranchID       uint                `json:"branch_id"`
	ItemID         uint                `json:"item_id"`
	ItemName       string              `json:"item_name"`
	Category       string              `json:"category"`
	UnitID         *uint               `json:"unit_id"`
	SerialNumber   string              `json:"serial_number,omitempty"`
	Quantity       int                 `json:"quantity"`
	AssignedToType models.AssigneeType `json:"assigned_to_type"`
	GuardID        *uint               `json:"guard_id"`
	GuardName      string              `json:"guard_name,omitempty"`
	PlaceID        *uint               `json:"place_id"`
	PlaceName      string              `json:"place_name,omitempty"`
	AssignedAt     string              `json:"assigned_at"`
	ReturnedAt     *string             `json:"returned_at"`
	Notes          string              `json:"notes"`
}

type AssignRequest struct {
	UnitID         *uint  `json:"unit_id"`
	ItemID         *uint  `json:"item_id"`
	Quantity       int    `json:"quantity"`
	AssignedToType string `json:"assigned_to_type"`
	GuardID        *uint  `json:"guard_id"`
	PlaceID        *uint  `json:"place_id"`
	Notes          string `json:"notes"`
}

func toAssignmentResponse(a models.InventoryAssignment) AssignmentResponse {
	r := AssignmentResponse{
		ID:             a.ID,
		BranchID:       a.BranchID,
		ItemID:         a.ItemID,
		ItemName:       a.Item.Name,
		Category:       a.Item.Category,
		UnitID:         a.UnitID,
		Quantity:       a.Quantity,
		AssignedToType: a.AssignedToType,
		GuardID:        a.GuardID,
		PlaceID:        a.PlaceID,
		AssignedAt:     httputil.FormatDateTime(a.AssignedAt),
		Notes:          a.Notes,
	}
	if a.Unit != nil {
		r.SerialNumber = a.Unit.SerialNumber
	}
	if a.Guard != nil {
		r.GuardName = a.Guard.Name
	}
	if a.Place != nil {
		r.PlaceName = a.Place.Name
	}
	if a.ReturnedAt != nil {
		s := httputil.FormatDateTime(*a.ReturnedAt)
		r.ReturnedAt = &s
	}
	return r
}

func stripAssignment(a models.InventoryAssignment) models.InventoryAssignment {
	a.Item = models.InventoryItem{}
	a.Unit = nil
	a.Guard = nil
	a.Place = nil
	return a
}

// resolveAssignee checks the target guard or place is active and in branchID.
func resolveAssignee(tx *gorm.DB, body AssignRequest, branchID uint, a *models.InventoryAssignment) error {
	switch models.AssigneeType(strings.ToLower(strings.TrimSpace(body.AssignedToType))) {
	case models.AssigneeGuard:
		if body.GuardID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "guard_id is required")
		}
		var g models.Guard
		if err := tx.First(&g, *body.GuardID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Guard not found")
		}
		if g.BranchID != branchID {
			return fiber.NewError(fiber.StatusBadRequest, "Guard belongs to another branch")
		}
		if g.Status != models.StatusActive {
			return fiber.NewError(fiber.StatusBadRequest, "Guard is inactive")
		}
		a.AssignedToType = models.AssigneeGuard
		a.GuardID = &g.ID
		a.Guard = &g
	case models.AssigneePlace:
		if body.PlaceID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "place_id is required")
		}
		var p models.Place
		if err := tx.First(&p, *body.PlaceID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Place not found")
		}
		if p.BranchID != branchID {
			return fiber.NewError(fiber.StatusBadRequest, "Place belongs to another branch")
		}
		if p.Status != models.StatusActive {
			return fiber.NewError(fiber.StatusBadRequest, "Place is inactive")
		}
		a.AssignedToType = models.AssigneePlace
		a.PlaceID = &p.ID
		a.Place = &p
	default:
		return fiber.NewError(fiber.StatusBadRequest, "assigned_to_type must be guard or place")
	}
	return nil
}

// POST /api/inventory/assign
func AssignHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body AssignRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if (body.UnitID == nil) == (body.ItemID == nil) {
			return fiber.NewError(fiber.StatusBadRequest, "Provide either unit_id or item_id with quantity")
		}

		var a models.InventoryAssignment
		actor := audit.Actor(c, nil)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var item models.InventoryItem

			if body.UnitID != nil {
				var unit models.InventoryUnit
				if err := tx.First(&unit, *body.UnitID).Error; err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "Unit not found")
				}
				if !scope.CanAccess(unit.BranchID) {
					return fiber.NewError(fiber.StatusForbidden, "This unit belongs to another branch")
				}
				if err := tx.First(&item, unit.ItemID).Error; err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "Item not found")
				}

				res := tx.Model(&models.InventoryUnit{}).
					Where("id = ? AND status = ?", unit.ID, models.UnitAvailable).
					Update("status", models.UnitAssigned)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("Unit %s is not available (%s)", unit.SerialNumber, unit.Status))
				}
				unit.Status = models.UnitAssigned
				a.UnitID = &unit.ID
				a.Unit = &unit
				a.Quantity = 1
			} else {
				if err := tx.First(&item, *body.ItemID).Error; err != nil {
					return fiber.NewError(fiber.StatusBadRequest, "Item not found")
				}
				if !scope.CanAccess(item.BranchID) {
					return fiber.NewError(fiber.StatusForbidden, "This item belongs to another branch")
				}
				if item.TrackingType != models.TrackingQuantity {
					return fiber.NewError(fiber.StatusBadRequest, "Serialised items are assigned by unit_id")
				}
				if body.Quantity < 1 {
					return fiber.NewError(fiber.StatusBadRequest, "quantity must be at least 1")
				}

				res := tx.Model(&models.InventoryItem{}).
					Where("id = ? AND total_quantity >= ?", item.ID, body.Quantity).
					Update("total_quantity", gorm.Expr("total_quantity - ?", body.Quantity))
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fiber.NewError(fiber.StatusConflict, fmt.Sprintf("Only %d units available", item.TotalQuantity))
				}
				item.TotalQuantity -= body.Quantity
				a.Quantity = body.Quantity
			}

			if err := resolveAssignee(tx, body, item.BranchID, &a); err != nil {
				return err
			}

			a.BranchID = item.BranchID
			a.ItemID = item.ID
			a.Item = item
			a.AssignedAt = time.Now()
			a.AssignedBy = scope.UserID
			a.Notes = strings.TrimSpace(body.Notes)

			if err := tx.Omit("Item", "Unit", "Guard", "Place").Create(&a).Error; err != nil {
				return err
			}

			actor.BranchID = &a.BranchID
			return audit.WriteLogTx(tx, actor.Entity(audit.EntityInventoryAssignment, a.ID,
				models.AuditActionCreate, fmt.Sprintf("Assigned %d x %s", a.Quantity, item.Name), nil, stripAssignment(a)))
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not assign inventory")
		}

		return c.Status(fiber.StatusCreated).JSON(toAssignmentResponse(a))
	}
}

// POST /api/inventory/assignments/:id/return
func ReturnHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}

		var a models.InventoryAssignment
		actor := audit.Actor(c, nil)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Preload("Item").Preload("Unit").Preload("Guard").Preload("Place").First(&a, id).Error; err != nil {
				if database.IsNotFound(err) {
					return fiber.NewError(fiber.StatusNotFound, "Assignment not found")
				}
				return err
			}
			if !scope.CanAccess(a.BranchID) {
				return fiber.NewError(fiber.StatusForbidden, "This assignment belongs to another branch")
			}
			before := stripAssignment(a)

			now := time.Now()
			res := tx.Model(&models.InventoryAssignment{}).
				Where("id = ? AND returned_at IS NULL", a.ID).
				Update("returned_at", now)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fiber.NewError(fiber.StatusConflict, "This assignment has already been returned")
			}
			a.ReturnedAt = &now

			if a.UnitID != nil {
				if err := tx.Model(&models.InventoryUnit{}).
					Where("id = ?", *a.UnitID).
					Update("status", models.UnitAvailable).Error; err != nil {
					return err
				}
				if a.Unit != nil {
					a.Unit.Status = models.UnitAvailable
				}
			} else {
				if err := tx.Model(&models.InventoryItem{}).
					Where("id = ?", a.ItemID).
					Update("total_quantity", gorm.Expr("total_quantity + ?", a.Quantity)).Error; err != nil {
					return err
				}
			}

			actor.BranchID = &a.BranchID
			return audit.WriteLogTx(tx, actor.Entity(audit.EntityInventoryAssignment, a.ID,
				models.AuditActionUpdate, fmt.Sprintf("Returned %d x %s", a.Quantity, a.Item.Name), before, stripAssignment(a)))
		})
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not return inventory")
		}

		return c.JSON(toAssignmentResponse(a))
	}
}

// GET /api/inventory/assignments?open=true&guard_id=1&place_id=2&item_id=3&branch_id=1
func ListAssignmentsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Preload("Item").Preload("Unit").Preload("Guard").Preload("Place"), "branch_id", branchID)
		switch c.Query("open") {
		case "true", "1":
			dbq = dbq.Where("returned_at IS NULL")
		case "false", "0":
			dbq = dbq.Where("returned_at IS NOT NULL")
		}
		for _, key := range []string{"guard_id", "place_id", "item_id"} {
			v, err := httputil.QueryUint(c, key)
			if err != nil {
				return err
			}
			if v != nil {
				dbq = dbq.Where(key+" = ?", *v)
			}
		}

		var rows []models.InventoryAssignment
		if err := dbq.Order("assigned_at DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list assignments")
		}

		res := make([]AssignmentResponse, 0, len(rows))
		for _, a := range rows {
			res = append(res, toAssignmentResponse(a))
		}
		return c.JSON(res)
	}
}
