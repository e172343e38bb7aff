package inventory

import (
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UnitResponse struct {
	ID           uint              `json:"id"`
	ItemID       uint              `json:"item_id"`
	ItemName     string            `json:"item_name"`
	BranchID     uint              `json:"branch_id"`
	SerialNumber string            `json:"serial_number"`
	Status       models.UnitStatus `json:"status"`
	Notes        string            `json:"notes"`
	CreatedAt    string            `json:"created_at"`
}

type CreateUnitRequest struct {
	ItemID       uint   `json:"item_id"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
}

type UpdateUnitRequest struct {
	SerialNumber *string `json:"serial_number"`
	Status       *string `json:"status"`
	Notes        *string `json:"notes"`
}

func toUnitResponse(u models.InventoryUnit) UnitResponse {
	return UnitResponse{
		ID:           u.ID,
		ItemID:       u.ItemID,
		ItemName:     u.Item.Name,
		BranchID:     u.BranchID,
		SerialNumber: u.SerialNumber,
		Status:       u.Status,
		Notes:        u.Notes,
		CreatedAt:    httputil.FormatDateTime(u.CreatedAt),
	}
}

func stripUnit(u models.InventoryUnit) models.InventoryUnit {
	u.Item = models.InventoryItem{}
	return u
}

// parseManualStatus rejects "assigned", which only the assign flow may set.
func parseManualStatus(raw string) (models.UnitStatus, error) {
	s := models.UnitStatus(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return models.UnitAvailable, nil
	}
	if !s.Valid() {
		return "", fiber.NewError(fiber.StatusBadRequest, "status must be available, maintenance or retired")
	}
	if s == models.UnitAssigned {
		return "", fiber.NewError(fiber.StatusBadRequest, "Use the assign endpoint to assign a unit")
	}
	return s, nil
}

func serialTaken(serial string, exceptID uint) (bool, error) {
	var n int64
	err := database.DB.Model(&models.InventoryUnit{}).
		Where("serial_number = ? AND id <> ?", serial, exceptID).
		Count(&n).Error
	return n > 0, err
}

func loadUnit(c *fiber.Ctx, scope auth.Scope) (models.InventoryUnit, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.InventoryUnit{}, err
	}
	var u models.InventoryUnit
	if err := database.DB.Preload("Item").First(&u, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.InventoryUnit{}, fiber.NewError(fiber.StatusNotFound, "Unit not found")
		}
		return models.InventoryUnit{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load unit")
	}
	if !scope.CanAccess(u.BranchID) {
		return models.InventoryUnit{}, fiber.NewError(fiber.StatusForbidden, "This unit belongs to another branch")
	}
	return u, nil
}

// GET /api/inventory/units?item_id=1&status=available&branch_id=1
func ListUnitsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Preload("Item"), "branch_id", branchID)
		itemID, err := httputil.QueryUint(c, "item_id")
		if err != nil {
			return err
		}
		if itemID != nil {
			dbq = dbq.Where("item_id = ?", *itemID)
		}
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}

		var units []models.InventoryUnit
		if err := dbq.Order("serial_number ASC").Find(&units).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list units")
		}

		res := make([]UnitResponse, 0, len(units))
		for _, u := range units {
			res = append(res, toUnitResponse(u))
		}
		return c.JSON(res)
	}
}

// POST /api/inventory/units
func CreateUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body CreateUnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.ItemID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "item_id is required")
		}

		var it models.InventoryItem
		if err := database.DB.First(&it, body.ItemID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Item not found")
		}
		if !scope.CanAccess(it.BranchID) {
			return fiber.NewError(fiber.StatusForbidden, "This item belongs to another branch")
		}
		if it.TrackingType != models.TrackingSerialised {
			return fiber.NewError(fiber.StatusBadRequest, "Units can only be added to serialised items")
		}

		serial := strings.TrimSpace(body.SerialNumber)
		if serial == "" {
			return fiber.NewError(fiber.StatusBadRequest, "serial_number is required")
		}
		status, err := parseManualStatus(body.Status)
		if err != nil {
			return err
		}

		taken, err := serialTaken(serial, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check serial number")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "Serial number already exists")
		}

		u := models.InventoryUnit{
			ItemID:       it.ID,
			BranchID:     it.BranchID,
			SerialNumber: serial,
			Status:       status,
			Notes:        strings.TrimSpace(body.Notes),
		}
		if err := database.DB.Omit("Item").Create(&u).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create unit")
		}

		audit.Record(audit.Actor(c, &u.BranchID).Entity(audit.EntityInventoryUnit, u.ID,
			models.AuditActionCreate, "Unit added: "+it.Name+" #"+u.SerialNumber, nil, u))

		u.Item = it
		return c.Status(fiber.StatusCreated).JSON(toUnitResponse(u))
	}
}

// PUT /api/inventory/units/:id
func UpdateUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		u, err := loadUnit(c, scope)
		if err != nil {
			return err
		}
		before := stripUnit(u)

		var body UpdateUnitRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.SerialNumber != nil {
			serial := strings.TrimSpace(*body.SerialNumber)
			if serial == "" {
				return fiber.NewError(fiber.StatusBadRequest, "serial_number is required")
			}
			taken, err := serialTaken(serial, u.ID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not check serial number")
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "Serial number already exists")
			}
			u.SerialNumber = serial
		}
		if body.Notes != nil {
			u.Notes = strings.TrimSpace(*body.Notes)
		}
		if body.Status != nil {
			status, err := parseManualStatus(*body.Status)
			if err != nil {
				return err
			}
			if status != u.Status {
				open, err := OpenCount(database.DB, "unit_id", u.ID)
				if err != nil {
					return fiber.NewError(fiber.StatusInternalServerError, "Could not check assignments")
				}
				if open > 0 {
					return fiber.NewError(fiber.StatusConflict, "Return the unit before changing its status")
				}
				u.Status = status
			}
		}

		if err := database.DB.Omit("Item").Save(&u).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update unit")
		}

		audit.Record(audit.Actor(c, &u.BranchID).Entity(audit.EntityInventoryUnit, u.ID,
			models.AuditActionUpdate, "Unit updated: "+u.Item.Name+" #"+u.SerialNumber, before, stripUnit(u)))

		return c.JSON(toUnitResponse(u))
	}
}

// DELETE /api/inventory/units/:id
func DeleteUnitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		u, err := loadUnit(c, scope)
		if err != nil {
			return err
		}

		open, err := OpenCount(database.DB, "unit_id", u.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check assignments")
		}
		if open > 0 || u.Status == models.UnitAssigned {
			return fiber.NewError(fiber.StatusConflict, "Cannot delete an assigned unit")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("unit_id = ?", u.ID).Delete(&models.InventoryAssignment{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.InventoryUnit{}, u.ID).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete unit")
		}

		audit.Record(audit.Actor(c, &u.BranchID).Entity(audit.EntityInventoryUnit, u.ID,
			models.AuditActionDelete, "Unit deleted: "+u.Item.Name+" #"+u.SerialNumber, stripUnit(u), nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}
