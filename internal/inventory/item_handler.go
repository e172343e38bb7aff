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

type ItemResponse struct {
	ID               uint                `json:"id"`
	BranchID         uint                `json:"branch_id"`
	Name             string              `json:"name"`
	Category         string              `json:"category"`
	TrackingType     models.TrackingType `json:"tracking_type"`
	TotalQuantity    int                 `json:"total_quantity"`
	AssignedQuantity int                 `json:"assigned_quantity"`
	UnitCount        int64               `json:"unit_count"`
	AvailableUnits   int64               `json:"available_units"`
	Description      string              `json:"description"`
	CreatedAt        string              `json:"created_at"`
}

type ItemDetailResponse struct {
	ItemResponse
	Units []UnitResponse `json:"units"`
}

type CreateItemRequest struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	TrackingType  string `json:"tracking_type"`
	TotalQuantity int    `json:"total_quantity"`
	Description   string `json:"description"`
	BranchID      *uint  `json:"branch_id"`
}

type UpdateItemRequest struct {
	Name          *string `json:"name"`
	Category      *string `json:"category"`
	TotalQuantity *int    `json:"total_quantity"`
	Description   *string `json:"description"`
}

type itemStats struct {
	units     map[uint]int64
	available map[uint]int64
	assigned  map[uint]int
}

// loadItemStats gathers unit counts and open assigned quantities per item.
func loadItemStats(db *gorm.DB, itemIDs []uint) (itemStats, error) {
	st := itemStats{units: map[uint]int64{}, available: map[uint]int64{}, assigned: map[uint]int{}}
	if len(itemIDs) == 0 {
		return st, nil
	}

	var unitRows []struct {
		ItemID uint
		Status models.UnitStatus
		N      int64
	}
	if err := db.Model(&models.InventoryUnit{}).
		Select("item_id, status, COUNT(*) AS n").
		Where("item_id IN ?", itemIDs).
		Group("item_id, status").
		Scan(&unitRows).Error; err != nil {
		return st, err
	}
	for _, r := range unitRows {
		st.units[r.ItemID] += r.N
		if r.Status == models.UnitAvailable {
			st.available[r.ItemID] += r.N
		}
	}

	var assignedRows []struct {
		ItemID uint
		Q      int
	}
	if err := db.Model(&models.InventoryAssignment{}).
		Select("item_id, SUM(quantity) AS q").
		Where("item_id IN ? AND returned_at IS NULL", itemIDs).
		Group("item_id").
		Scan(&assignedRows).Error; err != nil {
		return st, err
	}
	for _, r := range assignedRows {
		st.assigned[r.ItemID] = r.Q
	}
	return st, nil
}

func toItemResponse(it models.InventoryItem, st itemStats) ItemResponse {
	return ItemResponse{
		ID:               it.ID,
		BranchID:         it.BranchID,
		Name:             it.Name,
		Category:         it.Category,
		TrackingType:     it.TrackingType,
		TotalQuantity:    it.TotalQuantity,
		AssignedQuantity: st.assigned[it.ID],
		UnitCount:        st.units[it.ID],
		AvailableUnits:   st.available[it.ID],
		Description:      it.Description,
		CreatedAt:        httputil.FormatDateTime(it.CreatedAt),
	}
}

func stripItem(it models.InventoryItem) models.InventoryItem {
	it.Branch = models.Branch{}
	return it
}

func loadItem(c *fiber.Ctx, scope auth.Scope) (models.InventoryItem, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.InventoryItem{}, err
	}
	var it models.InventoryItem
	if err := database.DB.First(&it, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.InventoryItem{}, fiber.NewError(fiber.StatusNotFound, "Item not found")
		}
		return models.InventoryItem{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load item")
	}
	if !scope.CanAccess(it.BranchID) {
		return models.InventoryItem{}, fiber.NewError(fiber.StatusForbidden, "This item belongs to another branch")
	}
	return it, nil
}

// GET /api/inventory/categories
func ListCategoriesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(models.InventoryCategories)
	}
}

// GET /api/inventory/items?category=Weapon&tracking_type=serialised&q=pistol&branch_id=1
func ListItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Model(&models.InventoryItem{}), "branch_id", branchID)
		if v := c.Query("category"); v != "" {
			dbq = dbq.Where("category = ?", v)
		}
		if v := c.Query("tracking_type"); v != "" {
			dbq = dbq.Where("tracking_type = ?", v)
		}
		if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
			dbq = dbq.Where("LOWER(name) LIKE ?", "%"+q+"%")
		}

		var items []models.InventoryItem
		if err := dbq.Order("category ASC, name ASC").Find(&items).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list items")
		}

		ids := make([]uint, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ID)
		}
		st, err := loadItemStats(database.DB, ids)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load item stats")
		}

		res := make([]ItemResponse, 0, len(items))
		for _, it := range items {
			res = append(res, toItemResponse(it, st))
		}
		return c.JSON(res)
	}
}

// GET /api/inventory/items/:id
func GetItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		it, err := loadItem(c, scope)
		if err != nil {
			return err
		}

		st, err := loadItemStats(database.DB, []uint{it.ID})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load item stats")
		}

		var units []models.InventoryUnit
		if err := database.DB.Where("item_id = ?", it.ID).Order("serial_number ASC").Find(&units).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load units")
		}

		resp := ItemDetailResponse{ItemResponse: toItemResponse(it, st), Units: make([]UnitResponse, 0, len(units))}
		for _, u := range units {
			u.Item = it
			resp.Units = append(resp.Units, toUnitResponse(u))
		}
		return c.JSON(resp)
	}
}

// POST /api/inventory/items
func CreateItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body CreateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		branchID, err := scope.TargetBranch(body.BranchID)
		if err != nil {
			return err
		}

		it := models.InventoryItem{
			BranchID:      branchID,
			Name:          strings.TrimSpace(body.Name),
			Category:      strings.TrimSpace(body.Category),
			TrackingType:  models.TrackingType(strings.ToLower(strings.TrimSpace(body.TrackingType))),
			TotalQuantity: body.TotalQuantity,
			Description:   strings.TrimSpace(body.Description),
		}
		if it.TrackingType == "" {
			it.TrackingType = models.TrackingQuantity
		}

		if it.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name is required")
		}
		if !models.ValidInventoryCategory(it.Category) {
			return fiber.NewError(fiber.StatusBadRequest, "category must be one of "+strings.Join(models.InventoryCategories, ", "))
		}
		switch it.TrackingType {
		case models.TrackingQuantity:
			if it.TotalQuantity < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "total_quantity cannot be negative")
			}
		case models.TrackingSerialised:
			// stock is the number of units
			it.TotalQuantity = 0
		default:
			return fiber.NewError(fiber.StatusBadRequest, "tracking_type must be quantity or serialised")
		}

		if err := database.DB.Omit("Branch").Create(&it).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create item")
		}

		audit.Record(audit.Actor(c, &it.BranchID).Entity(audit.EntityInventoryItem, it.ID,
			models.AuditActionCreate, "Inventory item created: "+it.Name, nil, it))

		return c.Status(fiber.StatusCreated).JSON(toItemResponse(it, itemStats{}))
	}
}

// PUT /api/inventory/items/:id
func UpdateItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		it, err := loadItem(c, scope)
		if err != nil {
			return err
		}
		before := it

		var body UpdateItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		changes := map[string]any{}
		if body.Name != nil {
			if it.Name = strings.TrimSpace(*body.Name); it.Name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name is required")
			}
			changes["name"] = it.Name
		}
		if body.Category != nil {
			it.Category = strings.TrimSpace(*body.Category)
			if !models.ValidInventoryCategory(it.Category) {
				return fiber.NewError(fiber.StatusBadRequest, "category must be one of "+strings.Join(models.InventoryCategories, ", "))
			}
			changes["category"] = it.Category
		}
		if body.Description != nil {
			it.Description = strings.TrimSpace(*body.Description)
			changes["description"] = it.Description
		}
		if body.TotalQuantity != nil {
			if it.TrackingType != models.TrackingQuantity {
				return fiber.NewError(fiber.StatusBadRequest, "Serialised items are counted by their units")
			}
			if *body.TotalQuantity < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "total_quantity cannot be negative")
			}
			changes["total_quantity"] = *body.TotalQuantity
		}

		// Touched columns only: assign/return move total_quantity concurrently.
		if len(changes) > 0 {
			if err := database.DB.Model(&models.InventoryItem{}).Where("id = ?", it.ID).Updates(changes).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not update item")
			}
		}
		if err := database.DB.First(&it, it.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not reload item")
		}

		audit.Record(audit.Actor(c, &it.BranchID).Entity(audit.EntityInventoryItem, it.ID,
			models.AuditActionUpdate, "Inventory item updated: "+it.Name, stripItem(before), stripItem(it)))

		st, err := loadItemStats(database.DB, []uint{it.ID})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load item stats")
		}
		return c.JSON(toItemResponse(it, st))
	}
}

// DELETE /api/inventory/items/:id
func DeleteItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		it, err := loadItem(c, scope)
		if err != nil {
			return err
		}

		var units int64
		if err := database.DB.Model(&models.InventoryUnit{}).Where("item_id = ?", it.ID).Count(&units).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check units")
		}
		if units > 0 {
			return fiber.NewError(fiber.StatusConflict, "Cannot delete an item that still has units")
		}
		open, err := OpenCount(database.DB, "item_id", it.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check assignments")
		}
		if open > 0 {
			return fiber.NewError(fiber.StatusConflict, "Cannot delete an item with open assignments")
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("item_id = ?", it.ID).Delete(&models.InventoryAssignment{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.InventoryItem{}, it.ID).Error
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete item")
		}

		audit.Record(audit.Actor(c, &it.BranchID).Entity(audit.EntityInventoryItem, it.ID,
			models.AuditActionDelete, "Inventory item deleted: "+it.Name, stripItem(it), nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}
