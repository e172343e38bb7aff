package guards

import (
	"errors"
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/models"
	"sheriff-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GuardResponse struct {
	ID         uint                `json:"id"`
	BranchID   uint                `json:"branch_id"`
	BranchName string              `json:"branch_name,omitempty"`
	GuardCode  string              `json:"guard_code"`
	Name       string              `json:"name"`
	CNIC       string              `json:"cnic"`
	Phone      string              `json:"phone"`
	Address    string              `json:"address"`
	PhotoURL   string              `json:"photo_url"`
	Status     models.RecordStatus `json:"status"`
	Notes      string              `json:"notes"`
	CreatedAt  string              `json:"created_at"`
}

type GuardAssignment struct {
	ID        uint             `json:"id"`
	PlaceID   uint             `json:"place_id"`
	PlaceName string           `json:"place_name"`
	ShiftType models.ShiftType `json:"shift_type"`
	StartDate string           `json:"start_date"`
	EndDate   *string          `json:"end_date"`
}

type GuardDetailResponse struct {
	GuardResponse
	ActiveAssignments []GuardAssignment    `json:"active_assignments"`
	Inventory         []inventory.HeldItem `json:"inventory"`
}

type CreateGuardRequest struct {
	GuardCode string `json:"guard_code"`
	Name      string `json:"name"`
	CNIC      string `json:"cnic"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
	BranchID  *uint  `json:"branch_id"` // super_admin only
}

type UpdateGuardRequest struct {
	GuardCode *string `json:"guard_code"`
	Name      *string `json:"name"`
	CNIC      *string `json:"cnic"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
	Status    *string `json:"status"`
	Notes     *string `json:"notes"`
}

func toGuardResponse(g models.Guard) GuardResponse {
	return GuardResponse{
		ID:         g.ID,
		BranchID:   g.BranchID,
		BranchName: g.Branch.Name,
		GuardCode:  g.GuardCode,
		Name:       g.Name,
		CNIC:       g.CNIC,
		Phone:      g.Phone,
		Address:    g.Address,
		PhotoURL:   g.PhotoURL,
		Status:     g.Status,
		Notes:      g.Notes,
		CreatedAt:  httputil.FormatDateTime(g.CreatedAt),
	}
}

// loadGuard fetches :id and enforces branch scope.
func loadGuard(c *fiber.Ctx, scope auth.Scope) (models.Guard, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.Guard{}, err
	}

	var g models.Guard
	if err := database.DB.Preload("Branch").First(&g, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.Guard{}, fiber.NewError(fiber.StatusNotFound, "Guard not found")
		}
		return models.Guard{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load guard")
	}
	if !scope.CanAccess(g.BranchID) {
		return models.Guard{}, fiber.NewError(fiber.StatusForbidden, "This guard belongs to another branch")
	}
	return g, nil
}

// checkUnique rejects a code already used in the branch or a CNIC used anywhere.
func checkUnique(db *gorm.DB, branchID uint, code, cnic string, exceptID uint) error {
	var n int64
	if err := db.Model(&models.Guard{}).
		Where("branch_id = ? AND guard_code = ? AND id <> ?", branchID, code, exceptID).
		Count(&n).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Could not check guard code")
	}
	if n > 0 {
		return fiber.NewError(fiber.StatusConflict, "Guard code already exists in this branch")
	}

	if err := db.Model(&models.Guard{}).
		Where("cnic = ? AND id <> ?", cnic, exceptID).
		Count(&n).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Could not check CNIC")
	}
	if n > 0 {
		return fiber.NewError(fiber.StatusConflict, "A guard with this CNIC already exists")
	}
	return nil
}

// removeGuard refuses while the guard is on active duty or holds inventory;
// otherwise past assignments, attendance and returned inventory go with it.
func removeGuard(tx *gorm.DB, id uint) error {
	var active int64
	if err := tx.Model(&models.Assignment{}).
		Where("guard_id = ? AND status = ?", id, models.AssignmentActive).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return fiber.NewError(fiber.StatusConflict, "Cannot delete guard with active assignments")
	}

	held, err := inventory.OpenCount(tx, "guard_id", id)
	if err != nil {
		return err
	}
	if held > 0 {
		return fiber.NewError(fiber.StatusConflict, "Return the guard's inventory before deleting")
	}

	if err := tx.Where("guard_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
		return err
	}
	if err := tx.Where("guard_id = ?", id).Delete(&models.Assignment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("guard_id = ? AND returned_at IS NOT NULL", id).Delete(&models.InventoryAssignment{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Guard{}, id).Error
}

// GET /api/guards?status=active&q=ali&branch_id=1
func ListGuardsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Preload("Branch"), "branch_id", branchID)
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}
		if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
			like := "%" + q + "%"
			dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(guard_code) LIKE ? OR cnic LIKE ?", like, like, like)
		}

		var guards []models.Guard
		if err := dbq.Order("name ASC, id ASC").Find(&guards).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list guards")
		}

		res := make([]GuardResponse, 0, len(guards))
		for _, g := range guards {
			res = append(res, toGuardResponse(g))
		}
		return c.JSON(res)
	}
}

// GET /api/guards/:id
func GetGuardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		g, err := loadGuard(c, scope)
		if err != nil {
			return err
		}

		var assignments []models.Assignment
		if err := database.DB.Preload("Place").
			Where("guard_id = ? AND status = ?", g.ID, models.AssignmentActive).
			Order("start_date DESC").
			Find(&assignments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load assignments")
		}

		held, err := inventory.HeldByGuards(database.DB, []uint{g.ID})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load inventory")
		}

		resp := GuardDetailResponse{
			GuardResponse:     toGuardResponse(g),
			ActiveAssignments: make([]GuardAssignment, 0, len(assignments)),
			Inventory:         held[g.ID],
		}
		if resp.Inventory == nil {
			resp.Inventory = []inventory.HeldItem{}
		}
		for _, a := range assignments {
			resp.ActiveAssignments = append(resp.ActiveAssignments, GuardAssignment{
				ID:        a.ID,
				PlaceID:   a.PlaceID,
				PlaceName: a.Place.Name,
				ShiftType: a.ShiftType,
				StartDate: httputil.FormatDate(a.StartDate),
				EndDate:   httputil.FormatDatePtr(a.EndDate),
			})
		}
		return c.JSON(resp)
	}
}

// POST /api/guards
func CreateGuardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body CreateGuardRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		branchID, err := scope.TargetBranch(body.BranchID)
		if err != nil {
			return err
		}

		g := models.Guard{
			BranchID:  branchID,
			GuardCode: normalizeCode(body.GuardCode),
			Name:      strings.TrimSpace(body.Name),
			Phone:     strings.TrimSpace(body.Phone),
			Address:   strings.TrimSpace(body.Address),
			Notes:     strings.TrimSpace(body.Notes),
		}
		if g.GuardCode == "" || g.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "guard_code and name are required")
		}
		if g.CNIC, err = NormalizeCNIC(body.CNIC); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		status, ok := models.ParseRecordStatus(body.Status)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "status must be active or inactive")
		}
		g.Status = status

		if err := checkUnique(database.DB, g.BranchID, g.GuardCode, g.CNIC, 0); err != nil {
			return err
		}

		if err := database.DB.Omit("Branch").Create(&g).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create guard")
		}

		audit.Record(audit.Actor(c, &g.BranchID).Entity(audit.EntityGuard, g.ID,
			models.AuditActionCreate, "Guard created: "+g.Name, nil, g))

		return c.Status(fiber.StatusCreated).JSON(toGuardResponse(g))
	}
}

// PUT /api/guards/:id
func UpdateGuardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		g, err := loadGuard(c, scope)
		if err != nil {
			return err
		}
		before := g
		before.Branch = models.Branch{}

		var body UpdateGuardRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.GuardCode != nil {
			if g.GuardCode = normalizeCode(*body.GuardCode); g.GuardCode == "" {
				return fiber.NewError(fiber.StatusBadRequest, "guard_code is required")
			}
		}
		if body.Name != nil {
			if g.Name = strings.TrimSpace(*body.Name); g.Name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name is required")
			}
		}
		if body.CNIC != nil {
			if g.CNIC, err = NormalizeCNIC(*body.CNIC); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		if body.Phone != nil {
			g.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.Address != nil {
			g.Address = strings.TrimSpace(*body.Address)
		}
		if body.Notes != nil {
			g.Notes = strings.TrimSpace(*body.Notes)
		}
		if body.Status != nil {
			status, ok := models.ParseRecordStatus(*body.Status)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "status must be active or inactive")
			}
			g.Status = status
		}

		if err := checkUnique(database.DB, g.BranchID, g.GuardCode, g.CNIC, g.ID); err != nil {
			return err
		}

		if err := database.DB.Omit("Branch").Save(&g).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update guard")
		}

		after := g
		after.Branch = models.Branch{}
		audit.Record(audit.Actor(c, &g.BranchID).Entity(audit.EntityGuard, g.ID,
			models.AuditActionUpdate, "Guard updated: "+g.Name, before, after))

		return c.JSON(toGuardResponse(g))
	}
}

// DELETE /api/guards/:id
func DeleteGuardHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		g, err := loadGuard(c, scope)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return removeGuard(tx, g.ID)
		})
		if err != nil {
			var refused *fiber.Error
			if errors.As(err, &refused) {
				return refused
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete guard")
		}

		g.Branch = models.Branch{}
		audit.Record(audit.Actor(c, &g.BranchID).Entity(audit.EntityGuard, g.ID,
			models.AuditActionDelete, "Guard deleted: "+g.Name, g, nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/guards/:id/photo (multipart "photo")
func UploadPhotoHandler(store *storage.Local) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		g, err := loadGuard(c, scope)
		if err != nil {
			return err
		}

		fh, err := c.FormFile("photo")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "photo file is required")
		}

		url, err := store.SaveImage("guards", fh)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrTooLarge):
				return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Photo is too large")
			case errors.Is(err, storage.ErrUnsupportedType):
				return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
			}
			zap.L().Error("guard photo upload failed", zap.Uint("guard_id", g.ID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "Could not store photo")
		}

		old := g.PhotoURL
		if err := database.DB.Model(&models.Guard{}).Where("id = ?", g.ID).Update("photo_url", url).Error; err != nil {
			_ = store.Remove(url)
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update guard")
		}
		if err := store.Remove(old); err != nil {
			zap.L().Warn("could not remove old photo", zap.String("url", old), zap.Error(err))
		}

		g.PhotoURL = url
		return c.JSON(toGuardResponse(g))
	}
}
