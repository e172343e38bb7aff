package places

import (
	"errors"
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type PlaceResponse struct {
	ID            uint                `json:"id"`
	BranchID      uint                `json:"branch_id"`
	BranchName    string              `json:"branch_name,omitempty"`
	Name          string              `json:"name"`
	Address       string              `json:"address"`
	City          string              `json:"city"`
	ContactPerson string              `json:"contact_person"`
	ContactPhone  string              `json:"contact_phone"`
	Status        models.RecordStatus `json:"status"`
	Notes         string              `json:"notes"`
	CreatedAt     string              `json:"created_at"`
}

type PlaceAssignment struct {
	ID        uint             `json:"id"`
	GuardID   uint             `json:"guard_id"`
	GuardName string           `json:"guard_name"`
	GuardCode string           `json:"guard_code"`
	ShiftType models.ShiftType `json:"shift_type"`
	StartDate string           `json:"start_date"`
	EndDate   *string          `json:"end_date"`
}

type PlaceDetailResponse struct {
	PlaceResponse
	ActiveAssignments []PlaceAssignment    `json:"active_assignments"`
	Inventory         []inventory.HeldItem `json:"inventory"`
}

type CreatePlaceRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	City          string `json:"city"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
	BranchID      *uint  `json:"branch_id"`
}

type UpdatePlaceRequest struct {
	Name          *string `json:"name"`
	Address       *string `json:"address"`
	City          *string `json:"city"`
	ContactPerson *string `json:"contact_person"`
	ContactPhone  *string `json:"contact_phone"`
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
}

func toPlaceResponse(p models.Place) PlaceResponse {
	return PlaceResponse{
		ID:            p.ID,
		BranchID:      p.BranchID,
		BranchName:    p.Branch.Name,
		Name:          p.Name,
		Address:       p.Address,
		City:          p.City,
		ContactPerson: p.ContactPerson,
		ContactPhone:  p.ContactPhone,
		Status:        p.Status,
		Notes:         p.Notes,
		CreatedAt:     httputil.FormatDateTime(p.CreatedAt),
	}
}

func loadPlace(c *fiber.Ctx, scope auth.Scope) (models.Place, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.Place{}, err
	}

	var p models.Place
	if err := database.DB.Preload("Branch").First(&p, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.Place{}, fiber.NewError(fiber.StatusNotFound, "Place not found")
		}
		return models.Place{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load place")
	}
	if !scope.CanAccess(p.BranchID) {
		return models.Place{}, fiber.NewError(fiber.StatusForbidden, "This place belongs to another branch")
	}
	return p, nil
}

// validate checks the required fields after trimming.
func validate(p *models.Place) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Address = strings.TrimSpace(p.Address)
	p.City = strings.TrimSpace(p.City)
	p.ContactPerson = strings.TrimSpace(p.ContactPerson)
	p.ContactPhone = strings.TrimSpace(p.ContactPhone)
	p.Notes = strings.TrimSpace(p.Notes)

	if p.Name == "" || p.Address == "" || p.City == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name, address and city are required")
	}
	return nil
}

// GET /api/places?status=active&q=plaza&city=Lahore&branch_id=1
func ListPlacesHandler() fiber.Handler {
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
		if city := strings.TrimSpace(c.Query("city")); city != "" {
			dbq = dbq.Where("LOWER(city) = ?", strings.ToLower(city))
		}
		if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
			like := "%" + q + "%"
			dbq = dbq.Where("LOWER(name) LIKE ? OR LOWER(address) LIKE ?", like, like)
		}

		var places []models.Place
		if err := dbq.Order("name ASC, id ASC").Find(&places).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list places")
		}

		res := make([]PlaceResponse, 0, len(places))
		for _, p := range places {
			res = append(res, toPlaceResponse(p))
		}
		return c.JSON(res)
	}
}

// GET /api/places/:id
func GetPlaceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		p, err := loadPlace(c, scope)
		if err != nil {
			return err
		}

		var assignments []models.Assignment
		if err := database.DB.Preload("Guard").
			Where("place_id = ? AND status = ?", p.ID, models.AssignmentActive).
			Order("start_date DESC").
			Find(&assignments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load assignments")
		}

		held, err := inventory.HeldAtPlaces(database.DB, []uint{p.ID})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load inventory")
		}

		resp := PlaceDetailResponse{
			PlaceResponse:     toPlaceResponse(p),
			ActiveAssignments: make([]PlaceAssignment, 0, len(assignments)),
			Inventory:         held[p.ID],
		}
		if resp.Inventory == nil {
			resp.Inventory = []inventory.HeldItem{}
		}
		for _, a := range assignments {
			resp.ActiveAssignments = append(resp.ActiveAssignments, PlaceAssignment{
				ID:        a.ID,
				GuardID:   a.GuardID,
				GuardName: a.Guard.Name,
				GuardCode: a.Guard.GuardCode,
				ShiftType: a.ShiftType,
				StartDate: httputil.FormatDate(a.StartDate),
				EndDate:   httputil.FormatDatePtr(a.EndDate),
			})
		}
		return c.JSON(resp)
	}
}

// POST /api/places
func CreatePlaceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body CreatePlaceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		branchID, err := scope.TargetBranch(body.BranchID)
		if err != nil {
			return err
		}

		p := models.Place{
			BranchID:      branchID,
			Name:          body.Name,
			Address:       body.Address,
			City:          body.City,
			ContactPerson: body.ContactPerson,
			ContactPhone:  body.ContactPhone,
			Notes:         body.Notes,
		}
		if err := validate(&p); err != nil {
			return err
		}
		status, ok := models.ParseRecordStatus(body.Status)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "status must be active or inactive")
		}
		p.Status = status

		if err := database.DB.Omit("Branch").Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create place")
		}

		audit.Record(audit.Actor(c, &p.BranchID).Entity(audit.EntityPlace, p.ID,
			models.AuditActionCreate, "Place created: "+p.Name, nil, p))

		return c.Status(fiber.StatusCreated).JSON(toPlaceResponse(p))
	}
}

// PUT /api/places/:id
func UpdatePlaceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		p, err := loadPlace(c, scope)
		if err != nil {
			return err
		}
		p.Branch = models.Branch{}
		before := p

		var body UpdatePlaceRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.Name != nil {
			p.Name = *body.Name
		}
		if body.Address != nil {
			p.Address = *body.Address
		}
		if body.City != nil {
			p.City = *body.City
		}
		if body.ContactPerson != nil {
			p.ContactPerson = *body.ContactPerson
		}
		if body.ContactPhone != nil {
			p.ContactPhone = *body.ContactPhone
		}
		if body.Notes != nil {
			p.Notes = *body.Notes
		}
		if err := validate(&p); err != nil {
			return err
		}
		if body.Status != nil {
			status, ok := models.ParseRecordStatus(*body.Status)
			if !ok {
				return fiber.NewError(fiber.StatusBadRequest, "status must be active or inactive")
			}
			p.Status = status
		}

		if err := database.DB.Omit("Branch").Save(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update place")
		}

		audit.Record(audit.Actor(c, &p.BranchID).Entity(audit.EntityPlace, p.ID,
			models.AuditActionUpdate, "Place updated: "+p.Name, before, p))

		return c.JSON(toPlaceResponse(p))
	}
}

// removePlace refuses while the place is staffed, billed or holds inventory;
// otherwise its attendance, past assignments and returned inventory go with it.
func removePlace(tx *gorm.DB, id uint) error {
	var active int64
	if err := tx.Model(&models.Assignment{}).
		Where("place_id = ? AND status = ?", id, models.AssignmentActive).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return fiber.NewError(fiber.StatusConflict, "Cannot delete place with active assignments")
	}

	var invoices int64
	if err := tx.Model(&models.Invoice{}).Where("place_id = ?", id).Count(&invoices).Error; err != nil {
		return err
	}
	if invoices > 0 {
		return fiber.NewError(fiber.StatusConflict, "Cannot delete place with invoices")
	}

	held, err := inventory.OpenCount(tx, "place_id", id)
	if err != nil {
		return err
	}
	if held > 0 {
		return fiber.NewError(fiber.StatusConflict, "Return the place's inventory before deleting")
	}

	if err := tx.Where("place_id = ?", id).Delete(&models.Attendance{}).Error; err != nil {
		return err
	}
	if err := tx.Where("place_id = ?", id).Delete(&models.Assignment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("place_id = ? AND returned_at IS NOT NULL", id).Delete(&models.InventoryAssignment{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Place{}, id).Error
}

// DELETE /api/places/:id
func DeletePlaceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		p, err := loadPlace(c, scope)
		if err != nil {
			return err
		}
		p.Branch = models.Branch{}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return removePlace(tx, p.ID)
		})
		if err != nil {
			var refused *fiber.Error
			if errors.As(err, &refused) {
				return refused
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete place")
		}

		audit.Record(audit.Actor(c, &p.BranchID).Entity(audit.EntityPlace, p.ID,
			models.AuditActionDelete, "Place deleted: "+p.Name, p, nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}
