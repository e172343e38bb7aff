package assignments

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

type AssignmentResponse struct {
	ID        uint                    `json:"id"`
	BranchID  uint                    `json:"branch_id"`
	GuardID   uint                    `json:"guard_id"`
	GuardName string                  `json:"guard_name"`
	GuardCode string                  `json:"guard_code"`
	PlaceID   uint                    `json:"place_id"`
	PlaceName string                  `json:"place_name"`
	ShiftType models.ShiftType        `json:"shift_type"`
	StartDate string                  `json:"start_date"`
	EndDate   *string                 `json:"end_date"`
	Status    models.AssignmentStatus `json:"status"`
	Notes     string                  `json:"notes"`
	CreatedAt string                  `json:"created_at"`
}

type CreateAssignmentRequest struct {
	GuardID   uint   `json:"guard_id"`
	PlaceID   uint   `json:"place_id"`
	ShiftType string `json:"shift_type"`
	StartDate string `json:"start_date"` // "2026-01-15"
	EndDate   string `json:"end_date"`   // optional
	Notes     string `json:"notes"`
}

type UpdateAssignmentRequest struct {
	GuardID   *uint   `json:"guard_id"`
	PlaceID   *uint   `json:"place_id"`
	ShiftType *string `json:"shift_type"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"` // "" clears it
	Status    *string `json:"status"`
	Notes     *string `json:"notes"`
}

type AssignmentStatsResponse struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
}

func toAssignmentResponse(a models.Assignment) AssignmentResponse {
	return AssignmentResponse{
		ID:        a.ID,
		BranchID:  a.BranchID,
		GuardID:   a.GuardID,
		GuardName: a.Guard.Name,
		GuardCode: a.Guard.GuardCode,
		PlaceID:   a.PlaceID,
		PlaceName: a.Place.Name,
		ShiftType: a.ShiftType,
		StartDate: httputil.FormatDate(a.StartDate),
		EndDate:   httputil.FormatDatePtr(a.EndDate),
		Status:    a.Status,
		Notes:     a.Notes,
		CreatedAt: httputil.FormatDateTime(a.CreatedAt),
	}
}

// stripped drops preloaded associations before the record is audited.
func stripped(a models.Assignment) models.Assignment {
	a.Guard = models.Guard{}
	a.Place = models.Place{}
	return a
}

func loadAssignment(c *fiber.Ctx, scope auth.Scope) (models.Assignment, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.Assignment{}, err
	}

	var a models.Assignment
	if err := database.DB.Preload("Guard").Preload("Place").First(&a, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.Assignment{}, fiber.NewError(fiber.StatusNotFound, "Assignment not found")
		}
		return models.Assignment{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load assignment")
	}
	if !scope.CanAccess(a.BranchID) {
		return models.Assignment{}, fiber.NewError(fiber.StatusForbidden, "This assignment belongs to another branch")
	}
	return a, nil
}

// resolveParties loads guard and place, checks scope and that both belong to
// the same branch. Active status is required only for active assignments.
// A nil canAccess skips the scope check.
func resolveParties(db *gorm.DB, canAccess func(branchID uint) bool, a *models.Assignment) error {
	var place models.Place
	if err := db.First(&place, a.PlaceID).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Place not found")
	}
	if canAccess != nil && !canAccess(place.BranchID) {
		return fiber.NewError(fiber.StatusForbidden, "This place belongs to another branch")
	}

	var guard models.Guard
	if err := db.First(&guard, a.GuardID).Error; err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Guard not found")
	}
	if guard.BranchID != place.BranchID {
		return fiber.NewError(fiber.StatusBadRequest, "Guard and place must belong to the same branch")
	}

	if a.Status == models.AssignmentActive {
		if place.Status != models.StatusActive {
			return fiber.NewError(fiber.StatusBadRequest, "Place is inactive")
		}
		if guard.Status != models.StatusActive {
			return fiber.NewError(fiber.StatusBadRequest, "Guard is inactive")
		}
	}

	a.BranchID = place.BranchID
	a.Guard = guard
	a.Place = place
	return nil
}

// checkSchedule enforces date order and the no-double-booking rule.
func checkSchedule(db *gorm.DB, a models.Assignment) error {
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return fiber.NewError(fiber.StatusBadRequest, "end_date must not be before start_date")
	}
	if a.Status != models.AssignmentActive {
		return nil
	}
	conflict, err := FindConflict(db, a)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Could not check schedule")
	}
	if conflict != nil {
		return fiber.NewError(fiber.StatusConflict, conflict.Error())
	}
	return nil
}

// GET /api/assignments?status=active&guard_id=1&place_id=2&branch_id=1
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

		dbq := auth.Apply(database.DB.Preload("Guard").Preload("Place"), "branch_id", branchID)
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}
		for _, key := range []string{"guard_id", "place_id"} {
			v, err := httputil.QueryUint(c, key)
			if err != nil {
				return err
			}
			if v != nil {
				dbq = dbq.Where(key+" = ?", *v)
			}
		}

		var rows []models.Assignment
		if err := dbq.Order("start_date DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list assignments")
		}

		res := make([]AssignmentResponse, 0, len(rows))
		for _, a := range rows {
			res = append(res, toAssignmentResponse(a))
		}
		return c.JSON(res)
	}
}

// GET /api/assignments/stats
func AssignmentStatsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		var rows []struct {
			Status models.AssignmentStatus
			N      int64
		}
		if err := auth.Apply(database.DB.Model(&models.Assignment{}), "branch_id", branchID).
			Select("status, COUNT(*) AS n").
			Group("status").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not count assignments")
		}

		var res AssignmentStatsResponse
		for _, r := range rows {
			switch r.Status {
			case models.AssignmentActive:
				res.Active = r.N
			case models.AssignmentCompleted:
				res.Completed = r.N
			case models.AssignmentCancelled:
				res.Cancelled = r.N
			}
		}
		return c.JSON(res)
	}
}

// GET /api/assignments/:id
func GetAssignmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		a, err := loadAssignment(c, scope)
		if err != nil {
			return err
		}
		return c.JSON(toAssignmentResponse(a))
	}
}

// POST /api/assignments
func CreateAssignmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body CreateAssignmentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.GuardID == 0 || body.PlaceID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "guard_id and place_id are required")
		}

		shift := models.ShiftType(strings.ToLower(strings.TrimSpace(body.ShiftType)))
		if !shift.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "shift_type must be day, night or both")
		}
		start, err := httputil.ParseDate(body.StartDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
		}
		end, err := httputil.ParseOptionalDate(body.EndDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
		}

		a := models.Assignment{
			GuardID:   body.GuardID,
			PlaceID:   body.PlaceID,
			ShiftType: shift,
			StartDate: start,
			EndDate:   end,
			Status:    models.AssignmentActive,
			Notes:     strings.TrimSpace(body.Notes),
		}
		if err := resolveParties(database.DB, scope.CanAccess, &a); err != nil {
			return err
		}
		if err := checkSchedule(database.DB, a); err != nil {
			return err
		}

		if err := database.DB.Omit("Guard", "Place").Create(&a).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create assignment")
		}

		audit.Record(audit.Actor(c, &a.BranchID).Entity(audit.EntityAssignment, a.ID,
			models.AuditActionCreate, "Assignment created: "+a.Guard.Name+" at "+a.Place.Name, nil, stripped(a)))

		return c.Status(fiber.StatusCreated).JSON(toAssignmentResponse(a))
	}
}

// PUT /api/assignments/:id
func UpdateAssignmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		a, err := loadAssignment(c, scope)
		if err != nil {
			return err
		}
		before := stripped(a)

		var body UpdateAssignmentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.GuardID != nil {
			a.GuardID = *body.GuardID
		}
		if body.PlaceID != nil {
			a.PlaceID = *body.PlaceID
		}
		if body.ShiftType != nil {
			a.ShiftType = models.ShiftType(strings.ToLower(strings.TrimSpace(*body.ShiftType)))
			if !a.ShiftType.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "shift_type must be day, night or both")
			}
		}
		if body.StartDate != nil {
			if a.StartDate, err = httputil.ParseDate(*body.StartDate); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "start_date must be YYYY-MM-DD")
			}
		}
		if body.EndDate != nil {
			if a.EndDate, err = httputil.ParseOptionalDate(*body.EndDate); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "end_date must be YYYY-MM-DD")
			}
		}
		if body.Status != nil {
			a.Status = models.AssignmentStatus(strings.ToLower(strings.TrimSpace(*body.Status)))
			if !a.Status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "status must be active, completed or cancelled")
			}
		}
		if body.Notes != nil {
			a.Notes = strings.TrimSpace(*body.Notes)
		}

		// Completing an open-ended assignment closes it today.
		if a.Status == models.AssignmentCompleted && a.EndDate == nil {
			end := httputil.Today()
			if end.Before(a.StartDate) {
				end = a.StartDate
			}
			a.EndDate = &end
		}

		if err := resolveParties(database.DB, scope.CanAccess, &a); err != nil {
			return err
		}
		if err := checkSchedule(database.DB, a); err != nil {
			return err
		}

		if err := database.DB.Omit("Guard", "Place").Save(&a).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update assignment")
		}

		audit.Record(audit.Actor(c, &a.BranchID).Entity(audit.EntityAssignment, a.ID,
			models.AuditActionUpdate, "Assignment updated: "+a.Guard.Name+" at "+a.Place.Name, before, stripped(a)))

		return c.JSON(toAssignmentResponse(a))
	}
}

// removeAssignment deletes the assignment; attendance taken under it stays,
// unlinked.
func removeAssignment(tx *gorm.DB, id uint) error {
	if err := tx.Model(&models.Attendance{}).Where("assignment_id = ?", id).
		Update("assignment_id", nil).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Assignment{}, id).Error
}

// DELETE /api/assignments/:id
func DeleteAssignmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		a, err := loadAssignment(c, scope)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return removeAssignment(tx, a.ID)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete assignment")
		}

		audit.Record(audit.Actor(c, &a.BranchID).Entity(audit.EntityAssignment, a.ID,
			models.AuditActionDelete, "Assignment deleted: "+a.Guard.Name+" at "+a.Place.Name, stripped(a), nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}
