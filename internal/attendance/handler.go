package attendance

import (
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

type RecordResponse struct {
	ID        uint                    `json:"id"`
	BranchID  uint                    `json:"branch_id"`
	GuardID   uint                    `json:"guard_id"`
	GuardName string                  `json:"guard_name"`
	GuardCode string                  `json:"guard_code"`
	PlaceID   uint                    `json:"place_id"`
	PlaceName string                  `json:"place_name"`
	Date      string                  `json:"date"`
	Shift     models.ShiftType        `json:"shift"`
	Status    models.AttendanceStatus `json:"status"`
	CheckIn   string                  `json:"check_in"`
	CheckOut  string                  `json:"check_out"`
	Notes     string                  `json:"notes"`
}

type SheetRecord struct {
	ID       uint                    `json:"id"`
	Status   models.AttendanceStatus `json:"status"`
	CheckIn  string                  `json:"check_in"`
	CheckOut string                  `json:"check_out"`
	Notes    string                  `json:"notes"`
}

type SheetRow struct {
	AssignmentID uint             `json:"assignment_id"`
	GuardID      uint             `json:"guard_id"`
	GuardName    string           `json:"guard_name"`
	GuardCode    string           `json:"guard_code"`
	Shift        models.ShiftType `json:"shift"`
	Record       *SheetRecord     `json:"record"`
}

type SheetResponse struct {
	PlaceID   uint       `json:"place_id"`
	PlaceName string     `json:"place_name"`
	Date      string     `json:"date"`
	Rows      []SheetRow `json:"rows"`
}

type MarkEntry struct {
	GuardID  uint   `json:"guard_id"`
	Shift    string `json:"shift"`
	Status   string `json:"status"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Notes    string `json:"notes"`
}

type MarkRequest struct {
	PlaceID uint        `json:"place_id"`
	Date    string      `json:"date"`
	Records []MarkEntry `json:"records"`
}

type MarkResponse struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Records []RecordResponse `json:"records"`
}

func toRecordResponse(r models.Attendance) RecordResponse {
	return RecordResponse{
		ID:        r.ID,
		BranchID:  r.BranchID,
		GuardID:   r.GuardID,
		GuardName: r.Guard.Name,
		GuardCode: r.Guard.GuardCode,
		PlaceID:   r.PlaceID,
		PlaceName: r.Place.Name,
		Date:      httputil.FormatDate(r.Date),
		Shift:     r.Shift,
		Status:    r.Status,
		CheckIn:   r.CheckIn,
		CheckOut:  r.CheckOut,
		Notes:     r.Notes,
	}
}

// shiftsOf expands an assignment's shift into the shifts marked on a sheet.
func shiftsOf(s models.ShiftType) []models.ShiftType {
	if s == models.ShiftBoth {
		return []models.ShiftType{models.ShiftDay, models.ShiftNight}
	}
	return []models.ShiftType{s}
}

func validClock(s string) bool {
	if s == "" {
		return true
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}

// coveringAssignments returns active assignments at placeID that cover date.
func coveringAssignments(db *gorm.DB, placeID uint, date time.Time) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := db.Preload("Guard").
		Where("place_id = ? AND status = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)",
			placeID, models.AssignmentActive, date, date).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func loadPlace(scope auth.Scope, placeID uint) (models.Place, error) {
	var place models.Place
	if err := database.DB.First(&place, placeID).Error; err != nil {
		if database.IsNotFound(err) {
			return models.Place{}, fiber.NewError(fiber.StatusNotFound, "Place not found")
		}
		return models.Place{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load place")
	}
	if !scope.CanAccess(place.BranchID) {
		return models.Place{}, fiber.NewError(fiber.StatusForbidden, "This place belongs to another branch")
	}
	return place, nil
}

// GET /api/attendance/sheet?place_id=1&date=2026-01-15
func SheetHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		placeID, err := httputil.QueryUint(c, "place_id")
		if err != nil {
			return err
		}
		if placeID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "place_id is required")
		}
		date := httputil.Today()
		if s := c.Query("date"); s != "" {
			if date, err = httputil.ParseDate(s); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
		}

		place, err := loadPlace(scope, *placeID)
		if err != nil {
			return err
		}

		assignments, err := coveringAssignments(database.DB, place.ID, date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load assignments")
		}

		guardIDs := make([]uint, 0, len(assignments))
		for _, a := range assignments {
			guardIDs = append(guardIDs, a.GuardID)
		}

		existing := make(map[string]models.Attendance)
		if len(guardIDs) > 0 {
			var records []models.Attendance
			if err := database.DB.Where("guard_id IN ? AND date = ?", guardIDs, date).Find(&records).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not load attendance")
			}
			for _, r := range records {
				existing[fmt.Sprintf("%d/%s", r.GuardID, r.Shift)] = r
			}
		}

		resp := SheetResponse{
			PlaceID:   place.ID,
			PlaceName: place.Name,
			Date:      httputil.FormatDate(date),
			Rows:      []SheetRow{},
		}
		for _, a := range assignments {
			for _, shift := range shiftsOf(a.ShiftType) {
				row := SheetRow{
					AssignmentID: a.ID,
					GuardID:      a.GuardID,
					GuardName:    a.Guard.Name,
					GuardCode:    a.Guard.GuardCode,
					Shift:        shift,
				}
				if r, ok := existing[fmt.Sprintf("%d/%s", a.GuardID, shift)]; ok {
					row.Record = &SheetRecord{
						ID:       r.ID,
						Status:   r.Status,
						CheckIn:  r.CheckIn,
						CheckOut: r.CheckOut,
						Notes:    r.Notes,
					}
				}
				resp.Rows = append(resp.Rows, row)
			}
		}
		return c.JSON(resp)
	}
}

// POST /api/attendance/mark
func MarkHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var body MarkRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if body.PlaceID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "place_id is required")
		}
		if len(body.Records) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "records must not be empty")
		}
		date, err := httputil.ParseDate(body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		if date.After(httputil.Today()) {
			return fiber.NewError(fiber.StatusBadRequest, "Cannot mark attendance for a future date")
		}

		place, err := loadPlace(scope, body.PlaceID)
		if err != nil {
			return err
		}

		assignments, err := coveringAssignments(database.DB, place.ID, date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load assignments")
		}
		byGuard := make(map[uint][]models.Assignment)
		for _, a := range assignments {
			byGuard[a.GuardID] = append(byGuard[a.GuardID], a)
		}

		// Validate every entry before writing anything.
		type pending struct {
			entry      MarkEntry
			shift      models.ShiftType
			status     models.AttendanceStatus
			assignment models.Assignment
		}
		seen := make(map[string]bool)
		batch := make([]pending, 0, len(body.Records))
		for i, e := range body.Records {
			shift := models.ShiftType(strings.ToLower(strings.TrimSpace(e.Shift)))
			if shift == "" {
				shift = models.ShiftDay
			}
			if shift != models.ShiftDay && shift != models.ShiftNight {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("records[%d]: shift must be day or night", i))
			}
			status := models.AttendanceStatus(strings.ToLower(strings.TrimSpace(e.Status)))
			if !status.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("records[%d]: invalid status", i))
			}
			if !validClock(e.CheckIn) || !validClock(e.CheckOut) {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("records[%d]: times must be HH:MM", i))
			}

			key := fmt.Sprintf("%d/%s", e.GuardID, shift)
			if seen[key] {
				return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("records[%d]: duplicate guard and shift", i))
			}
			seen[key] = true

			var match *models.Assignment
			for _, a := range byGuard[e.GuardID] {
				if a.ShiftType.Conflicts(shift) {
					match = &a
					break
				}
			}
			if match == nil {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("records[%d]: guard %d is not assigned to this place for the %s shift on %s", i, e.GuardID, shift, httputil.FormatDate(date)))
			}
			batch = append(batch, pending{entry: e, shift: shift, status: status, assignment: *match})
		}

		actor := audit.Actor(c, &place.BranchID)
		resp := MarkResponse{Records: make([]RecordResponse, 0, len(batch))}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			for _, p := range batch {
				var rec models.Attendance
				err := tx.Where("guard_id = ? AND date = ? AND shift = ?", p.entry.GuardID, date, p.shift).First(&rec).Error
				isNew := database.IsNotFound(err)
				if err != nil && !isNew {
					return err
				}
				before := rec

				assignmentID := p.assignment.ID
				rec.BranchID = place.BranchID
				rec.GuardID = p.entry.GuardID
				rec.PlaceID = place.ID
				rec.AssignmentID = &assignmentID
				rec.Date = date
				rec.Shift = p.shift
				rec.Status = p.status
				rec.CheckIn = strings.TrimSpace(p.entry.CheckIn)
				rec.CheckOut = strings.TrimSpace(p.entry.CheckOut)
				rec.Notes = strings.TrimSpace(p.entry.Notes)
				rec.MarkedBy = scope.UserID

				action := models.AuditActionUpdate
				var beforeSnap any = before
				if isNew {
					action = models.AuditActionCreate
					beforeSnap = nil
					if err := tx.Omit("Guard", "Place").Create(&rec).Error; err != nil {
						return err
					}
					resp.Created++
				} else {
					if err := tx.Omit("Guard", "Place").Save(&rec).Error; err != nil {
						return err
					}
					resp.Updated++
				}

				desc := fmt.Sprintf("Attendance %s: %s %s shift %s", p.status, p.assignment.Guard.Name, p.shift, httputil.FormatDate(date))
				if err := audit.WriteLogTx(tx, actor.Entity(audit.EntityAttendance, rec.ID, action, desc, beforeSnap, rec)); err != nil {
					return err
				}

				rec.Guard = p.assignment.Guard
				rec.Place = place
				resp.Records = append(resp.Records, toRecordResponse(rec))
			}
			return nil
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not save attendance")
		}

		return c.JSON(resp)
	}
}

// GET /api/attendance?start_date&end_date&guard_id&place_id&status&branch_id
func ListAttendanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}
		start, end, err := httputil.DateRange(c, 30)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Preload("Guard").Preload("Place"), "branch_id", branchID).
			Where("date BETWEEN ? AND ?", start, end)
		for _, key := range []string{"guard_id", "place_id"} {
			v, err := httputil.QueryUint(c, key)
			if err != nil {
				return err
			}
			if v != nil {
				dbq = dbq.Where(key+" = ?", *v)
			}
		}
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}

		var rows []models.Attendance
		if err := dbq.Order("date DESC, id DESC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list attendance")
		}

		res := make([]RecordResponse, 0, len(rows))
		for _, r := range rows {
			res = append(res, toRecordResponse(r))
		}
		return c.JSON(fiber.Map{
			"start_date": httputil.FormatDate(start),
			"end_date":   httputil.FormatDate(end),
			"summary":    Summarize(rows),
			"records":    res,
		})
	}
}

// DELETE /api/attendance/:id
func DeleteAttendanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}

		var rec models.Attendance
		if err := database.DB.First(&rec, id).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusNotFound, "Attendance record not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load attendance record")
		}
		if !scope.CanAccess(rec.BranchID) {
			return fiber.NewError(fiber.StatusForbidden, "This record belongs to another branch")
		}

		if err := database.DB.Delete(&models.Attendance{}, rec.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete attendance record")
		}

		audit.Record(audit.Actor(c, &rec.BranchID).Entity(audit.EntityAttendance, rec.ID,
			models.AuditActionDelete, "Attendance deleted for "+httputil.FormatDate(rec.Date), rec, nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}
