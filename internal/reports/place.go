package reports

import (
	"fmt"

	"sheriff-backend/internal/attendance"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type PlaceDetails struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	City          string `json:"city"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
	BranchName    string `json:"branch_name"`
}

type PlaceSummary struct {
	attendance.Summary
	TotalDays int `json:"total_days"`
}

type PlaceGuard struct {
	AssignmentID uint                    `json:"assignment_id"`
	GuardID      uint                    `json:"guard_id"`
	GuardCode    string                  `json:"guard_code"`
	GuardName    string                  `json:"guard_name"`
	Phone        string                  `json:"phone"`
	ShiftType    models.ShiftType        `json:"shift_type"`
	StartDate    string                  `json:"start_date"`
	EndDate      *string                 `json:"end_date"`
	Status       models.AssignmentStatus `json:"status"`
	Inventory    []inventory.HeldItem    `json:"inventory"`
}

type PlaceReport struct {
	StartDate         string               `json:"start_date"`
	EndDate           string               `json:"end_date"`
	Place             PlaceDetails         `json:"place"`
	AttendanceSummary PlaceSummary         `json:"attendance_summary"`
	Guards            []PlaceGuard         `json:"guards"`
	Inventory         []inventory.HeldItem `json:"inventory"`
}

// DistinctDays counts the calendar days that carry at least one record.
func DistinctDays(records []models.Attendance) int {
	days := map[string]struct{}{}
	for _, r := range records {
		days[httputil.FormatDate(r.Date)] = struct{}{}
	}
	return len(days)
}

func (r PlaceReport) document() Document {
	guards := Table{
		Title:   "Guards",
		Headers: []string{"Code", "Guard", "Phone", "Shift", "From", "To", "Status", "Items"},
		Widths:  []float64{2, 4, 3, 1.5, 2.5, 2.5, 2, 1.5},
	}
	for _, g := range r.Guards {
		to := "ongoing"
		if g.EndDate != nil {
			to = *g.EndDate
		}
		guards.Rows = append(guards.Rows, []string{
			g.GuardCode, g.GuardName, g.Phone, string(g.ShiftType), g.StartDate, to, string(g.Status), fmt.Sprint(len(g.Inventory)),
		})
	}

	items := Table{
		Title:      "Inventory at place",
		Headers:    []string{"Item", "Category", "Serial", "Qty", "Since"},
		Widths:     []float64{4, 3, 3, 1.5, 3.5},
		RightAlign: []int{3},
	}
	for _, h := range r.Inventory {
		items.Rows = append(items.Rows, []string{h.ItemName, h.Category, h.SerialNumber, fmt.Sprint(h.Quantity), h.AssignedAt})
	}

	s := r.AttendanceSummary
	return Document{
		Title:    "Place Report: " + r.Place.Name,
		Subtitle: fmt.Sprintf("%s, %s | %s to %s", r.Place.Address, r.Place.City, r.StartDate, r.EndDate),
		Summary: [][2]string{
			{"Branch", r.Place.BranchName},
			{"Contact", r.Place.ContactPerson + " " + r.Place.ContactPhone},
			{"Days with attendance", fmt.Sprint(s.TotalDays)},
			{"Records", fmt.Sprint(s.Total)},
			{"Present", fmt.Sprint(s.Present)},
			{"Absent", fmt.Sprint(s.Absent)},
			{"Late", fmt.Sprint(s.Late)},
			{"Attendance rate", fmt.Sprintf("%d%%", s.AttendanceRate)},
		},
		Tables: []Table{guards, items},
	}
}

// GET /api/reports/place?place_id&start_date&end_date&format
func PlaceReportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := parseFormat(c)
		if err != nil {
			return err
		}
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
		start, end, err := httputil.DateRange(c, 30)
		if err != nil {
			return err
		}

		var place models.Place
		if err := database.DB.Preload("Branch").First(&place, *placeID).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusNotFound, "Place not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load place")
		}
		if !scope.CanAccess(place.BranchID) {
			return fiber.NewError(fiber.StatusForbidden, "This place belongs to another branch")
		}

		var records []models.Attendance
		if err := database.DB.Where("place_id = ? AND date BETWEEN ? AND ?", place.ID, start, end).
			Find(&records).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load attendance")
		}

		var assignments []models.Assignment
		if err := database.DB.Preload("Guard").
			Where("place_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)", place.ID, end, start).
			Where("status <> ?", models.AssignmentCancelled).
			Order("start_date ASC, id ASC").
			Find(&assignments).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load assignments")
		}

		guardIDs := make([]uint, 0, len(assignments))
		for _, a := range assignments {
			guardIDs = append(guardIDs, a.GuardID)
		}
		heldByGuard, err := inventory.HeldByGuards(database.DB, guardIDs)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load inventory")
		}
		heldAtPlace, err := inventory.HeldAtPlaces(database.DB, []uint{place.ID})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load inventory")
		}

		report := PlaceReport{
			StartDate: httputil.FormatDate(start),
			EndDate:   httputil.FormatDate(end),
			Place: PlaceDetails{
				ID:            place.ID,
				Name:          place.Name,
				Address:       place.Address,
				City:          place.City,
				ContactPerson: place.ContactPerson,
				ContactPhone:  place.ContactPhone,
				BranchName:    place.Branch.Name,
			},
			AttendanceSummary: PlaceSummary{
				Summary:   attendance.Summarize(records),
				TotalDays: DistinctDays(records),
			},
			Guards:    make([]PlaceGuard, 0, len(assignments)),
			Inventory: heldAtPlace[place.ID],
		}
		if report.Inventory == nil {
			report.Inventory = []inventory.HeldItem{}
		}
		for _, a := range assignments {
			items := heldByGuard[a.GuardID]
			if items == nil {
				items = []inventory.HeldItem{}
			}
			report.Guards = append(report.Guards, PlaceGuard{
				AssignmentID: a.ID,
				GuardID:      a.GuardID,
				GuardCode:    a.Guard.GuardCode,
				GuardName:    a.Guard.Name,
				Phone:        a.Guard.Phone,
				ShiftType:    a.ShiftType,
				StartDate:    httputil.FormatDate(a.StartDate),
				EndDate:      httputil.FormatDatePtr(a.EndDate),
				Status:       a.Status,
				Inventory:    items,
			})
		}

		return respond(c, format, report, report.document)
	}
}
