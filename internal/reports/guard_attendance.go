package reports

import (
	"fmt"
	"sort"

	"sheriff-backend/internal/attendance"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/inventory"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type AttendanceRow struct {
	Date     string                  `json:"date"`
	Shift    models.ShiftType        `json:"shift"`
	Status   models.AttendanceStatus `json:"status"`
	CheckIn  string                  `json:"check_in"`
	CheckOut string                  `json:"check_out"`
	Notes    string                  `json:"notes"`
}

type GuardAttendance struct {
	GuardID   uint                 `json:"guard_id"`
	GuardCode string               `json:"guard_code"`
	GuardName string               `json:"guard_name"`
	PlaceID   uint                 `json:"place_id"`
	PlaceName string               `json:"place_name"`
	Summary   attendance.Summary   `json:"summary"`
	Records   []AttendanceRow      `json:"records"`
	Inventory []inventory.HeldItem `json:"inventory"`
}

type GuardAttendanceReport struct {
	StartDate string             `json:"start_date"`
	EndDate   string             `json:"end_date"`
	Overall   attendance.Summary `json:"overall"`
	Guards    []GuardAttendance  `json:"guards"`
}

// BuildGuardAttendance groups attendance in the range per guard and place.
func BuildGuardAttendance(records []models.Attendance, held map[uint][]inventory.HeldItem) []GuardAttendance {
	type key struct{ guard, place uint }
	index := map[key]int{}
	var out []GuardAttendance

	for _, r := range records {
		k := key{r.GuardID, r.PlaceID}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			items := held[r.GuardID]
			if items == nil {
				items = []inventory.HeldItem{}
			}
			out = append(out, GuardAttendance{
				GuardID:   r.GuardID,
				GuardCode: r.Guard.GuardCode,
				GuardName: r.Guard.Name,
				PlaceID:   r.PlaceID,
				PlaceName: r.Place.Name,
				Records:   []AttendanceRow{},
				Inventory: items,
			})
		}
		out[i].Summary.Add(r.Status)
		out[i].Records = append(out[i].Records, AttendanceRow{
			Date:     httputil.FormatDate(r.Date),
			Shift:    r.Shift,
			Status:   r.Status,
			CheckIn:  r.CheckIn,
			CheckOut: r.CheckOut,
			Notes:    r.Notes,
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].GuardName != out[b].GuardName {
			return out[a].GuardName < out[b].GuardName
		}
		return out[a].PlaceName < out[b].PlaceName
	})
	return out
}

func (r GuardAttendanceReport) document() Document {
	summary := Table{
		Title:      "Guards",
		Headers:    []string{"Code", "Guard", "Place", "Present", "Absent", "Late", "Half day", "Leave", "Rate"},
		Widths:     []float64{2, 4, 4, 1.5, 1.5, 1.5, 1.5, 1.5, 1.5},
		RightAlign: []int{3, 4, 5, 6, 7, 8},
	}
	detail := Table{
		Title:   "Records",
		Headers: []string{"Date", "Guard", "Place", "Shift", "Status", "In", "Out"},
		Widths:  []float64{2.5, 4, 4, 1.5, 2, 1.5, 1.5},
	}
	for _, g := range r.Guards {
		s := g.Summary
		summary.Rows = append(summary.Rows, []string{
			g.GuardCode, g.GuardName, g.PlaceName,
			fmt.Sprint(s.Present), fmt.Sprint(s.Absent), fmt.Sprint(s.Late),
			fmt.Sprint(s.HalfDay), fmt.Sprint(s.Leave), fmt.Sprintf("%d%%", s.AttendanceRate),
		})
		for _, rec := range g.Records {
			detail.Rows = append(detail.Rows, []string{
				rec.Date, g.GuardName, g.PlaceName, string(rec.Shift), string(rec.Status), rec.CheckIn, rec.CheckOut,
			})
		}
	}

	return Document{
		Title:    "Guard Attendance Report",
		Subtitle: fmt.Sprintf("%s to %s", r.StartDate, r.EndDate),
		Summary: [][2]string{
			{"Guards", fmt.Sprint(len(r.Guards))},
			{"Records", fmt.Sprint(r.Overall.Total)},
			{"Present", fmt.Sprint(r.Overall.Present)},
			{"Absent", fmt.Sprint(r.Overall.Absent)},
			{"Attendance rate", fmt.Sprintf("%d%%", r.Overall.AttendanceRate)},
		},
		Tables: []Table{summary, detail},
	}
}

// GET /api/reports/guard-attendance?start_date&end_date&guard_id&place_id&format
func GuardAttendanceHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		format, err := parseFormat(c)
		if err != nil {
			return err
		}
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
		for _, name := range []string{"guard_id", "place_id"} {
			id, err := httputil.QueryUint(c, name)
			if err != nil {
				return err
			}
			if id != nil {
				dbq = dbq.Where(name+" = ?", *id)
			}
		}

		var records []models.Attendance
		if err := dbq.Order("date ASC, id ASC").Find(&records).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load attendance")
		}

		guardIDs := make([]uint, 0)
		seen := map[uint]bool{}
		for _, r := range records {
			if !seen[r.GuardID] {
				seen[r.GuardID] = true
				guardIDs = append(guardIDs, r.GuardID)
			}
		}
		held, err := inventory.HeldByGuards(database.DB, guardIDs)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load inventory")
		}

		report := GuardAttendanceReport{
			StartDate: httputil.FormatDate(start),
			EndDate:   httputil.FormatDate(end),
			Overall:   attendance.Summarize(records),
			Guards:    BuildGuardAttendance(records, held),
		}
		if report.Guards == nil {
			report.Guards = []GuardAttendance{}
		}
		return respond(c, format, report, report.document)
	}
}
