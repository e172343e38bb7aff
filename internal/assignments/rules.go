package assignments

import (
	"fmt"
	"time"

	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"gorm.io/gorm"
)

// Overlaps reports whether two inclusive date ranges intersect. A nil end
// means the range is open.
func Overlaps(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && aEnd.Before(bStart) {
		return false
	}
	if bEnd != nil && bEnd.Before(aStart) {
		return false
	}
	return true
}

// ConflictError names the assignment that blocks a new one.
type ConflictError struct {
	Existing models.Assignment
}

func (e *ConflictError) Error() string {
	end := "ongoing"
	if e.Existing.EndDate != nil {
		end = httputil.FormatDate(*e.Existing.EndDate)
	}
	return fmt.Sprintf("Guard already has an active %s shift assignment at %s from %s to %s",
		e.Existing.ShiftType, e.Existing.Place.Name, httputil.FormatDate(e.Existing.StartDate), end)
}

// FindConflict looks for another active assignment of the guard whose dates
// overlap and whose shift clashes with the candidate.
func FindConflict(db *gorm.DB, candidate models.Assignment) (*ConflictError, error) {
	var existing []models.Assignment
	q := db.Preload("Place").
		Where("guard_id = ? AND status = ?", candidate.GuardID, models.AssignmentActive)
	if candidate.ID != 0 {
		q = q.Where("id <> ?", candidate.ID)
	}
	if err := q.Find(&existing).Error; err != nil {
		return nil, err
	}

	for _, e := range existing {
		if !e.ShiftType.Conflicts(candidate.ShiftType) {
			continue
		}
		if Overlaps(e.StartDate, e.EndDate, candidate.StartDate, candidate.EndDate) {
			return &ConflictError{Existing: e}, nil
		}
	}
	return nil, nil
}
