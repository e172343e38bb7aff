package attendance

import (
	"math"

	"sheriff-backend/internal/models"
)

// Summary counts records per status.
type Summary struct {
	Present        int `json:"present"`
	Absent         int `json:"absent"`
	Late           int `json:"late"`
	HalfDay        int `json:"half_day"`
	Leave          int `json:"leave"`
	Total          int `json:"total"`
	AttendanceRate int `json:"attendance_rate"`
}

func (s *Summary) Add(status models.AttendanceStatus) {
	switch status {
	case models.AttendancePresent:
		s.Present++
	case models.AttendanceAbsent:
		s.Absent++
	case models.AttendanceLate:
		s.Late++
	case models.AttendanceHalfDay:
		s.HalfDay++
	case models.AttendanceLeave:
		s.Leave++
	default:
		return
	}
	s.Total++
	s.AttendanceRate = Rate(s.Present, s.Late, s.HalfDay, s.Total)
}

// Rate is the rounded percentage of attended shifts. Late counts as
// attended, half days count half.
func Rate(present, late, halfDay, total int) int {
	if total <= 0 {
		return 0
	}
	attended := float64(present+late) + 0.5*float64(halfDay)
	return int(math.Round(100 * attended / float64(total)))
}

func Summarize(records []models.Attendance) Summary {
	var s Summary
	for _, r := range records {
		s.Add(r.Status)
	}
	return s
}
