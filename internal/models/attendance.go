package models

import "time"

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceHalfDay AttendanceStatus = "half_day"
	AttendanceLeave   AttendanceStatus = "leave"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceHalfDay, AttendanceLeave:
		return true
	}
	return false
}

// Attendance: one record per guard, date and shift.
type Attendance struct {
	ID           uint             `gorm:"primaryKey"`
	BranchID     uint             `gorm:"index;not null"`
	GuardID      uint             `gorm:"not null;uniqueIndex:idx_attendance_guard_day"`
	Guard        Guard            `gorm:"foreignKey:GuardID"`
	PlaceID      uint             `gorm:"index;not null"`
	Place        Place            `gorm:"foreignKey:PlaceID"`
	AssignmentID *uint            `gorm:"index"`
	Date         time.Time        `gorm:"not null;index;uniqueIndex:idx_attendance_guard_day"`
	Shift        ShiftType        `gorm:"size:10;not null;uniqueIndex:idx_attendance_guard_day"`
	Status       AttendanceStatus `gorm:"size:20;not null"`
	CheckIn      string           `gorm:"size:5"` // "HH:MM"
	CheckOut     string           `gorm:"size:5"`
	Notes        string           `gorm:"size:500"`
	MarkedBy     uint
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Attendance) TableName() string {
	return "attendance_records"
}
