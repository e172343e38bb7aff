package models

import "time"

type ShiftType string

const (
	ShiftDay   ShiftType = "day"   // 08:00 - 20:00
	ShiftNight ShiftType = "night" // 20:00 - 08:00
	ShiftBoth  ShiftType = "both"  // round the clock
)

func (s ShiftType) Valid() bool {
	return s == ShiftDay || s == ShiftNight || s == ShiftBoth
}

// Conflicts reports whether two shifts overlap in time.
func (s ShiftType) Conflicts(other ShiftType) bool {
	return s == ShiftBoth || other == ShiftBoth || s == other
}

type AssignmentStatus string

const (
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentCancelled AssignmentStatus = "cancelled"
)

func (s AssignmentStatus) Valid() bool {
	return s == AssignmentActive || s == AssignmentCompleted || s == AssignmentCancelled
}

// Assignment: guard-to-place duty record. EndDate nil means ongoing.
type Assignment struct {
	ID        uint             `gorm:"primaryKey"`
	BranchID  uint             `gorm:"index;not null"`
	GuardID   uint             `gorm:"index;not null"`
	Guard     Guard            `gorm:"foreignKey:GuardID"`
	PlaceID   uint             `gorm:"index;not null"`
	Place     Place            `gorm:"foreignKey:PlaceID"`
	ShiftType ShiftType        `gorm:"size:10;not null"`
	StartDate time.Time        `gorm:"index;not null"`
	EndDate   *time.Time       `gorm:"index"`
	Status    AssignmentStatus `gorm:"size:20;not null;default:active;index"`
	Notes     string           `gorm:"size:1000"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Covers reports whether the assignment's date range includes d.
func (a Assignment) Covers(d time.Time) bool {
	if d.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !d.After(*a.EndDate)
}
