package models

import (
	"strings"
	"time"
)

type RecordStatus string

const (
	StatusActive   RecordStatus = "active"
	StatusInactive RecordStatus = "inactive"
)

func (s RecordStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Branch: regional office. Guards, places and inventory belong to exactly one branch.
type Branch struct {
	ID        uint         `gorm:"primaryKey"`
	Name      string       `gorm:"size:100;not null;unique"`
	City      string       `gorm:"size:100;not null"`
	Address   string       `gorm:"size:255"`
	Phone     string       `gorm:"size:50"`
	Status    RecordStatus `gorm:"size:20;not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}

// ParseRecordStatus accepts "active"/"inactive" in any case; empty means active.
func ParseRecordStatus(raw string) (RecordStatus, bool) {
	if strings.TrimSpace(raw) == "" {
		return StatusActive, true
	}
	s := RecordStatus(strings.ToLower(strings.TrimSpace(raw)))
	return s, s.Valid()
}
