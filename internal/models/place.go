package models

import "time"

// Place: client site that needs security coverage.
type Place struct {
	ID            uint         `gorm:"primaryKey"`
	BranchID      uint         `gorm:"index;not null"`
	Branch        Branch       `gorm:"foreignKey:BranchID"`
	Name          string       `gorm:"size:200;not null"`
	Address       string       `gorm:"size:255;not null"`
	City          string       `gorm:"size:100;not null"`
	ContactPerson string       `gorm:"size:150"`
	ContactPhone  string       `gorm:"size:30"`
	Status        RecordStatus `gorm:"size:20;not null;default:active;index"`
	Notes         string       `gorm:"size:1000"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
