package models

import "time"

type Guard struct {
	ID        uint         `gorm:"primaryKey"`
	BranchID  uint         `gorm:"not null;uniqueIndex:idx_guard_branch_code"`
	Branch    Branch       `gorm:"foreignKey:BranchID"`
	GuardCode string       `gorm:"size:30;not null;uniqueIndex:idx_guard_branch_code"` // unique within the branch
	Name      string       `gorm:"size:150;not null"`
	CNIC      string       `gorm:"column:cnic;size:15;not null;uniqueIndex"` // XXXXX-XXXXXXX-X
	Phone     string       `gorm:"size:30"`
	Address   string       `gorm:"size:255"`
	PhotoURL  string       `gorm:"size:255"`
	Status    RecordStatus `gorm:"size:20;not null;default:active;index"`
	Notes     string       `gorm:"size:1000"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
