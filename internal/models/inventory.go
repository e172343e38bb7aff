package models

import "time"

type TrackingType string

const (
	TrackingQuantity   TrackingType = "quantity"
	TrackingSerialised TrackingType = "serialised"
)

var InventoryCategories = []string{"Equipment", "Safety Gear", "Communication", "Weapon", "Uniform", "Other"}

func ValidInventoryCategory(c string) bool {
	for _, v := range InventoryCategories {
		if v == c {
			return true
		}
	}
	return false
}

// InventoryItem is an item type. For quantity items TotalQuantity is the stock
// still on the shelf; assigned quantities are subtracted from it.
type InventoryItem struct {
	ID            uint         `gorm:"primaryKey"`
	BranchID      uint         `gorm:"index;not null"`
	Branch        Branch       `gorm:"foreignKey:BranchID"`
	Name          string       `gorm:"size:150;not null"`
	Category      string       `gorm:"size:50;not null;index"`
	TrackingType  TrackingType `gorm:"size:20;not null;default:quantity"`
	TotalQuantity int          `gorm:"not null;default:0"`
	Description   string       `gorm:"size:500"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitAssigned    UnitStatus = "assigned"
	UnitMaintenance UnitStatus = "maintenance"
	UnitRetired     UnitStatus = "retired"
)

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitAvailable, UnitAssigned, UnitMaintenance, UnitRetired:
		return true
	}
	return false
}

// InventoryUnit: one serialised instance of an item (weapon, radio ...).
type InventoryUnit struct {
	ID           uint          `gorm:"primaryKey"`
	ItemID       uint          `gorm:"index;not null"`
	Item         InventoryItem `gorm:"foreignKey:ItemID"`
	BranchID     uint          `gorm:"index;not null"`
	SerialNumber string        `gorm:"size:100;not null;uniqueIndex"`
	Status       UnitStatus    `gorm:"size:20;not null;default:available;index"`
	Notes        string        `gorm:"size:500"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AssigneeType string

const (
	AssigneeGuard AssigneeType = "guard"
	AssigneePlace AssigneeType = "place"
)

// InventoryAssignment hands out either one unit or a quantity of an item.
// ReturnedAt nil means the assignment is still open.
type InventoryAssignment struct {
	ID             uint           `gorm:"primaryKey"`
	BranchID       uint           `gorm:"index;not null"`
	ItemID         uint           `gorm:"index;not null"`
	Item           InventoryItem  `gorm:"foreignKey:ItemID"`
	UnitID         *uint          `gorm:"index"`
	Unit           *InventoryUnit `gorm:"foreignKey:UnitID"`
	Quantity       int            `gorm:"not null;default:1"`
	AssignedToType AssigneeType   `gorm:"size:10;not null"`
	GuardID        *uint          `gorm:"index"`
	Guard          *Guard         `gorm:"foreignKey:GuardID"`
	PlaceID        *uint          `gorm:"index"`
	Place          *Place         `gorm:"foreignKey:PlaceID"`
	AssignedAt     time.Time      `gorm:"not null;index"`
	ReturnedAt     *time.Time     `gorm:"index"`
	AssignedBy     uint
	Notes          string `gorm:"size:500"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
