package inventory

import (
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"gorm.io/gorm"
)

// HeldItem is an open inventory assignment as shown on guard and place pages.
type HeldItem struct {
	AssignmentID uint   `json:"assignment_id"`
	ItemID       uint   `json:"item_id"`
	ItemName     string `json:"item_name"`
	Category     string `json:"category"`
	SerialNumber string `json:"serial_number,omitempty"`
	Quantity     int    `json:"quantity"`
	AssignedAt   string `json:"assigned_at"`
}

func toHeldItem(a models.InventoryAssignment) HeldItem {
	h := HeldItem{
		AssignmentID: a.ID,
		ItemID:       a.ItemID,
		ItemName:     a.Item.Name,
		Category:     a.Item.Category,
		Quantity:     a.Quantity,
		AssignedAt:   httputil.FormatDateTime(a.AssignedAt),
	}
	if a.Unit != nil {
		h.SerialNumber = a.Unit.SerialNumber
	}
	return h
}

func openAssignments(db *gorm.DB, column string, ids []uint) ([]models.InventoryAssignment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.InventoryAssignment
	err := db.Preload("Item").Preload("Unit").
		Where(column+" IN ? AND returned_at IS NULL", ids).
		Order("assigned_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// HeldByGuards returns the open assignments of each guard, keyed by guard id.
func HeldByGuards(db *gorm.DB, guardIDs []uint) (map[uint][]HeldItem, error) {
	rows, err := openAssignments(db, "guard_id", guardIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]HeldItem)
	for _, a := range rows {
		if a.GuardID != nil {
			out[*a.GuardID] = append(out[*a.GuardID], toHeldItem(a))
		}
	}
	return out, nil
}

// HeldAtPlaces returns the open assignments made directly to each place.
func HeldAtPlaces(db *gorm.DB, placeIDs []uint) (map[uint][]HeldItem, error) {
	rows, err := openAssignments(db, "place_id", placeIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]HeldItem)
	for _, a := range rows {
		if a.PlaceID != nil {
			out[*a.PlaceID] = append(out[*a.PlaceID], toHeldItem(a))
		}
	}
	return out, nil
}

// OpenCount counts open assignments in a column, e.g. guard_id or item_id.
func OpenCount(db *gorm.DB, column string, id uint) (int64, error) {
	var n int64
	err := db.Model(&models.InventoryAssignment{}).
		Where(column+" = ? AND returned_at IS NULL", id).
		Count(&n).Error
	return n, err
}
