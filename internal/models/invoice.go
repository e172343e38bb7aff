package models

import "time"

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceDraft:   {InvoiceSent, InvoiceCancelled},
	InvoiceSent:    {InvoicePaid, InvoiceOverdue, InvoiceCancelled},
	InvoiceOverdue: {InvoicePaid, InvoiceCancelled},
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an invoice may move from s to next.
func (s InvoiceStatus) CanTransition(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Pending: billed but not yet paid.
func (s InvoiceStatus) Pending() bool {
	return s == InvoiceSent || s == InvoiceOverdue
}

// Amounts are stored with two decimals; arithmetic happens in the invoices package.
type Invoice struct {
	ID            uint          `gorm:"primaryKey"`
	BranchID      uint          `gorm:"index;not null"`
	PlaceID       uint          `gorm:"index;not null"`
	Place         Place         `gorm:"foreignKey:PlaceID"`
	InvoiceNumber string        `gorm:"size:40;not null;uniqueIndex"`
	InvoiceDate   time.Time     `gorm:"index;not null"`
	DueDate       time.Time     `gorm:"index;not null"`
	PeriodStart   time.Time     `gorm:"not null"`
	PeriodEnd     time.Time     `gorm:"not null"`
	Subtotal      float64       `gorm:"not null"`
	TaxRate       float64       `gorm:"not null;default:0"`
	TaxAmount     float64       `gorm:"not null;default:0"`
	Total         float64       `gorm:"not null"`
	Status        InvoiceStatus `gorm:"size:20;not null;default:draft;index"`
	Notes         string        `gorm:"size:1000"`
	CreatedBy     uint
	CreatedAt     time.Time
	UpdatedAt     time.Time

	LineItems []InvoiceLineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

type InvoiceLineItem struct {
	ID          uint    `gorm:"primaryKey"`
	InvoiceID   uint    `gorm:"index;not null"`
	Position    int     `gorm:"not null"`
	Description string  `gorm:"size:255;not null"`
	Quantity    float64 `gorm:"not null"`
	UnitPrice   float64 `gorm:"not null"`
	Amount      float64 `gorm:"not null"`
}
