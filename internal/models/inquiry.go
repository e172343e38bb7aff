package models

import "time"

type InquiryStatus string

const (
	InquiryNew      InquiryStatus = "new"
	InquiryRead     InquiryStatus = "read"
	InquiryArchived InquiryStatus = "archived"
)

func (s InquiryStatus) Valid() bool {
	return s == InquiryNew || s == InquiryRead || s == InquiryArchived
}

// Inquiry: message sent from the public contact form.
type Inquiry struct {
	ID        uint          `gorm:"primaryKey"`
	Name      string        `gorm:"size:150;not null"`
	Phone     string        `gorm:"size:30"`
	Email     string        `gorm:"size:150;not null"`
	Message   string        `gorm:"size:4000;not null"`
	Status    InquiryStatus `gorm:"size:20;not null;default:new;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
