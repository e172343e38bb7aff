package models

import "time"

// CompanySettings is a single-row table; ID is always 1.
type CompanySettings struct {
	ID             uint    `gorm:"primaryKey"`
	CompanyName    string  `gorm:"size:150;not null"`
	Tagline        string  `gorm:"size:255"`
	Address        string  `gorm:"size:255"`
	Phone          string  `gorm:"size:50"`
	Email          string  `gorm:"size:100"`
	Website        string  `gorm:"size:100"`
	LogoURL        string  `gorm:"size:255"`
	InvoicePrefix  string  `gorm:"size:10;not null;default:INV"`
	DefaultTaxRate float64 `gorm:"not null;default:0"`
	Currency       string  `gorm:"size:10;not null;default:PKR"`
	UpdatedAt      time.Time
}

const CompanySettingsID = 1

func DefaultCompanySettings() CompanySettings {
	return CompanySettings{
		ID:            CompanySettingsID,
		CompanyName:   "Sheriff Security",
		Tagline:       "Professional Security Services",
		Address:       "Pakistan",
		Email:         "info@sheriffsecurity.pk",
		Website:       "www.sheriffsecurity.pk",
		InvoicePrefix: "INV",
		Currency:      "PKR",
	}
}
