package database

import (
	"sheriff-backend/internal/models"

	"gorm.io/gorm"
)

// CompanySettings returns the settings row, falling back to defaults when it
// has not been seeded.
func CompanySettings(db *gorm.DB) (models.CompanySettings, error) {
	var s models.CompanySettings
	err := db.First(&s, models.CompanySettingsID).Error
	if IsNotFound(err) {
		return models.DefaultCompanySettings(), nil
	}
	return s, err
}
