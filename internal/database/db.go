package database

import (
	"errors"
	"fmt"

	"sheriff-backend/internal/config"
	"sheriff-backend/internal/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects with the driver named in the config.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	case "mysql":
		dialector = mysql.Open(cfg.DatabaseDSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	gormCfg := &gorm.Config{}
	if cfg.IsProduction() {
		gormCfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

// Init connects, migrates and installs the global handle.
func Init(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	UseDB(db)
	zap.L().Info("database ready", zap.String("driver", cfg.DatabaseDriver))
	return nil
}

// UseDB replaces the global handle. Tests point it at SQLite.
func UseDB(db *gorm.DB) {
	DB = db
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Guard{},
		&models.Place{},
		&models.Assignment{},
		&models.Attendance{},
		&models.InventoryItem{},
		&models.InventoryUnit{},
		&models.InventoryAssignment{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.CompanySettings{},
		&models.Inquiry{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// Seed the company settings row once.
	var settings models.CompanySettings
	err = db.First(&settings, models.CompanySettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := models.DefaultCompanySettings()
		if err := db.Create(&defaults).Error; err != nil {
			return fmt.Errorf("seed company settings: %w", err)
		}
		return nil
	}
	return err
}

// IsNotFound hides the gorm sentinel from handler packages.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Exists reports whether a row of model with the given id is present.
func Exists(db *gorm.DB, model any, id uint) (bool, error) {
	var n int64
	err := db.Model(model).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}
