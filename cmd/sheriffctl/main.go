// Command sheriffctl runs maintenance tasks against the configured database.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/config"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/invoices"
	"sheriff-backend/internal/logging"
	"sheriff-backend/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var rootCmd = &cobra.Command{
	Use:           "sheriffctl",
	Short:         "Maintenance commands for the Sheriff backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := open()
		if err != nil {
			return err
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var createSuperAdminCmd = &cobra.Command{
	Use:   "create-super-admin",
	Short: "Create a super admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(adminName)
		email := auth.NormalizeEmail(adminEmail)
		if name == "" || !httputil.ValidEmail(email) {
			return errors.New("--name and a valid --email are required")
		}
		if len(adminPassword) < auth.MinPasswordLength {
			return fmt.Errorf("--password must be at least %d characters", auth.MinPasswordLength)
		}

		db, err := open()
		if err != nil {
			return err
		}

		var n int64
		if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("a user with email %s already exists", email)
		}

		hash, err := auth.HashPassword(adminPassword)
		if err != nil {
			return err
		}
		user := models.User{Name: name, Email: email, PasswordHash: hash, Role: models.RoleSuperAdmin}
		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "super admin %s created (id %d)\n", user.Email, user.ID)
		return nil
	},
}

var overdueDate string

var markOverdueCmd = &cobra.Command{
	Use:   "mark-overdue",
	Short: "Flag sent invoices past their due date as overdue",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		if overdueDate != "" {
			d, err := httputil.ParseDate(overdueDate)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD")
			}
			now = d
		}

		db, err := open()
		if err != nil {
			return err
		}
		n, err := invoices.MarkOverdue(db, now)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) marked overdue\n", n)
		return nil
	},
}

// open loads config and connects without running migrations.
func open() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return database.Open(cfg)
}

func init() {
	createSuperAdminCmd.Flags().StringVar(&adminName, "name", "", "display name")
	createSuperAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createSuperAdminCmd.Flags().StringVar(&adminPassword, "password", "", "initial password")
	_ = createSuperAdminCmd.MarkFlagRequired("email")
	_ = createSuperAdminCmd.MarkFlagRequired("password")

	markOverdueCmd.Flags().StringVar(&overdueDate, "date", "", "evaluate as of this date (YYYY-MM-DD)")

	rootCmd.AddCommand(migrateCmd, createSuperAdminCmd, markOverdueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
