package guards

import (
	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func init() {
	audit.RegisterUndoRules(audit.EntityGuard, audit.UndoRules{
		Delete: removeGuard,
		Check: func(tx *gorm.DB, model any) error {
			g := model.(*models.Guard)
			ok, err := database.Exists(tx, &models.Branch{}, g.BranchID)
			if err != nil {
				return err
			}
			if !ok {
				return fiber.NewError(fiber.StatusConflict, "The guard's branch no longer exists")
			}
			return checkUnique(tx, g.BranchID, g.GuardCode, g.CNIC, g.ID)
		},
	})
}
