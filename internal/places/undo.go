package places

import (
	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func init() {
	audit.RegisterUndoRules(audit.EntityPlace, audit.UndoRules{
		Delete: removePlace,
		Check: func(tx *gorm.DB, model any) error {
			p := model.(*models.Place)
			ok, err := database.Exists(tx, &models.Branch{}, p.BranchID)
			if err != nil {
				return err
			}
			if !ok {
				return fiber.NewError(fiber.StatusConflict, "The place's branch no longer exists")
			}
			return nil
		},
	})
}
