package admin

import (
	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func init() {
	audit.RegisterUndoRules(audit.EntityBranch, audit.UndoRules{
		Delete: removeBranch,
		Check: func(tx *gorm.DB, model any) error {
			b := model.(*models.Branch)
			taken, err := branchNameTaken(tx, b.Name, b.ID)
			if err != nil {
				return err
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "A branch with this name already exists")
			}
			return nil
		},
	})
}
