package attendance

import (
	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func init() {
	audit.RegisterUndoRules(audit.EntityAttendance, audit.UndoRules{
		Check: func(tx *gorm.DB, model any) error {
			rec := model.(*models.Attendance)
			for _, ref := range []struct {
				model any
				id    uint
				msg   string
			}{
				{&models.Guard{}, rec.GuardID, "The guard no longer exists"},
				{&models.Place{}, rec.PlaceID, "The place no longer exists"},
			} {
				ok, err := database.Exists(tx, ref.model, ref.id)
				if err != nil {
					return err
				}
				if !ok {
					return fiber.NewError(fiber.StatusConflict, ref.msg)
				}
			}

			var n int64
			if err := tx.Model(&models.Attendance{}).
				Where("guard_id = ? AND date = ? AND shift = ? AND id <> ?", rec.GuardID, rec.Date, rec.Shift, rec.ID).
				Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fiber.NewError(fiber.StatusConflict, "Attendance is already marked for this guard, date and shift")
			}
			return nil
		},
	})
}
