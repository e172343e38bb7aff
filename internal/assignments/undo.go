package assignments

import (
	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/models"

	"gorm.io/gorm"
)

func init() {
	audit.RegisterUndoRules(audit.EntityAssignment, audit.UndoRules{
		Delete: removeAssignment,
		Check: func(tx *gorm.DB, model any) error {
			a := model.(*models.Assignment)
			if err := resolveParties(tx, nil, a); err != nil {
				return err
			}
			a.Guard = models.Guard{}
			a.Place = models.Place{}
			return checkSchedule(tx, *a)
		},
	})
}
