package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EntityBranch              = "branch"
	EntityUser                = "user"
	EntityGuard               = "guard"
	EntityPlace               = "place"
	EntityAssignment          = "assignment"
	EntityAttendance          = "attendance"
	EntityInventoryItem       = "inventory_item"
	EntityInventoryUnit       = "inventory_unit"
	EntityInventoryAssignment = "inventory_assignment"
	EntityInvoice             = "invoice"
	EntityCompanySettings     = "company_settings"
	EntityInquiry             = "inquiry"
)

var (
	ErrAlreadyUndone = errors.New("this change has already been undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
)

// undoable maps entity types to a constructor for their model. Only these
// entities can be reverted from the audit trail.
var undoable = map[string]func() any{
	EntityBranch:     func() any { return &models.Branch{} },
	EntityGuard:      func() any { return &models.Guard{} },
	EntityPlace:      func() any { return &models.Place{} },
	EntityAssignment: func() any { return &models.Assignment{} },
	EntityAttendance: func() any { return &models.Attendance{} },
}

// UndoRules let the package that owns an entity apply its own invariants to
// an undo. Both hooks run inside the undo transaction and may return a
// *fiber.Error to refuse.
type UndoRules struct {
	// Delete removes the row along with whatever goes with it. Nil deletes
	// the row alone.
	Delete func(tx *gorm.DB, id uint) error
	// Check validates a decoded snapshot before it is written back.
	Check func(tx *gorm.DB, model any) error
}

var rules = map[string]UndoRules{}

// RegisterUndoRules installs the hooks for an undoable entity type. Owning
// packages call it from init.
func RegisterUndoRules(entityType string, r UndoRules) {
	if !Undoable(entityType) {
		panic("audit: undo rules for non-undoable entity " + entityType)
	}
	rules[entityType] = r
}

func Undoable(entityType string) bool {
	_, ok := undoable[entityType]
	return ok
}

type LogOptions struct {
	BranchID    *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func snapshot(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// WriteLog stores an audit entry on the global handle.
func WriteLog(opts LogOptions) error {
	return WriteLogTx(database.DB, opts)
}

// WriteLogTx stores an audit entry inside an open transaction.
func WriteLogTx(tx *gorm.DB, opts LogOptions) error {
	log := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  snapshot(opts.Before),
		AfterData:   snapshot(opts.After),
	}

	if err := tx.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record writes an entry and only logs a failure; the audited change has
// already been committed.
func Record(opts LogOptions) {
	if err := WriteLog(opts); err != nil {
		zap.L().Error("audit log failed",
			zap.String("entity_type", opts.EntityType),
			zap.Uint("entity_id", opts.EntityID),
			zap.Error(err))
	}
}

// UndoLog reverts the change recorded by logID and writes an undo entry.
func UndoLog(logID uint, userID uint, userName string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var log models.AuditLog
		if err := tx.First(&log, "id = ?", logID).Error; err != nil {
			return fmt.Errorf("load audit log: %w", err)
		}
		if log.IsUndone {
			return ErrAlreadyUndone
		}
		if log.Action == models.AuditActionUndo || !Undoable(log.EntityType) {
			return ErrNotUndoable
		}

		switch log.Action {
		case models.AuditActionCreate:
			if err := deleteEntity(tx, log.EntityType, log.EntityID); err != nil {
				return fmt.Errorf("delete %s: %w", log.EntityType, err)
			}
		case models.AuditActionUpdate:
			if err := restoreEntity(tx, log.EntityType, log.BeforeData); err != nil {
				return fmt.Errorf("restore %s: %w", log.EntityType, err)
			}
		case models.AuditActionDelete:
			if err := recreateEntity(tx, log.EntityType, log.EntityID, log.BeforeData); err != nil {
				return fmt.Errorf("recreate %s: %w", log.EntityType, err)
			}
		default:
			return ErrNotUndoable
		}

		now := time.Now()
		if err := tx.Model(&log).Updates(map[string]any{
			"is_undone": true,
			"undone_by": userID,
			"undone_at": now,
		}).Error; err != nil {
			return fmt.Errorf("mark audit log: %w", err)
		}

		return tx.Create(&models.AuditLog{
			BranchID:    log.BranchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  log.EntityType,
			EntityID:    log.EntityID,
			Action:      models.AuditActionUndo,
			Description: "Undone: " + log.Description,
			BeforeData:  log.AfterData,
			AfterData:   log.BeforeData,
			Undone:      true,
		}).Error
	})
}

func deleteEntity(tx *gorm.DB, entityType string, entityID uint) error {
	var count int64
	if err := tx.Model(undoable[entityType]()).Where("id = ?", entityID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errors.New("record no longer exists")
	}
	if r := rules[entityType]; r.Delete != nil {
		return r.Delete(tx, entityID)
	}
	return tx.Delete(undoable[entityType](), "id = ?", entityID).Error
}

func decode(entityType, data string) (any, error) {
	if data == "" || data == "null" {
		return nil, errors.New("no snapshot stored")
	}
	model := undoable[entityType]()
	if err := json.Unmarshal([]byte(data), model); err != nil {
		return nil, err
	}
	return model, nil
}

func check(tx *gorm.DB, entityType string, model any) error {
	if r := rules[entityType]; r.Check != nil {
		return r.Check(tx, model)
	}
	return nil
}

func restoreEntity(tx *gorm.DB, entityType, data string) error {
	model, err := decode(entityType, data)
	if err != nil {
		return err
	}
	if err := check(tx, entityType, model); err != nil {
		return err
	}
	return tx.Omit(clause.Associations).Save(model).Error
}

func recreateEntity(tx *gorm.DB, entityType string, entityID uint, data string) error {
	model, err := decode(entityType, data)
	if err != nil {
		return err
	}

	var count int64
	if err := tx.Model(undoable[entityType]()).Where("id = ?", entityID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("a record with the same id already exists")
	}
	if err := check(tx, entityType, model); err != nil {
		return err
	}
	return tx.Omit(clause.Associations).Create(model).Error
}
