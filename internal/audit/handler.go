package audit

import (
	"encoding/json"
	"errors"
	"strconv"

	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	BranchID    *uint              `json:"branch_id"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Before      json.RawMessage    `json:"before"`
	After       json.RawMessage    `json:"after"`
	Undoable    bool               `json:"undoable"`
	IsUndone    bool               `json:"is_undone"`
	UndoneBy    *uint              `json:"undone_by"`
	UndoneAt    *string            `json:"undone_at"`
}

func raw(s string) json.RawMessage {
	if s == "" {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}

func toResponse(log models.AuditLog) AuditLogResponse {
	var undoneAt *string
	if log.UndoneAt != nil {
		s := httputil.FormatDateTime(*log.UndoneAt)
		undoneAt = &s
	}
	return AuditLogResponse{
		ID:          log.ID,
		CreatedAt:   httputil.FormatDateTime(log.CreatedAt),
		BranchID:    log.BranchID,
		UserID:      log.UserID,
		UserName:    log.UserName,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      log.Action,
		Description: log.Description,
		Before:      raw(log.BeforeData),
		After:       raw(log.AfterData),
		Undoable:    !log.IsUndone && log.Action != models.AuditActionUndo && Undoable(log.EntityType),
		IsUndone:    log.IsUndone,
		UndoneBy:    log.UndoneBy,
		UndoneAt:    undoneAt,
	}
}

// GET /api/audit-logs?entity_type=guard&entity_id=1&user_id=2&action=update&branch_id=1&limit=50
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}
		branchID, err := scope.BranchFilter(c)
		if err != nil {
			return err
		}

		dbq := auth.Apply(database.DB.Model(&models.AuditLog{}), "branch_id", branchID)

		if v := c.Query("entity_type"); v != "" {
			dbq = dbq.Where("entity_type = ?", v)
		}
		if v := c.Query("action"); v != "" {
			dbq = dbq.Where("action = ?", v)
		}
		entityID, err := httputil.QueryUint(c, "entity_id")
		if err != nil {
			return err
		}
		if entityID != nil {
			dbq = dbq.Where("entity_id = ?", *entityID)
		}
		userID, err := httputil.QueryUint(c, "user_id")
		if err != nil {
			return err
		}
		if userID != nil {
			dbq = dbq.Where("user_id = ?", *userID)
		}

		limit := 100
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid limit")
			}
			limit = min(n, 500)
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, toResponse(log))
		}
		return c.JSON(resp)
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}

		scope, err := auth.CurrentScope(c)
		if err != nil {
			return err
		}

		var log models.AuditLog
		if err := database.DB.First(&log, "id = ?", logID).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusNotFound, "Audit log not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load audit log")
		}

		if !scope.IsSuperAdmin() && (log.BranchID == nil || !scope.CanAccess(*log.BranchID)) {
			return fiber.NewError(fiber.StatusForbidden, "You can only undo changes in your own branch")
		}

		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}

		if err := UndoLog(logID, user.ID, user.Name); err != nil {
			switch {
			case errors.Is(err, ErrAlreadyUndone):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			case errors.Is(err, ErrNotUndoable):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			var refused *fiber.Error
			if errors.As(err, &refused) {
				return refused
			}
			zap.L().Warn("undo failed", zap.Uint("log_id", logID), zap.Error(err))
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		return c.JSON(fiber.Map{"message": "Change undone"})
	}
}

// Actor starts a log entry for the calling user.
func Actor(c *fiber.Ctx, branchID *uint) LogOptions {
	opts := LogOptions{BranchID: branchID}
	if id, ok := c.Locals(auth.CtxUserIDKey).(uint); ok {
		opts.UserID = id
		var user models.User
		if err := database.DB.Select("id", "name").First(&user, id).Error; err == nil {
			opts.UserName = user.Name
		}
	}
	return opts
}

// Entity completes an entry started with Actor.
func (o LogOptions) Entity(entityType string, entityID uint, action models.AuditAction, description string, before, after any) LogOptions {
	o.EntityType = entityType
	o.EntityID = entityID
	o.Action = action
	o.Description = description
	o.Before = before
	o.After = after
	return o
}
