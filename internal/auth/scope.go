package auth

import (
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Scope is the caller's identity as carried by the token.
type Scope struct {
	UserID   uint
	Role     models.UserRole
	BranchID *uint
}

func CurrentScope(c *fiber.Ctx) (Scope, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok {
		return Scope{}, fiber.NewError(fiber.StatusUnauthorized, "User information missing")
	}
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return Scope{}, fiber.NewError(fiber.StatusForbidden, "Role information missing")
	}
	branchID, _ := c.Locals(CtxBranchIDKey).(*uint)

	if role == models.RoleBranchAdmin && branchID == nil {
		return Scope{}, fiber.NewError(fiber.StatusForbidden, "Branch admin has no branch")
	}
	return Scope{UserID: userID, Role: role, BranchID: branchID}, nil
}

func (s Scope) IsSuperAdmin() bool {
	return s.Role == models.RoleSuperAdmin
}

// BranchFilter returns the branch a listing is restricted to, or nil for every
// branch. Branch admins are pinned to their own branch; super admins may
// narrow with ?branch_id=.
func (s Scope) BranchFilter(c *fiber.Ctx) (*uint, error) {
	if !s.IsSuperAdmin() {
		return s.BranchID, nil
	}
	return httputil.QueryUint(c, "branch_id")
}

// Apply adds a "<column> = ?" clause when filter is set.
func Apply(db *gorm.DB, column string, filter *uint) *gorm.DB {
	if filter == nil {
		return db
	}
	return db.Where(column+" = ?", *filter)
}

// TargetBranch picks the branch a new record is written to.
func (s Scope) TargetBranch(requested *uint) (uint, error) {
	if !s.IsSuperAdmin() {
		return *s.BranchID, nil
	}
	if requested == nil || *requested == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}

	var count int64
	if err := database.DB.Model(&models.Branch{}).Where("id = ?", *requested).Count(&count).Error; err != nil {
		return 0, fiber.NewError(fiber.StatusInternalServerError, "Could not load branch")
	}
	if count == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Branch not found")
	}
	return *requested, nil
}

// CanAccess reports whether a record owned by branchID is visible to the caller.
func (s Scope) CanAccess(branchID uint) bool {
	if s.IsSuperAdmin() {
		return true
	}
	return s.BranchID != nil && *s.BranchID == branchID
}

// CurrentUser loads the authenticated user with their branch.
func CurrentUser(c *fiber.Ctx) (models.User, error) {
	userID, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok {
		return models.User{}, fiber.NewError(fiber.StatusUnauthorized, "User information missing")
	}

	var user models.User
	if err := database.DB.Preload("Branch").First(&user, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return models.User{}, fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
		}
		return models.User{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load user")
	}
	return user, nil
}
