package admin

import (
	"errors"
	"strings"

	"sheriff-backend/internal/audit"
	"sheriff-backend/internal/auth"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/httputil"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type BranchResponse struct {
	ID         uint                `json:"id"`
	Name       string              `json:"name"`
	City       string              `json:"city"`
	Address    string              `json:"address"`
	Phone      string              `json:"phone"`
	Status     models.RecordStatus `json:"status"`
	GuardCount int64               `json:"guard_count"`
	PlaceCount int64               `json:"place_count"`
	CreatedAt  string              `json:"created_at"`
}

type CreateBranchRequest struct {
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Address string  `json:"address"`
	Phone   *string `json:"phone"`
	Status  string  `json:"status"`
}

type UpdateBranchRequest struct {
	Name    *string `json:"name"`
	City    *string `json:"city"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
	Status  *string `json:"status"`
}

type CreateBranchAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type BranchAdminResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	BranchID  *uint  `json:"branch_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type branchCount struct {
	BranchID uint
	N        int64
}

// countByBranch returns row counts of model grouped by branch_id.
func countByBranch(model any) (map[uint]int64, error) {
	var rows []branchCount
	if err := database.DB.Model(model).
		Select("branch_id, COUNT(*) AS n").
		Group("branch_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, r := range rows {
		out[r.BranchID] = r.N
	}
	return out, nil
}

func toBranchResponse(b models.Branch, guards, places int64) BranchResponse {
	return BranchResponse{
		ID:         b.ID,
		Name:       b.Name,
		City:       b.City,
		Address:    b.Address,
		Phone:      b.Phone,
		Status:     b.Status,
		GuardCount: guards,
		PlaceCount: places,
		CreatedAt:  httputil.FormatDateTime(b.CreatedAt),
	}
}

func branchNameTaken(db *gorm.DB, name string, exceptID uint) (bool, error) {
	var count int64
	err := db.Model(&models.Branch{}).
		Where("LOWER(name) = ? AND id <> ?", strings.ToLower(name), exceptID).
		Count(&count).Error
	return count > 0, err
}

// branchCounts returns how many guards and places the branch has.
func branchCounts(db *gorm.DB, id uint) (guards, places int64, err error) {
	if err = db.Model(&models.Guard{}).Where("branch_id = ?", id).Count(&guards).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&models.Place{}).Where("branch_id = ?", id).Count(&places).Error; err != nil {
		return 0, 0, err
	}
	return guards, places, nil
}

// removeBranch deletes an empty branch: no guards, places, inventory items
// or admins.
func removeBranch(tx *gorm.DB, id uint) error {
	guards, places, err := branchCounts(tx, id)
	if err != nil {
		return err
	}
	if guards > 0 || places > 0 {
		return fiber.NewError(fiber.StatusConflict, "Cannot delete branch with existing places or guards")
	}

	var items int64
	if err := tx.Model(&models.InventoryItem{}).Where("branch_id = ?", id).Count(&items).Error; err != nil {
		return err
	}
	if items > 0 {
		return fiber.NewError(fiber.StatusConflict, "Cannot delete branch with inventory items")
	}

	var admins int64
	if err := tx.Model(&models.User{}).Where("branch_id = ?", id).Count(&admins).Error; err != nil {
		return err
	}
	if admins > 0 {
		return fiber.NewError(fiber.StatusConflict, "Remove the branch admins before deleting the branch")
	}

	return tx.Delete(&models.Branch{}, id).Error
}

func loadBranch(c *fiber.Ctx) (models.Branch, error) {
	id, err := httputil.ParamID(c, "id")
	if err != nil {
		return models.Branch{}, err
	}
	var branch models.Branch
	if err := database.DB.First(&branch, id).Error; err != nil {
		if database.IsNotFound(err) {
			return models.Branch{}, fiber.NewError(fiber.StatusNotFound, "Branch not found")
		}
		return models.Branch{}, fiber.NewError(fiber.StatusInternalServerError, "Could not load branch")
	}
	return branch, nil
}

func parseStatus(raw string) (models.RecordStatus, error) {
	s, ok := models.ParseRecordStatus(raw)
	if !ok {
		return "", fiber.NewError(fiber.StatusBadRequest, "status must be active or inactive")
	}
	return s, nil
}

// ----------------------------------------
// Branch CRUD
// ----------------------------------------

// POST /api/admin/branches
func CreateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.City = strings.TrimSpace(body.City)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Branch name is required")
		}
		if body.City == "" {
			return fiber.NewError(fiber.StatusBadRequest, "City is required")
		}
		status, err := parseStatus(body.Status)
		if err != nil {
			return err
		}

		taken, err := branchNameTaken(database.DB, body.Name, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check branch name")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "A branch with this name already exists")
		}

		branch := models.Branch{
			Name:    body.Name,
			City:    body.City,
			Address: strings.TrimSpace(body.Address),
			Status:  status,
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.Create(&branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create branch")
		}

		audit.Record(audit.Actor(c, &branch.ID).Entity(audit.EntityBranch, branch.ID,
			models.AuditActionCreate, "Branch created: "+branch.Name, nil, branch))

		return c.Status(fiber.StatusCreated).JSON(toBranchResponse(branch, 0, 0))
	}
}

// GET /api/admin/branches?status=active
func ListBranchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Order("name ASC")
		if s := c.Query("status"); s != "" {
			dbq = dbq.Where("status = ?", s)
		}

		var branches []models.Branch
		if err := dbq.Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list branches")
		}

		guards, err := countByBranch(&models.Guard{})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not count guards")
		}
		places, err := countByBranch(&models.Place{})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not count places")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b, guards[b.ID], places[b.ID]))
		}
		return c.JSON(res)
	}
}

// GET /api/admin/branches/:id
func GetBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}

		guards, places, err := branchCounts(database.DB, branch.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not count branch records")
		}

		return c.JSON(toBranchResponse(branch, guards, places))
	}
}

// PUT /api/admin/branches/:id
func UpdateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}
		before := branch

		var body UpdateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Branch name is required")
			}
			taken, err := branchNameTaken(database.DB, name, branch.ID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not check branch name")
			}
			if taken {
				return fiber.NewError(fiber.StatusConflict, "A branch with this name already exists")
			}
			branch.Name = name
		}
		if body.City != nil {
			city := strings.TrimSpace(*body.City)
			if city == "" {
				return fiber.NewError(fiber.StatusBadRequest, "City is required")
			}
			branch.City = city
		}
		if body.Address != nil {
			branch.Address = strings.TrimSpace(*body.Address)
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}
		if body.Status != nil {
			status, err := parseStatus(*body.Status)
			if err != nil {
				return err
			}
			branch.Status = status
		}

		if err := database.DB.Omit("Users").Save(&branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update branch")
		}

		audit.Record(audit.Actor(c, &branch.ID).Entity(audit.EntityBranch, branch.ID,
			models.AuditActionUpdate, "Branch updated: "+branch.Name, before, branch))

		guards, places, err := branchCounts(database.DB, branch.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not count branch records")
		}

		return c.JSON(toBranchResponse(branch, guards, places))
	}
}

// DELETE /api/admin/branches/:id
func DeleteBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return removeBranch(tx, branch.ID)
		})
		if err != nil {
			var refused *fiber.Error
			if errors.As(err, &refused) {
				return refused
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete branch")
		}

		audit.Record(audit.Actor(c, &branch.ID).Entity(audit.EntityBranch, branch.ID,
			models.AuditActionDelete, "Branch deleted: "+branch.Name, branch, nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// Branch admins
// ----------------------------------------

// POST /api/admin/branches/:id/admins
func CreateBranchAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}

		var body CreateBranchAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Email = auth.NormalizeEmail(body.Email)
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name, email and password are required")
		}
		if !httputil.ValidEmail(body.Email) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid email address")
		}
		if len(body.Password) < auth.MinPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
		}

		var exists int64
		if err := database.DB.Model(&models.User{}).Where("email = ?", body.Email).Count(&exists).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check email")
		}
		if exists > 0 {
			return fiber.NewError(fiber.StatusConflict, "This email is already registered")
		}

		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: hash,
			Role:         models.RoleBranchAdmin,
			BranchID:     &branch.ID,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create branch admin")
		}

		audit.Record(audit.Actor(c, &branch.ID).Entity(audit.EntityUser, user.ID,
			models.AuditActionCreate, "Branch admin created: "+user.Email, nil, toAdminResponse(user)))

		return c.Status(fiber.StatusCreated).JSON(toAdminResponse(user))
	}
}

func toAdminResponse(u models.User) BranchAdminResponse {
	return BranchAdminResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		BranchID:  u.BranchID,
		CreatedAt: httputil.FormatDateTime(u.CreatedAt),
		UpdatedAt: httputil.FormatDateTime(u.UpdatedAt),
	}
}

// GET /api/admin/branches/:id/admins
func ListBranchAdminsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branch, err := loadBranch(c)
		if err != nil {
			return err
		}

		var users []models.User
		if err := database.DB.
			Where("branch_id = ? AND role = ?", branch.ID, models.RoleBranchAdmin).
			Order("created_at DESC").
			Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list admins")
		}

		res := make([]BranchAdminResponse, 0, len(users))
		for _, u := range users {
			res = append(res, toAdminResponse(u))
		}
		return c.JSON(res)
	}
}

// DELETE /api/admin/users/:id
func DeleteBranchAdminHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httputil.ParamID(c, "id")
		if err != nil {
			return err
		}

		var user models.User
		if err := database.DB.First(&user, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		if user.Role != models.RoleBranchAdmin {
			return fiber.NewError(fiber.StatusBadRequest, "Only branch admins can be deleted")
		}

		if err := database.DB.Delete(&models.User{}, user.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not delete user")
		}

		audit.Record(audit.Actor(c, user.BranchID).Entity(audit.EntityUser, user.ID,
			models.AuditActionDelete, "Branch admin deleted: "+user.Email, toAdminResponse(user), nil))

		return c.SendStatus(fiber.StatusNoContent)
	}
}
