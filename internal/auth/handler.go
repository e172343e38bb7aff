package auth

import (
	"errors"
	"strings"
	"time"

	"sheriff-backend/internal/config"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

type RegisterSuperAdminRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// NormalizeEmail trims and lower-cases an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// HashPassword is shared with the admin package and the CLI.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func RegisterSuperAdminHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterSuperAdminRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Email = NormalizeEmail(body.Email)

		if body.Email == "" || body.Password == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name, email and password are required")
		}
		if len(body.Password) < MinPasswordLength {
			return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
		}

		var count int64
		if err := database.DB.Model(&models.User{}).
			Where("role = ?", models.RoleSuperAdmin).
			Count(&count).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not check existing users")
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "A super admin already exists")
		}

		hash, err := HashPassword(body.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: hash,
			Role:         models.RoleSuperAdmin,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not create user")
		}

		zap.L().Info("super admin registered", zap.Uint("user_id", user.ID))

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

func LoginHandler(cfg *config.Config, sessions *Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		body.Email = NormalizeEmail(body.Email)
		if body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Email and password are required")
		}

		ctx := c.UserContext()
		if err := sessions.CheckLocked(ctx, body.Email); err != nil {
			if errors.Is(err, ErrLocked) {
				return fiber.NewError(fiber.StatusTooManyRequests, "Too many failed attempts, try again later")
			}
			zap.L().Error("lockout lookup failed", zap.Error(err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
		}

		fail := func() error {
			if _, err := sessions.RecordFailure(ctx, body.Email); err != nil {
				zap.L().Warn("could not record failed login", zap.Error(err))
			}
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid email or password")
		}

		var user models.User
		if err := database.DB.Where("email = ?", body.Email).First(&user).Error; err != nil {
			return fail()
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fail()
		}

		if err := sessions.Reset(ctx, body.Email); err != nil {
			zap.L().Warn("could not reset login counter", zap.Error(err))
		}

		token, err := GenerateToken(cfg.JWTSecret, cfg.JWTTTL, &user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not issue token")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":        user.ID,
				"name":      user.Name,
				"email":     user.Email,
				"role":      user.Role,
				"branch_id": user.BranchID,
			},
		})
	}
}

func LogoutHandler(sessions *Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		jti, _ := c.Locals(CtxTokenIDKey).(string)
		exp, _ := c.Locals(CtxTokenExpKey).(time.Time)
		if jti == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Token has no id")
		}

		if err := sessions.Revoke(c.UserContext(), jti, exp); err != nil {
			zap.L().Error("token revocation failed", zap.Error(err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil {
			return err
		}

		response := fiber.Map{
			"user_id":   user.ID,
			"name":      user.Name,
			"email":     user.Email,
			"role":      user.Role,
			"branch_id": user.BranchID,
		}

		if user.Branch != nil {
			response["branch"] = fiber.Map{
				"id":      user.Branch.ID,
				"name":    user.Branch.Name,
				"city":    user.Branch.City,
				"address": user.Branch.Address,
				"phone":   user.Branch.Phone,
			}
		}

		return c.JSON(response)
	}
}

func UpdateProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateProfileRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		body.Name = strings.TrimSpace(body.Name)
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name is required")
		}

		user, err := CurrentUser(c)
		if err != nil {
			return err
		}

		if err := database.DB.Model(&user).Update("name", body.Name).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update profile")
		}

		return c.JSON(fiber.Map{
			"user_id": user.ID,
			"name":    body.Name,
			"email":   user.Email,
		})
	}
}

// ValidatePasswordChange checks the request shape; the current password is verified separately.
func ValidatePasswordChange(body ChangePasswordRequest) error {
	if body.CurrentPassword == "" || body.NewPassword == "" {
		return errors.New("current and new password are required")
	}
	if len(body.NewPassword) < MinPasswordLength {
		return errors.New("new password must be at least 8 characters")
	}
	if body.NewPassword != body.ConfirmPassword {
		return errors.New("new password and confirmation do not match")
	}
	return nil
}

func ChangePasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := ValidatePasswordChange(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		user, err := CurrentUser(c)
		if err != nil {
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.CurrentPassword)); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Current password is incorrect")
		}

		hash, err := HashPassword(body.NewPassword)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not hash password")
		}

		if err := database.DB.Model(&user).Update("password_hash", hash).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not update password")
		}

		return c.JSON(fiber.Map{"message": "Password updated"})
	}
}
