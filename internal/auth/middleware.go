package auth

import (
	"fmt"
	"strings"
	"time"

	"sheriff-backend/internal/config"
	"sheriff-backend/internal/database"
	"sheriff-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxBranchIDKey = "branch_id"
	CtxTokenIDKey  = "token_id"
	CtxTokenExpKey = "token_exp"
)

func JWTMiddleware(cfg *config.Config, sessions *Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization header must be 'Bearer <token>'")
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "Could not read token claims")
		}

		revoked, err := sessions.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			zap.L().Error("revocation lookup failed", zap.Error(err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "Session store unavailable")
		}
		if revoked {
			return fiber.NewError(fiber.StatusUnauthorized, "Token has been revoked")
		}

		// The account must still exist with the role and branch it was issued for.
		var user models.User
		if err := database.DB.Select("id", "role", "branch_id").First(&user, claims.UserID).Error; err != nil {
			if database.IsNotFound(err) {
				return fiber.NewError(fiber.StatusUnauthorized, "Account no longer exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load account")
		}
		if user.Role != claims.Role || !sameBranch(user.BranchID, claims.BranchID) {
			return fiber.NewError(fiber.StatusUnauthorized, "Account has changed, please log in again")
		}

		var exp time.Time
		if claims.ExpiresAt != nil {
			exp = claims.ExpiresAt.Time
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxBranchIDKey, claims.BranchID)
		c.Locals(CtxTokenIDKey, claims.ID)
		c.Locals(CtxTokenExpKey, exp)

		return c.Next()
	}
}

func sameBranch(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Role information missing")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Unauthorized")
	}
}
