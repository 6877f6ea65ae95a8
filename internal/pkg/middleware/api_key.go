package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/database"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware authenticates requests carrying a user API key header.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		db := database.GetDB()
		if db == nil {
			log.Error("[Middleware] API key check failed: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repo := repository.GetGlobalFactory().GetUserRepository()
		user, err := repo.GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Errorf("[Middleware] API key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if user.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "User inactive"})
		}

		// Refresh last-login timestamp best-effort.
		now := time.Now()
		if err := db.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("last_login_at", now).Error; err != nil {
			log.Warnf("[Middleware] Failed to update login timestamp for user %d: %v", user.ID, err)
		}

		userCtx := usercontext.UserContext{
			UserID:      user.ID,
			Username:    user.Name,
			IsLoggedIn:  true,
			IsModerator: user.IsModerator(),
			SchoolID:    user.SchoolID,
		}
		c.Locals("USER_CONTEXT", userCtx)
		c.Locals(usercontext.KeyUserID, user.ID)
		c.Locals(usercontext.KeyUsername, user.Name)
		c.Locals(usercontext.KeyIsModerator, user.IsModerator())

		return c.Next()
	}
}

// RequireModerator rejects non-moderator callers before any handler
// state is touched. Must run after APIKeyAuthMiddleware.
func RequireModerator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !usercontext.IsModerator(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Moderator role required"})
		}
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
