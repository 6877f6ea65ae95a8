package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AlumniConnect/YearbookConnect/app/models"
	"github.com/AlumniConnect/YearbookConnect/app/repository"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/database"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/usercontext"
)

func newAuthTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	database.SetDB(db)
	repository.ResetFactoryForTest(db)

	app := fiber.New()
	app.Use(APIKeyAuthMiddleware())
	app.Get("/me", func(c *fiber.Ctx) error {
		user := usercontext.GetUserContext(c)
		return c.JSON(fiber.Map{"user_id": user.UserID, "is_moderator": user.IsModerator})
	})
	app.Get("/mod", RequireModerator(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app, db
}

func createAPIUser(t *testing.T, db *gorm.DB, role, status, rawKey string) *models.User {
	t.Helper()
	user := models.User{
		Name:       "API " + role,
		Email:      fmt.Sprintf("%s-%s@example.com", role, t.Name()),
		Password:   "x",
		Role:       role,
		Status:     status,
		APIKeyHash: models.HashAPIKey(rawKey),
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestAPIKeyAuthMiddleware(t *testing.T) {
	app, db := newAuthTestApp(t)
	user := createAPIUser(t, db, models.ROLE_USER, models.STATUS_ACTIVE, "yk_live_valid")

	t.Run("missing key", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("invalid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-API-Key", "yk_live_wrong")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid key via header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-API-Key", "yk_live_valid")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("valid key via bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer yk_live_valid")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("login timestamp refreshed", func(t *testing.T) {
		var stored models.User
		require.NoError(t, db.First(&stored, user.ID).Error)
		assert.NotNil(t, stored.LastLoginAt)
	})
}

func TestAPIKeyAuthMiddlewareRejectsInactiveUser(t *testing.T) {
	app, db := newAuthTestApp(t)
	createAPIUser(t, db, models.ROLE_USER, models.STATUS_DISABLED, "yk_live_disabled")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-API-Key", "yk_live_disabled")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRequireModerator(t *testing.T) {
	app, db := newAuthTestApp(t)
	createAPIUser(t, db, models.ROLE_USER, models.STATUS_ACTIVE, "yk_live_member")
	createAPIUser(t, db, models.ROLE_MODERATOR, models.STATUS_ACTIVE, "yk_live_mod")
	createAPIUser(t, db, models.ROLE_ADMIN, models.STATUS_ACTIVE, "yk_live_admin")

	get := func(t *testing.T, key string) int {
		req := httptest.NewRequest(http.MethodGet, "/mod", nil)
		req.Header.Set("X-API-Key", key)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusForbidden, get(t, "yk_live_member"))
	assert.Equal(t, fiber.StatusOK, get(t, "yk_live_mod"))
	assert.Equal(t, fiber.StatusOK, get(t, "yk_live_admin"))
}
