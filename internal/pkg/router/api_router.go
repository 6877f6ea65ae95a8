package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/AlumniConnect/YearbookConnect/app/controllers"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/cache"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/constants"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/env"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/middleware"
	"github.com/AlumniConnect/YearbookConnect/internal/pkg/usercontext"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute)
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "YearbookConnect API",
		})
	})

	v1 := api.Group(constants.APIv1Route, middleware.APIKeyAuthMiddleware())

	// Submission endpoints carry a per-user limiter backed by Redis so
	// limits hold across app instances.
	submitLimiter := newSubmitLimiter()

	yearbooks := v1.Group(constants.YearbooksRoute)
	yearbooks.Post("/", controllers.HandleCreateYearbook)
	yearbooks.Get("/:uuid", controllers.HandleGetYearbook)
	yearbooks.Get("/:uuid/status", controllers.HandleYearbookStatus)

	claims := v1.Group(constants.ClaimsRoute)
	claims.Post("/", submitLimiter, controllers.HandleCreateClaim)
	claims.Get("/", controllers.HandleListOwnClaims)

	v1.Post(constants.ReportsRoute, submitLimiter, controllers.HandleCreateReport)

	notifications := v1.Group(constants.NotificationsRoute)
	notifications.Get("/", controllers.HandleListNotifications)
	notifications.Post("/:id/read", controllers.HandleMarkNotificationRead)

	moderation := v1.Group(constants.ModerationRoute, middleware.RequireModerator())
	moderation.Get("/reports", controllers.HandleListReports)
	moderation.Post("/reports/batch", controllers.HandleBatchUpdateReports)
	moderation.Put("/reports/:id", controllers.HandleUpdateReport)
	moderation.Post("/reports/:id/actions", controllers.HandleRecordAction)
	moderation.Get("/claims", controllers.HandleListPendingClaims)
	moderation.Post("/claims/:id/approve", controllers.HandleApproveClaim)
	moderation.Post("/claims/:id/reject", controllers.HandleRejectClaim)
	moderation.Post("/yearbooks/:uuid/quarantine", controllers.HandleQuarantineYearbook)
}

// newSubmitLimiter builds the shared limiter for claim and report
// submission. Keyed per authenticated user, falling back to IP.
func newSubmitLimiter() fiber.Handler {
	max, _ := strconv.Atoi(env.GetEnv("SUBMIT_LIMIT_PER_MINUTE", "10"))
	if max <= 0 {
		max = 10
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := c.Locals(usercontext.KeyUserID); id != nil {
				if userID, ok := id.(uint); ok {
					return "u:" + strconv.FormatUint(uint64(userID), 10)
				}
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		},
	})
}

// newLimiterStorage reuses the cache connection settings, on a separate
// Redis database so limiter keys never collide with cache keys.
func newLimiterStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client := cache.GetClient(); client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
