package router

import (
	"github.com/EdukitaHQ/edukita/app/controllers"
	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/constants"
	"github.com/EdukitaHQ/edukita/internal/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Next: func(c *fiber.Ctx) bool {
			// Gateway notifications must never be rate limited away.
			return c.Path() == constants.NotificationRoute
		},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Edukita API",
		})
	})

	v1 := api.Group("/v1")

	// Auth
	auth := v1.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Get("/activate", controllers.HandleActivate)
	auth.Post("/login", controllers.HandleLogin)
	auth.Post("/logout", controllers.HandleLogout)

	// Billing. The notification endpoint is unauthenticated; it is verified
	// by gateway signature instead.
	billing := v1.Group("/billing")
	billing.Post("/notification", controllers.HandleNotification)
	billing.Post("/checkout", middleware.RequireAPISessionAuth, controllers.HandleCheckout)
	billing.Get("/payments", middleware.RequireAPISessionAuth, controllers.HandleListPayments)
	billing.Get("/payments/:id", middleware.RequireAPISessionAuth, controllers.HandleGetPayment)

	// Subscription
	v1.Get("/plans", controllers.HandleListPlans)
	v1.Get("/subscription", middleware.RequireAPISessionAuth, controllers.HandleGetSubscription)
	v1.Post("/subscription/cancel", middleware.RequireAPISessionAuth, controllers.HandleCancelSubscription)

	// Discounts
	v1.Post("/discounts/preview", middleware.RequireAPISessionAuth, controllers.HandleDiscountPreview)

	// Referrals
	v1.Post("/referrals/enroll", middleware.RequireAPISessionAuth, controllers.HandleReferralEnroll)
	v1.Get("/referrals", middleware.RequireAPISessionAuth, controllers.HandleGetReferrals)

	// Account
	account := v1.Group("/account", middleware.RequireAPISessionAuth)
	account.Get("/", controllers.HandleGetAccount)
	account.Post("/apikey", controllers.HandleIssueAPIKey)
	account.Delete("/apikey", controllers.HandleRevokeAPIKey)

	// Metered feature endpoints consume quota before handing off. They are
	// reachable both with a session and with an API key.
	features := v1.Group("/features")
	features.Post("/mentor-chat", middleware.RequireAPISessionAuth, middleware.RequireQuota(models.UsageTypeMentorChat), handleFeatureGranted(models.UsageTypeMentorChat))
	features.Post("/quiz-attempt", middleware.RequireAPISessionAuth, middleware.RequireQuota(models.UsageTypeQuizAttempt), handleFeatureGranted(models.UsageTypeQuizAttempt))
	features.Post("/video-download", middleware.RequireAPISessionAuth, middleware.RequireQuota(models.UsageTypeVideoDownload), handleFeatureGranted(models.UsageTypeVideoDownload))

	// API-key authenticated variants for programmatic clients.
	ext := v1.Group("/ext", middleware.APIKeyAuthMiddleware())
	ext.Post("/features/mentor-chat", middleware.RequireQuota(models.UsageTypeMentorChat), handleFeatureGranted(models.UsageTypeMentorChat))
	ext.Post("/features/quiz-attempt", middleware.RequireQuota(models.UsageTypeQuizAttempt), handleFeatureGranted(models.UsageTypeQuizAttempt))
	ext.Post("/features/video-download", middleware.RequireQuota(models.UsageTypeVideoDownload), handleFeatureGranted(models.UsageTypeVideoDownload))

	// Admin
	admin := v1.Group("/admin", middleware.RequireAPIAdminAuth)
	admin.Get("/stats", controllers.HandleAdminStats)
}

// handleFeatureGranted acknowledges a quota-gated feature request. The
// learning content itself is served by a separate system; this endpoint is
// the entitlement gate in front of it.
func handleFeatureGranted(usageType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resp := fiber.Map{"granted": true, "usage_type": usageType}
		if r := c.Locals("USAGE_RESULT"); r != nil {
			resp["usage"] = r
		}
		return c.JSON(resp)
	}
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
