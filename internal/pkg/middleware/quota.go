package middleware

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/entitlements"
	"github.com/EdukitaHQ/edukita/internal/pkg/usagemeter"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

// RequireQuota atomically consumes one unit of the given usage type for the
// authenticated user and rejects the request with 429 once the daily limit
// under their plan is exhausted. Must run after an auth middleware that
// populates the user context.
func RequireQuota(usageType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uc := usercontext.GetUserContext(c)
		if !uc.IsLoggedIn {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "unauthorized",
				"message": "login required",
			})
		}

		plan := entitlements.NormalizePlan(uc.Plan)
		limit := entitlements.DailyLimit(plan, usageType)

		meter := usagemeter.NewMeterFromDB(database.GetDB(), usagemeter.NewRedisMirror())
		result, err := meter.CheckAndConsume(c.Context(), uc.UserID, usageType, limit)
		if err != nil {
			log.Printf("quota check failed for user %d type %s: %v", uc.UserID, usageType, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "quota check failed",
			})
		}
		if !result.Allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "quota_exhausted",
				"message":    "daily limit reached for " + usageType,
				"usage_type": usageType,
				"used":       result.CurrentUsage,
				"limit":      result.Limit,
				"plan":       string(plan),
			})
		}

		c.Locals("USAGE_RESULT", result)
		return c.Next()
	}
}
