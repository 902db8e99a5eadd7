package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/internal/pkg/statistics"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

// HandleAdminStats returns platform-wide billing counters. The numbers come
// from the Redis statistics cache and may lag by a few minutes.
func HandleAdminStats(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn || !uc.IsAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Admin access required")
	}

	statistics.UpdateCacheIfNeeded()
	data := statistics.GetStatistics()

	return c.JSON(fiber.Map{
		"total_users":          data.TotalUsers,
		"active_subscriptions": data.ActiveSubscriptions,
		"revenue_today":        data.RevenueToday,
		"revenue_total":        data.RevenueTotal,
	})
}
