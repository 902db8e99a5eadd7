package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/entitlements"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

// HandleGetSubscription returns the caller's effective subscription plus
// today's metered usage per feature.
func HandleGetSubscription(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	sub, err := subscriptionManager().ResolveEffective(c.Context(), uc.UserID)
	if err != nil && !errors.Is(err, subscription.ErrNoActiveSubscription) {
		log.Printf("[subscription] resolve failed for user %d: %v", uc.UserID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	plan := entitlements.PlanFree
	if sub != nil {
		plan = entitlements.NormalizePlan(sub.PlanID)
	}

	meter := usageMeter()
	usage := fiber.Map{}
	for _, usageType := range models.UsageTypes() {
		used, err := meter.TodayUsage(c.Context(), uc.UserID, usageType)
		if err != nil {
			log.Printf("[subscription] usage lookup failed for user %d type %s: %v", uc.UserID, usageType, err)
		}
		usage[usageType] = fiber.Map{
			"used":  used,
			"limit": entitlements.DailyLimit(plan, usageType),
		}
	}

	resp := fiber.Map{
		"plan":  string(plan),
		"usage": usage,
	}
	if sub != nil {
		resp["subscription"] = subscriptionJSON(sub)
	}
	return c.JSON(resp)
}

// HandleCancelSubscription cancels the caller's active subscription. Paid
// access continues until the current period ends.
func HandleCancelSubscription(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed JSON body")
	}

	sub, err := subscriptionManager().Cancel(c.Context(), uc.UserID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrReasonRequired):
			return jsonError(c, fiber.StatusUnprocessableEntity, "reason_required", "A cancellation reason is required")
		case errors.Is(err, subscription.ErrNoActiveSubscription):
			return jsonError(c, fiber.StatusConflict, "no_active_subscription", "There is no active subscription to cancel")
		default:
			log.Printf("[subscription] cancel failed for user %d: %v", uc.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Cancellation failed")
		}
	}

	return c.JSON(fiber.Map{"subscription": subscriptionJSON(sub)})
}

func subscriptionJSON(s *models.Subscription) fiber.Map {
	return fiber.Map{
		"id":            s.ID,
		"plan_id":       s.PlanID,
		"status":        s.Status,
		"billing_cycle": s.BillingCycle,
		"start_date":    formatTimePtr(&s.StartDate),
		"end_date":      formatTimePtr(&s.EndDate),
		"source":        s.Source,
		"cancelled_at":  formatTimePtr(s.CancelledAt),
		"cancel_reason": s.CancelReason,
	}
}
