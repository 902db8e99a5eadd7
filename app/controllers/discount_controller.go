package controllers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/internal/pkg/discount"
	"github.com/EdukitaHQ/edukita/internal/pkg/payment"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

type discountPreviewRequest struct {
	Code         string `json:"code"`
	PlanID       string `json:"plan_id"`
	BillingCycle string `json:"billing_cycle"`
}

// HandleDiscountPreview prices a discount code against a plan without
// redeeming it. The answer is advisory; checkout revalidates.
func HandleDiscountPreview(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req discountPreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed JSON body")
	}
	if req.BillingCycle == "" {
		req.BillingCycle = "monthly"
	}

	price, ok := payment.PlanPrice(req.PlanID, req.BillingCycle)
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "unknown_plan", "Plan is not purchasable")
	}

	quote, err := discountEngine().ValidateAndPrice(c.Context(), req.Code, uc.UserID, req.PlanID, price)
	if err != nil {
		if errors.Is(err, discount.ErrCodeNotFound) {
			return jsonError(c, fiber.StatusNotFound, "discount_not_found", "Unknown discount code")
		}
		log.Printf("[discount] preview failed for user %d code %s: %v", uc.UserID, req.Code, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Preview failed")
	}

	return c.JSON(fiber.Map{
		"quote":           quote,
		"original_amount": price,
	})
}
