package controllers

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/app/repository"
	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/referral"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

type referralEnrollRequest struct {
	ReferralCode string `json:"referral_code"`
}

// HandleReferralEnroll links the caller to a referrer via a referral code.
// Enrollment after registration is allowed as long as the caller was never
// referred before.
func HandleReferralEnroll(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	var req referralEnrollRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Malformed JSON body")
	}

	ref, err := referralEngine().Enroll(c.Context(), strings.TrimSpace(req.ReferralCode), uc.UserID)
	if err != nil {
		switch {
		case errors.Is(err, referral.ErrInvalidReferralCode):
			return jsonError(c, fiber.StatusNotFound, "invalid_code", "Unknown referral code")
		case errors.Is(err, referral.ErrSelfReferral):
			return jsonError(c, fiber.StatusUnprocessableEntity, "self_referral", "You cannot use your own referral code")
		case errors.Is(err, referral.ErrAlreadyReferred):
			return jsonError(c, fiber.StatusConflict, "already_referred", "This account is already linked to a referrer")
		case errors.Is(err, referral.ErrNoActiveProgram):
			return jsonError(c, fiber.StatusConflict, "no_active_program", "No referral program is currently running")
		default:
			log.Printf("[referral] enroll failed for user %d: %v", uc.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Enrollment failed")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"referral": referralJSON(ref)})
}

// HandleGetReferrals returns the caller's own referral code plus the
// referrals they have made, newest first.
func HandleGetReferrals(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	var referrals []models.Referral
	err = database.GetDB().
		Where("referrer_id = ?", uc.UserID).
		Order("created_at DESC").
		Limit(100).
		Find(&referrals).Error
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	items := make([]fiber.Map, 0, len(referrals))
	var totalEarned float64
	for i := range referrals {
		items = append(items, referralJSON(&referrals[i]))
		totalEarned += referrals[i].ReferrerRewardAmount
	}

	return c.JSON(fiber.Map{
		"referral_code": user.ReferralCode,
		"referrals":     items,
		"total_earned":  totalEarned,
	})
}

func referralJSON(r *models.Referral) fiber.Map {
	return fiber.Map{
		"id":                     r.ID,
		"referrer_id":            r.ReferrerID,
		"referee_id":             r.RefereeID,
		"status":                 r.Status,
		"referrer_reward_amount": r.ReferrerRewardAmount,
		"referee_reward_amount":  r.RefereeRewardAmount,
		"completed_at":           formatTimePtr(r.CompletedAt),
		"rewarded_at":            formatTimePtr(r.RewardedAt),
	}
}
