package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/app/repository"
	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/entitlements"
	"github.com/EdukitaHQ/edukita/internal/pkg/usercontext"
)

// HandleGetAccount returns the caller's profile, plan, quota usage and
// billing counters in one payload.
func HandleGetAccount(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(uc.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	settings, err := models.GetOrCreateUserSettings(database.GetDB(), uc.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	stats, err := repo.GetBillingStatsByUserID(uc.UserID)
	if err != nil {
		log.Printf("[account] billing stats failed for user %d: %v", uc.UserID, err)
		stats = &repository.UserBillingStats{}
	}

	plan := entitlements.NormalizePlan(settings.Plan)
	meter := usageMeter()
	usage := fiber.Map{}
	for _, usageType := range models.UsageTypes() {
		used, err := meter.TodayUsage(c.Context(), uc.UserID, usageType)
		if err != nil {
			log.Printf("[account] usage lookup failed for user %d type %s: %v", uc.UserID, usageType, err)
		}
		usage[usageType] = fiber.Map{
			"used":  used,
			"limit": entitlements.DailyLimit(plan, usageType),
		}
	}

	return c.JSON(fiber.Map{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"referral_code": user.ReferralCode,
		"plan":          string(plan),
		"usage":         usage,
		"billing": fiber.Map{
			"completed_payments": stats.CompletedPayments,
			"total_spent":        stats.TotalSpent,
			"referrals_made":     stats.ReferralsMade,
			"points_balance":     stats.PointsBalance,
		},
		"api_key": fiber.Map{
			"active":       settings.HasActiveAPIKey(),
			"prefix":       settings.APIKeyPrefix,
			"created_at":   formatTimePtr(settings.APIKeyCreatedAt),
			"last_used_at": formatTimePtr(settings.APIKeyLastUsedAt),
		},
	})
}

// HandleIssueAPIKey creates a fresh API key for the caller, replacing any
// existing one. The raw secret is only ever returned here.
func HandleIssueAPIKey(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, uc.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}

	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Key generation failed")
	}
	if err := db.Save(settings).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Key could not be saved")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"api_key":    rawKey,
		"prefix":     settings.APIKeyPrefix,
		"created_at": formatTimePtr(settings.APIKeyCreatedAt),
	})
}

// HandleRevokeAPIKey disables the caller's API key.
func HandleRevokeAPIKey(c *fiber.Ctx) error {
	uc := usercontext.GetUserContext(c)
	if !uc.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	db := database.GetDB()
	settings, err := models.GetOrCreateUserSettings(db, uc.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Lookup failed")
	}
	if !settings.HasActiveAPIKey() {
		return jsonError(c, fiber.StatusConflict, "no_api_key", "There is no active API key to revoke")
	}

	settings.RevokeAPIKey()
	if err := db.Save(settings).Error; err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Key could not be revoked")
	}

	return c.JSON(fiber.Map{"ok": true})
}
