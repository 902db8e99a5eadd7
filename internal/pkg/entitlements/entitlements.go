package entitlements

import (
	"strings"

	"github.com/EdukitaHQ/edukita/app/models"
)

type Plan string

const (
	PlanFree        Plan = "free"
	PlanPremium     Plan = "premium"
	PlanPremiumPlus Plan = "premium_plus"
)

// Unlimited is the sentinel limit meaning "no daily cap".
const Unlimited = -1

// dailyLimits is the per-plan entitlement catalogue for metered features.
var dailyLimits = map[Plan]map[string]int{
	PlanFree: {
		models.UsageTypeMentorChat:    30,
		models.UsageTypeQuizAttempt:   10,
		models.UsageTypeVideoDownload: 0,
	},
	PlanPremium: {
		models.UsageTypeMentorChat:    Unlimited,
		models.UsageTypeQuizAttempt:   100,
		models.UsageTypeVideoDownload: 20,
	},
	PlanPremiumPlus: {
		models.UsageTypeMentorChat:    Unlimited,
		models.UsageTypeQuizAttempt:   Unlimited,
		models.UsageTypeVideoDownload: Unlimited,
	},
}

// NormalizePlan maps arbitrary input to a known plan, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPremium):
		return PlanPremium
	case string(PlanPremiumPlus):
		return PlanPremiumPlus
	default:
		return PlanFree
	}
}

// PlanRank orders plans so the best of several subscriptions wins.
func PlanRank(plan Plan) int {
	switch plan {
	case PlanPremiumPlus:
		return 2
	case PlanPremium:
		return 1
	default:
		return 0
	}
}

// DailyLimit returns the daily quota for a usage type under the given plan.
// Unknown usage types are not metered and return Unlimited.
func DailyLimit(plan Plan, usageType string) int {
	limits, ok := dailyLimits[NormalizePlan(string(plan))]
	if !ok {
		limits = dailyLimits[PlanFree]
	}
	limit, ok := limits[usageType]
	if !ok {
		return Unlimited
	}
	return limit
}
