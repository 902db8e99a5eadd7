package subscription

import (
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
)

// EffectiveStatus derives the status a subscription row should present at
// read time. Expiry is never stored: a row past its end date reads as
// expired no matter what the column says, and a cancelled row keeps
// entitling until the paid period runs out.
func EffectiveStatus(status string, endDate, now time.Time) string {
	if !now.Before(endDate) {
		return models.SubscriptionStatusExpired
	}
	switch status {
	case models.SubscriptionStatusCancelled:
		return models.SubscriptionStatusCancelled
	case models.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	default:
		return models.SubscriptionStatusExpired
	}
}

// Entitles reports whether a derived status still grants paid access.
// Cancelled subscriptions keep access until their end date passes.
func Entitles(effectiveStatus string) bool {
	switch effectiveStatus {
	case models.SubscriptionStatusActive, models.SubscriptionStatusCancelled:
		return true
	default:
		return false
	}
}

// PeriodEnd computes the end date for a billing cycle starting at start.
func PeriodEnd(start time.Time, billingCycle string) time.Time {
	if billingCycle == models.BillingCycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
