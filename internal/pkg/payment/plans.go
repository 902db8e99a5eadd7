package payment

import (
	"strings"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/entitlements"
)

// PlanOffer is a purchasable plan as shown on the pricing page.
type PlanOffer struct {
	PlanID       string  `json:"plan_id"`
	Name         string  `json:"name"`
	MonthlyPrice float64 `json:"monthly_price"`
	YearlyPrice  float64 `json:"yearly_price"`
	Currency     string  `json:"currency"`
}

var planOffers = []PlanOffer{
	{
		PlanID:       string(entitlements.PlanPremium),
		Name:         "Premium",
		MonthlyPrice: 49000,
		YearlyPrice:  490000,
		Currency:     "IDR",
	},
	{
		PlanID:       string(entitlements.PlanPremiumPlus),
		Name:         "Premium Plus",
		MonthlyPrice: 99000,
		YearlyPrice:  990000,
		Currency:     "IDR",
	},
}

// Plans lists the purchasable plans. The free tier is not purchasable and
// therefore not listed.
func Plans() []PlanOffer {
	out := make([]PlanOffer, len(planOffers))
	copy(out, planOffers)
	return out
}

// PlanPrice resolves the list price for a plan and billing cycle. The second
// return value is false for unknown or non-purchasable plans.
func PlanPrice(planID, billingCycle string) (float64, bool) {
	id := strings.ToLower(strings.TrimSpace(planID))
	for _, offer := range planOffers {
		if offer.PlanID != id {
			continue
		}
		if strings.ToLower(strings.TrimSpace(billingCycle)) == models.BillingCycleYearly {
			return offer.YearlyPrice, true
		}
		return offer.MonthlyPrice, true
	}
	return 0, false
}
