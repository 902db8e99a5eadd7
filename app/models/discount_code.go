package models

import (
	"strings"
	"time"
)

const (
	DiscountTypePercentage  = "percentage"
	DiscountTypeFixedAmount = "fixed_amount"
	DiscountTypeFreeTrial   = "free_trial"
)

// DiscountCode is a promotional code redeemable at checkout. CurrentUsage is
// the global redemption counter and is only ever moved by a conditional
// increment so a capped code cannot be oversold.
type DiscountCode struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Code              string     `gorm:"type:varchar(50);not null;uniqueIndex:ux_discount_codes_code" json:"code"`
	DiscountType      string     `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue     float64    `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	ApplicablePlans   string     `gorm:"type:varchar(255);not null;default:''" json:"applicable_plans"`
	MinimumAmount     float64    `gorm:"type:decimal(12,2);not null;default:0" json:"minimum_amount"`
	MaximumDiscount   *float64   `gorm:"type:decimal(12,2);default:null" json:"maximum_discount,omitempty"`
	UsageLimit        *int       `gorm:"default:null" json:"usage_limit,omitempty"`
	UsageLimitPerUser int        `gorm:"not null;default:1" json:"usage_limit_per_user"`
	CurrentUsage      int        `gorm:"not null;default:0" json:"current_usage"`
	ValidFrom         time.Time  `gorm:"type:timestamp;not null" json:"valid_from"`
	ValidUntil        *time.Time `gorm:"type:timestamp;default:null" json:"valid_until,omitempty"`
	IsActive          bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppliesToPlan reports whether the code is valid for the given plan. An
// empty ApplicablePlans list means the code applies to every plan.
func (d *DiscountCode) AppliesToPlan(planID string) bool {
	plans := strings.TrimSpace(d.ApplicablePlans)
	if plans == "" {
		return true
	}
	target := strings.ToLower(strings.TrimSpace(planID))
	for _, p := range strings.Split(plans, ",") {
		if strings.ToLower(strings.TrimSpace(p)) == target {
			return true
		}
	}
	return false
}
