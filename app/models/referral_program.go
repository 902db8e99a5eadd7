package models

import "time"

const (
	RewardTypePercentage  = "percentage"
	RewardTypeFixedAmount = "fixed_amount"
	RewardTypeFreeMonths  = "free_months"
	RewardTypePoints      = "points"
)

// ReferralProgram defines the two-sided reward rules applied when a referred
// user completes their first qualifying payment.
type ReferralProgram struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	Name                  string     `gorm:"type:varchar(100);not null" json:"name"`
	ReferrerRewardType    string     `gorm:"type:varchar(20);not null" json:"referrer_reward_type"`
	ReferrerRewardValue   float64    `gorm:"type:decimal(12,2);not null" json:"referrer_reward_value"`
	RefereeRewardType     string     `gorm:"type:varchar(20);not null" json:"referee_reward_type"`
	RefereeRewardValue    float64    `gorm:"type:decimal(12,2);not null" json:"referee_reward_value"`
	MinimumRefereePayment float64    `gorm:"type:decimal(12,2);not null;default:0" json:"minimum_referee_payment"`
	RewardCap             *float64   `gorm:"type:decimal(12,2);default:null" json:"reward_cap,omitempty"`
	ValidFrom             time.Time  `gorm:"type:timestamp;not null" json:"valid_from"`
	ValidUntil            *time.Time `gorm:"type:timestamp;default:null" json:"valid_until,omitempty"`
	IsActive              bool       `gorm:"default:true;index" json:"is_active"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsOpenAt reports whether the program accepts new enrollments at t.
func (p *ReferralProgram) IsOpenAt(t time.Time) bool {
	if !p.IsActive || t.Before(p.ValidFrom) {
		return false
	}
	return p.ValidUntil == nil || t.Before(*p.ValidUntil)
}
