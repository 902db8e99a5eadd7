package models

import "time"

const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
	ReferralStatusRewarded  = "rewarded"
)

// Referral links a referee to their referrer. Status only moves forward
// (pending -> completed -> rewarded); the status column is the single-writer
// gate that prevents a reward from being paid twice.
type Referral struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	ReferrerID           uint       `gorm:"not null;index" json:"referrer_id"`
	RefereeID            uint       `gorm:"not null;uniqueIndex:ux_referrals_referee" json:"referee_id"`
	ProgramID            uint       `gorm:"not null;index" json:"program_id"`
	ReferralCode         string     `gorm:"type:varchar(50);not null;index" json:"referral_code"`
	Status               string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReferrerRewardAmount float64    `gorm:"type:decimal(12,2);not null;default:0" json:"referrer_reward_amount"`
	RefereeRewardAmount  float64    `gorm:"type:decimal(12,2);not null;default:0" json:"referee_reward_amount"`
	ReferredAt           time.Time  `gorm:"type:timestamp;not null" json:"referred_at"`
	CompletedAt          *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	RewardedAt           *time.Time `gorm:"type:timestamp;default:null" json:"rewarded_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
