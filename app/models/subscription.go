package models

import "time"

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
)

const (
	SubscriptionSourceGateway       = "gateway"
	SubscriptionSourceLegacyProfile = "legacy_profile"
)

// Subscription is one paid access period for a user. Activation always
// inserts a new row; older rows are kept as history and the effective
// subscription is resolved at read time.
type Subscription struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index:idx_subscriptions_user_status,priority:1" json:"user_id"`
	PlanID       string     `gorm:"type:varchar(50);not null" json:"plan_id"`
	Status       string     `gorm:"type:varchar(20);not null;default:'active';index:idx_subscriptions_user_status,priority:2" json:"status"`
	BillingCycle string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	StartDate    time.Time  `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate      time.Time  `gorm:"type:timestamp;not null;index" json:"end_date"`
	Source       string     `gorm:"type:varchar(20);not null;default:'gateway'" json:"source"`
	CancelReason string     `gorm:"type:varchar(255);default:''" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
