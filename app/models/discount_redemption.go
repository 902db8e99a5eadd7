package models

import "time"

// DiscountRedemption records one consumed unit of a discount code. The
// per-user usage limit is checked against the number of rows per
// (code, user_id).
type DiscountRedemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);not null;index:ux_discount_redemptions_code_user_payment,unique,priority:1" json:"code"`
	UserID    uint      `gorm:"not null;index:ux_discount_redemptions_code_user_payment,unique,priority:2" json:"user_id"`
	PaymentID uint      `gorm:"not null;index:ux_discount_redemptions_code_user_payment,unique,priority:3" json:"payment_id"`
	AppliedAt time.Time `gorm:"type:timestamp;not null" json:"applied_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
