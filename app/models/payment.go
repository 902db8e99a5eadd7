package models

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// Payment is created in pending state at checkout initiation and moved to a
// terminal status exactly once by reconciliation. GatewayTrackingID is the
// idempotency key for gateway callbacks.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	PlanID            string     `gorm:"type:varchar(50);not null" json:"plan_id"`
	BillingCycle      string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Amount            float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string     `gorm:"type:varchar(8);not null;default:'IDR'" json:"currency"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	GatewayTrackingID string     `gorm:"type:varchar(100);not null;uniqueIndex:ux_payments_gateway_tracking_id" json:"gateway_tracking_id"`
	GatewayStatusCode string     `gorm:"type:varchar(20);default:''" json:"gateway_status_code"`
	ConfirmationCode  string     `gorm:"type:varchar(100);default:''" json:"confirmation_code"`
	DiscountCode      string     `gorm:"type:varchar(50);default:''" json:"discount_code,omitempty"`
	PaymentToken      string     `gorm:"type:varchar(191);default:''" json:"-"`
	RedirectURL       string     `gorm:"type:varchar(255);default:''" json:"-"`
	CompletedAt       *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the payment already reached a final status.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}
