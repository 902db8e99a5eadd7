package discount

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"gorm.io/gorm"
)

var (
	// ErrCodeNotFound means the code does not exist at all.
	ErrCodeNotFound = errors.New("discount code not found")
	// ErrCodeExhausted means the global usage cap was consumed by a
	// concurrent redemption between validation and commit.
	ErrCodeExhausted = errors.New("discount code no longer available")
	// ErrAlreadyRedeemed means this (code, user, payment) was already
	// committed once.
	ErrAlreadyRedeemed = errors.New("discount code already redeemed for this payment")
)

// Rejection reasons surfaced by ValidateAndPrice, in check order.
const (
	RejectInactive     = "code_inactive"
	RejectNotYetValid  = "code_not_yet_valid"
	RejectExpired      = "code_expired"
	RejectPlanMismatch = "plan_not_applicable"
	RejectBelowMinimum = "amount_below_minimum"
	RejectUsageLimit   = "usage_limit_reached"
	RejectPerUserLimit = "per_user_limit_reached"
)

// PriceQuote is the outcome of validating a code against a checkout.
type PriceQuote struct {
	Valid            bool    `json:"valid"`
	Code             string  `json:"code"`
	DiscountType     string  `json:"discount_type,omitempty"`
	DiscountedAmount float64 `json:"discounted_amount"`
	RejectReason     string  `json:"reject_reason,omitempty"`
}

// Engine validates and redeems promotional codes. Validation is advisory;
// the atomic guard lives in Redeem.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates a discount engine from an injected repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// NewEngineFromDB creates a discount engine from a GORM handle, which may be
// a transaction.
func NewEngineFromDB(db *gorm.DB) *Engine {
	return NewEngine(NewRepository(db))
}

// ValidateAndPrice checks a code against the checkout and computes the
// discounted amount. The first failing check wins and is reported as the
// rejection reason; infrastructure problems come back as errors.
func (e *Engine) ValidateAndPrice(ctx context.Context, code string, userID uint, planID string, amount float64) (PriceQuote, error) {
	_ = ctx
	normalized := strings.ToUpper(strings.TrimSpace(code))
	quote := PriceQuote{Code: normalized, DiscountedAmount: amount}
	if normalized == "" {
		return quote, ErrCodeNotFound
	}

	dc, err := e.repo.FindByCode(normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return quote, ErrCodeNotFound
		}
		return quote, err
	}

	now := e.now()
	switch {
	case !dc.IsActive:
		quote.RejectReason = RejectInactive
	case now.Before(dc.ValidFrom):
		quote.RejectReason = RejectNotYetValid
	case dc.ValidUntil != nil && now.After(*dc.ValidUntil):
		quote.RejectReason = RejectExpired
	case !dc.AppliesToPlan(planID):
		quote.RejectReason = RejectPlanMismatch
	case amount < dc.MinimumAmount:
		quote.RejectReason = RejectBelowMinimum
	case dc.UsageLimit != nil && dc.CurrentUsage >= *dc.UsageLimit:
		quote.RejectReason = RejectUsageLimit
	}
	if quote.RejectReason != "" {
		return quote, nil
	}

	used, err := e.repo.CountRedemptions(normalized, userID)
	if err != nil {
		return quote, err
	}
	if used >= int64(dc.UsageLimitPerUser) {
		quote.RejectReason = RejectPerUserLimit
		return quote, nil
	}

	quote.Valid = true
	quote.DiscountType = dc.DiscountType
	quote.DiscountedAmount = Price(dc, amount)
	return quote, nil
}

// Redeem consumes one unit of the code for a payment. Must run inside the
// same transaction that creates the payment; the global cap is re-checked
// at commit time, not trusted from validation.
func (e *Engine) Redeem(ctx context.Context, code string, userID, paymentID uint) error {
	_ = ctx
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return ErrCodeNotFound
	}
	return e.repo.Redeem(normalized, userID, paymentID, e.now())
}

// Price computes the discounted checkout amount for a code. A percentage
// discount is clamped so the absolute reduction never exceeds
// MaximumDiscount; fixed discounts floor at zero; free trials zero out the
// first billing period.
func Price(dc *models.DiscountCode, amount float64) float64 {
	switch dc.DiscountType {
	case models.DiscountTypePercentage:
		reduction := amount * dc.DiscountValue / 100
		if dc.MaximumDiscount != nil && reduction > *dc.MaximumDiscount {
			reduction = *dc.MaximumDiscount
		}
		return amount - reduction
	case models.DiscountTypeFixedAmount:
		if dc.DiscountValue >= amount {
			return 0
		}
		return amount - dc.DiscountValue
	case models.DiscountTypeFreeTrial:
		return 0
	default:
		return amount
	}
}
