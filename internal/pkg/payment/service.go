package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/discount"
	"github.com/EdukitaHQ/edukita/internal/pkg/referral"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrPaymentNotFound means no payment exists for the tracking id.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrUnknownPlan means the requested plan is not purchasable.
	ErrUnknownPlan = errors.New("unknown or non-purchasable plan")
	// ErrDiscountRejected means the supplied code failed validation; the
	// quote carries the reason.
	ErrDiscountRejected = errors.New("discount code rejected")
)

// CheckoutInput describes a checkout request for a plan.
type CheckoutInput struct {
	UserID       uint   `json:"user_id" validate:"required"`
	PlanID       string `json:"plan_id" validate:"required"`
	BillingCycle string `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
	DiscountCode string `json:"discount_code"`
	FinishURL    string `json:"finish_url" validate:"omitempty,url"`
}

// CheckoutResult is the pending payment plus the gateway session handle.
type CheckoutResult struct {
	Payment     *models.Payment      `json:"payment"`
	Quote       *discount.PriceQuote `json:"quote,omitempty"`
	Token       string               `json:"token"`
	RedirectURL string               `json:"redirect_url"`
}

// ReconcileResult reports what one reconcile call observed and did.
type ReconcileResult struct {
	Payment *models.Payment        `json:"payment"`
	Applied bool                   `json:"applied"`
	Reward  *referral.RewardResult `json:"reward,omitempty"`
}

// Service drives checkout and gateway reconciliation. Reconcile is safe to
// call any number of times per payment: the terminal write and every side
// effect behind it happen exactly once.
type Service struct {
	repo      Repository
	gateway   Gateway
	discounts *discount.Engine
	now       func() time.Time
}

// NewService creates a payment service from injected collaborators.
func NewService(repo Repository, gateway Gateway, discounts *discount.Engine) *Service {
	return &Service{repo: repo, gateway: gateway, discounts: discounts, now: time.Now}
}

// NewServiceFromDB wires a payment service over a GORM handle.
func NewServiceFromDB(db *gorm.DB, gateway Gateway, cache subscription.PlanCache) *Service {
	return NewService(NewRepository(db, cache), gateway, discount.NewEngineFromDB(db))
}

// Checkout creates a pending payment and a gateway checkout session. When a
// discount code is supplied it is priced first and redeemed in the same
// transaction that inserts the payment row.
func (s *Service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.UserID == 0 {
		return nil, errors.New("user_id is required")
	}
	price, ok := PlanPrice(input.PlanID, input.BillingCycle)
	if !ok {
		return nil, ErrUnknownPlan
	}

	amount := price
	var quote *discount.PriceQuote
	code := strings.ToUpper(strings.TrimSpace(input.DiscountCode))
	if code != "" {
		q, err := s.discounts.ValidateAndPrice(ctx, code, input.UserID, input.PlanID, price)
		if err != nil {
			return nil, err
		}
		if !q.Valid {
			return &CheckoutResult{Quote: &q}, fmt.Errorf("%w: %s", ErrDiscountRejected, q.RejectReason)
		}
		quote = &q
		amount = q.DiscountedAmount
	}

	p := &models.Payment{
		UserID:            input.UserID,
		PlanID:            strings.ToLower(strings.TrimSpace(input.PlanID)),
		BillingCycle:      input.BillingCycle,
		Amount:            amount,
		Currency:          "IDR",
		Status:            models.PaymentStatusPending,
		GatewayTrackingID: "EDK-" + uuid.NewString(),
		DiscountCode:      code,
	}

	var redeem func(eng *discount.Engine) error
	if code != "" {
		redeem = func(eng *discount.Engine) error {
			return eng.Redeem(ctx, code, input.UserID, p.ID)
		}
	}
	if err := s.repo.CreateWithRedemption(p, redeem); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, p.GatewayTrackingID, p.Amount, input.FinishURL)
	if err != nil {
		// The pending row stays; the client can retry checkout and
		// reconciliation will never complete an unpaid session.
		return nil, err
	}
	p.PaymentToken = session.Token
	p.RedirectURL = session.RedirectURL
	if err := s.repo.SavePayment(p); err != nil {
		log.Printf("[payment] failed to store session handle for %s: %v", p.GatewayTrackingID, err)
	}

	return &CheckoutResult{
		Payment:     p,
		Quote:       quote,
		Token:       session.Token,
		RedirectURL: session.RedirectURL,
	}, nil
}

// Reconcile re-verifies a payment against the gateway and applies its
// terminal status. Callback payloads are never trusted: only the gateway's
// own answer decides. A payment that is already terminal returns the stored
// outcome without touching the gateway.
func (s *Service) Reconcile(ctx context.Context, trackingID string) (*ReconcileResult, error) {
	trackingID = strings.TrimSpace(trackingID)
	if trackingID == "" {
		return nil, ErrPaymentNotFound
	}

	p, err := s.repo.FindByTrackingID(trackingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if p.IsTerminal() {
		return &ReconcileResult{Payment: p}, nil
	}

	status, err := s.gateway.QueryStatus(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if status.Status == models.PaymentStatusPending {
		return &ReconcileResult{Payment: p}, nil
	}

	var reward *referral.RewardResult
	update := TerminalUpdate{
		Status:            status.Status,
		GatewayStatusCode: status.StatusCode,
		ConfirmationCode:  status.ConfirmationCode,
		At:                s.now(),
	}
	applied, err := s.repo.ApplyTerminal(p, update, func(fx CompletionEffects) error {
		if _, err := fx.Subscriptions.Activate(ctx, p.UserID, p.PlanID, p.BillingCycle, models.SubscriptionSourceGateway); err != nil {
			return err
		}
		// Every completed payment is offered to the referral engine; its
		// status gate makes replays and post-reward payments no-ops, and a
		// below-minimum first payment leaves the referral open for a later
		// qualifying one.
		r, err := fx.Referrals.HandleQualifyingPayment(ctx, p.UserID, p.Amount)
		if err != nil {
			return err
		}
		reward = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent reconcile won the pending gate; report its outcome.
		stored, err := s.repo.FindByTrackingID(trackingID)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Payment: stored}, nil
	}

	p.Status = update.Status
	p.GatewayStatusCode = update.GatewayStatusCode
	p.ConfirmationCode = update.ConfirmationCode
	if update.Status == models.PaymentStatusCompleted {
		at := update.At
		p.CompletedAt = &at
	}
	return &ReconcileResult{Payment: p, Applied: true, Reward: reward}, nil
}
