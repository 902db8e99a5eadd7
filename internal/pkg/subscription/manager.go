package subscription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/entitlements"
	"gorm.io/gorm"
)

var (
	// ErrNoActiveSubscription is returned by Cancel when the user has
	// nothing to cancel.
	ErrNoActiveSubscription = errors.New("no active subscription")
	// ErrReasonRequired is returned by Cancel for an empty reason string.
	ErrReasonRequired = errors.New("cancellation reason is required")
)

// PlanCache mirrors the resolved plan into a fast store for entitlement
// checks elsewhere in the application. Implementations must tolerate being
// nil-safe no-ops in tests.
type PlanCache interface {
	SetPlan(ctx context.Context, userID uint, plan string) error
	InvalidatePlan(ctx context.Context, userID uint) error
}

// Manager owns subscription rows. All writes to Subscription and the
// UserSettings plan mirror go through here.
type Manager struct {
	repo  Repository
	cache PlanCache
	now   func() time.Time
}

// NewManager creates a lifecycle manager from an injected repository.
// cache may be nil.
func NewManager(repo Repository, cache PlanCache) *Manager {
	return &Manager{repo: repo, cache: cache, now: time.Now}
}

// NewManagerFromDB creates a lifecycle manager from a GORM DB handle.
func NewManagerFromDB(db *gorm.DB, cache PlanCache) *Manager {
	return NewManager(NewRepository(db), cache)
}

// Activate records a completed payment as a new subscription period.
// Re-activation after expiry takes the same path: history rows are never
// mutated, a fresh row wins by created_at.
func (m *Manager) Activate(ctx context.Context, userID uint, planID, billingCycle, source string) (*models.Subscription, error) {
	if userID == 0 || strings.TrimSpace(planID) == "" {
		return nil, errors.New("user_id and plan_id are required")
	}
	cycle := normalizeCycle(billingCycle)
	if source == "" {
		source = models.SubscriptionSourceGateway
	}

	now := m.now()
	sub := &models.Subscription{
		UserID:       userID,
		PlanID:       strings.ToLower(strings.TrimSpace(planID)),
		Status:       models.SubscriptionStatusActive,
		BillingCycle: cycle,
		StartDate:    now,
		EndDate:      PeriodEnd(now, cycle),
		Source:       source,
	}
	if err := m.repo.CreateSubscription(sub); err != nil {
		return nil, err
	}

	if _, err := m.ReconcilePlan(ctx, userID); err != nil {
		return sub, err
	}
	return sub, nil
}

// Cancel marks the user's current subscription as cancelled without
// shortening the paid period. Cancelling twice is a no-op that returns the
// already-cancelled row.
func (m *Manager) Cancel(ctx context.Context, userID uint, reason string) (*models.Subscription, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	sub, err := m.repo.FindLatestByUser(userID, models.SubscriptionStatusActive, models.SubscriptionStatusCancelled)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.Status == models.SubscriptionStatusCancelled {
		return sub, nil
	}

	now := m.now()
	sub.Status = models.SubscriptionStatusCancelled
	sub.CancelReason = strings.TrimSpace(reason)
	sub.CancelledAt = &now
	if err := m.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}

	// Access is untouched until EndDate, but the mirror's validity horizon
	// changed; drop it so the next read derives from the cancelled row.
	if m.cache != nil {
		if err := m.cache.InvalidatePlan(ctx, userID); err != nil {
			log.Printf("[subscription] failed to invalidate plan mirror for user %d: %v", userID, err)
		}
	}
	return sub, nil
}

// ResolveEffective returns the subscription view that should drive
// entitlements right now, or nil for free-tier users. A row past its end
// date comes back with the derived expired status; nothing is written.
func (m *Manager) ResolveEffective(ctx context.Context, userID uint) (*models.Subscription, error) {
	_ = ctx
	sub, err := m.repo.FindLatestByUser(userID, models.SubscriptionStatusActive, models.SubscriptionStatusCancelled)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	view := *sub
	view.Status = EffectiveStatus(sub.Status, sub.EndDate, m.now())
	return &view, nil
}

// EffectivePlan resolves the plan the user is entitled to right now.
func (m *Manager) EffectivePlan(ctx context.Context, userID uint) (string, error) {
	sub, err := m.ResolveEffective(ctx, userID)
	if err != nil {
		return "", err
	}
	if sub == nil || !Entitles(sub.Status) {
		return string(entitlements.PlanFree), nil
	}
	return string(entitlements.NormalizePlan(sub.PlanID)), nil
}

// ReconcilePlan recomputes the effective plan and writes it to the
// UserSettings mirror and the plan cache. Safe to call at any time.
func (m *Manager) ReconcilePlan(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return "", errors.New("user_id is required")
	}

	plan, err := m.EffectivePlan(ctx, userID)
	if err != nil {
		return "", err
	}

	us, err := m.repo.GetOrCreateUserSettings(userID)
	if err != nil {
		return "", err
	}
	if us.Plan != plan {
		us.Plan = plan
		if err := m.repo.SaveUserSettings(us); err != nil {
			return "", err
		}
	}

	if m.cache != nil {
		if err := m.cache.SetPlan(ctx, userID, plan); err != nil {
			// The mirror is a fast path; the DB row is authoritative.
			return plan, nil
		}
	}
	return plan, nil
}

// ExtendCurrentPeriod pushes the end date of the user's entitling
// subscription out by the given number of months. Used for free-month
// referral rewards.
func (m *Manager) ExtendCurrentPeriod(ctx context.Context, userID uint, months int) (*models.Subscription, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be positive, got %d", months)
	}
	sub, err := m.repo.FindLatestByUser(userID, models.SubscriptionStatusActive, models.SubscriptionStatusCancelled)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	sub.EndDate = sub.EndDate.AddDate(0, months, 0)
	if err := m.repo.SaveSubscription(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func normalizeCycle(cycle string) string {
	if strings.ToLower(strings.TrimSpace(cycle)) == models.BillingCycleYearly {
		return models.BillingCycleYearly
	}
	return models.BillingCycleMonthly
}
