package discount

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeDiscountRepo struct {
	mu          sync.Mutex
	codes       map[string]*models.DiscountCode
	redemptions []models.DiscountRedemption
}

func newFakeDiscountRepo(codes ...*models.DiscountCode) *fakeDiscountRepo {
	f := &fakeDiscountRepo{codes: make(map[string]*models.DiscountCode)}
	for _, c := range codes {
		f.codes[c.Code] = c
	}
	return f
}

func (f *fakeDiscountRepo) FindByCode(code string) (*models.DiscountCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dc, ok := f.codes[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *dc
	return &cp, nil
}

func (f *fakeDiscountRepo) CountRedemptions(code string, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.redemptions {
		if r.Code == code && r.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeDiscountRepo) Redeem(code string, userID, paymentID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dc, ok := f.codes[code]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if !dc.IsActive || (dc.UsageLimit != nil && dc.CurrentUsage >= *dc.UsageLimit) {
		return ErrCodeExhausted
	}
	for _, r := range f.redemptions {
		if r.Code == code && r.UserID == userID && r.PaymentID == paymentID {
			return ErrAlreadyRedeemed
		}
	}
	dc.CurrentUsage++
	f.redemptions = append(f.redemptions, models.DiscountRedemption{Code: code, UserID: userID, PaymentID: paymentID, AppliedAt: at})
	return nil
}

func intPtr(v int) *int              { return &v }
func floatPtr(v float64) *float64    { return &v }
func timePtr(t time.Time) *time.Time { return &t }

func save20(now time.Time) *models.DiscountCode {
	return &models.DiscountCode{
		Code:              "SAVE20",
		DiscountType:      models.DiscountTypePercentage,
		DiscountValue:     20,
		ApplicablePlans:   "premium",
		MinimumAmount:     20,
		MaximumDiscount:   floatPtr(10),
		UsageLimitPerUser: 1,
		ValidFrom:         now.AddDate(0, -1, 0),
		IsActive:          true,
	}
}

func newTestEngine(repo Repository, now time.Time) *Engine {
	e := NewEngine(repo)
	e.now = func() time.Time { return now }
	return e
}

func TestValidateAndPriceCapsPercentageDiscount(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(newFakeDiscountRepo(save20(now)), now)

	quote, err := e.ValidateAndPrice(context.Background(), "SAVE20", 7, "premium", 100)
	require.NoError(t, err)
	assert.True(t, quote.Valid)
	// 20% of 100 is 20, but the absolute discount is capped at 10.
	assert.Equal(t, 90.0, quote.DiscountedAmount)
}

func TestValidateAndPriceRejectionOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	inactive := save20(now)
	inactive.IsActive = false

	expired := save20(now)
	expired.ValidUntil = timePtr(now.AddDate(0, 0, -1))

	capped := save20(now)
	capped.UsageLimit = intPtr(5)
	capped.CurrentUsage = 5

	tests := []struct {
		name   string
		code   *models.DiscountCode
		planID string
		amount float64
		want   string
	}{
		{name: "inactive", code: inactive, planID: "premium", amount: 100, want: RejectInactive},
		{name: "expired", code: expired, planID: "premium", amount: 100, want: RejectExpired},
		{name: "wrong plan", code: save20(now), planID: "premium_plus", amount: 100, want: RejectPlanMismatch},
		{name: "below minimum", code: save20(now), planID: "premium", amount: 19.99, want: RejectBelowMinimum},
		{name: "global cap reached", code: capped, planID: "premium", amount: 100, want: RejectUsageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(newFakeDiscountRepo(tt.code), now)
			quote, err := e.ValidateAndPrice(context.Background(), tt.code.Code, 7, tt.planID, tt.amount)
			require.NoError(t, err)
			assert.False(t, quote.Valid)
			assert.Equal(t, tt.want, quote.RejectReason)
		})
	}
}

func TestValidateAndPriceUnknownCode(t *testing.T) {
	now := time.Now()
	e := newTestEngine(newFakeDiscountRepo(), now)
	_, err := e.ValidateAndPrice(context.Background(), "NOPE", 7, "premium", 100)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

func TestValidateAndPricePerUserLimit(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	repo := newFakeDiscountRepo(save20(now))
	e := newTestEngine(repo, now)

	require.NoError(t, e.Redeem(context.Background(), "SAVE20", 7, 1))

	quote, err := e.ValidateAndPrice(context.Background(), "SAVE20", 7, "premium", 100)
	require.NoError(t, err)
	assert.False(t, quote.Valid)
	assert.Equal(t, RejectPerUserLimit, quote.RejectReason)

	// A different user is unaffected by someone else's redemption.
	quote, err = e.ValidateAndPrice(context.Background(), "SAVE20", 8, "premium", 100)
	require.NoError(t, err)
	assert.True(t, quote.Valid)
}

func TestRedeemLastUnitRace(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	code := save20(now)
	code.UsageLimit = intPtr(1)
	repo := newFakeDiscountRepo(code)
	e := newTestEngine(repo, now)
	ctx := context.Background()

	// Both users validate against the last remaining slot.
	for _, userID := range []uint{7, 8} {
		quote, err := e.ValidateAndPrice(ctx, "SAVE20", userID, "premium", 100)
		require.NoError(t, err)
		require.True(t, quote.Valid)
	}

	// Only one commit may win; the other hits the commit-time re-check.
	require.NoError(t, e.Redeem(ctx, "SAVE20", 7, 1))
	err := e.Redeem(ctx, "SAVE20", 8, 2)
	assert.ErrorIs(t, err, ErrCodeExhausted)
}

func TestPriceFixedAmountAndFreeTrial(t *testing.T) {
	fixed := &models.DiscountCode{DiscountType: models.DiscountTypeFixedAmount, DiscountValue: 30}
	assert.Equal(t, 70.0, Price(fixed, 100))
	assert.Equal(t, 0.0, Price(fixed, 25), "fixed discount floors at zero")

	trial := &models.DiscountCode{DiscountType: models.DiscountTypeFreeTrial, DiscountValue: 1}
	assert.Equal(t, 0.0, Price(trial, 100))
}
