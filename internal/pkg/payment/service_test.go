package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/discount"
	"github.com/EdukitaHQ/edukita/internal/pkg/referral"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeStore backs every repository interface the service touches, so a
// reconcile exercises the same wiring as the real transaction: payment
// terminal write plus subscription and referral effects.
type fakeStore struct {
	mu             sync.Mutex
	payments       map[string]*models.Payment
	subs           []*models.Subscription
	settings       map[uint]*models.UserSettings
	referrals      map[uint]*models.Referral
	programs       map[uint]*models.ReferralProgram
	codes          map[string]*models.DiscountCode
	redemptions    []models.DiscountRedemption
	nextID         uint
	terminalWrites int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		payments:  make(map[string]*models.Payment),
		settings:  make(map[uint]*models.UserSettings),
		referrals: make(map[uint]*models.Referral),
		programs:  make(map[uint]*models.ReferralProgram),
		codes:     make(map[string]*models.DiscountCode),
	}
}

func (f *fakeStore) id() uint {
	f.nextID++
	return f.nextID
}

// payment.Repository

func (f *fakeStore) FindByTrackingID(trackingID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[trackingID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateWithRedemption(p *models.Payment, redeem func(eng *discount.Engine) error) error {
	f.mu.Lock()
	p.ID = f.id()
	cp := *p
	f.payments[p.GatewayTrackingID] = &cp
	f.mu.Unlock()
	if redeem != nil {
		return redeem(discount.NewEngine(f))
	}
	return nil
}

func (f *fakeStore) SavePayment(p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.payments[p.GatewayTrackingID] = &cp
	return nil
}

func (f *fakeStore) ApplyTerminal(p *models.Payment, update TerminalUpdate, onCompleted func(fx CompletionEffects) error) (bool, error) {
	f.mu.Lock()
	stored, ok := f.payments[p.GatewayTrackingID]
	if !ok || stored.Status != models.PaymentStatusPending {
		f.mu.Unlock()
		return false, nil
	}
	stored.Status = update.Status
	stored.GatewayStatusCode = update.GatewayStatusCode
	stored.ConfirmationCode = update.ConfirmationCode
	if update.Status == models.PaymentStatusCompleted {
		at := update.At
		stored.CompletedAt = &at
	}
	f.terminalWrites++
	f.mu.Unlock()

	if update.Status == models.PaymentStatusCompleted && onCompleted != nil {
		manager := subscription.NewManager(f, nil)
		return true, onCompleted(CompletionEffects{
			Subscriptions: manager,
			Referrals:     referral.NewEngine(f, manager),
		})
	}
	return true, nil
}

// subscription.Repository

func (f *fakeStore) CreateSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub.ID = f.id()
	sub.CreatedAt = time.Now()
	cp := *sub
	f.subs = append(f.subs, &cp)
	return nil
}

func (f *fakeStore) SaveSubscription(sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.ID == sub.ID {
			cp := *sub
			f.subs[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeStore) FindLatestByUser(userID uint, statuses ...string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Subscription
	for _, s := range f.subs {
		if s.UserID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, st := range statuses {
				if s.Status == st {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if latest == nil || s.ID > latest.ID {
			latest = s
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) GetOrCreateUserSettings(userID uint) (*models.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if us, ok := f.settings[userID]; ok {
		cp := *us
		return &cp, nil
	}
	us := &models.UserSettings{UserID: userID, Plan: "free"}
	f.settings[userID] = us
	cp := *us
	return &cp, nil
}

func (f *fakeStore) SaveUserSettings(us *models.UserSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *us
	f.settings[us.UserID] = &cp
	return nil
}

// referral.Repository

func (f *fakeStore) FindActiveProgram(at time.Time) (*models.ReferralProgram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.programs {
		if p.IsOpenAt(at) {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) FindProgram(id uint) (*models.ReferralProgram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeStore) FindUserByReferralCode(code string) (*models.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) CreateReferral(ref *models.Referral) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref.ID = f.id()
	cp := *ref
	f.referrals[ref.ID] = &cp
	return nil
}

func (f *fakeStore) FindByReferee(refereeID uint) (*models.Referral, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ref := range f.referrals {
		if ref.RefereeID == refereeID {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeStore) MarkCompleted(referralID uint, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.referrals[referralID]
	if !ok || ref.Status != models.ReferralStatusPending {
		return false, nil
	}
	ref.Status = models.ReferralStatusCompleted
	ref.CompletedAt = &at
	return true, nil
}

func (f *fakeStore) CommitReward(referralID uint, referrerAmount, refereeAmount float64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.referrals[referralID]
	if !ok || ref.Status != models.ReferralStatusCompleted {
		return false, nil
	}
	ref.Status = models.ReferralStatusRewarded
	ref.ReferrerRewardAmount = referrerAmount
	ref.RefereeRewardAmount = refereeAmount
	ref.RewardedAt = &at
	return true, nil
}

func (f *fakeStore) CreditPoints(userID uint, points int64, reason string, sourceID uint) error {
	return nil
}

// discount.Repository

func (f *fakeStore) FindByCode(code string) (*models.DiscountCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dc, ok := f.codes[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *dc
	return &cp, nil
}

func (f *fakeStore) CountRedemptions(code string, userID uint) (int64, error) {
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

func (f *fakeStore) Redeem(code string, userID, paymentID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	dc, ok := f.codes[code]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if !dc.IsActive || (dc.UsageLimit != nil && dc.CurrentUsage >= *dc.UsageLimit) {
		return discount.ErrCodeExhausted
	}
	dc.CurrentUsage++
	f.redemptions = append(f.redemptions, models.DiscountRedemption{Code: code, UserID: userID, PaymentID: paymentID, AppliedAt: at})
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	status      string
	fraud       string
	fail        bool
	statusCalls int
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, trackingID string, amount float64, finishURL string) (*CheckoutSession, error) {
	if g.fail {
		return nil, ErrGatewayUnavailable
	}
	return &CheckoutSession{Token: "snap-" + trackingID, RedirectURL: "https://pay.example/" + trackingID}, nil
}

func (g *fakeGateway) QueryStatus(ctx context.Context, trackingID string) (*GatewayStatus, error) {
	g.mu.Lock()
	g.statusCalls++
	g.mu.Unlock()
	if g.fail {
		return nil, ErrGatewayUnavailable
	}
	return &GatewayStatus{
		TrackingID:       trackingID,
		Status:           MapGatewayTransactionStatus(g.status, g.fraud),
		StatusCode:       "200",
		ConfirmationCode: "APPROVE-1",
	}, nil
}

func newTestService(store *fakeStore, gw Gateway) *Service {
	return NewService(store, gw, discount.NewEngine(store))
}

func seedPendingPayment(store *fakeStore, userID uint, amount float64) *models.Payment {
	p := &models.Payment{
		UserID:            userID,
		PlanID:            "premium",
		BillingCycle:      models.BillingCycleMonthly,
		Amount:            amount,
		Currency:          "IDR",
		Status:            models.PaymentStatusPending,
		GatewayTrackingID: "EDK-test-1",
	}
	if err := store.CreateWithRedemption(p, nil); err != nil {
		panic(err)
	}
	return p
}

func seedReferral(store *fakeStore, referrerID, refereeID uint, minimum float64) {
	program := &models.ReferralProgram{
		Name:                  "launch",
		ReferrerRewardType:    models.RewardTypePercentage,
		ReferrerRewardValue:   20,
		RefereeRewardType:     models.RewardTypeFixedAmount,
		RefereeRewardValue:    5000,
		MinimumRefereePayment: minimum,
		ValidFrom:             time.Now().AddDate(0, -1, 0),
		IsActive:              true,
	}
	program.ID = store.id()
	store.programs[program.ID] = program
	_ = store.CreateReferral(&models.Referral{
		ReferrerID: referrerID,
		RefereeID:  refereeID,
		ProgramID:  program.ID,
		Status:     models.ReferralStatusPending,
		ReferredAt: time.Now(),
	})
}

func TestReconcileCompletedActivatesSubscription(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{status: "settlement"}
	svc := newTestService(store, gw)
	p := seedPendingPayment(store, 7, 49000)

	res, err := svc.Reconcile(context.Background(), p.GatewayTrackingID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PaymentStatusCompleted, res.Payment.Status)
	require.NotNil(t, res.Payment.CompletedAt)

	require.Len(t, store.subs, 1)
	assert.Equal(t, models.SubscriptionStatusActive, store.subs[0].Status)
	assert.Equal(t, "premium", store.subs[0].PlanID)
	assert.Equal(t, "premium", store.settings[7].Plan)
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{status: "settlement"}
	svc := newTestService(store, gw)
	p := seedPendingPayment(store, 7, 100000)
	seedReferral(store, 3, 7, 50000)
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, p.GatewayTrackingID)
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.NotNil(t, first.Reward)
	assert.True(t, first.Reward.Rewarded)
	assert.Equal(t, 20000.0, first.Reward.ReferrerAmount)

	// The replay returns the stored outcome without a second gateway call,
	// terminal write, subscription row, or reward.
	second, err := svc.Reconcile(ctx, p.GatewayTrackingID)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.Nil(t, second.Reward)
	assert.Equal(t, models.PaymentStatusCompleted, second.Payment.Status)

	assert.Equal(t, 1, gw.statusCalls)
	assert.Equal(t, 1, store.terminalWrites)
	assert.Len(t, store.subs, 1)

	ref, err := store.FindByReferee(7)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusRewarded, ref.Status)
	assert.Equal(t, 20000.0, ref.ReferrerRewardAmount)
}

func TestReconcilePendingLeavesPaymentUntouched(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGateway{status: "pending"})
	p := seedPendingPayment(store, 7, 49000)

	res, err := svc.Reconcile(context.Background(), p.GatewayTrackingID)
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
	assert.Equal(t, 0, store.terminalWrites)
	assert.Empty(t, store.subs)
}

func TestReconcileFailedDoesNotActivate(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGateway{status: "deny"})
	p := seedPendingPayment(store, 7, 49000)

	res, err := svc.Reconcile(context.Background(), p.GatewayTrackingID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, models.PaymentStatusFailed, res.Payment.Status)
	assert.Empty(t, store.subs)
}

func TestReconcileFraudChallengeStaysPending(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGateway{status: "capture", fraud: "challenge"})
	p := seedPendingPayment(store, 7, 49000)

	res, err := svc.Reconcile(context.Background(), p.GatewayTrackingID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
}

func TestReconcileUnknownTrackingID(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGateway{status: "settlement"})
	_, err := svc.Reconcile(context.Background(), "EDK-nope")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestReconcileGatewayUnavailableIsRetryable(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGateway{fail: true})
	p := seedPendingPayment(store, 7, 49000)

	_, err := svc.Reconcile(context.Background(), p.GatewayTrackingID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	stored, err := store.FindByTrackingID(p.GatewayTrackingID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status, "a gateway outage must not move the payment")
}

func TestLaterQualifyingPaymentCompletesReferral(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{status: "settlement"}
	svc := newTestService(store, gw)
	seedReferral(store, 3, 7, 50000)
	ctx := context.Background()

	// A first payment below the program minimum leaves the referral open.
	small := seedPendingPayment(store, 7, 10000)
	res, err := svc.Reconcile(ctx, small.GatewayTrackingID)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.NotNil(t, res.Reward)
	assert.False(t, res.Reward.Rewarded)

	ref, err := store.FindByReferee(7)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, ref.Status)

	// The next payment meeting the minimum completes and rewards it.
	big := &models.Payment{
		UserID:            7,
		PlanID:            "premium",
		BillingCycle:      models.BillingCycleMonthly,
		Amount:            100000,
		Currency:          "IDR",
		Status:            models.PaymentStatusPending,
		GatewayTrackingID: "EDK-test-2",
	}
	require.NoError(t, store.CreateWithRedemption(big, nil))

	res, err = svc.Reconcile(ctx, big.GatewayTrackingID)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.NotNil(t, res.Reward)
	assert.True(t, res.Reward.Rewarded)
	assert.Equal(t, 20000.0, res.Reward.ReferrerAmount)
	assert.Equal(t, 5000.0, res.Reward.RefereeAmount)

	ref, err = store.FindByReferee(7)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusRewarded, ref.Status)
}

func TestPaymentAfterRewardDoesNotRewardAgain(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{status: "settlement"}
	svc := newTestService(store, gw)
	seedReferral(store, 3, 7, 50000)
	ctx := context.Background()

	first := seedPendingPayment(store, 7, 100000)
	res, err := svc.Reconcile(ctx, first.GatewayTrackingID)
	require.NoError(t, err)
	require.NotNil(t, res.Reward)
	require.True(t, res.Reward.Rewarded)

	// A renewal payment reaches the referral engine but its status gate
	// keeps the already-rewarded referral untouched.
	renewal := &models.Payment{
		UserID:            7,
		PlanID:            "premium",
		BillingCycle:      models.BillingCycleMonthly,
		Amount:            100000,
		Currency:          "IDR",
		Status:            models.PaymentStatusPending,
		GatewayTrackingID: "EDK-test-2",
	}
	require.NoError(t, store.CreateWithRedemption(renewal, nil))

	res, err = svc.Reconcile(ctx, renewal.GatewayTrackingID)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.NotNil(t, res.Reward)
	assert.False(t, res.Reward.Rewarded)

	ref, err := store.FindByReferee(7)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusRewarded, ref.Status)
	assert.Equal(t, 20000.0, ref.ReferrerRewardAmount)
}

func TestCheckoutWithDiscount(t *testing.T) {
	store := newFakeStore()
	store.codes["SAVE20"] = &models.DiscountCode{
		Code:              "SAVE20",
		DiscountType:      models.DiscountTypePercentage,
		DiscountValue:     20,
		UsageLimitPerUser: 1,
		ValidFrom:         time.Now().AddDate(0, -1, 0),
		IsActive:          true,
	}
	svc := newTestService(store, &fakeGateway{})

	res, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID:       7,
		PlanID:       "premium",
		BillingCycle: models.BillingCycleMonthly,
		DiscountCode: "save20",
	})
	require.NoError(t, err)
	assert.Equal(t, 39200.0, res.Payment.Amount)
	assert.Equal(t, models.PaymentStatusPending, res.Payment.Status)
	assert.NotEmpty(t, res.Token)
	require.Len(t, store.redemptions, 1)
	assert.Equal(t, res.Payment.ID, store.redemptions[0].PaymentID)

	stored, err := store.FindByTrackingID(res.Payment.GatewayTrackingID)
	require.NoError(t, err)
	assert.Equal(t, res.Token, stored.PaymentToken)
}

func TestCheckoutRejectedDiscount(t *testing.T) {
	store := newFakeStore()
	store.codes["OLD10"] = &models.DiscountCode{
		Code:          "OLD10",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 10,
		ValidFrom:     time.Now().AddDate(0, -2, 0),
		ValidUntil:    timePtr(time.Now().AddDate(0, -1, 0)),
		IsActive:      true,
	}
	svc := newTestService(store, &fakeGateway{})

	res, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID:       7,
		PlanID:       "premium",
		DiscountCode: "OLD10",
	})
	require.ErrorIs(t, err, ErrDiscountRejected)
	require.NotNil(t, res)
	require.NotNil(t, res.Quote)
	assert.Equal(t, discount.RejectExpired, res.Quote.RejectReason)
	assert.Empty(t, store.payments, "no payment row for a rejected code")
}

func TestCheckoutUnknownPlan(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGateway{})
	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: 7, PlanID: "platinum"})
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCheckoutGatewayFailureKeepsPendingRow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeGateway{fail: true})

	_, err := svc.Checkout(context.Background(), CheckoutInput{UserID: 7, PlanID: "premium"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayUnavailable))
	assert.Len(t, store.payments, 1, "the pending row survives for a retry")
}

func timePtr(t time.Time) *time.Time { return &t }
