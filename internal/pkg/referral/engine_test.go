package referral

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

type fakeReferralRepo struct {
	mu        sync.Mutex
	programs  map[uint]*models.ReferralProgram
	users     map[string]*models.User
	referrals map[uint]*models.Referral
	points    map[uint]int64
	nextID    uint
}

func newFakeReferralRepo() *fakeReferralRepo {
	return &fakeReferralRepo{
		programs:  make(map[uint]*models.ReferralProgram),
		users:     make(map[string]*models.User),
		referrals: make(map[uint]*models.Referral),
		points:    make(map[uint]int64),
	}
}

func (f *fakeReferralRepo) addProgram(p *models.ReferralProgram) *models.ReferralProgram {
	f.nextID++
	p.ID = f.nextID
	f.programs[p.ID] = p
	return p
}

func (f *fakeReferralRepo) addUser(id uint, code string) {
	f.users[code] = &models.User{ID: id, ReferralCode: code}
}

func (f *fakeReferralRepo) FindActiveProgram(at time.Time) (*models.ReferralProgram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.programs {
		if p.IsOpenAt(at) {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeReferralRepo) FindProgram(id uint) (*models.ReferralProgram, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeReferralRepo) FindUserByReferralCode(code string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeReferralRepo) CreateReferral(ref *models.Referral) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.referrals {
		if existing.RefereeID == ref.RefereeID {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	ref.ID = f.nextID
	cp := *ref
	f.referrals[ref.ID] = &cp
	return nil
}

func (f *fakeReferralRepo) FindByReferee(refereeID uint) (*models.Referral, error) {
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

func (f *fakeReferralRepo) MarkCompleted(referralID uint, at time.Time) (bool, error) {
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

func (f *fakeReferralRepo) CommitReward(referralID uint, referrerAmount, refereeAmount float64, at time.Time) (bool, error) {
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

func (f *fakeReferralRepo) CreditPoints(userID uint, points int64, reason string, sourceID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[userID] += points
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func percentProgram(repo *fakeReferralRepo) *models.ReferralProgram {
	return repo.addProgram(&models.ReferralProgram{
		Name:                  "launch",
		ReferrerRewardType:    models.RewardTypePercentage,
		ReferrerRewardValue:   20,
		RefereeRewardType:     models.RewardTypeFixedAmount,
		RefereeRewardValue:    5,
		MinimumRefereePayment: 50,
		RewardCap:             floatPtr(15),
		ValidFrom:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:              true,
	})
}

func newTestEngine(repo Repository) *Engine {
	e := NewEngine(repo, nil)
	e.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestEnroll(t *testing.T) {
	repo := newFakeReferralRepo()
	percentProgram(repo)
	repo.addUser(1, "ABC123")
	e := newTestEngine(repo)
	ctx := context.Background()

	ref, err := e.Enroll(ctx, "abc123", 2)
	require.NoError(t, err)
	assert.Equal(t, uint(1), ref.ReferrerID)
	assert.Equal(t, models.ReferralStatusPending, ref.Status)

	// A referee can only ever be referred once.
	_, err = e.Enroll(ctx, "ABC123", 2)
	assert.ErrorIs(t, err, ErrAlreadyReferred)

	_, err = e.Enroll(ctx, "ABC123", 1)
	assert.ErrorIs(t, err, ErrSelfReferral)

	_, err = e.Enroll(ctx, "NOSUCH", 3)
	assert.ErrorIs(t, err, ErrInvalidReferralCode)
}

func TestQualifyingPaymentRewardsWithCap(t *testing.T) {
	repo := newFakeReferralRepo()
	percentProgram(repo)
	repo.addUser(1, "ABC123")
	e := newTestEngine(repo)
	ctx := context.Background()

	_, err := e.Enroll(ctx, "ABC123", 2)
	require.NoError(t, err)

	res, err := e.HandleQualifyingPayment(ctx, 2, 100)
	require.NoError(t, err)
	require.True(t, res.Rewarded)
	// 20% of 100 is 20, clamped to the 15 reward cap.
	assert.Equal(t, 15.0, res.ReferrerAmount)
	assert.Equal(t, 5.0, res.RefereeAmount)

	ref, err := repo.FindByReferee(2)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusRewarded, ref.Status)
	assert.Equal(t, 15.0, ref.ReferrerRewardAmount)
}

func TestSecondReconcileDoesNotRepay(t *testing.T) {
	repo := newFakeReferralRepo()
	percentProgram(repo)
	repo.addUser(1, "ABC123")
	e := newTestEngine(repo)
	ctx := context.Background()

	_, err := e.Enroll(ctx, "ABC123", 2)
	require.NoError(t, err)

	res, err := e.HandleQualifyingPayment(ctx, 2, 100)
	require.NoError(t, err)
	require.True(t, res.Rewarded)

	// A replayed callback or a second payment must not change anything.
	res, err = e.HandleQualifyingPayment(ctx, 2, 200)
	require.NoError(t, err)
	assert.False(t, res.Rewarded)

	ref, err := repo.FindByReferee(2)
	require.NoError(t, err)
	assert.Equal(t, 15.0, ref.ReferrerRewardAmount, "amount must be untouched by the replay")
}

func TestPaymentBelowMinimumKeepsReferralPending(t *testing.T) {
	repo := newFakeReferralRepo()
	percentProgram(repo)
	repo.addUser(1, "ABC123")
	e := newTestEngine(repo)
	ctx := context.Background()

	_, err := e.Enroll(ctx, "ABC123", 2)
	require.NoError(t, err)

	res, err := e.HandleQualifyingPayment(ctx, 2, 25)
	require.NoError(t, err)
	assert.False(t, res.Rewarded)

	ref, err := repo.FindByReferee(2)
	require.NoError(t, err)
	assert.Equal(t, models.ReferralStatusPending, ref.Status)

	// A later payment over the minimum completes and rewards in one go.
	res, err = e.HandleQualifyingPayment(ctx, 2, 60)
	require.NoError(t, err)
	assert.True(t, res.Rewarded)
	assert.Equal(t, 12.0, res.ReferrerAmount)
}

func TestPaymentFromUnreferredUserIsNoop(t *testing.T) {
	repo := newFakeReferralRepo()
	percentProgram(repo)
	e := newTestEngine(repo)

	res, err := e.HandleQualifyingPayment(context.Background(), 42, 100)
	require.NoError(t, err)
	assert.False(t, res.Rewarded)
}

func TestTryRewardRefusesRewardedRow(t *testing.T) {
	repo := newFakeReferralRepo()
	program := percentProgram(repo)
	e := newTestEngine(repo)

	ref := &models.Referral{ID: 99, ReferrerID: 1, RefereeID: 2, ProgramID: program.ID, Status: models.ReferralStatusRewarded}
	_, err := e.TryReward(context.Background(), ref, program, 100)
	assert.ErrorIs(t, err, ErrRewardConflict)
}

func TestPointsRewardCreditsLedger(t *testing.T) {
	repo := newFakeReferralRepo()
	repo.addProgram(&models.ReferralProgram{
		Name:                "points",
		ReferrerRewardType:  models.RewardTypePoints,
		ReferrerRewardValue: 500,
		RefereeRewardType:   models.RewardTypePoints,
		RefereeRewardValue:  100,
		ValidFrom:           time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:            true,
	})
	repo.addUser(1, "ABC123")
	e := newTestEngine(repo)
	ctx := context.Background()

	_, err := e.Enroll(ctx, "ABC123", 2)
	require.NoError(t, err)

	res, err := e.HandleQualifyingPayment(ctx, 2, 80)
	require.NoError(t, err)
	require.True(t, res.Rewarded)
	assert.Equal(t, int64(500), repo.points[1])
	assert.Equal(t, int64(100), repo.points[2])
}
