package referral

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidReferralCode means the code does not belong to any user.
	ErrInvalidReferralCode = errors.New("invalid referral code")
	// ErrSelfReferral means a user tried to refer themselves.
	ErrSelfReferral = errors.New("users cannot refer themselves")
	// ErrAlreadyReferred means the referee already has a referral row.
	ErrAlreadyReferred = errors.New("user was already referred")
	// ErrNoActiveProgram means no referral program is currently open.
	ErrNoActiveProgram = errors.New("no active referral program")
	// ErrRewardConflict means the reward commit lost against a concurrent
	// writer; the referral was already paid.
	ErrRewardConflict = errors.New("referral reward already committed")
)

// RewardResult reports what a qualifying payment earned both sides.
type RewardResult struct {
	Rewarded       bool    `json:"rewarded"`
	ReferrerID     uint    `json:"referrer_id"`
	RefereeID      uint    `json:"referee_id"`
	ReferrerAmount float64 `json:"referrer_amount"`
	RefereeAmount  float64 `json:"referee_amount"`
}

// PeriodExtender grants free-month rewards by pushing out a subscription's
// end date. The subscription lifecycle manager satisfies this.
type PeriodExtender interface {
	ExtendCurrentPeriod(ctx context.Context, userID uint, months int) (*models.Subscription, error)
}

// Engine tracks referrals and commits two-sided rewards. The referral
// status column is a one-way gate (pending -> completed -> rewarded), so a
// reward can be paid at most once no matter how often payments reconcile.
type Engine struct {
	repo     Repository
	extender PeriodExtender
	now      func() time.Time
}

// NewEngine creates a referral engine. extender may be nil when free-month
// rewards are not configured.
func NewEngine(repo Repository, extender PeriodExtender) *Engine {
	return &Engine{repo: repo, extender: extender, now: time.Now}
}

// NewEngineFromDB creates a referral engine from a GORM handle, which may
// be a transaction.
func NewEngineFromDB(db *gorm.DB, extender PeriodExtender) *Engine {
	return NewEngine(NewRepository(db), extender)
}

// Enroll records that a new user signed up with someone's referral code.
// The referral starts pending and only completes on the first qualifying
// payment.
func (e *Engine) Enroll(ctx context.Context, referralCode string, refereeID uint) (*models.Referral, error) {
	_ = ctx
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	if code == "" || refereeID == 0 {
		return nil, ErrInvalidReferralCode
	}

	if existing, err := e.repo.FindByReferee(refereeID); err == nil && existing != nil {
		return existing, ErrAlreadyReferred
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	referrer, err := e.repo.FindUserByReferralCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, err
	}
	if referrer.ID == refereeID {
		return nil, ErrSelfReferral
	}

	now := e.now()
	program, err := e.repo.FindActiveProgram(now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveProgram
		}
		return nil, err
	}

	ref := &models.Referral{
		ReferrerID:   referrer.ID,
		RefereeID:    refereeID,
		ProgramID:    program.ID,
		ReferralCode: code,
		Status:       models.ReferralStatusPending,
		ReferredAt:   now,
	}
	if err := e.repo.CreateReferral(ref); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}
	return ref, nil
}

// HandleQualifyingPayment advances the referee's referral on their first
// completed payment and commits the two-sided reward. Invoked from the
// reconciliation transaction; calling it again for a later payment or a
// replayed callback is a no-op.
func (e *Engine) HandleQualifyingPayment(ctx context.Context, refereeID uint, paidAmount float64) (*RewardResult, error) {
	ref, err := e.repo.FindByReferee(refereeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &RewardResult{}, nil
		}
		return nil, err
	}
	if ref.Status == models.ReferralStatusRewarded {
		return &RewardResult{}, nil
	}

	program, err := e.repo.FindProgram(ref.ProgramID)
	if err != nil {
		return nil, err
	}
	if paidAmount < program.MinimumRefereePayment {
		// Not qualifying yet; a later payment may still complete it.
		return &RewardResult{}, nil
	}

	if ref.Status == models.ReferralStatusPending {
		moved, err := e.repo.MarkCompleted(ref.ID, e.now())
		if err != nil {
			return nil, err
		}
		if !moved {
			// Another reconcile got there first; it also owns the reward.
			return &RewardResult{}, nil
		}
		ref.Status = models.ReferralStatusCompleted
	}

	return e.TryReward(ctx, ref, program, paidAmount)
}

// TryReward computes and commits both reward amounts for a completed
// referral. The commit is a conditional update on status=completed: there
// is no persisted state between "computed" and "committed", and only one
// caller can win the transition.
func (e *Engine) TryReward(ctx context.Context, ref *models.Referral, program *models.ReferralProgram, paidAmount float64) (*RewardResult, error) {
	if ref.Status == models.ReferralStatusRewarded {
		// Paying a rewarded referral would be a double payout; this is a
		// bug in the caller, not user error.
		log.Printf("[referral] BUG: TryReward called for already-rewarded referral id=%d referee=%d", ref.ID, ref.RefereeID)
		return nil, ErrRewardConflict
	}
	if ref.Status != models.ReferralStatusCompleted {
		return nil, ErrRewardConflict
	}

	referrerAmount := computeReward(program.ReferrerRewardType, program.ReferrerRewardValue, paidAmount, program.RewardCap)
	refereeAmount := computeReward(program.RefereeRewardType, program.RefereeRewardValue, paidAmount, program.RewardCap)

	committed, err := e.repo.CommitReward(ref.ID, referrerAmount, refereeAmount, e.now())
	if err != nil {
		return nil, err
	}
	if !committed {
		log.Printf("[referral] reward commit lost gate race for referral id=%d", ref.ID)
		return nil, ErrRewardConflict
	}

	if err := e.applySideEffects(ctx, ref, program, referrerAmount, refereeAmount); err != nil {
		return nil, err
	}

	return &RewardResult{
		Rewarded:       true,
		ReferrerID:     ref.ReferrerID,
		RefereeID:      ref.RefereeID,
		ReferrerAmount: referrerAmount,
		RefereeAmount:  refereeAmount,
	}, nil
}

func (e *Engine) applySideEffects(ctx context.Context, ref *models.Referral, program *models.ReferralProgram, referrerAmount, refereeAmount float64) error {
	if program.ReferrerRewardType == models.RewardTypePoints {
		if err := e.repo.CreditPoints(ref.ReferrerID, int64(referrerAmount), models.PointsReasonReferralReferrer, ref.ID); err != nil {
			return err
		}
	}
	if program.RefereeRewardType == models.RewardTypePoints {
		if err := e.repo.CreditPoints(ref.RefereeID, int64(refereeAmount), models.PointsReasonReferralReferee, ref.ID); err != nil {
			return err
		}
	}
	if program.ReferrerRewardType == models.RewardTypeFreeMonths && e.extender != nil {
		if _, err := e.extender.ExtendCurrentPeriod(ctx, ref.ReferrerID, int(referrerAmount)); err != nil {
			// The referrer may simply have no running subscription; the
			// committed amount still records what they earned.
			log.Printf("[referral] free-month extension skipped for user=%d: %v", ref.ReferrerID, err)
		}
	}
	return nil
}

// computeReward evaluates one side of the program. Percentage rewards are
// a share of the qualifying payment; everything else takes the configured
// value. RewardCap clamps the result in the unit of the reward type.
func computeReward(rewardType string, value, paidAmount float64, rewardCap *float64) float64 {
	var amount float64
	switch rewardType {
	case models.RewardTypePercentage:
		amount = paidAmount * value / 100
	case models.RewardTypeFixedAmount, models.RewardTypeFreeMonths, models.RewardTypePoints:
		amount = value
	default:
		return 0
	}
	if rewardCap != nil && amount > *rewardCap {
		amount = *rewardCap
	}
	return math.Round(amount*100) / 100
}
