package referral

import (
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the referral engine. Build it
// from a transaction handle when rewards must commit together with payment
// reconciliation.
type Repository interface {
	FindActiveProgram(at time.Time) (*models.ReferralProgram, error)
	FindProgram(id uint) (*models.ReferralProgram, error)
	FindUserByReferralCode(code string) (*models.User, error)
	CreateReferral(ref *models.Referral) error
	FindByReferee(refereeID uint) (*models.Referral, error)
	// MarkCompleted flips pending -> completed. Returns false when the row
	// was not pending anymore.
	MarkCompleted(referralID uint, at time.Time) (bool, error)
	// CommitReward writes both reward amounts and flips completed ->
	// rewarded in one statement. Returns false when the row was not in
	// completed state, which means another writer already paid it.
	CommitReward(referralID uint, referrerAmount, refereeAmount float64, at time.Time) (bool, error)
	CreditPoints(userID uint, points int64, reason string, sourceID uint) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a referral repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActiveProgram(at time.Time) (*models.ReferralProgram, error) {
	var p models.ReferralProgram
	err := r.db.
		Where("is_active = ? AND valid_from <= ? AND (valid_until IS NULL OR valid_until > ?)", true, at, at).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindProgram(id uint) (*models.ReferralProgram, error) {
	var p models.ReferralProgram
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindUserByReferralCode(code string) (*models.User, error) {
	var u models.User
	if err := r.db.Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) CreateReferral(ref *models.Referral) error {
	return r.db.Create(ref).Error
}

func (r *gormRepository) FindByReferee(refereeID uint) (*models.Referral, error) {
	var ref models.Referral
	if err := r.db.Where("referee_id = ?", refereeID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *gormRepository) MarkCompleted(referralID uint, at time.Time) (bool, error) {
	res := r.db.Model(&models.Referral{}).
		Where("id = ? AND status = ?", referralID, models.ReferralStatusPending).
		Updates(map[string]interface{}{
			"status":       models.ReferralStatusCompleted,
			"completed_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *gormRepository) CommitReward(referralID uint, referrerAmount, refereeAmount float64, at time.Time) (bool, error) {
	// The status predicate is the single-writer gate: only one transition
	// out of completed can ever succeed.
	res := r.db.Model(&models.Referral{}).
		Where("id = ? AND status = ?", referralID, models.ReferralStatusCompleted).
		Updates(map[string]interface{}{
			"status":                 models.ReferralStatusRewarded,
			"referrer_reward_amount": referrerAmount,
			"referee_reward_amount":  refereeAmount,
			"rewarded_at":            at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *gormRepository) CreditPoints(userID uint, points int64, reason string, sourceID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		entry := &models.PointsEntry{UserID: userID, Points: points, Reason: reason, SourceID: sourceID}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Model(&models.UserSettings{}).
			Where("user_id = ?", userID).
			UpdateColumn("points_balance", gorm.Expr("points_balance + ?", points)).Error
	})
}
