package discount

import (
	"errors"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the discount engine. Build it
// from a transaction handle when redemption must commit together with other
// writes (payment creation does this).
type Repository interface {
	FindByCode(code string) (*models.DiscountCode, error)
	CountRedemptions(code string, userID uint) (int64, error)
	// Redeem consumes one unit of the code: a conditional increment on the
	// global counter plus the redemption row. Returns ErrCodeExhausted when
	// a concurrent redemption took the last slot after validation.
	Redeem(code string, userID, paymentID uint, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a discount repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindByCode(code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	if err := r.db.Where("code = ?", code).First(&dc).Error; err != nil {
		return nil, err
	}
	return &dc, nil
}

func (r *gormRepository) CountRedemptions(code string, userID uint) (int64, error) {
	var n int64
	err := r.db.Model(&models.DiscountRedemption{}).
		Where("code = ? AND user_id = ?", code, userID).
		Count(&n).Error
	return n, err
}

func (r *gormRepository) Redeem(code string, userID, paymentID uint, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Commit-time re-check: the WHERE clause re-validates the global cap
		// so two checkouts that both passed validation cannot both take the
		// last unit.
		res := tx.Model(&models.DiscountCode{}).
			Where("code = ? AND is_active = ? AND (usage_limit IS NULL OR current_usage < usage_limit)", code, true).
			UpdateColumn("current_usage", gorm.Expr("current_usage + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCodeExhausted
		}

		redemption := &models.DiscountRedemption{
			Code:      code,
			UserID:    userID,
			PaymentID: paymentID,
			AppliedAt: at,
		}
		if err := tx.Create(redemption).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRedeemed
			}
			return err
		}
		return nil
	})
}
