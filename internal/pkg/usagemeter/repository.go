package usagemeter

import (
	"errors"

	"github.com/EdukitaHQ/edukita/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the conditional counter operations the meter needs.
type Repository interface {
	// IncrementIfBelow atomically increments the day counter if it is still
	// below limit. It returns the counter value after the attempt and
	// whether the increment was applied.
	IncrementIfBelow(userID uint, usageType, day string, limit int) (int, bool, error)
	CurrentCount(userID uint, usageType, day string) (int, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a usage repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) IncrementIfBelow(userID uint, usageType, day string, limit int) (int, bool, error) {
	// Make sure the day row exists; the unique index absorbs races between
	// two first-of-the-day requests.
	rec := models.UsageRecord{UserID: userID, UsageType: usageType, UsageDate: day}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return 0, false, err
	}

	// Single conditional read-modify-write: the WHERE clause is the quota
	// guard, so two concurrent calls can never both take the last slot.
	res := r.db.Model(&models.UsageRecord{}).
		Where("user_id = ? AND usage_type = ? AND usage_date = ? AND usage_count < ?", userID, usageType, day, limit).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return 0, false, res.Error
	}

	count, err := r.CurrentCount(userID, usageType, day)
	if err != nil {
		return 0, false, err
	}
	return count, res.RowsAffected > 0, nil
}

func (r *gormRepository) CurrentCount(userID uint, usageType, day string) (int, error) {
	var rec models.UsageRecord
	err := r.db.Where("user_id = ? AND usage_type = ? AND usage_date = ?", userID, usageType, day).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return rec.UsageCount, nil
}
