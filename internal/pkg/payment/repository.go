package payment

import (
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/discount"
	"github.com/EdukitaHQ/edukita/internal/pkg/referral"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
	"gorm.io/gorm"
)

// TerminalUpdate is the one-shot status write applied by reconciliation.
type TerminalUpdate struct {
	Status            string
	GatewayStatusCode string
	ConfirmationCode  string
	At                time.Time
}

// CompletionEffects are the transaction-scoped collaborators handed to the
// completion callback. Everything they write commits or rolls back together
// with the payment's terminal status.
type CompletionEffects struct {
	Subscriptions *subscription.Manager
	Referrals     *referral.Engine
}

// Repository provides DB operations used by the payment service.
type Repository interface {
	FindByTrackingID(trackingID string) (*models.Payment, error)
	// CreateWithRedemption inserts the pending payment and, when redeem is
	// not nil, runs it against a transaction-scoped discount engine so the
	// redemption commits together with the payment row.
	CreateWithRedemption(p *models.Payment, redeem func(eng *discount.Engine) error) error
	SavePayment(p *models.Payment) error
	// ApplyTerminal moves the payment out of pending exactly once. The
	// status predicate makes concurrent reconciles race-safe: the loser
	// affects zero rows and gets applied=false. onCompleted runs in the
	// same transaction, only when the winning status is completed.
	ApplyTerminal(p *models.Payment, update TerminalUpdate, onCompleted func(fx CompletionEffects) error) (bool, error)
}

type gormRepository struct {
	db    *gorm.DB
	cache subscription.PlanCache
}

// NewRepository creates a payment repository backed by GORM. cache may be
// nil; it is handed to the subscription manager built for completion
// effects.
func NewRepository(db *gorm.DB, cache subscription.PlanCache) Repository {
	return &gormRepository{db: db, cache: cache}
}

func (r *gormRepository) FindByTrackingID(trackingID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("gateway_tracking_id = ?", trackingID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CreateWithRedemption(p *models.Payment, redeem func(eng *discount.Engine) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if redeem != nil {
			return redeem(discount.NewEngineFromDB(tx))
		}
		return nil
	})
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) ApplyTerminal(p *models.Payment, update TerminalUpdate, onCompleted func(fx CompletionEffects) error) (bool, error) {
	applied := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		values := map[string]interface{}{
			"status":              update.Status,
			"gateway_status_code": update.GatewayStatusCode,
			"confirmation_code":   update.ConfirmationCode,
		}
		if update.Status == models.PaymentStatusCompleted {
			values["completed_at"] = update.At
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", p.ID, models.PaymentStatusPending).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true

		if update.Status == models.PaymentStatusCompleted && onCompleted != nil {
			manager := subscription.NewManagerFromDB(tx, r.cache)
			return onCompleted(CompletionEffects{
				Subscriptions: manager,
				Referrals:     referral.NewEngineFromDB(tx, manager),
			})
		}
		return nil
	})
	return applied, err
}
