package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/database"
	"github.com/EdukitaHQ/edukita/internal/pkg/payment"
	"github.com/EdukitaHQ/edukita/internal/pkg/subscription"
)

// errStillPending makes the queue retry a reconcile whose gateway answer is
// still pending; the sweep will pick the payment up again anyway once the
// retry budget runs out.
var errStillPending = errors.New("payment still pending at gateway")

// newPaymentReconcileProcessor builds the processor for payment reconcile
// jobs.
func newPaymentReconcileProcessor(gateway payment.Gateway, cache subscription.PlanCache) Processor {
	return func(ctx context.Context, job *Job) error {
		payload, err := PaymentReconcileJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payment reconcile payload: %w", err)
		}

		db := database.GetDB()
		if db == nil {
			return errors.New("database unavailable")
		}

		svc := payment.NewServiceFromDB(db, gateway, cache)
		res, err := svc.Reconcile(ctx, payload.TrackingID)
		if err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				// Nothing to do; drop the job without retries.
				log.Warnf("[JobQueue] Reconcile job for unknown payment %s", payload.TrackingID)
				return nil
			}
			return err
		}

		if res.Payment.Status == models.PaymentStatusPending {
			return errStillPending
		}
		if res.Applied {
			log.Infof("[JobQueue] Reconciled payment %s -> %s", payload.TrackingID, res.Payment.Status)
		}
		return nil
	}
}

// newPlanReconcileProcessor builds the processor for plan mirror reconcile
// jobs.
func newPlanReconcileProcessor(cache subscription.PlanCache) Processor {
	return func(ctx context.Context, job *Job) error {
		payload, err := PlanReconcileJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid plan reconcile payload: %w", err)
		}

		db := database.GetDB()
		if db == nil {
			return errors.New("database unavailable")
		}

		manager := subscription.NewManagerFromDB(db, cache)
		plan, err := manager.ReconcilePlan(ctx, payload.UserID)
		if err != nil {
			return err
		}
		log.Debugf("[JobQueue] Reconciled plan mirror for user %d -> %s", payload.UserID, plan)
		return nil
	}
}

// SweepPendingPayments enqueues reconcile jobs for payments that have been
// pending longer than minAge. Reconcile is idempotent, so enqueueing the
// same payment twice is harmless.
func (q *Queue) SweepPendingPayments(minAge time.Duration, limit int) (int, error) {
	db := database.GetDB()
	if db == nil {
		return 0, errors.New("database unavailable")
	}
	if limit <= 0 {
		limit = 100
	}

	var stale []models.Payment
	cutoff := time.Now().Add(-minAge)
	err := db.Where("status = ? AND created_at < ?", models.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, p := range stale {
		payload := PaymentReconcileJobPayload{TrackingID: p.GatewayTrackingID, UserID: p.UserID}
		if _, err := q.EnqueueJob(JobTypePaymentReconcile, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue reconcile for %s: %v", p.GatewayTrackingID, err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// SweepExpiringPlans enqueues plan reconcile jobs for users whose newest
// entitling subscription ended recently, so the UserSettings mirror and the
// cache fall back to free without waiting for a request.
func (q *Queue) SweepExpiringPlans(window time.Duration, limit int) (int, error) {
	db := database.GetDB()
	if db == nil {
		return 0, errors.New("database unavailable")
	}
	if limit <= 0 {
		limit = 200
	}

	now := time.Now()
	var userIDs []uint
	err := db.Model(&models.Subscription{}).
		Distinct("user_id").
		Where("status IN ? AND end_date <= ? AND end_date > ?",
			[]string{models.SubscriptionStatusActive, models.SubscriptionStatusCancelled}, now, now.Add(-window)).
		Limit(limit).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, id := range userIDs {
		payload := PlanReconcileJobPayload{UserID: id}
		if _, err := q.EnqueueJob(JobTypePlanReconcile, payload.ToMap()); err != nil {
			log.Errorf("[JobQueue] Failed to enqueue plan reconcile for user %d: %v", id, err)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}
