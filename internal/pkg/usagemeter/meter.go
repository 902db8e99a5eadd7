package usagemeter

import (
	"context"
	"log"
	"time"

	"github.com/EdukitaHQ/edukita/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// ConsumeResult is the outcome of a quota check.
type ConsumeResult struct {
	Allowed      bool `json:"allowed"`
	CurrentUsage int  `json:"current_usage"`
	Limit        int  `json:"limit"`
}

// Meter enforces per-user daily quotas for metered features. Counters live
// in the database; a Redis mirror keeps a cheap copy for dashboards.
type Meter struct {
	repo   Repository
	mirror HotMirror
	now    func() time.Time
}

// NewMeter creates a meter from an injected repository. mirror may be nil.
func NewMeter(repo Repository, mirror HotMirror) *Meter {
	return &Meter{repo: repo, mirror: mirror, now: time.Now}
}

// NewMeterFromDB creates a meter from a GORM DB handle.
func NewMeterFromDB(db *gorm.DB, mirror HotMirror) *Meter {
	return NewMeter(NewRepository(db), mirror)
}

// CheckAndConsume consumes one unit of today's quota for the usage type.
// A limit of -1 always allows. On a full quota the counter is left
// untouched. Unused quota does not roll over; the day boundary is the
// server's calendar date.
func (m *Meter) CheckAndConsume(ctx context.Context, userID uint, usageType string, limit int) (ConsumeResult, error) {
	_ = ctx
	day := m.now().Format("2006-01-02")

	if limit == entitlements.Unlimited {
		m.mirrorIncr(ctx, usageType, userID, day)
		count, err := m.repo.CurrentCount(userID, usageType, day)
		if err != nil {
			return ConsumeResult{}, err
		}
		return ConsumeResult{Allowed: true, CurrentUsage: count, Limit: limit}, nil
	}

	if limit <= 0 {
		count, err := m.repo.CurrentCount(userID, usageType, day)
		if err != nil {
			return ConsumeResult{}, err
		}
		return ConsumeResult{Allowed: false, CurrentUsage: count, Limit: limit}, nil
	}

	count, incremented, err := m.repo.IncrementIfBelow(userID, usageType, day, limit)
	if err != nil {
		return ConsumeResult{}, err
	}
	if !incremented {
		return ConsumeResult{Allowed: false, CurrentUsage: count, Limit: limit}, nil
	}

	m.mirrorIncr(ctx, usageType, userID, day)

	if count > limit {
		// Soft quota violation: a stale limit or an out-of-band write pushed
		// the counter past the cap. The action already happened, so fail
		// open and leave a trace instead of punishing the user.
		log.Printf("[usagemeter] soft quota overshoot user=%d type=%s day=%s count=%d limit=%d", userID, usageType, day, count, limit)
	}
	return ConsumeResult{Allowed: true, CurrentUsage: count, Limit: limit}, nil
}

// TodayUsage reads today's counter without consuming quota.
func (m *Meter) TodayUsage(ctx context.Context, userID uint, usageType string) (int, error) {
	_ = ctx
	return m.repo.CurrentCount(userID, usageType, m.now().Format("2006-01-02"))
}

func (m *Meter) mirrorIncr(ctx context.Context, usageType string, userID uint, day string) {
	if m.mirror == nil {
		return
	}
	if err := m.mirror.Incr(ctx, usageType, userID, day); err != nil {
		log.Printf("[usagemeter] mirror increment failed: %v", err)
	}
}
