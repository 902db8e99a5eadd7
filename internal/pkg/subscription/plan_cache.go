package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/EdukitaHQ/edukita/internal/pkg/cache"
)

const planCacheTTL = 15 * time.Minute

type redisPlanCache struct{}

// NewRedisPlanCache returns a PlanCache backed by the shared Redis client.
func NewRedisPlanCache() PlanCache {
	return redisPlanCache{}
}

func planKey(userID uint) string {
	return fmt.Sprintf("user:plan:%d", userID)
}

func (redisPlanCache) SetPlan(ctx context.Context, userID uint, plan string) error {
	return cache.GetClient().Set(ctx, planKey(userID), plan, planCacheTTL).Err()
}

func (redisPlanCache) InvalidatePlan(ctx context.Context, userID uint) error {
	return cache.GetClient().Del(ctx, planKey(userID)).Err()
}

// CachedPlan returns the mirrored plan for a user, or "" on miss.
func CachedPlan(ctx context.Context, userID uint) string {
	val, err := cache.GetClient().Get(ctx, planKey(userID)).Result()
	if err != nil {
		return ""
	}
	return val
}
