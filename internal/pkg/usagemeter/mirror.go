package usagemeter

import (
	"context"
	"fmt"
	"time"

	"github.com/EdukitaHQ/edukita/internal/pkg/cache"
)

// HotMirror keeps a best-effort copy of today's counters in a fast store.
// It is never consulted for quota decisions.
type HotMirror interface {
	Incr(ctx context.Context, usageType string, userID uint, day string) error
}

type redisMirror struct{}

// NewRedisMirror returns a HotMirror on the shared Redis client. Counters
// are grouped per usage type and day in a hash, mirroring how the rest of
// the app keeps pending counters.
func NewRedisMirror() HotMirror {
	return redisMirror{}
}

func (redisMirror) Incr(ctx context.Context, usageType string, userID uint, day string) error {
	key := fmt.Sprintf("usage:counters:%s:%s", usageType, day)
	rdb := cache.GetClient()
	if err := rdb.HIncrBy(ctx, key, fmt.Sprintf("%d", userID), 1).Err(); err != nil {
		return err
	}
	// Day keys expire on their own; 48h covers timezone stragglers.
	return rdb.Expire(ctx, key, 48*time.Hour).Err()
}
