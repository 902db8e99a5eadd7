package statistics

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/EdukitaHQ/edukita/app/models"
	"github.com/EdukitaHQ/edukita/internal/pkg/cache"
	"github.com/EdukitaHQ/edukita/internal/pkg/database"
)

const (
	CacheKeyUsersTotal          = "statistics:users:total"
	CacheKeySubscriptionsActive = "statistics:subscriptions:active"
	CacheKeyRevenueToday        = "statistics:revenue:today"
	CacheKeyRevenueTotal        = "statistics:revenue:total"
	CacheExpiration             = 30 * time.Minute
)

// StatisticsData holds the aggregated platform counters for dashboards.
type StatisticsData struct {
	TotalUsers          int64   `json:"total_users"`
	ActiveSubscriptions int64   `json:"active_subscriptions"`
	RevenueToday        float64 `json:"revenue_today"`
	RevenueTotal        float64 `json:"revenue_total"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached counters are due a refresh.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when it is stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("[statistics] cache refresh failed: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// UpdateStatisticsCache recomputes the counters from the database and writes
// them to Redis.
func UpdateStatisticsCache() error {
	db := database.GetDB()
	data := StatisticsData{}

	if err := db.Model(&models.User{}).Count(&data.TotalUsers).Error; err != nil {
		return err
	}

	now := time.Now()
	err := db.Model(&models.Subscription{}).
		Where("status = ? AND end_date > ?", models.SubscriptionStatusActive, now).
		Distinct("user_id").
		Count(&data.ActiveSubscriptions).Error
	if err != nil {
		return err
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	err = db.Model(&models.Payment{}).
		Where("status = ? AND completed_at >= ?", models.PaymentStatusCompleted, startOfDay).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&data.RevenueToday)
	if err != nil {
		return err
	}

	err = db.Model(&models.Payment{}).
		Where("status = ?", models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").Row().Scan(&data.RevenueTotal)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rdb := cache.GetClient()
	rdb.Set(ctx, CacheKeyUsersTotal, strconv.FormatInt(data.TotalUsers, 10), CacheExpiration)
	rdb.Set(ctx, CacheKeySubscriptionsActive, strconv.FormatInt(data.ActiveSubscriptions, 10), CacheExpiration)
	rdb.Set(ctx, CacheKeyRevenueToday, strconv.FormatFloat(data.RevenueToday, 'f', 2, 64), CacheExpiration)
	rdb.Set(ctx, CacheKeyRevenueTotal, strconv.FormatFloat(data.RevenueTotal, 'f', 2, 64), CacheExpiration)
	return nil
}

// GetStatistics returns the cached counters, falling back to a direct
// refresh when the cache is cold.
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	ctx := context.Background()
	rdb := cache.GetClient()
	data := StatisticsData{}

	hit := true
	if v, err := rdb.Get(ctx, CacheKeyUsersTotal).Result(); err == nil {
		data.TotalUsers, _ = strconv.ParseInt(v, 10, 64)
	} else {
		hit = false
	}
	if v, err := rdb.Get(ctx, CacheKeySubscriptionsActive).Result(); err == nil {
		data.ActiveSubscriptions, _ = strconv.ParseInt(v, 10, 64)
	} else {
		hit = false
	}
	if v, err := rdb.Get(ctx, CacheKeyRevenueToday).Result(); err == nil {
		data.RevenueToday, _ = strconv.ParseFloat(v, 64)
	} else {
		hit = false
	}
	if v, err := rdb.Get(ctx, CacheKeyRevenueTotal).Result(); err == nil {
		data.RevenueTotal, _ = strconv.ParseFloat(v, 64)
	} else {
		hit = false
	}

	if !hit {
		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("[statistics] fallback refresh failed: %v", err)
		}
	}
	return data
}
