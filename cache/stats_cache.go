package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TuneScope/db"
	"TuneScope/model"

	"github.com/redis/go-redis/v9"
)

// statsTTL bounds how stale a cached stats summary can get if invalidation
// is ever missed.
const statsTTL = 10 * time.Minute

// statsKey builds the per-owner stats cache key.
func statsKey(ownerID int64) string {
	return fmt.Sprintf("tunescope:stats:%d", ownerID)
}

// GetStats returns the cached stats summary for an owner, or (nil, nil) on a
// cache miss.
func GetStats(ctx context.Context, ownerID int64) (*model.StatsSummary, error) {
	if db.RedisClient == nil {
		return nil, nil
	}

	data, err := db.RedisClient.Get(ctx, statsKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached stats for owner %d: %w", ownerID, err)
	}

	var summary model.StatsSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats for owner %d: %w", ownerID, err)
	}
	return &summary, nil
}

// SetStats caches an owner's stats summary.
func SetStats(ctx context.Context, ownerID int64, summary *model.StatsSummary) error {
	if db.RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode stats for owner %d: %w", ownerID, err)
	}
	if err := db.RedisClient.Set(ctx, statsKey(ownerID), data, statsTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache stats for owner %d: %w", ownerID, err)
	}
	return nil
}

// InvalidateStats drops an owner's cached stats summary. Called after every
// insert or delete so the summary never reflects a stale library.
func InvalidateStats(ctx context.Context, ownerID int64) error {
	if db.RedisClient == nil {
		return nil
	}
	if err := db.RedisClient.Del(ctx, statsKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats for owner %d: %w", ownerID, err)
	}
	return nil
}
