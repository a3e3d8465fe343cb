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

// trackListTTL bounds staleness for writers that bypass the API handlers,
// such as the drop-directory watcher.
const trackListTTL = 5 * time.Minute

func trackListKey(ownerID int64) string {
	return fmt.Sprintf("tunescope:tracks:%d", ownerID)
}

// GetTrackList returns the cached track list for an owner, or (nil, nil) on a
// cache miss.
func GetTrackList(ctx context.Context, ownerID int64) ([]*model.TrackRecord, error) {
	if db.RedisClient == nil {
		return nil, nil
	}

	data, err := db.RedisClient.Get(ctx, trackListKey(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached track list for owner %d: %w", ownerID, err)
	}

	var recs []*model.TrackRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode cached track list for owner %d: %w", ownerID, err)
	}
	return recs, nil
}

// SetTrackList caches an owner's track list.
func SetTrackList(ctx context.Context, ownerID int64, recs []*model.TrackRecord) error {
	if db.RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to encode track list for owner %d: %w", ownerID, err)
	}
	if err := db.RedisClient.Set(ctx, trackListKey(ownerID), data, trackListTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache track list for owner %d: %w", ownerID, err)
	}
	return nil
}

// InvalidateTracks drops an owner's cached track list.
func InvalidateTracks(ctx context.Context, ownerID int64) error {
	if db.RedisClient == nil {
		return nil
	}
	if err := db.RedisClient.Del(ctx, trackListKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate track list for owner %d: %w", ownerID, err)
	}
	return nil
}
