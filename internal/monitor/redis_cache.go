package monitor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "ispportal:rxnotify:"

	// DefaultRedisTTL bounds how long a send time is kept. It only has to
	// outlive any re-notify interval an operator would configure.
	DefaultRedisTTL = 30 * 24 * time.Hour
)

// RedisCache shares notification state between portal instances. Entries
// expire through key TTLs.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, ttl: DefaultRedisTTL}
}

func redisKey(deviceID string, tier Tier) string {
	return redisKeyPrefix + deviceID + ":" + string(tier)
}

func (c *RedisCache) Last(ctx context.Context, deviceID string, tier Tier) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(deviceID, tier)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt cache entry %q: %w", raw, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (c *RedisCache) Mark(ctx context.Context, deviceID string, tier Tier, at time.Time) error {
	value := strconv.FormatInt(at.UnixMilli(), 10)
	if err := c.client.Set(ctx, redisKey(deviceID, tier), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
