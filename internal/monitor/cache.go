package monitor

import (
	"context"
	"sync"
	"time"
)

// Cache remembers when each (device, tier) pair was last notified.
//
// Suppression is decided by the caller from the stored send time and the
// interval in force at check time. Implementations drop entries only once
// they can no longer suppress anything.
type Cache interface {
	Last(ctx context.Context, deviceID string, tier Tier) (time.Time, bool, error)
	Mark(ctx context.Context, deviceID string, tier Tier, at time.Time) error
}

type cacheKey struct {
	deviceID string
	tier     Tier
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[cacheKey]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[cacheKey]time.Time)}
}

func (c *MemoryCache) Last(_ context.Context, deviceID string, tier Tier) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sentAt, ok := c.entries[cacheKey{deviceID, tier}]
	return sentAt, ok, nil
}

func (c *MemoryCache) Mark(_ context.Context, deviceID string, tier Tier, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey{deviceID, tier}] = at
	return nil
}

// Prune drops entries sent at least interval before now and returns how many
// were removed. interval is the current re-notify interval. Devices that left
// the ACS fall out this way.
func (c *MemoryCache) Prune(now time.Time, interval time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, sentAt := range c.entries {
		if now.Sub(sentAt) >= interval {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
