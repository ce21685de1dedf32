package cache

import (
	"fmt"
	"sync"
	"time"

	"fleetrental/pkg/logger"
	"fleetrental/pkg/model"
)

// AvailabilityCache memoizes availability reads. The key coarsens the
// start instant to the hour: two queries whose starts fall in the same
// hour bucket share one entry, so readers must tolerate hour-granularity
// staleness. Every successful mutation evicts the whole cache; eviction
// is always total, so no per-key locking is needed.
//
// Admission control never goes through this cache.
type AvailabilityCache struct {
	mu      sync.RWMutex
	entries map[string]int64
	log     *logger.Logger
}

func New(log *logger.Logger) *AvailabilityCache {
	return &AvailabilityCache{
		entries: make(map[string]int64),
		log:     log,
	}
}

func key(carType model.CarType, startAt time.Time, days int) string {
	bucket := startAt.UTC().Truncate(time.Hour)
	return fmt.Sprintf("availability:%s:%s:%d", carType, bucket.Format(time.RFC3339), days)
}

// GetOrCompute returns the cached value for the hour bucket, computing and
// storing it on a miss. Concurrent misses for one key may compute twice;
// last write wins, which is acceptable for an advisory read.
func (c *AvailabilityCache) GetOrCompute(carType model.CarType, startAt time.Time, days int, compute func() (int64, error)) (int64, error) {
	k := key(carType, startAt, days)

	c.mu.RLock()
	value, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err := compute()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries[k] = value
	c.mu.Unlock()

	return value, nil
}

// InvalidateAll drops every entry. Called after each successful mutation;
// evicting only the affected category would be cheaper but a missed
// invalidation serves stale overbooking signals, so correctness wins.
func (c *AvailabilityCache) InvalidateAll() {
	c.mu.Lock()
	evicted := len(c.entries)
	c.entries = make(map[string]int64)
	c.mu.Unlock()

	if evicted > 0 {
		c.log.Debug("Availability cache evicted", "entries", evicted)
	}
}

// Len reports the number of live entries.
func (c *AvailabilityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
