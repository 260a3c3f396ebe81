package weathercache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/zephyre/internal/domain/weather"
)

type entry struct {
	obs       weather.Observation
	expiresAt time.Time
}

// MemoryCache keeps recent lookups and lookup counts in process memory.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	counts   map[string]int64
	displays map[string]string
}

// NewMemoryCache constructs an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]entry),
		counts:   make(map[string]int64),
		displays: make(map[string]string),
	}
}

// Get implements weather.Cache. Expired entries are evicted on read.
func (c *MemoryCache) Get(_ context.Context, key string) (weather.Observation, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return weather.Observation{}, false, nil
	}
	if hasExpired(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return weather.Observation{}, false, nil
	}
	return e.obs, true, nil
}

// Set stores obs under key. A non-positive ttl keeps the entry until overwritten.
func (c *MemoryCache) Set(_ context.Context, key string, obs weather.Observation, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{obs: obs, expiresAt: exp}
	return nil
}

// IncrementLookup bumps the counter for key and remembers the first display form seen.
func (c *MemoryCache) IncrementLookup(_ context.Context, key, display string) error {
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	if _, exists := c.displays[key]; !exists {
		c.displays[key] = display
	}
	return nil
}

// TopLookups returns the most requested places, ties broken alphabetically.
func (c *MemoryCache) TopLookups(_ context.Context, limit int) ([]weather.PopularPlace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 {
		limit = len(c.counts)
	}
	items := make([]weather.PopularPlace, 0, len(c.counts))
	for key, count := range c.counts {
		display := c.displays[key]
		if display == "" {
			display = key
		}
		items = append(items, weather.PopularPlace{Place: display, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count == items[j].Count {
			return items[i].Place < items[j].Place
		}
		return items[i].Count > items[j].Count
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ weather.Cache = (*MemoryCache)(nil)
