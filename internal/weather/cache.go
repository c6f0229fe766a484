package weather

import (
	"sync"
	"time"

	"provincecast/internal/openmeteo"
)

// reportCache memoizes provider reports per province with a TTL so repeated
// read-path lookups do not multiply provider calls.
type reportCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	report   *openmeteo.ForecastResponse
	storedAt time.Time
}

func newReportCache(ttl time.Duration) *reportCache {
	return &reportCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *reportCache) get(key string) (*openmeteo.ForecastResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.report, true
}

func (c *reportCache) put(key string, report *openmeteo.ForecastResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{report: report, storedAt: time.Now()}
}
