package market_hours

import (
	"sync"
	"time"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/clock"
)

// DefaultCacheTTL bounds how long a computed status is reused
const DefaultCacheTTL = 60 * time.Second

type cacheEntry struct {
	status    MarketStatus
	expiresAt time.Time
}

// StatusCache holds statuses per lookup key until their TTL passes.
// Entries are never invalidated explicitly.
type StatusCache struct {
	ttl     time.Duration
	clock   clock.Clock
	entries map[string]cacheEntry
	mu      sync.RWMutex
}

// NewStatusCache creates a cache. ttl <= 0 uses DefaultCacheTTL.
func NewStatusCache(ttl time.Duration, clk clock.Clock) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &StatusCache{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached status for key if it has not expired
func (c *StatusCache) Get(key string) (MarketStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return MarketStatus{}, false
	}
	return entry.status, true
}

// Set stores status under key and drops expired entries
func (c *StatusCache) Set(key string, status MarketStatus) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{status: status, expiresAt: now.Add(c.ttl)}
}
