package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/insightpulse/internal/domain"
)

type cacheEntry struct {
	change    domain.InsightChange
	expiresAt time.Time
}

// Cache implements domain.SnapshotCache with lazy expiry.
type Cache struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	entries map[string]cacheEntry
}

func NewCache(clock clockwork.Clock) *Cache {
	return &Cache{clock: clock, entries: make(map[string]cacheEntry)}
}

func (c *Cache) Set(_ context.Context, change *domain.InsightChange, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[change.Industry] = cacheEntry{change: *change, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

func (c *Cache) Get(_ context.Context, industry string) (*domain.InsightChange, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[industry]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return nil, false, nil
	}
	change := entry.change
	return &change, true, nil
}
