package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xingfanxia/iron-condor-combo-finder/internal/condor"
)

// DefaultCacheSize bounds the number of cached chains
const DefaultCacheSize = 64

type cacheEntry struct {
	chain     *condor.Chain
	cachedAt  time.Time
	expiresAt time.Time
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Entries  int     `json:"entries"`
	MaxSize  int     `json:"max_size"`
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	TTL      string  `json:"ttl"`
}

// CachedSource keeps recent chains for a short TTL, keyed by symbol and
// DTE window. Spot requests are served from the cached chain when present.
type CachedSource struct {
	next    Source
	ttl     time.Duration
	maxSize int
	clock   Clock

	mu      sync.RWMutex
	entries map[string]cacheEntry
	hits    int64
	misses  int64
}

// NewCachedSource wraps next with a TTL cache. A non-positive ttl disables caching.
func NewCachedSource(next Source, ttl time.Duration, maxSize int) *CachedSource {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &CachedSource{
		next:    next,
		ttl:     ttl,
		maxSize: maxSize,
		clock:   time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Name returns the wrapped provider name
func (c *CachedSource) Name() string {
	return c.next.Name()
}

// Spot returns the spot of any live cached chain for the symbol, else asks the source
func (c *CachedSource) Spot(ctx context.Context, symbol string) (float64, error) {
	now := c.clock()
	prefix := normalizeSymbol(symbol) + "|"

	c.mu.RLock()
	for key, entry := range c.entries {
		if strings.HasPrefix(key, prefix) && now.Before(entry.expiresAt) {
			c.mu.RUnlock()
			return entry.chain.Spot, nil
		}
	}
	c.mu.RUnlock()

	return c.next.Spot(ctx, symbol)
}

// Chain returns a cached chain or fetches and stores a fresh one
func (c *CachedSource) Chain(ctx context.Context, symbol string, minDTE, maxDTE int) (*condor.Chain, error) {
	key := CacheKey(symbol, minDTE, maxDTE)
	if chain, ok := c.get(key); ok {
		return chain, nil
	}

	chain, err := c.next.Chain(ctx, symbol, minDTE, maxDTE)
	if err != nil {
		return nil, err
	}
	c.set(key, chain)
	return chain, nil
}

// Invalidate drops every cached chain for symbol
func (c *CachedSource) Invalidate(symbol string) {
	prefix := normalizeSymbol(symbol) + "|"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Stats returns hit and miss counters
func (c *CachedSource) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Entries:  len(c.entries),
		MaxSize:  c.maxSize,
		Hits:     c.hits,
		Misses:   c.misses,
		HitRatio: ratio,
		TTL:      c.ttl.String(),
	}
}

// CacheKey builds the cache key for a chain request
func CacheKey(symbol string, minDTE, maxDTE int) string {
	return fmt.Sprintf("%s|%d|%d", normalizeSymbol(symbol), minDTE, maxDTE)
}

func (c *CachedSource) get(key string) (*condor.Chain, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || !c.clock().Before(entry.expiresAt) {
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.chain, true
}

func (c *CachedSource) set(key string, chain *condor.Chain) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := c.clock()
	c.entries[key] = cacheEntry{chain: chain, cachedAt: now, expiresAt: now.Add(c.ttl)}
}

func (c *CachedSource) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.cachedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.cachedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
