package images

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finitefield.org/hanko-catalog/internal/catalog"
)

const defaultCacheTTL = 10 * time.Minute

// Cached wraps a Resolver with a TTL cache keyed by image path. Concurrent
// requests for the same path share one upstream fetch. Failures are not cached.
type Cached struct {
	next  Resolver
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	image   Image
	expires time.Time
}

// CacheOption customises Cached.
type CacheOption func(*Cached)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) CacheOption {
	return func(c *Cached) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewCached wraps next. A non-positive ttl uses the default of ten minutes.
func NewCached(next Resolver, ttl time.Duration, opts ...CacheOption) *Cached {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c := &Cached{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]cacheEntry{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Resolve returns a cached image or fetches it from the wrapped resolver.
func (c *Cached) Resolve(ctx context.Context, p catalog.Product) (Image, error) {
	key := Path(p)
	if img, ok := c.lookup(key); ok {
		return img, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// The shared fetch must not die with the first caller's context.
		img, err := c.next.Resolve(context.WithoutCancel(ctx), p)
		if err != nil {
			return Image{}, err
		}
		c.store(key, img)
		return img, nil
	})

	select {
	case <-ctx.Done():
		return Image{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Image{}, res.Err
		}
		return res.Val.(Image), nil
	}
}

// Purge drops expired entries and reports how many were removed.
func (c *Cached) Purge() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cached) lookup(key string) (Image, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expires) {
		return Image{}, false
	}
	return entry.image, true
}

func (c *Cached) store(key string, img Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{image: img, expires: c.now().Add(c.ttl)}
}
