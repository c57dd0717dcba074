// Package cache provides a generic in-memory cache with time-based
// expiration, used for per-session state.
package cache

import (
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

// Item represents a cached item with expiration
type Item[V any] struct {
	Value      V
	Expiration int64
}

// Expired checks if the item has expired
func (item Item[V]) Expired() bool {
	return item.expiredAt(time.Now().UnixNano())
}

func (item Item[V]) expiredAt(now int64) bool {
	if item.Expiration == 0 {
		return false
	}
	return now > item.Expiration
}

// TTLCache is a thread-safe cache with time-based expiration
type TTLCache[V any] struct {
	items           map[string]Item[V]
	mu              sync.RWMutex
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	maxItems        int
	stopCleanup     chan struct{}
	cleanupStarted  sync.Once
	cleanupStopped  sync.Once

	// OnEvict, when set before use, is called with the key of every entry
	// dropped for capacity or expiry. It runs with the cache lock held and
	// must not call back into the cache.
	OnEvict func(key string)
}

// NewTTLCache creates a new cache with the specified TTL and cleanup interval
// maxItems specifies the maximum number of items before the soonest to
// expire are evicted
func NewTTLCache[V any](defaultTTL, cleanupInterval time.Duration, maxItems int) *TTLCache[V] {
	c := &TTLCache[V]{
		items:           make(map[string]Item[V]),
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanupInterval,
		maxItems:        maxItems,
		stopCleanup:     make(chan struct{}),
	}

	c.startCleanupTimer()

	return c
}

// Set adds an item to the cache with the default TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL adds an item to the cache with a specific TTL
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store(key, value, ttl)
}

// store assumes the lock is held
func (c *TTLCache[V]) store(key string, value V, ttl time.Duration) {
	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	c.items[key] = Item[V]{
		Value:      value,
		Expiration: expiration,
	}

	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.evictOldest()
	}
}

// Get retrieves an item from the cache
// Returns the item and a bool indicating if the item was found
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found {
		return zero, false
	}

	if item.Expired() {
		c.mu.Lock()
		// Re-check under the write lock; the entry may have been refreshed.
		if current, ok := c.items[key]; ok && current.Expired() {
			c.remove(key)
		}
		c.mu.Unlock()
		return zero, false
	}

	return item.Value, true
}

// Update atomically replaces the value under key with fn's result and
// refreshes its TTL. fn receives the current value and whether it was
// present and unexpired. Returning false from fn leaves the cache untouched.
func (c *TTLCache[V]) Update(key string, fn func(current V, found bool) (V, bool)) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var current V
	item, found := c.items[key]
	if found && item.Expired() {
		c.remove(key)
		found = false
	}
	if found {
		current = item.Value
	}

	next, ok := fn(current, found)
	if !ok {
		return current, false
	}

	c.store(key, next, c.defaultTTL)
	return next, true
}

// Delete removes an item from the cache
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Count returns the number of items in the cache
func (c *TTLCache[V]) Count() int {
	c.mu.RLock()
	count := len(c.items)
	c.mu.RUnlock()
	return count
}

// remove assumes the lock is held
func (c *TTLCache[V]) remove(key string) {
	delete(c.items, key)
	if c.OnEvict != nil {
		c.OnEvict(key)
	}
}

// evictOldest removes the items closest to expiry when the cache exceeds
// maxItems. This function assumes the lock is already held
func (c *TTLCache[V]) evictOldest() {
	type keyExpiration struct {
		key        string
		expiration int64
	}

	itemsToRemove := len(c.items) - c.maxItems
	if itemsToRemove <= 0 {
		return
	}

	keyExpirations := make([]keyExpiration, 0, len(c.items))
	for k, v := range c.items {
		// Items without expiration have the lowest eviction priority
		exp := v.Expiration
		if exp == 0 {
			exp = math.MaxInt64
		}
		keyExpirations = append(keyExpirations, keyExpiration{k, exp})
	}

	sort.Slice(keyExpirations, func(i, j int) bool {
		return keyExpirations[i].expiration < keyExpirations[j].expiration
	})

	for i := 0; i < itemsToRemove; i++ {
		c.remove(keyExpirations[i].key)
	}
}

// startCleanupTimer starts the cleanup timer
func (c *TTLCache[V]) startCleanupTimer() {
	if c.cleanupInterval <= 0 {
		return
	}

	c.cleanupStarted.Do(func() {
		ticker := time.NewTicker(c.cleanupInterval)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.safeDeleteExpired()
				case <-c.stopCleanup:
					return
				}
			}
		}()
	})
}

// safeDeleteExpired keeps the cleanup loop alive if an OnEvict callback panics
func (c *TTLCache[V]) safeDeleteExpired() {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("panic during cache cleanup", "panic", r)
		}
	}()
	c.deleteExpired()
}

// deleteExpired deletes all expired items
func (c *TTLCache[V]) deleteExpired() {
	now := time.Now().UnixNano()

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range c.items {
		if v.expiredAt(now) {
			c.remove(k)
		}
	}
}

// Stop stops the cleanup timer
func (c *TTLCache[V]) Stop() {
	c.cleanupStopped.Do(func() {
		close(c.stopCleanup)
	})
}
