// ABOUTME: Thread-safe TTL cache for arXiv search results.
// ABOUTME: Avoids repeated upstream queries when the assistant re-runs a search.

package arxiv

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the result, timestamp, and list element for a cached query.
type cacheEntry struct {
	result    *Result
	timestamp time.Time
	element   *list.Element
}

// resultCache is a thread-safe, TTL-based, size-limited cache keyed by query
// string. Uses a doubly-linked list to maintain insertion order for O(1)
// eviction.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   *list.List // List of keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// newResultCache creates a cache with the given TTL and maximum size.
// A background goroutine periodically cleans up expired entries.
func newResultCache(ttl time.Duration, maxSize int) *resultCache {
	c := &resultCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// get returns the cached result for a query if present and unexpired.
func (c *resultCache) get(query string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	if time.Since(entry.timestamp) >= c.ttl {
		return nil, false
	}
	return entry.result, true
}

// put stores a result. If the cache is at capacity, the oldest entry is
// evicted to make room.
func (c *resultCache) put(query string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	// If key already exists, update in place and move to back
	if entry, exists := c.entries[query]; exists {
		entry.result = result
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(query)
	c.entries[query] = &cacheEntry{
		result:    result,
		timestamp: now,
		element:   elem,
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *resultCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.entries, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (c *resultCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

// runCleanup removes all expired entries from the cache.
func (c *resultCache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (c *resultCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
