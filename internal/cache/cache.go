// Package cache provides a small bounded cache with per-entry TTL and
// least-recently-used eviction. It backs the credential resolver but has no
// knowledge of credentials.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// Cache is a TTL+LRU cache safe for concurrent use. Expiry is checked lazily
// on Get; capacity is enforced on Set by evicting the least recently used
// entries until the cache is under capacity again.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	order    *list.List // front = most recently used
	items    map[K]*list.Element
	now      func() time.Time
}

// New returns a cache holding at most capacity entries, each valid for ttl
// after its most recent Set.
func New[K comparable, V any](ttl time.Duration, capacity int) *Cache[K, V] {
	return &Cache[K, V]{
		ttl:      ttl,
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element),
		now:      time.Now,
	}
}

// Get returns the value for key and refreshes its recency. An expired entry
// is removed and reported as absent.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	en := el.Value.(*entry[K, V])
	if c.now().After(en.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return zero, false
	}
	c.order.MoveToFront(el)
	return en.value, true
}

// Set stores key=value. Re-inserting an existing key resets both its TTL and
// its recency position.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		en := el.Value.(*entry[K, V])
		en.value = value
		en.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expires})
	c.items[key] = el

	for c.capacity > 0 && len(c.items) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		en := oldest.Value.(*entry[K, V])
		c.order.Remove(oldest)
		delete(c.items, en.key)
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

// Clear empties the cache unconditionally.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.items = make(map[K]*list.Element)
}

// Len returns the number of entries, including any not yet lazily expired.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
