// Package idempotency implements the bounded FIFO set of recently seen
// client action ids used to reject duplicate ACTION submissions (spec §4.2).
package idempotency

import (
	"container/list"
	"sync"
)

// DefaultCapacity is used when Cache is constructed with capacity <= 0.
const DefaultCapacity = 1000

// Cache is a bounded, insertion-ordered set of client action ids. It is safe
// for concurrent use, though in this system it is only ever driven from the
// single session thread (§5).
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = oldest, back = newest
	index    map[string]*list.Element // id -> its node in order
}

// New creates a Cache with the given capacity, or DefaultCapacity if
// capacity <= 0.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

// Seen reports whether id has already been recorded. Empty ids are never
// considered seen (spec: "only consulted for non-empty ids").
func (c *Cache) Seen(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[id]
	return ok
}

// Add records id, evicting the oldest entry first if at capacity. Returns
// true iff id was already present (i.e. this call recorded a duplicate).
func (c *Cache) Add(id string) bool {
	if id == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[id]; ok {
		return true
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(string))
		}
	}

	elem := c.order.PushBack(id)
	c.index[id] = elem
	return false
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
}

// Len returns the number of ids currently recorded.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
