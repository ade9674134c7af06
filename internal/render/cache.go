package render

import (
	"fmt"
	"sync"

	"github.com/nextstrain/forecasts-ncov/internal/observability"
)

// CacheKey identifies one rendered chart. Snapshot ids change on every new
// payload, so stale entries age out without explicit invalidation.
func CacheKey(snapshotID string, g Graph, location string, format string) string {
	return fmt.Sprintf("%s|%s|%s|%s", snapshotID, g, location, format)
}

// Cache is a thread-safe LRU of rendered chart bytes.
type Cache struct {
	maxEntries int
	metrics    *observability.Metrics

	mu      sync.Mutex
	entries map[string]*entry
	head    *entry // most recently used
	tail    *entry // least recently used
}

type entry struct {
	key   string
	value []byte
	prev  *entry
	next  *entry
}

// NewCache creates a cache holding at most maxEntries charts.
func NewCache(maxEntries int, metrics *observability.Metrics) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		metrics:    metrics,
		entries:    make(map[string]*entry),
	}
}

// GetOrRender returns the cached bytes for key, rendering and storing them on
// a miss. Render errors are not cached.
func (c *Cache) GetOrRender(key string, render func() ([]byte, error)) ([]byte, error) {
	if b, ok := c.get(key); ok {
		c.metrics.ChartCache.WithLabelValues("hit").Inc()
		return b, nil
	}
	c.metrics.ChartCache.WithLabelValues("miss").Inc()

	b, err := render()
	if err != nil {
		return nil, err
	}
	c.put(key, b)
	return b, nil
}

// Len reports the number of cached charts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *Cache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *Cache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
