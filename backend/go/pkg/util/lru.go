package util

import (
	"container/list"
	"errors"
	"sync"
	"time"
)

// CacheConfig 用于配置LRU缓存的行为。
type CacheConfig struct {
	// Capacity 是缓存的最大元素数量。如果为0，则不限制数量。
	Capacity int
	// MaxWeight 是缓存中所有元素的最大权重总和。如果为0，则不限制权重。
	MaxWeight int
	// TTL 是元素的存活时间。如果为0，则元素永不过期。
	TTL time.Duration
}

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Len       int
	Weight    int
}

type lruEntry[K comparable, V any] struct {
	key       K
	value     V
	weight    int
	expiresAt time.Time
}

// LRUCache 是一个支持泛型、可配置且线程安全的LRU缓存。
type LRUCache[K comparable, V any] struct {
	cfg    CacheConfig
	order  *list.List
	items  map[K]*list.Element
	weight int
	stats  CacheStats
	mu     sync.Mutex
	now    func() time.Time
}

// NewWithConfig 使用指定的配置创建一个LRU缓存实例。至少需要设置 Capacity 或 MaxWeight。
func NewWithConfig[K comparable, V any](cfg CacheConfig) (*LRUCache[K, V], error) {
	if cfg.Capacity <= 0 && cfg.MaxWeight <= 0 {
		return nil, errors.New("lru: Capacity or MaxWeight must be set")
	}
	return &LRUCache[K, V]{
		cfg:   cfg,
		order: list.New(),
		items: make(map[K]*list.Element),
		now:   time.Now,
	}, nil
}

// Get returns the cached value and marks it most recently used. Expired entries are dropped.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	e := el.Value.(*lruEntry[K, V])
	if c.cfg.TTL > 0 && c.now().After(e.expiresAt) {
		c.remove(el)
		c.stats.Misses++
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

// Put inserts or replaces a value. Pass weight 1 for count-based eviction.
func (c *LRUCache[K, V]) Put(key K, value V, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.cfg.TTL > 0 {
		expiresAt = c.now().Add(c.cfg.TTL)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*lruEntry[K, V])
		c.weight += weight - e.weight
		e.value, e.weight, e.expiresAt = value, weight, expiresAt
		c.order.MoveToFront(el)
	} else {
		c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value, weight: weight, expiresAt: expiresAt})
		c.weight += weight
	}

	// a single heavy entry may push out several older ones
	for c.overLimit() {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.remove(back)
		c.stats.Evictions++
	}
}

// Delete removes key if present.
func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Purge drops every entry but keeps the counters.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element)
	c.weight = 0
}

// Len 返回当前缓存中的条目数量。
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *LRUCache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Len = c.order.Len()
	s.Weight = c.weight
	return s
}

func (c *LRUCache[K, V]) overLimit() bool {
	if c.cfg.Capacity > 0 && c.order.Len() > c.cfg.Capacity {
		return true
	}
	return c.cfg.MaxWeight > 0 && c.weight > c.cfg.MaxWeight
}

func (c *LRUCache[K, V]) remove(el *list.Element) {
	c.order.Remove(el)
	e := el.Value.(*lruEntry[K, V])
	delete(c.items, e.key)
	c.weight -= e.weight
}
