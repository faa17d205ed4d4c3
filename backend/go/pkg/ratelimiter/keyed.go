package ratelimiter

import (
	"PharmaChat/backend/go/pkg/util"
	"sync"
	"time"
)

// PerKeyTokenBucket keeps one TokenBucket per key. Idle keys are evicted in
// LRU order once maxKeys is reached, so memory stays bounded.
type PerKeyTokenBucket struct {
	rate     float64
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	buckets *util.LRUCache[string, *TokenBucket]
}

// NewPerKeyTokenBucket creates a keyed limiter tracking at most maxKeys keys.
func NewPerKeyTokenBucket(rate float64, capacity, maxKeys int) (*PerKeyTokenBucket, error) {
	cache, err := util.NewWithConfig[string, *TokenBucket](util.CacheConfig{Capacity: maxKeys})
	if err != nil {
		return nil, err
	}
	return &PerKeyTokenBucket{
		rate:     rate,
		capacity: capacity,
		now:      time.Now,
		buckets:  cache,
	}, nil
}

func (p *PerKeyTokenBucket) Allow(key string) bool {
	p.mu.Lock()
	tb, ok := p.buckets.Get(key)
	if !ok {
		tb = newTokenBucket(p.rate, p.capacity, p.now)
		p.buckets.Put(key, tb, 1)
	}
	p.mu.Unlock()
	return tb.Allow()
}

var _ KeyedLimiter = (*PerKeyTokenBucket)(nil)
