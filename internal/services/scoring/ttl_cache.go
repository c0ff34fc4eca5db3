package scoring

import (
	"sync"
	"time"
)

type scoreResult struct {
	Score     float64
	Rationale string
}

type entry struct {
	v   scoreResult
	exp time.Time
}

// TTLCache is a small in-process cache for recent score results.
type TTLCache struct {
	mu sync.RWMutex
	m  map[string]entry
}

func NewTTLCache() *TTLCache {
	return &TTLCache{m: make(map[string]entry)}
}

func (c *TTLCache) Get(key string) (scoreResult, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return scoreResult{}, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return scoreResult{}, false
	}
	return e.v, true
}

func (c *TTLCache) Set(key string, v scoreResult, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{v: v, exp: exp}
	c.mu.Unlock()
}
