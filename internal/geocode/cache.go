package geocode

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryCache is a tiny in-process cache for suggestion lookups, used when
// no Redis address is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]memEntry
	ttl   time.Duration
}

type memEntry struct {
	v  []Suggestion
	ts time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{store: make(map[string]memEntry), ttl: ttl}
}

func (c *MemoryCache) Get(ctx context.Context, query string) ([]Suggestion, bool) {
	c.mu.RLock()
	e, ok := c.store[query]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, query)
		c.mu.Unlock()
		return nil, false
	}
	return e.v, true
}

func (c *MemoryCache) Set(ctx context.Context, query string, s []Suggestion) {
	c.mu.Lock()
	c.store[query] = memEntry{v: s, ts: time.Now()}
	c.mu.Unlock()
}

// RedisCache shares geocode lookups across server replicas.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, ttl: ttl}
}

func cacheKey(query string) string { return "geocode:" + query }

func (c *RedisCache) Get(ctx context.Context, query string) ([]Suggestion, bool) {
	b, err := c.client.Get(ctx, cacheKey(query)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []Suggestion
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *RedisCache) Set(ctx context.Context, query string, s []Suggestion) {
	b, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(query), b, c.ttl).Err()
}
