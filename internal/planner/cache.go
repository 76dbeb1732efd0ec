package planner

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/errors"
)

// Cache stores finished plans keyed by query, schema fingerprint, and mode.
// A miss is (nil, nil); errors are reserved for backend trouble.
type Cache interface {
	Get(ctx context.Context, key string) (*QueryPlan, error)
	Set(ctx context.Context, key string, plan *QueryPlan) error
	Close() error
}

// NewCache builds a cache from config: "redis" when configured, otherwise
// in-process memory. A disabled cache returns nil.
func NewCache(cfg config.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	switch cfg.Type {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.CacheError("invalid redis URL", err)
		}
		return &redisCache{client: redis.NewClient(opts), ttl: ttl}, nil
	default:
		return newMemoryCache(ttl), nil
	}
}

type memoryEntry struct {
	plan      *QueryPlan
	expiresAt time.Time
}

// memoryCache is a TTL map with lazy expiry. Entries are checked on read;
// stale ones are dropped then, not by a background sweeper.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func newMemoryCache(ttl time.Duration) *memoryCache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (*QueryPlan, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Recheck under the write lock; a concurrent Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, nil
	}
	return entry.plan, nil
}

func (c *memoryCache) Set(_ context.Context, key string, plan *QueryPlan) error {
	c.mu.Lock()
	c.entries[key] = memoryEntry{plan: plan, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *memoryCache) Close() error { return nil }

// redisCache shares plans across planner instances as JSON with a server-side
// TTL.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const redisKeyPrefix = "sentinel:plan:"

func (c *redisCache) Get(ctx context.Context, key string) (*QueryPlan, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.CacheError("redis get failed", err)
	}
	var plan QueryPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		// A corrupt entry behaves like a miss.
		return nil, nil
	}
	return &plan, nil
}

func (c *redisCache) Set(ctx context.Context, key string, plan *QueryPlan) error {
	raw, err := json.Marshal(plan)
	if err != nil {
		return errors.CacheError("plan marshal failed", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, c.ttl).Err(); err != nil {
		return errors.CacheError("redis set failed", err)
	}
	return nil
}

func (c *redisCache) Close() error { return c.client.Close() }
