package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/adminkit/pkg/observability"
	"golang.org/x/sync/singleflight"
)

// Config controls the response cache
type Config struct {
	// TTL applies to both tiers
	TTL time.Duration
	// L1Size is the number of entries kept in process
	L1Size int
}

// DefaultConfig returns default cache settings
func DefaultConfig() *Config {
	return &Config{
		TTL:    60 * time.Second,
		L1Size: 1024,
	}
}

// Entry is one cached response.
type Entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ResponseCache stores rendered responses in an in-process LRU backed by
// Redis. A nil Redis client leaves the LRU as the only tier.
type ResponseCache struct {
	config  Config
	l1      *lru.LRU[string, *Entry]
	redis   *redis.Client
	group   singleflight.Group
	metrics *observability.Metrics
}

// New creates a response cache.
func New(config *Config, client *redis.Client, metrics *observability.Metrics) *ResponseCache {
	if config == nil {
		config = DefaultConfig()
	}
	size := config.L1Size
	if size < 1 {
		size = DefaultConfig().L1Size
	}

	return &ResponseCache{
		config:  *config,
		l1:      lru.NewLRU[string, *Entry](size, nil, config.TTL),
		redis:   client,
		metrics: metrics,
	}
}

func (c *ResponseCache) hit(tier string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(tier).Inc()
	}
}

func (c *ResponseCache) miss(tier string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(tier).Inc()
	}
}

// Get looks key up in the LRU, then in Redis. A Redis hit is copied into
// the LRU. Redis failures are reported as misses.
func (c *ResponseCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if e, ok := c.l1.Get(key); ok {
		c.hit("l1")
		return e, true
	}
	c.miss("l1")

	if c.redis == nil {
		return nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			observability.FromContext(ctx).WithError(err).Warn("response cache read failed")
		}
		c.miss("redis")
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// corrupt entry
		c.redis.Del(ctx, key)
		c.miss("redis")
		return nil, false
	}

	c.hit("redis")
	c.l1.Add(key, &e)
	return &e, true
}

// Set stores e in both tiers.
func (c *ResponseCache) Set(ctx context.Context, key string, e *Entry) error {
	c.l1.Add(key, e)
	if c.redis == nil {
		return nil
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.config.TTL).Err()
}

// Fill runs load once per key across concurrent callers and caches a 200
// result.
func (c *ResponseCache) Fill(ctx context.Context, key string, load func() *Entry) *Entry {
	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		e := load()
		if e.Status == http.StatusOK {
			if err := c.Set(ctx, key, e); err != nil {
				observability.FromContext(ctx).WithError(err).Warn("response cache write failed")
			}
		}
		return e, nil
	})
	return v.(*Entry)
}

// Invalidate drops every entry in scope from both tiers.
func (c *ResponseCache) Invalidate(ctx context.Context, scope string) error {
	prefix := KeyPrefix + scope + ":"
	for _, key := range c.l1.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.l1.Remove(key)
		}
	}

	if c.redis == nil {
		return nil
	}

	iter := c.redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan failed for %s: %w", prefix, err)
	}
	return nil
}

// InvalidateUsers drops cached user responses.
func (c *ResponseCache) InvalidateUsers(ctx context.Context) error {
	return c.Invalidate(ctx, ScopeUsers)
}

// InvalidateRoles drops cached role and resource responses.
func (c *ResponseCache) InvalidateRoles(ctx context.Context) error {
	return c.Invalidate(ctx, ScopeRoles)
}

// Len returns the number of entries held in process.
func (c *ResponseCache) Len() int {
	return c.l1.Len()
}
