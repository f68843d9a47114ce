// Package cache stores rendered search results in Redis, keyed by index
// generation and normalized keywords, and collapses concurrent misses for
// the same key into one evaluation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/quotex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/quotex/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/quotex/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "search:"

// Client is the subset of pkg/redis.Client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	client  Client
	ttl     time.Duration
	breaker *resilience.Breaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

type Option func(*QueryCache)

// WithMetrics records hits and misses on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithBreaker replaces the default breaker guarding Redis calls.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *QueryCache) { c.breaker = b }
}

func New(client Client, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		client:  client,
		ttl:     ttl,
		breaker: resilience.NewBreaker("redis-cache", 5, 30*time.Second),
		logger:  slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for plan under generation. Redis failures
// and undecodable entries count as misses.
func (c *QueryCache) Get(ctx context.Context, generation string, plan *parser.QueryPlan) (*executor.SearchResult, bool) {
	key := BuildKey(generation, plan)
	var data []byte
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.client.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "key", key, "generation", generation)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, generation string, plan *parser.QueryPlan, result *executor.SearchResult) {
	key := BuildKey(generation, plan)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes, stores and returns
// it. Concurrent callers with the same key share one compute call. The
// boolean reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	generation string,
	plan *parser.QueryPlan,
	computeFn func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, generation, plan); ok {
		return result, true, nil
	}
	key := BuildKey(generation, plan)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		result, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, generation, plan, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	// Shared results must not be mutated by one caller under another.
	shared := *val.(*executor.SearchResult)
	return &shared, false, nil
}

// Invalidate removes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	return c.flush(ctx, keyPrefix+"*")
}

// InvalidateGeneration removes the results cached for one generation.
func (c *QueryCache) InvalidateGeneration(ctx context.Context, generation string) (int64, error) {
	return c.flush(ctx, keyPrefix+generation+":*")
}

func (c *QueryCache) flush(ctx context.Context, pattern string) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache %s: %w", pattern, err)
	}
	c.logger.Info("cache invalidate", "pattern", pattern, "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey is search:<generation>:<hash of the keyword list>.
func BuildKey(generation string, plan *parser.QueryPlan) string {
	hash := sha256.Sum256([]byte(plan.Key()))
	return fmt.Sprintf("%s%s:%x", keyPrefix, generation, hash[:16])
}
