// Package results holds the optional sinks of a ranking run: a redis cache of
// finished rankings, a postgres history of runs and a kafka completion feed.
package results

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/resilience"
)

const keyPrefix = "rank:"

// Key identifies a ranking by everything that determines its output.
type Key struct {
	Digest     string
	Iterations int
	Beta       float64
	K          int
}

// String returns the redis key for k.
func (k Key) String() string {
	raw := k.Digest + "|" + strconv.Itoa(k.Iterations) + "|" +
		strconv.FormatFloat(k.Beta, 'g', -1, 64) + "|" + strconv.Itoa(k.K)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Entry is what the cache stores for a key.
type Entry struct {
	Vertices int           `json:"vertices"`
	Edges    int           `json:"edges"`
	Top      []rank.Ranked `json:"top"`
}

// Backend is the key-value store behind a Cache. *redis.Client satisfies
// it; Get must return redis.ErrNotFound for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type CacheStats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Breaker string `json:"breaker"`
}

// Cache memoises rankings. Backend failures never fail a run: they count as
// misses and, once the breaker opens, the backend is skipped entirely.
type Cache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCache creates a Cache. m may be nil.
func NewCache(backend Backend, ttl time.Duration, m *metrics.Metrics) *Cache {
	cbCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		cbCfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &Cache{
		backend: backend,
		ttl:     ttl,
		breaker: resilience.NewCircuitBreaker("result-cache", cbCfg),
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// Get returns the cached entry for key.
func (c *Cache) Get(ctx context.Context, key Key) (*Entry, bool) {
	k := key.String()
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, k)
		if errors.Is(err, pkgredis.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil || data == nil {
		if err != nil {
			c.logger.Warn("cache get failed", "key", k, "error", err)
		}
		c.miss()
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", k, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	c.logger.Debug("cache hit", "key", k)
	return &entry, true
}

// Set stores entry under key.
func (c *Cache) Set(ctx context.Context, key Key, entry *Entry) error {
	k := key.String()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, k, data, c.ttl)
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %w", apperrors.ErrCacheUnavailable, k, err)
	}
	return nil
}

// GetOrCompute returns the cached entry for key or computes and stores it.
// Concurrent callers for the same key share one computation, which runs
// detached from any single caller's cancellation; a caller whose ctx ends
// first returns ctx.Err() and leaves the computation to the others. The
// boolean reports whether the entry came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func(ctx context.Context) (*Entry, error)) (*Entry, bool, error) {
	if entry, ok := c.Get(ctx, key); ok {
		return entry, true, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		entry, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if err := c.Set(shared, key, entry); err != nil {
			c.logger.Warn("cache set failed", "error", err)
		}
		return entry, nil
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Entry), false, nil
	}
}

// Invalidate removes every cached ranking.
func (c *Cache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.GetState().String(),
	}
}

func (c *Cache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
