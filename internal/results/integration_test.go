//go:build integration

// Run with:
//
//	go test -v -tags=integration ./internal/results/...
package results_test

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/results"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/redis"
)

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "pagerank_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "pagerank"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *pkgredis.Client {
	t.Helper()
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{
		Addr:     envOrDefault("TEST_REDIS_ADDR", "localhost:6379"),
		DB:       envOrDefaultInt("TEST_REDIS_DB", 15),
		PoolSize: 2,
	})
	if err != nil {
		t.Skipf("skipping integration test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestStore_SaveAndQuery(t *testing.T) {
	ctx := context.Background()
	store := results.NewStore(skipIfNoPostgres(t))
	require.NoError(t, store.Migrate(ctx))

	digest := "it-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	run := &results.Run{
		Digest:     digest,
		Source:     "graphs/web.txt",
		Iterations: 20,
		Beta:       0.8,
		Vertices:   3,
		Edges:      3,
		Top:        []rank.Ranked{{Vertex: 1, Rank: 0.5}, {Vertex: 2, Rank: 0.3}},
		Duration:   1200 * time.Millisecond,
	}
	require.NoError(t, store.SaveRun(ctx, run))
	assert.NotZero(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	latest, err := store.LatestRun(ctx, digest, 20)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, run.Top, latest.Top)
	assert.Equal(t, run.Duration, latest.Duration)

	_, err = store.LatestRun(ctx, digest, 21)
	assert.ErrorIs(t, err, results.ErrRunNotFound)

	runs, err := store.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, run.ID, runs[0].ID)
}

func TestCache_RoundTripThroughRedis(t *testing.T) {
	ctx := context.Background()
	cache := results.NewCache(skipIfNoRedis(t), time.Minute, nil)
	t.Cleanup(func() { cache.Invalidate(context.Background()) })

	key := results.Key{Digest: "it-digest", Iterations: 3, Beta: 0.8, K: 2}
	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	entry := &results.Entry{Vertices: 2, Edges: 1, Top: []rank.Ranked{{Vertex: 2, Rank: 0.7}}}
	require.NoError(t, cache.Set(ctx, key, entry))

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, entry, got)

	deleted, err := cache.Invalidate(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(1))
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
