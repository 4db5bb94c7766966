package results

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/redis"
)

// Sinks are the result sinks enabled by configuration. A nil field means the
// sink is disabled or its backend was unreachable at startup.
type Sinks struct {
	Cache     *Cache
	Store     *Store
	Publisher *Publisher

	redis    *pkgredis.Client
	pg       *postgres.Client
	producer *kafka.Producer
	kafkaCfg config.KafkaConfig
}

// OpenSinks connects the sinks switched on in cfg.Results. Unreachable
// backends are logged and left disabled; a run never fails because a sink
// is missing.
func OpenSinks(ctx context.Context, cfg *config.Config, m *metrics.Metrics) *Sinks {
	log := slog.Default().With("component", "result-sinks")
	s := &Sinks{kafkaCfg: cfg.Kafka}

	if cfg.Results.Cache {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, result cache disabled", "error", err)
		} else {
			s.redis = client
			s.Cache = NewCache(client, cfg.Redis.CacheTTL, m)
			log.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if cfg.Results.Store {
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			log.Warn("postgres unavailable, run history disabled", "error", err)
		} else {
			store := NewStore(client)
			if err := store.Migrate(ctx); err != nil {
				log.Warn("run history disabled", "error", err)
				client.Close()
			} else {
				s.pg = client
				s.Store = store
				log.Info("run history enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
			}
		}
	}

	if cfg.Results.Publish {
		s.producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RankComplete)
		s.Publisher = NewPublisher(s.producer)
		log.Info("run completion events enabled", "topic", cfg.Kafka.Topics.RankComplete)
	}
	return s
}

// RegisterHealth adds an optional readiness check per enabled sink.
func (s *Sinks) RegisterHealth(c *health.Checker) {
	if s.redis != nil {
		c.RegisterOptional("redis", health.Ping(s.redis.Ping))
	}
	if s.pg != nil {
		c.RegisterOptional("postgres", health.Ping(s.pg.Ping))
	}
	if s.producer != nil {
		brokers := s.kafkaCfg.Brokers
		c.RegisterOptional("kafka-producer", health.Ping(func(ctx context.Context) error {
			return kafka.Ping(ctx, brokers)
		}))
	}
}

// Close releases every open backend.
func (s *Sinks) Close() {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			slog.Warn("closing kafka producer", "error", err)
		}
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if s.pg != nil {
		s.pg.Close()
	}
}
