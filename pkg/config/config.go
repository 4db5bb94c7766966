// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Rank, Source, Results, Postgres, Kafka, Redis, Server, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Rank     RankConfig     `yaml:"rank"`
	Source   SourceConfig   `yaml:"source"`
	Results  ResultsConfig  `yaml:"results"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RankConfig controls the propagation engine. Workers of 0 means one worker
// per available CPU.
type RankConfig struct {
	Beta    float64 `yaml:"beta"`
	TopK    int     `yaml:"topK"`
	Workers int     `yaml:"workers"`
}

// SourceConfig describes where edge lists may be read from besides the local
// filesystem.
type SourceConfig struct {
	S3 S3Config `yaml:"s3"`
	// LocalRoot confines local paths to one directory: sources must be
	// relative and may not leave it. Empty leaves the CLI unrestricted and
	// turns local sources off in the rank worker.
	LocalRoot string `yaml:"localRoot"`
}

// S3Config holds the endpoint and credentials of an S3-compatible object
// store. An empty Endpoint disables s3:// sources.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
}

// ResultsConfig toggles the optional result sinks.
type ResultsConfig struct {
	Cache   bool          `yaml:"cache"`
	Store   bool          `yaml:"store"`
	Publish bool          `yaml:"publish"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig holds HTTP server settings for the rank worker.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RankJobs     string `yaml:"rankJobs"`
	RankComplete string `yaml:"rankComplete"`

	// RankJobsDeadLetter receives jobs that kept failing. Empty disables it.
	RankJobsDeadLetter string `yaml:"rankJobsDeadLetter"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config suitable for running the CLI against a local file
// with every external sink disabled.
func Default() *Config {
	return &Config{
		Rank: RankConfig{
			Beta: 0.80,
			TopK: 10,
		},
		Source: SourceConfig{
			S3: S3Config{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Results: ResultsConfig{
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "pagerank",
			User:            "pagerank",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "pagerank-workers",
			Topics: KafkaTopics{
				RankJobs:           "rank-jobs",
				RankComplete:       "rank.complete",
				RankJobsDeadLetter: "rank-jobs.dlq",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate reports the first configuration value outside its allowed range.
func (c *Config) Validate() error {
	switch {
	case c.Rank.Beta <= 0 || c.Rank.Beta > 1:
		return fmt.Errorf("%w: rank.beta must be within (0, 1], got %v", apperrors.ErrInvalidConfig, c.Rank.Beta)
	case c.Rank.TopK <= 0:
		return fmt.Errorf("%w: rank.topK must be positive, got %d", apperrors.ErrInvalidConfig, c.Rank.TopK)
	case c.Rank.Workers < 0:
		return fmt.Errorf("%w: rank.workers must not be negative, got %d", apperrors.ErrInvalidConfig, c.Rank.Workers)
	case c.Results.Timeout < 0:
		return fmt.Errorf("%w: results.timeout must not be negative", apperrors.ErrInvalidConfig)
	}
	return nil
}

// applyEnvOverrides reads PR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PR_RANK_BETA"); v != "" {
		if beta, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Rank.Beta = beta
		}
	}
	if v := os.Getenv("PR_RANK_TOPK"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Rank.TopK = k
		}
	}
	if v := os.Getenv("PR_RANK_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rank.Workers = n
		}
	}
	if v := os.Getenv("PR_SOURCE_LOCAL_ROOT"); v != "" {
		cfg.Source.LocalRoot = v
	}
	if v := os.Getenv("PR_S3_ENDPOINT"); v != "" {
		cfg.Source.S3.Endpoint = v
	}
	if v := os.Getenv("PR_S3_ACCESS_KEY"); v != "" {
		cfg.Source.S3.AccessKey = v
	}
	if v := os.Getenv("PR_S3_SECRET_KEY"); v != "" {
		cfg.Source.S3.SecretKey = v
	}
	if v := os.Getenv("PR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("PR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
