package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/api"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/results"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting rank worker",
		"port", cfg.Server.Port,
		"beta", cfg.Rank.Beta,
		"workers", cfg.Rank.Workers,
		"topic", cfg.Kafka.Topics.RankJobs,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	engine, err := rank.NewEngine(rank.Config{Beta: cfg.Rank.Beta, Workers: cfg.Rank.Workers})
	if err != nil {
		slog.Error("failed to create rank engine", "error", err)
		os.Exit(1)
	}
	var sourceOpts []source.Option
	if cfg.Source.LocalRoot == "" {
		sourceOpts = append(sourceOpts, source.RemoteOnly())
		slog.Info("local sources disabled, set source.localRoot to enable them")
	} else {
		slog.Info("local sources confined", "root", cfg.Source.LocalRoot)
	}
	opener, err := source.NewOpener(cfg.Source, sourceOpts...)
	if err != nil {
		slog.Error("failed to create source opener", "error", err)
		os.Exit(1)
	}
	if cfg.Source.S3.Endpoint != "" {
		slog.Info("object storage sources enabled", "endpoint", cfg.Source.S3.Endpoint)
	}

	sinks := results.OpenSinks(ctx, cfg, m)
	defer sinks.Close()

	runner := pipeline.New(pipeline.Config{
		TopK:        cfg.Rank.TopK,
		SinkTimeout: cfg.Results.Timeout,
	}, engine, opener, pipeline.WithSinks(sinks), pipeline.WithMetrics(m))

	var consumerOpts []kafka.ConsumerOption
	if topic := cfg.Kafka.Topics.RankJobsDeadLetter; topic != "" {
		dlq := kafka.NewProducer(cfg.Kafka, topic)
		defer dlq.Close()
		consumerOpts = append(consumerOpts, kafka.WithDeadLetter(dlq))
		slog.Info("failed rank jobs are dead-lettered", "topic", topic)
	}
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RankJobs, jobs.HandleJob(runner, m), consumerOpts...)
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("rank job consumer error", "error", err)
		}
	}()
	slog.Info("rank job consumer started", "group", cfg.Kafka.ConsumerGroup)

	checker := health.NewChecker()
	brokers := cfg.Kafka.Brokers
	checker.Register("kafka", health.Ping(func(ctx context.Context) error {
		return kafka.Ping(ctx, brokers)
	}))
	sinks.RegisterHealth(checker)

	h := api.New(runner, api.WithSinks(sinks))

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	mux.Handle("GET /metrics", metrics.Handler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("rank worker listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("rank worker stopped")
}
