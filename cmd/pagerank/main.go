package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/results"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/source"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
)

const usageLine = "Usage: pagerank <file> <iterations>"

type options struct {
	configPath string
	top        int
	beta       float64
	workers    int
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	start := time.Now()
	cmd := newRootCmd(start)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return apperrors.ExitOK
	}
	if errors.Is(err, apperrors.ErrUsage) {
		fmt.Fprintln(stderr, "Missing one or more required arguments")
		fmt.Fprintln(stderr, usageLine)
	} else {
		fmt.Fprintln(stderr, "pagerank:", err)
	}
	return apperrors.ExitCode(err)
}

func newRootCmd(start time.Time) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "pagerank <file> <iterations>",
		Short: "Rank the vertices of a directed graph",
		Long: `Reads a directed graph as an edge list, one "source destination" pair of
non-negative integers per line, runs a fixed number of damped PageRank
iterations and prints the highest-ranked vertices as "<vertex>:<TAB><rank>".

<file> may be a local path, optionally .gz, .zst or .lz4 compressed, or an
s3://bucket/key object when source.s3.endpoint is configured.`,
		Args:          parseArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			iterations, _ := strconv.Atoi(args[1])
			return run(cmd, opts, args[0], iterations, start)
		},
	}
	// Flags must precede the positional arguments so a negative iteration
	// count is not read as a shorthand flag.
	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().IntVar(&opts.top, "top", 0, "number of vertices to print (default from config, 10)")
	cmd.Flags().Float64Var(&opts.beta, "beta", 0, "damping factor in (0, 1] (default from config, 0.8)")
	cmd.Flags().IntVar(&opts.workers, "workers", -1, "shards per iteration, 0 for one per CPU (default from config)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperrors.Usagef("%v", err)
	})
	return cmd
}

func parseArgs(_ *cobra.Command, args []string) error {
	if len(args) != 2 {
		return apperrors.Usagef("expected 2 arguments, got %d", len(args))
	}
	if _, err := strconv.Atoi(args[1]); err != nil {
		return apperrors.Usagef("iterations must be an integer, got %q", args[1])
	}
	return nil
}

func run(cmd *cobra.Command, opts *options, file string, iterations int, start time.Time) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("pagerank")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		srv, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			log.Warn("ranking without a metrics endpoint", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := srv.Shutdown(sctx); err != nil {
					log.Warn("metrics server shutdown", "error", err)
				}
			}()
		}
	}

	engine, err := rank.NewEngine(rank.Config{Beta: cfg.Rank.Beta, Workers: cfg.Rank.Workers})
	if err != nil {
		return err
	}
	opener, err := source.NewOpener(cfg.Source)
	if err != nil {
		return apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitConfig, err.Error())
	}
	sinks := results.OpenSinks(ctx, cfg, m)
	defer sinks.Close()

	runner := pipeline.New(pipeline.Config{
		TopK:        cfg.Rank.TopK,
		SinkTimeout: cfg.Results.Timeout,
	}, engine, opener, pipeline.WithSinks(sinks), pipeline.WithMetrics(m))

	res, err := runner.Run(ctx, file, iterations)
	if err != nil {
		return err
	}
	res.Trace.Log(ctx, log, slog.LevelDebug)

	out := cmd.OutOrStdout()
	if err := pipeline.WriteTop(out, res.Top); err != nil {
		return apperrors.IO("writing ranking", err)
	}
	if err := pipeline.WriteElapsed(out, time.Since(start)); err != nil {
		return apperrors.IO("writing ranking", err)
	}
	return nil
}

// loadConfig reads the config file and applies command-line overrides, which
// win over both the file and the environment.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidConfig) {
			return nil, err
		}
		return nil, apperrors.New(apperrors.ErrInvalidConfig, apperrors.ExitConfig, err.Error())
	}
	flags := cmd.Flags()
	if flags.Changed("top") {
		cfg.Rank.TopK = opts.top
	}
	if flags.Changed("beta") {
		cfg.Rank.Beta = opts.beta
	}
	if flags.Changed("workers") {
		cfg.Rank.Workers = opts.workers
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
