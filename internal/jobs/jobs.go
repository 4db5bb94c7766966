// Package jobs turns rank-job messages from Kafka into pipeline runs for the
// rank worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
)

// Job outcome labels.
const (
	StatusDone     = "done"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
	StatusRetry    = "retry"
)

// MaxIterations caps what a single job may request.
const MaxIterations = 10000

// JobRequest is the JSON body of a rank-jobs message.
type JobRequest struct {
	ID         string `json:"id"`
	Source     string `json:"source"`
	Iterations int    `json:"iterations"`
	TopK       int    `json:"topK,omitempty"`
}

// Validate rejects requests that can never succeed.
func (j JobRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(j.Source) == "" {
		problems = append(problems, "source is required")
	}
	if j.Iterations < 0 || j.Iterations > MaxIterations {
		problems = append(problems, fmt.Sprintf("iterations must be in [0, %d], got %d", MaxIterations, j.Iterations))
	}
	if j.TopK < 0 {
		problems = append(problems, fmt.Sprintf("topK must not be negative, got %d", j.TopK))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Executor is satisfied by *pipeline.Runner.
type Executor interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// HandleJob returns a MessageHandler that runs each job through exec.
// Malformed or invalid jobs and jobs whose input is bad are logged and
// committed. Only I/O failures, which may be transient, and cancellation are
// returned: the consumer retries the former and dead-letters them when the
// retries run out, and leaves a cancelled job uncommitted. m may be nil.
func HandleJob(exec Executor, m *metrics.Metrics) kafka.MessageHandler {
	base := slog.Default().With("component", "rank-jobs")
	count := func(status string) {
		if m != nil {
			m.JobsTotal.WithLabelValues(status).Inc()
		}
	}
	return func(ctx context.Context, key []byte, value []byte) error {
		job, err := kafka.DecodeJSON[JobRequest](value)
		if err != nil {
			base.Error("failed to decode rank job", "error", err, "key", string(key))
			count(StatusRejected)
			return nil
		}
		if job.ID == "" {
			job.ID = string(key)
		}
		if err := job.Validate(); err != nil {
			base.Error("rejecting rank job", "job_id", job.ID, "error", err)
			count(StatusRejected)
			return nil
		}

		ctx = logger.WithJobID(ctx, job.ID)
		log := logger.FromContext(ctx).With("component", "rank-jobs")
		log.Info("rank job started", "source", job.Source, "iterations", job.Iterations)

		res, err := exec.Execute(ctx, pipeline.Request{
			JobID:      job.ID,
			Source:     job.Source,
			Iterations: job.Iterations,
			TopK:       job.TopK,
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrIO) || errors.Is(err, context.Canceled) {
				count(StatusRetry)
				return fmt.Errorf("rank job %s: %w", job.ID, err)
			}
			log.Error("rank job failed", "error", err, "exit_code", apperrors.ExitCode(err))
			count(StatusFailed)
			return nil
		}

		count(StatusDone)
		log.Info("rank job finished",
			"vertices", res.Vertices,
			"edges", res.Edges,
			"cached", res.Cached,
			"duration", res.Duration,
		)
		return nil
	}
}
