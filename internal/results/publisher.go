package results

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/kafka"
)

// RunCompleted is published after every successful run.
type RunCompleted struct {
	JobID      string        `json:"jobId,omitempty"`
	Digest     string        `json:"digest"`
	Source     string        `json:"source"`
	Iterations int           `json:"iterations"`
	Beta       float64       `json:"beta"`
	Vertices   int           `json:"vertices"`
	Edges      int           `json:"edges"`
	Cached     bool          `json:"cached"`
	Top        []rank.Ranked `json:"top"`
	DurationMS int64         `json:"durationMs"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// EventWriter is satisfied by *kafka.Producer.
type EventWriter interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher announces finished runs on the completion topic.
type Publisher struct {
	w EventWriter
}

func NewPublisher(w EventWriter) *Publisher {
	return &Publisher{w: w}
}

// Publish sends ev keyed by its input digest so runs of one input stay on one
// partition.
func (p *Publisher) Publish(ctx context.Context, ev RunCompleted) error {
	if ev.FinishedAt.IsZero() {
		ev.FinishedAt = time.Now().UTC()
	}
	if err := p.w.Publish(ctx, kafka.Event{Key: ev.Digest, Value: ev}); err != nil {
		return fmt.Errorf("publishing run completion: %w", err)
	}
	return nil
}
