// Package logger configures the process-wide slog logger shared by the
// pagerank CLI and the rank worker, and carries a job ID through contexts so
// every line a run logs can be tied back to it.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type jobIDKey struct{}

// Setup installs a stderr logger as the default. Stdout is reserved for the
// CLI's ranking output.
func Setup(level, format string) *slog.Logger {
	return SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	l := New(w, level, format)
	slog.SetDefault(l)
	return l
}

// New builds a logger without installing it. Format "json" selects JSON
// lines; anything else is key=value text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel accepts slog level names in any case, optionally offset as in
// "debug-2". Anything else is info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// WithJobID tags ctx with a rank job's ID, or an HTTP request's ID when the
// request names no job. An empty id leaves ctx as it is.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey{}, id)
}

// FromContext returns the default logger with job_id set when ctx carries one.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id, ok := ctx.Value(jobIDKey{}).(string); ok {
		l = l.With("job_id", id)
	}
	return l
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
