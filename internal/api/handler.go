// Package api serves the rank worker's HTTP endpoints: synchronous ranking,
// run history and result-cache control.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/jobs"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/results"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/middleware"
)

const (
	defaultRunsLimit = 20
	maxBodyBytes     = 1 << 16
)

// RunLister is satisfied by *results.Store.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]results.Run, error)
}

// CacheControl is satisfied by *results.Cache.
type CacheControl interface {
	Stats() results.CacheStats
	Invalidate(ctx context.Context) (int64, error)
}

type Handler struct {
	executor jobs.Executor
	runs     RunLister
	cache    CacheControl
	logger   *slog.Logger
}

type Option func(*Handler)

func WithRuns(r RunLister) Option { return func(h *Handler) { h.runs = r } }

func WithCache(c CacheControl) Option { return func(h *Handler) { h.cache = c } }

// WithSinks wires whichever of s's store and cache are enabled.
func WithSinks(s *results.Sinks) Option {
	return func(h *Handler) {
		if s == nil {
			return
		}
		if s.Store != nil {
			h.runs = s.Store
		}
		if s.Cache != nil {
			h.cache = s.Cache
		}
	}
}

func New(exec jobs.Executor, opts ...Option) *Handler {
	h := &Handler{
		executor: exec,
		logger:   slog.Default().With("component", "rank-api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/rank", h.Rank)
	mux.HandleFunc("GET /api/v1/runs", h.Runs)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// RankResponse is the body returned by Rank.
type RankResponse struct {
	JobID      string        `json:"jobId"`
	Source     string        `json:"source"`
	Digest     string        `json:"digest"`
	Iterations int           `json:"iterations"`
	Beta       float64       `json:"beta"`
	Vertices   int           `json:"vertices"`
	Edges      int           `json:"edges"`
	Cached     bool          `json:"cached"`
	Top        []rank.Ranked `json:"top"`
	DurationMS int64         `json:"durationMs"`
}

// Rank runs one job synchronously and returns its top vertices.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var job jobs.JobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&job); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := job.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if job.ID == "" {
		job.ID = middleware.GetRequestID(ctx)
	}

	res, err := h.executor.Execute(ctx, pipeline.Request{
		JobID:      job.ID,
		Source:     job.Source,
		Iterations: job.Iterations,
		TopK:       job.TopK,
	})
	if err != nil {
		status, message := publicError(err)
		if status >= http.StatusInternalServerError {
			log.Error("rank request failed", "source", job.Source, "error", err)
		} else {
			log.Warn("rank request rejected", "source", job.Source, "error", err)
		}
		h.writeError(w, status, message)
		return
	}

	h.writeJSON(w, http.StatusOK, RankResponse{
		JobID:      res.JobID,
		Source:     res.Source,
		Digest:     res.Digest,
		Iterations: res.Iterations,
		Beta:       res.Beta,
		Vertices:   res.Vertices,
		Edges:      res.Edges,
		Cached:     res.Cached,
		Top:        res.Top,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// Runs lists recent runs, newest first.
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	limit := defaultRunsLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	runs, err := h.runs.ListRuns(ctx, limit)
	if err != nil {
		h.logger.Error("listing runs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	if runs == nil {
		runs = []results.Run{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats()
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  stats.Breaker,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// publicError maps a run failure to a status and a message that names no
// path and quotes no input; the full error only goes to the log.
func publicError(err error) (int, string) {
	var perr *graph.ParseError
	switch {
	case errors.As(err, &perr):
		return http.StatusUnprocessableEntity, fmt.Sprintf("malformed edge list: line %d: %s", perr.Line, perr.Reason)
	case errors.Is(err, apperrors.ErrEmptyGraph):
		return http.StatusUnprocessableEntity, "edge list is empty"
	case errors.Is(err, apperrors.ErrSourceDenied):
		return http.StatusForbidden, "source is not allowed"
	case errors.Is(err, apperrors.ErrIO):
		return http.StatusBadGateway, "source could not be read"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "ranking timed out"
	default:
		return http.StatusInternalServerError, "ranking failed"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
