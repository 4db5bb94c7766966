// Package pipeline runs a complete ranking: it opens a source, loads and
// indexes the edge list, iterates the rank engine, selects the top vertices
// and hands the result to whichever sinks are configured.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/results"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/tracing"
)

// Phase is a step of a run. Every successful run enters all four phases
// strictly in order, including a cache hit, whose index and iterate work was
// done by an earlier run.
type Phase int

const (
	PhaseLoaded Phase = iota + 1
	PhaseIndexed
	PhaseIterating
	PhaseSelected
)

func (p Phase) String() string {
	switch p {
	case PhaseLoaded:
		return "loaded"
	case PhaseIndexed:
		return "indexed"
	case PhaseIterating:
		return "iterating"
	case PhaseSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// Opener opens a source for reading. *source.Opener satisfies it.
type Opener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// ResultCache is satisfied by *results.Cache.
type ResultCache interface {
	GetOrCompute(ctx context.Context, key results.Key, compute func(ctx context.Context) (*results.Entry, error)) (*results.Entry, bool, error)
}

// RunRecorder is satisfied by *results.Store.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *results.Run) error
}

// RunNotifier is satisfied by *results.Publisher.
type RunNotifier interface {
	Publish(ctx context.Context, ev results.RunCompleted) error
}

type Config struct {
	// TopK is the default number of vertices a run reports.
	TopK int
	// SinkTimeout bounds each store or publish attempt. Zero means no bound.
	SinkTimeout time.Duration
	// SinkRetry controls how store and publish are retried.
	SinkRetry resilience.RetryConfig
}

// Request describes one run. A zero TopK uses Config.TopK.
type Request struct {
	JobID      string
	Source     string
	Iterations int
	TopK       int
}

// Result is the outcome of a run.
type Result struct {
	JobID      string
	Source     string
	Digest     string
	Vertices   int
	Edges      int
	Iterations int
	Beta       float64
	Top        []rank.Ranked
	Duration   time.Duration
	Cached     bool
	Trace      *tracing.Span
}

// Runner executes ranking runs. It is safe for concurrent use.
type Runner struct {
	cfg      Config
	engine   *rank.Engine
	opener   Opener
	cache    ResultCache
	store    RunRecorder
	notifier RunNotifier
	metrics  *metrics.Metrics
	onPhase  func(Phase)
	logger   *slog.Logger
}

type Option func(*Runner)

func WithCache(c ResultCache) Option { return func(r *Runner) { r.cache = c } }

func WithStore(s RunRecorder) Option { return func(r *Runner) { r.store = s } }

func WithNotifier(n RunNotifier) Option { return func(r *Runner) { r.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithSinks installs whichever of the opened sinks are present.
func WithSinks(s *results.Sinks) Option {
	return func(r *Runner) {
		if s == nil {
			return
		}
		if s.Cache != nil {
			r.cache = s.Cache
		}
		if s.Store != nil {
			r.store = s.Store
		}
		if s.Publisher != nil {
			r.notifier = s.Publisher
		}
	}
}

// WithPhaseHook registers fn to be called as each phase is entered.
func WithPhaseHook(fn func(Phase)) Option { return func(r *Runner) { r.onPhase = fn } }

func New(cfg Config, engine *rank.Engine, opener Opener, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		engine: engine,
		opener: opener,
		logger: slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ranks source with the configured top-K.
func (r *Runner) Run(ctx context.Context, source string, iterations int) (*Result, error) {
	return r.Execute(ctx, Request{Source: source, Iterations: iterations})
}

// Execute performs one run. Sink failures are logged and never fail the run.
func (r *Runner) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.TopK <= 0 {
		req.TopK = r.cfg.TopK
	}
	if req.Iterations < 0 {
		req.Iterations = 0
	}
	log := r.logger.With("source", req.Source)
	if req.JobID != "" {
		ctx = logger.WithJobID(ctx, req.JobID)
		log = log.With("job_id", req.JobID)
	}

	ctx, root := tracing.StartSpan(ctx, "pagerank", req.JobID)
	root.SetAttr("source", req.Source)
	root.SetAttr("iterations", req.Iterations)
	defer root.End()

	res, err := r.execute(ctx, req, log)
	if err != nil {
		r.countRun(metrics.StatusError)
		log.Error("run failed", "error", err)
		return nil, err
	}
	res.Duration = time.Since(start)
	res.Trace = root
	if res.Cached {
		r.countRun(metrics.StatusCached)
	} else {
		r.countRun(metrics.StatusOK)
	}

	if err := r.deliver(ctx, res); err != nil {
		log.Warn("result sink failed", "error", err)
	}
	log.Info("run finished",
		"digest", res.Digest,
		"vertices", res.Vertices,
		"edges", res.Edges,
		"cached", res.Cached,
		"duration", res.Duration,
	)
	return res, nil
}

func (r *Runner) execute(ctx context.Context, req Request, log *slog.Logger) (*Result, error) {
	set, digest, err := r.load(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	phases := &phaseTracker{runner: r, log: log}
	phases.enter(PhaseLoaded)

	key := results.Key{Digest: digest, Iterations: req.Iterations, Beta: r.engine.Beta(), K: req.TopK}
	compute := func(ctx context.Context) (*results.Entry, error) {
		return r.rank(ctx, set, req, phases)
	}

	var (
		entry  *results.Entry
		cached bool
	)
	if r.cache != nil {
		entry, cached, err = r.cache.GetOrCompute(ctx, key, compute)
	} else {
		entry, err = compute(ctx)
	}
	// A compute shared with another caller may outlive this run.
	phases.close()
	if err != nil {
		return nil, err
	}
	if cached {
		log.Debug("ranking served from cache", "digest", digest)
	}
	phases.finish(PhaseSelected)

	return &Result{
		JobID:      req.JobID,
		Source:     req.Source,
		Digest:     digest,
		Vertices:   entry.Vertices,
		Edges:      entry.Edges,
		Iterations: req.Iterations,
		Beta:       r.engine.Beta(),
		Top:        entry.Top,
		Cached:     cached,
	}, nil
}

// phaseTracker enters one run's phases in order, filling in any the run
// skipped.
type phaseTracker struct {
	runner *Runner
	log    *slog.Logger

	mu     sync.Mutex
	last   Phase
	closed bool
}

func (t *phaseTracker) enter(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.advance(p)
}

func (t *phaseTracker) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// finish enters every phase up to p that was not entered yet, even after
// close.
func (t *phaseTracker) finish(p Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.advance(p)
}

func (t *phaseTracker) advance(p Phase) {
	for t.last < p {
		t.last++
		t.runner.enter(t.last, t.log)
	}
}

// load reads the edge set and the sha256 digest of the decoded input.
func (r *Runner) load(ctx context.Context, source string) (*graph.EdgeSet, string, error) {
	defer r.timePhase("load", time.Now())
	_, span := tracing.StartChildSpan(ctx, "load")
	defer span.End()

	rc, err := r.opener.Open(ctx, source)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	h := sha256.New()
	set, err := graph.LoadEdges(io.TeeReader(rc, h))
	if err != nil {
		return nil, "", fmt.Errorf("loading %s: %w", source, err)
	}
	span.SetAttr("edges", set.Len())
	return set, hex.EncodeToString(h.Sum(nil)), nil
}

// rank runs the index, iterate and select phases on a loaded edge set.
func (r *Runner) rank(ctx context.Context, set *graph.EdgeSet, req Request, phases *phaseTracker) (*results.Entry, error) {
	log := phases.log
	indexStart := time.Now()
	_, span := tracing.StartChildSpan(ctx, "index")
	idx, err := graph.NewIndex(set)
	if err != nil {
		span.End()
		return nil, err
	}
	span.SetAttr("vertices", idx.Len())
	span.SetAttr("dangling", idx.DanglingCount())
	span.End()
	r.timePhase("index", indexStart)
	if r.metrics != nil {
		r.metrics.GraphVertices.Set(float64(idx.Len()))
		r.metrics.GraphEdges.Set(float64(idx.EdgeCount()))
		r.metrics.DanglingVertices.Set(float64(idx.DanglingCount()))
	}
	phases.enter(PhaseIndexed)

	iterStart := time.Now()
	iterCtx, span := tracing.StartChildSpan(ctx, "iterate")
	phases.enter(PhaseIterating)
	state, err := r.engine.Run(iterCtx, idx, req.Iterations, r.observer(log))
	if err != nil {
		span.End()
		return nil, err
	}
	span.SetAttr("iterations", state.Iteration())
	span.SetAttr("workers", r.engine.Workers())
	span.End()
	r.timePhase("iterate", iterStart)

	selectStart := time.Now()
	_, span = tracing.StartChildSpan(ctx, "select")
	top := rank.TopK(state, req.TopK)
	span.End()
	r.timePhase("select", selectStart)
	phases.enter(PhaseSelected)

	return &results.Entry{Vertices: idx.Len(), Edges: idx.EdgeCount(), Top: top}, nil
}

func (r *Runner) observer(log *slog.Logger) rank.Observer {
	last := time.Now()
	return func(s *rank.State) {
		now := time.Now()
		mass := s.Sum()
		if r.metrics != nil {
			r.metrics.RankMass.Set(mass)
			if s.Iteration() > 0 {
				r.metrics.IterationsTotal.Inc()
				r.metrics.IterationDuration.Observe(now.Sub(last).Seconds())
			}
		}
		last = now
		log.Debug("rank state", "iteration", s.Iteration(), "mass", mass)
	}
}

// deliver stores and publishes res concurrently, each under retry and
// timeout.
func (r *Runner) deliver(ctx context.Context, res *Result) error {
	if r.store == nil && r.notifier == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	if r.store != nil {
		run := &results.Run{
			Digest:     res.Digest,
			Source:     res.Source,
			Iterations: res.Iterations,
			Beta:       res.Beta,
			Vertices:   res.Vertices,
			Edges:      res.Edges,
			Top:        res.Top,
			Duration:   res.Duration,
		}
		g.Go(func() error {
			return r.withSinkPolicy(gctx, "store-run", func(ctx context.Context) error {
				return r.store.SaveRun(ctx, run)
			})
		})
	}
	if r.notifier != nil {
		ev := results.RunCompleted{
			JobID:      res.JobID,
			Digest:     res.Digest,
			Source:     res.Source,
			Iterations: res.Iterations,
			Beta:       res.Beta,
			Vertices:   res.Vertices,
			Edges:      res.Edges,
			Cached:     res.Cached,
			Top:        res.Top,
			DurationMS: res.Duration.Milliseconds(),
		}
		g.Go(func() error {
			return r.withSinkPolicy(gctx, "publish-run", func(ctx context.Context) error {
				return r.notifier.Publish(ctx, ev)
			})
		})
	}
	return g.Wait()
}

func (r *Runner) withSinkPolicy(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	return resilience.Retry(ctx, name, r.cfg.SinkRetry, func() error {
		return resilience.WithTimeout(ctx, r.cfg.SinkTimeout, name, fn)
	})
}

func (r *Runner) enter(p Phase, log *slog.Logger) {
	log.Debug("phase", "phase", p.String())
	if r.onPhase != nil {
		r.onPhase(p)
	}
}

func (r *Runner) timePhase(phase string, start time.Time) {
	if r.metrics != nil {
		r.metrics.PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	}
}

func (r *Runner) countRun(status string) {
	if r.metrics != nil {
		r.metrics.RunsTotal.WithLabelValues(status).Inc()
	}
}
