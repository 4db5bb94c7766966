package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

// DefaultBeta is the damping factor used when Config.Beta is left at zero.
const DefaultBeta = 0.80

// ErrForeignState is returned when a State is stepped against an index other
// than the one it was built from.
var ErrForeignState = errors.New("rank: state belongs to a different index")

// Config encapsulates the parameters of an Engine.
type Config struct {
	// Beta is the damping factor: the share of rank mass that follows real
	// edges each step. The remaining 1-Beta is spread uniformly.
	//
	// If not specified, DefaultBeta is used.
	Beta float64

	// Workers is the number of shards each step is split into. If not
	// specified, one worker per available CPU is used.
	Workers int
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	var err error
	if c.Beta < 0 || c.Beta > 1 {
		err = multierror.Append(err, fmt.Errorf("%w: beta must be in the range (0, 1], got %v", apperrors.ErrInvalidConfig, c.Beta))
	} else if c.Beta == 0 {
		c.Beta = DefaultBeta
	}

	if c.Workers < 0 {
		err = multierror.Append(err, fmt.Errorf("%w: workers must not be negative, got %d", apperrors.ErrInvalidConfig, c.Workers))
	} else if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return err
}

// Observer is called with every state an Engine run produces, starting with
// the initial uniform state.
type Observer func(*State)

// Engine produces successive rank states for a graph index.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rank engine config: %w", err)
	}
	return &Engine{
		cfg:    cfg,
		logger: slog.Default().With("component", "rank-engine"),
	}, nil
}

func (e *Engine) Beta() float64 {
	return e.cfg.Beta
}

func (e *Engine) Workers() int {
	return e.cfg.Workers
}

// Initial returns the uniform state 1/N.
func (e *Engine) Initial(idx *graph.Index) *State {
	n := idx.Len()
	ranks := make([]float64, n)
	uniform := 1 / float64(n)
	for i := range ranks {
		ranks[i] = uniform
	}
	return &State{idx: idx, ranks: ranks}
}

// Run applies Step iterations times starting from the initial state.
// iterations <= 0 returns the initial state unchanged.
func (e *Engine) Run(ctx context.Context, idx *graph.Index, iterations int, observe Observer) (*State, error) {
	state := e.Initial(idx)
	if observe != nil {
		observe(state)
	}
	for i := 0; i < iterations; i++ {
		next, err := e.Step(ctx, idx, state)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		state = next
		if observe != nil {
			observe(state)
		}
	}
	return state, nil
}

// Step computes the next state from prev:
//
//	D     = Σ prev[u] over dangling u
//	In[v] = Σ prev[u]/outdeg(u) over edges u → v
//	R[v]  = (1-β)/N + β·(In[v] + D/N)
//
// The vertex range is split into contiguous shards. The first phase writes
// each shard's per-edge shares and partial dangling sum; the second starts
// only after all shards finish and the dangling total is reduced, and pulls
// shares over the in-edges of each shard's own vertices. Shards never write
// outside their own range and prev is only read.
func (e *Engine) Step(ctx context.Context, idx *graph.Index, prev *State) (*State, error) {
	if prev.idx != idx {
		return nil, ErrForeignState
	}
	n := idx.Len()
	shards := split(n, e.cfg.Workers)

	share := make([]float64, n)
	partial := make([]float64, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for s, sh := range shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for u := sh.lo; u < sh.hi; u++ {
				if deg := idx.OutDegreeAt(u); deg > 0 {
					share[u] = prev.ranks[u] / float64(deg)
				}
			}
			var d float64
			idx.ForEachDanglingIn(sh.lo, sh.hi, func(u uint32) {
				d += prev.ranks[u]
			})
			partial[s] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var dangling float64
	for _, d := range partial {
		dangling += d
	}

	beta := e.cfg.Beta
	base := (1-beta)/float64(n) + beta*dangling/float64(n)
	next := make([]float64, n)
	g, gctx = errgroup.WithContext(ctx)
	for _, sh := range shards {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for v := sh.lo; v < sh.hi; v++ {
				var in float64
				for _, u := range idx.SourcesAt(v) {
					in += share[u]
				}
				next[v] = base + beta*in
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug("iteration complete",
		"iteration", prev.iteration+1,
		"dangling_mass", dangling,
		"shards", len(shards),
	)
	return &State{idx: idx, ranks: next, iteration: prev.iteration + 1}, nil
}

type shard struct {
	lo, hi uint32
}

// split divides [0, n) into at most workers contiguous, non-empty ranges.
func split(n, workers int) []shard {
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	size := (n + workers - 1) / workers
	shards := make([]shard, 0, workers)
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		shards = append(shards, shard{lo: uint32(lo), hi: uint32(hi)})
	}
	return shards
}
