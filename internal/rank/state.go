// Package rank implements the PageRank propagation engine: immutable rank
// states, the damped propagation step and top-K selection.
package rank

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
)

// State is the rank vector after a given number of iterations. A State is
// never modified after it is returned, so it can be shared freely.
type State struct {
	idx       *graph.Index
	ranks     []float64
	iteration int
}

// Iteration returns how many propagation steps produced this state.
func (s *State) Iteration() int {
	return s.iteration
}

func (s *State) Len() int {
	return len(s.ranks)
}

func (s *State) Index() *graph.Index {
	return s.idx
}

// Rank returns the rank of v.
func (s *State) Rank(v graph.Vertex) (float64, bool) {
	p, ok := s.idx.Position(v)
	if !ok {
		return 0, false
	}
	return s.ranks[p], true
}

// At returns the rank stored at dense position p.
func (s *State) At(p uint32) float64 {
	return s.ranks[p]
}

// Ranks returns a copy of the state keyed by vertex.
func (s *State) Ranks() map[graph.Vertex]float64 {
	out := make(map[graph.Vertex]float64, len(s.ranks))
	for p, r := range s.ranks {
		out[s.idx.Vertex(uint32(p))] = r
	}
	return out
}

// Sum returns the total rank mass using compensated summation.
func (s *State) Sum() float64 {
	var sum, c float64
	for _, r := range s.ranks {
		t := sum + r
		if math.Abs(sum) >= math.Abs(r) {
			c += (sum - t) + r
		} else {
			c += (r - t) + sum
		}
		sum = t
	}
	return sum + c
}
