package rank

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
)

// Ranked pairs a vertex with its final rank.
type Ranked struct {
	Vertex graph.Vertex `json:"vertex"`
	Rank   float64      `json:"rank"`
}

// TopK returns the k highest-ranked vertices, rank descending and vertex id
// ascending on ties. Fewer than k vertices yields all of them.
func TopK(s *State, k int) []Ranked {
	if s == nil || k <= 0 {
		return []Ranked{}
	}
	h := &rankedHeap{}
	for p, r := range s.ranks {
		item := Ranked{Vertex: s.idx.Vertex(uint32(p)), Rank: r}
		if h.Len() < k {
			heap.Push(h, item)
			continue
		}
		if outranks(item, (*h)[0]) {
			(*h)[0] = item
			heap.Fix(h, 0)
		}
	}
	result := make([]Ranked, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(Ranked)
	}
	return result
}

func outranks(a, b Ranked) bool {
	if a.Rank != b.Rank {
		return a.Rank > b.Rank
	}
	return a.Vertex < b.Vertex
}

// rankedHeap keeps the weakest entry at the root.
type rankedHeap []Ranked

func (h rankedHeap) Len() int { return len(h) }

func (h rankedHeap) Less(i, j int) bool { return outranks(h[j], h[i]) }

func (h rankedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankedHeap) Push(x interface{}) {
	*h = append(*h, x.(Ranked))
}

func (h *rankedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
