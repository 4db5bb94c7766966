// Package testgraph writes random edge lists for exercising the ranker. Every
// generated graph contains a cycle through all of its vertices, so no vertex
// is unreachable.
package testgraph

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
)

// IDSpread is how many candidate ids exist per vertex: ids are drawn from
// [1, IDSpread*n].
const IDSpread = 10

// ExtraEdgesPerVertex is how many random edges are attempted per vertex on
// top of the spanning cycle.
const ExtraEdgesPerVertex = 9

// excludedSource never starts an extra edge.
const excludedSource graph.Vertex = 1

// Stats summarises what Generate wrote.
type Stats struct {
	Vertices int
	Lines    int
	Skipped  int
}

// Generate writes a graph of n vertices to w: the cycle
// ids[0] -> ids[1] -> ... -> ids[n-1] -> ids[0] followed by up to 9n extra
// edges between two distinct vertices. Extra edges whose source is vertex 1
// are dropped. Lines may repeat; the loader deduplicates them.
func Generate(w io.Writer, n int, rng *rand.Rand) (Stats, error) {
	if n <= 0 {
		return Stats{}, fmt.Errorf("vertex count must be positive, got %d", n)
	}
	ids := Sample(rng, n, IDSpread*n)
	bw := bufio.NewWriter(w)
	stats := Stats{Vertices: n}

	for i := range ids {
		writeEdge(bw, ids[i], ids[(i+1)%n])
		stats.Lines++
	}

	if n > 1 {
		for i := 0; i < ExtraEdgesPerVertex*n; i++ {
			a := rng.Intn(n)
			b := rng.Intn(n - 1)
			if b >= a {
				b++
			}
			if ids[a] == excludedSource {
				stats.Skipped++
				continue
			}
			writeEdge(bw, ids[a], ids[b])
			stats.Lines++
		}
	}

	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("writing graph: %w", err)
	}
	return stats, nil
}

// Sample returns k distinct ids from [1, max] in random order, using Floyd's
// algorithm so memory stays proportional to k.
func Sample(rng *rand.Rand, k, max int) []graph.Vertex {
	if k > max {
		k = max
	}
	seen := make(map[int]struct{}, k)
	out := make([]graph.Vertex, 0, k)
	for j := max - k + 1; j <= max; j++ {
		t := rng.Intn(j) + 1
		if _, dup := seen[t]; dup {
			t = j
		}
		seen[t] = struct{}{}
		out = append(out, graph.Vertex(t))
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func writeEdge(w *bufio.Writer, src, dst graph.Vertex) {
	w.WriteString(src.String())
	w.WriteByte(' ')
	w.WriteString(dst.String())
	w.WriteByte('\n')
}
