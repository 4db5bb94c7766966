package rank_test

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/testgraph"
)

func benchIndex(b *testing.B, n int) *graph.Index {
	b.Helper()
	var buf bytes.Buffer
	if _, err := testgraph.Generate(&buf, n, rand.New(rand.NewSource(1))); err != nil {
		b.Fatal(err)
	}
	edges, err := graph.LoadEdges(&buf)
	if err != nil {
		b.Fatal(err)
	}
	idx, err := graph.NewIndex(edges)
	if err != nil {
		b.Fatal(err)
	}
	return idx
}

// BenchmarkStep measures one iteration at increasing shard counts.
func BenchmarkStep(b *testing.B) {
	idx := benchIndex(b, 50000)
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			engine, err := rank.NewEngine(rank.Config{Workers: workers})
			if err != nil {
				b.Fatal(err)
			}
			state := engine.Initial(idx)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Step(context.Background(), idx, state); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTopK measures selecting the leading vertices from a full state.
func BenchmarkTopK(b *testing.B) {
	idx := benchIndex(b, 50000)
	engine, err := rank.NewEngine(rank.Config{})
	if err != nil {
		b.Fatal(err)
	}
	state, err := engine.Run(context.Background(), idx, 5, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rank.TopK(state, 10)
	}
}
