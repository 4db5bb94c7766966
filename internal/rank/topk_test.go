package rank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/rank"
)

func vertices(top []rank.Ranked) []graph.Vertex {
	out := make([]graph.Vertex, len(top))
	for i, r := range top {
		out[i] = r.Vertex
	}
	return out
}

func TestTopK_OrdersByRankThenVertex(t *testing.T) {
	idx := mustIndex(t, "1 2\n")
	s, err := mustEngine(t, 1).Run(context.Background(), idx, 1, nil)
	require.NoError(t, err)

	top := rank.TopK(s, 10)
	require.Len(t, top, 2)
	assert.Equal(t, []graph.Vertex{2, 1}, vertices(top))
	assert.InDelta(t, 0.70, top[0].Rank, 1e-12)
	assert.InDelta(t, 0.30, top[1].Rank, 1e-12)
}

func TestTopK_TiesBreakByAscendingID(t *testing.T) {
	idx := mustIndex(t, "3 1\n1 2\n2 3\n")
	s, err := mustEngine(t, 2).Run(context.Background(), idx, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, []graph.Vertex{1, 2, 3}, vertices(rank.TopK(s, 3)))
}

func TestTopK_ZeroIterationsListsLowestIDs(t *testing.T) {
	// 12 vertices, all at 1/12 before any propagation.
	idx := mustIndex(t, "40 2\n2 33\n33 7\n7 100\n100 9\n9 11\n11 5\n5 60\n60 8\n8 1\n1 21\n")
	s := mustEngine(t, 4).Initial(idx)
	top := rank.TopK(s, 10)
	assert.Equal(t, []graph.Vertex{1, 2, 5, 7, 8, 9, 11, 21, 33, 40}, vertices(top))
	for _, r := range top {
		assert.InDelta(t, 1.0/12, r.Rank, 1e-15)
	}
}

func TestTopK_FewerVerticesThanK(t *testing.T) {
	idx := mustIndex(t, "1 2\n2 3\n")
	s := mustEngine(t, 1).Initial(idx)
	assert.Len(t, rank.TopK(s, 10), 3)
}

func TestTopK_NonPositiveK(t *testing.T) {
	idx := mustIndex(t, "1 2\n")
	s := mustEngine(t, 1).Initial(idx)
	assert.Empty(t, rank.TopK(s, 0))
	assert.Empty(t, rank.TopK(s, -1))
	assert.Empty(t, rank.TopK(nil, 3))
}

func TestTopK_MatchesFullSort(t *testing.T) {
	idx := mustIndex(t, randomGraph(11, 300, 900))
	s, err := mustEngine(t, 4).Run(context.Background(), idx, 8, nil)
	require.NoError(t, err)

	all := rank.TopK(s, idx.Len())
	require.Len(t, all, idx.Len())
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		ordered := prev.Rank > cur.Rank || (prev.Rank == cur.Rank && prev.Vertex < cur.Vertex)
		assert.True(t, ordered, "position %d out of order", i)
	}
	assert.Equal(t, all[:10], rank.TopK(s, 10))
}
