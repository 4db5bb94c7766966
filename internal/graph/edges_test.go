package graph_test

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/internal/graph"
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

func TestParseEdge(t *testing.T) {
	tests := []struct {
		line    string
		want    graph.Edge
		wantErr bool
	}{
		{line: "1 2", want: graph.Edge{Src: 1, Dst: 2}},
		{line: "  7\t\t9  ", want: graph.Edge{Src: 7, Dst: 9}},
		{line: "5 5", want: graph.Edge{Src: 5, Dst: 5}},
		{line: "18446744073709551615 0", want: graph.Edge{Src: 18446744073709551615, Dst: 0}},
		{line: "3 4\r", want: graph.Edge{Src: 3, Dst: 4}},
		{line: "1", wantErr: true},
		{line: "", wantErr: true},
		{line: "1 2 3", wantErr: true},
		{line: "-1 2", wantErr: true},
		{line: "a b", wantErr: true},
		{line: "1.5 2", wantErr: true},
		{line: "18446744073709551616 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := graph.ParseEdge(tt.line)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadEdges_Deduplicates(t *testing.T) {
	set, err := graph.LoadEdges(strings.NewReader("1 2\n1 2\n1 2\n2 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Contains(graph.Edge{Src: 1, Dst: 2}))
	assert.True(t, set.Contains(graph.Edge{Src: 2, Dst: 1}))
	assert.Equal(t, []graph.Edge{{Src: 1, Dst: 2}, {Src: 2, Dst: 1}}, set.Edges())
}

func TestLoadEdges_MalformedLineAborts(t *testing.T) {
	set, err := graph.LoadEdges(strings.NewReader("1 2\n1\n3 4\n"))
	assert.Nil(t, set)
	require.ErrorIs(t, err, apperrors.ErrParse)

	var pe *graph.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, "1", pe.Text)
}

func TestLoadEdges_BlankLineIsMalformed(t *testing.T) {
	_, err := graph.LoadEdges(strings.NewReader("1 2\n\n2 3\n"))
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestLoadEdges_Empty(t *testing.T) {
	set, err := graph.LoadEdges(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestLoadEdges_ReaderFailure(t *testing.T) {
	cause := errors.New("disk gone")
	_, err := graph.LoadEdges(iotest.ErrReader(cause))
	assert.ErrorIs(t, err, apperrors.ErrIO)
	assert.ErrorIs(t, err, cause)
}

func TestEdgeSet_Add(t *testing.T) {
	set := graph.NewEdgeSet()
	assert.True(t, set.Add(graph.Edge{Src: 4, Dst: 4}))
	assert.False(t, set.Add(graph.Edge{Src: 4, Dst: 4}))
	assert.Equal(t, 1, set.Len())
}

func TestVertexString(t *testing.T) {
	assert.Equal(t, "173", graph.Vertex(173).String())
}
