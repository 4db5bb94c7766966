package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

// MaxVertices is the largest vertex set an Index can hold; dense positions
// are uint32 so the dangling set fits a 32-bit roaring bitmap.
const MaxVertices = math.MaxUint32

// Index is the read-only adjacency structure derived from an EdgeSet.
//
// Every vertex gets a dense position in ascending id order. Out-edges and
// in-edges are stored in CSR form: the neighbors of position p are
// adj[off[p]:off[p+1]]. The in-edge table is the edge set grouped by
// destination, which is what the propagation step consumes.
type Index struct {
	ids      []Vertex
	pos      map[Vertex]uint32
	outOff   []int
	outAdj   []uint32
	inOff    []int
	inAdj    []uint32
	dangling *roaring.Bitmap
}

// NewIndex builds the index. It fails with apperrors.ErrEmptyGraph when the
// edge set is empty.
func NewIndex(edges *EdgeSet) (*Index, error) {
	if edges == nil || edges.Len() == 0 {
		return nil, fmt.Errorf("%w: edge set has no vertices", apperrors.ErrEmptyGraph)
	}
	sorted := edges.Edges()

	seen := make(map[Vertex]struct{}, len(sorted))
	for _, e := range sorted {
		seen[e.Src] = struct{}{}
		seen[e.Dst] = struct{}{}
	}
	if uint64(len(seen)) > MaxVertices {
		return nil, fmt.Errorf("graph has %d vertices, at most %d are supported", len(seen), uint64(MaxVertices))
	}
	ids := make([]Vertex, 0, len(seen))
	for v := range seen {
		ids = append(ids, v)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	n := len(ids)
	idx := &Index{
		ids:      ids,
		pos:      make(map[Vertex]uint32, n),
		outOff:   make([]int, n+1),
		outAdj:   make([]uint32, len(sorted)),
		inOff:    make([]int, n+1),
		inAdj:    make([]uint32, len(sorted)),
		dangling: roaring.New(),
	}
	for i, v := range ids {
		idx.pos[v] = uint32(i)
	}

	for _, e := range sorted {
		idx.outOff[idx.pos[e.Src]+1]++
		idx.inOff[idx.pos[e.Dst]+1]++
	}
	for p := 0; p < n; p++ {
		idx.outOff[p+1] += idx.outOff[p]
		idx.inOff[p+1] += idx.inOff[p]
	}

	// Edges are sorted by (src, dst) and positions follow id order, so both
	// tables come out with neighbors in ascending position order.
	outFill := make([]int, n)
	inFill := make([]int, n)
	for _, e := range sorted {
		s, d := idx.pos[e.Src], idx.pos[e.Dst]
		idx.outAdj[idx.outOff[s]+outFill[s]] = d
		outFill[s]++
		idx.inAdj[idx.inOff[d]+inFill[d]] = s
		inFill[d]++
	}

	for p := 0; p < n; p++ {
		if idx.outOff[p+1] == idx.outOff[p] {
			idx.dangling.Add(uint32(p))
		}
	}
	idx.dangling.RunOptimize()
	return idx, nil
}

// Len returns N, the number of vertices.
func (x *Index) Len() int {
	return len(x.ids)
}

// EdgeCount returns the number of distinct edges.
func (x *Index) EdgeCount() int {
	return len(x.outAdj)
}

// Vertices returns all vertex ids in ascending order.
func (x *Index) Vertices() []Vertex {
	out := make([]Vertex, len(x.ids))
	copy(out, x.ids)
	return out
}

func (x *Index) Contains(v Vertex) bool {
	_, ok := x.pos[v]
	return ok
}

// Position returns the dense position of v.
func (x *Index) Position(v Vertex) (uint32, bool) {
	p, ok := x.pos[v]
	return p, ok
}

// Vertex returns the id stored at dense position p.
func (x *Index) Vertex(p uint32) Vertex {
	return x.ids[p]
}

// OutDegree returns the number of distinct out-neighbors of v, 0 for
// unknown vertices.
func (x *Index) OutDegree(v Vertex) int {
	p, ok := x.pos[v]
	if !ok {
		return 0
	}
	return x.OutDegreeAt(p)
}

func (x *Index) OutDegreeAt(p uint32) int {
	return x.outOff[p+1] - x.outOff[p]
}

// OutNeighbors returns the distinct out-neighbors of v in ascending order.
func (x *Index) OutNeighbors(v Vertex) []Vertex {
	p, ok := x.pos[v]
	if !ok {
		return nil
	}
	return x.toVertices(x.outAdj[x.outOff[p]:x.outOff[p+1]])
}

// InNeighbors returns every u with an edge u → v in ascending order.
func (x *Index) InNeighbors(v Vertex) []Vertex {
	p, ok := x.pos[v]
	if !ok {
		return nil
	}
	return x.toVertices(x.SourcesAt(p))
}

// SourcesAt returns the positions of the in-neighbors of position p. The
// slice aliases the index and must not be modified.
func (x *Index) SourcesAt(p uint32) []uint32 {
	return x.inAdj[x.inOff[p]:x.inOff[p+1]]
}

func (x *Index) IsDangling(v Vertex) bool {
	p, ok := x.pos[v]
	return ok && x.dangling.Contains(p)
}

func (x *Index) DanglingCount() uint64 {
	return x.dangling.GetCardinality()
}

// Dangling returns a copy of the set of dangling positions.
func (x *Index) Dangling() *roaring.Bitmap {
	return x.dangling.Clone()
}

// ForEachDanglingIn calls fn for every dangling position in [lo, hi) in
// ascending order. Concurrent calls are safe.
func (x *Index) ForEachDanglingIn(lo, hi uint32, fn func(p uint32)) {
	it := x.dangling.Iterator()
	it.AdvanceIfNeeded(lo)
	for it.HasNext() {
		p := it.Next()
		if p >= hi {
			return
		}
		fn(p)
	}
}

func (x *Index) toVertices(ps []uint32) []Vertex {
	out := make([]Vertex, len(ps))
	for i, p := range ps {
		out[i] = x.ids[p]
	}
	return out
}
