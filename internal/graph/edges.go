// Package graph turns a raw edge list into the read-only structures the rank
// engine iterates over: a deduplicated edge set and a dense adjacency index.
package graph

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-PageRank/pkg/errors"
)

// maxLineSize bounds a single edge line. Two uint64 values and separators fit
// comfortably; anything longer is malformed anyway.
const maxLineSize = 64 * 1024

// Vertex identifies a node of the graph.
type Vertex uint64

func (v Vertex) String() string {
	return strconv.FormatUint(uint64(v), 10)
}

// Edge is a directed (source, destination) pair.
type Edge struct {
	Src Vertex
	Dst Vertex
}

// ParseError reports an input line that is not exactly two base-10
// non-negative integers. It matches apperrors.ErrParse. Reason never quotes
// the input; only Text carries it.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error: line %d %q: %s", e.Line, e.Text, e.Reason)
	}
	return fmt.Sprintf("parse error: %q: %s", e.Text, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return apperrors.ErrParse
}

// EdgeSet is a set of directed edges. Adding the same ordered pair twice
// keeps a single edge.
type EdgeSet struct {
	edges map[Edge]struct{}
}

func NewEdgeSet() *EdgeSet {
	return &EdgeSet{edges: make(map[Edge]struct{})}
}

// Add inserts e and reports whether it was new.
func (s *EdgeSet) Add(e Edge) bool {
	if _, ok := s.edges[e]; ok {
		return false
	}
	s.edges[e] = struct{}{}
	return true
}

func (s *EdgeSet) Contains(e Edge) bool {
	_, ok := s.edges[e]
	return ok
}

func (s *EdgeSet) Len() int {
	return len(s.edges)
}

// Edges returns the edges ordered by source, then destination.
func (s *EdgeSet) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Src != out[j].Src {
			return out[i].Src < out[j].Src
		}
		return out[i].Dst < out[j].Dst
	})
	return out
}

// ParseEdge parses a "source destination" line.
func ParseEdge(line string) (Edge, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Edge{}, &ParseError{
			Text:   line,
			Reason: fmt.Sprintf("expected 2 integer tokens, got %d", len(fields)),
		}
	}
	src, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Edge{}, &ParseError{Text: line, Reason: "source is not a non-negative integer"}
	}
	dst, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Edge{}, &ParseError{Text: line, Reason: "destination is not a non-negative integer"}
	}
	return Edge{Src: Vertex(src), Dst: Vertex(dst)}, nil
}

// LoadEdges reads one edge per line until r is exhausted. The first malformed
// line aborts the load; no edges are returned in that case.
func LoadEdges(r io.Reader) (*EdgeSet, error) {
	set := NewEdgeSet()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		e, err := ParseEdge(scanner.Text())
		if err != nil {
			pe := err.(*ParseError)
			pe.Line = lineNo
			return nil, pe
		}
		set.Add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IO(fmt.Sprintf("reading edges after line %d", lineNo), err)
	}
	return set, nil
}
