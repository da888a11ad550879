// Package query answers reachability questions against the published graph
// snapshot. Queries never block on builds and never fail: unknown paths
// simply produce empty results.
package query

import (
	"cmp"
	"math"
	"slices"
	"time"

	gonumgraph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/ritzau/depgraph/pkg/cycles"
	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/metrics"
)

// Unbounded as a border follows edges until the transitive closure is reached
const Unbounded = -1

// Engine runs queries on the latest snapshot of a store
type Engine struct {
	store     *graph.Store
	annotator *cycles.Annotator
	pathLimit int
}

// Option configures an Engine
type Option func(*Engine)

// WithPathLimit bounds the number of paths FindPaths enumerates
func WithPathLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.pathLimit = limit
		}
	}
}

// NewEngine creates a query engine. The annotator is shared with other
// consumers so cycle analysis is computed once per generation.
func NewEngine(store *graph.Store, annotator *cycles.Annotator, opts ...Option) *Engine {
	if annotator == nil {
		annotator = cycles.NewAnnotator()
	}
	e := &Engine{
		store:     store,
		annotator: annotator,
		pathLimit: DefaultPathLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// hops converts a border into the number of edges a traversal may follow.
// Border 0 and 1 both mean direct dependencies only.
func hops(border int) int {
	if border == Unbounded {
		return math.MaxInt
	}
	return max(border, 1)
}

// ForwardDeps returns the nodes reachable from path within border hops,
// ordered by hop distance and then by path. path itself is never included.
func (e *Engine) ForwardDeps(path string, border int) []string {
	defer observe("forward", time.Now())
	fg := e.store.Snapshot().Directed()
	return reachable(fg, fg.Graph(), path, hops(border))
}

// BackwardDeps returns the nodes that reach path within border hops.
// It is the inverse of ForwardDeps at every border.
func (e *Engine) BackwardDeps(path string, border int) []string {
	defer observe("backward", time.Now())
	fg := e.store.Snapshot().Directed()
	return reachable(fg, fg.Reversed(), path, hops(border))
}

// CycleDeps returns the other members of the cycle through path. A file whose
// only cycle is a self-loop returns itself, so the result is non-empty
// exactly when path is on a cycle.
func (e *Engine) CycleDeps(path string) []string {
	defer observe("cycle", time.Now())
	r := e.annotator.Result(e.store.Snapshot())
	if !r.InCycle(path) {
		return nil
	}
	members := r.Component(path)
	if len(members) == 1 {
		return members
	}
	return slices.DeleteFunc(members, func(p string) bool { return p == path })
}

type reached struct {
	path  string
	depth int
}

func reachable(fg *graph.FileGraph, g traverse.Graph, path string, maxHops int) []string {
	id, ok := fg.ID(path)
	if !ok {
		return nil
	}

	var found []reached
	bfs := traverse.BreadthFirst{}
	bfs.Walk(g, fg.Graph().Node(id), func(n gonumgraph.Node, depth int) bool {
		if depth > maxHops {
			return true
		}
		if depth > 0 {
			found = append(found, reached{path: fg.Path(n.ID()), depth: depth})
		}
		return false
	})

	slices.SortFunc(found, func(a, b reached) int {
		if c := cmp.Compare(a.depth, b.depth); c != 0 {
			return c
		}
		return cmp.Compare(a.path, b.path)
	})
	out := make([]string, len(found))
	for i, r := range found {
		out[i] = r.path
	}
	return out
}

func observe(kind string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
