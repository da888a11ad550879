package graph

import (
	"iter"
	"slices"
	"sync"

	"github.com/ritzau/depgraph/pkg/model"
)

// Snapshot is one published, immutable generation of the graph.
// Nodes returned by Lookup and Nodes are shared with the snapshot and
// MUST NOT be modified; use Node for a private copy.
type Snapshot struct {
	generation uint64
	nodes      map[string]*model.Node
	reverse    map[string][]string // target -> sorted sources

	sortOnce sync.Once
	sorted   []string

	viewOnce sync.Once
	view     *FileGraph
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		nodes:   make(map[string]*model.Node),
		reverse: make(map[string][]string),
	}
}

// Generation returns the generation number; it grows with every commit
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// Len returns the number of analyzed nodes (external targets excluded)
func (s *Snapshot) Len() int {
	return len(s.nodes)
}

// EdgeCount returns the number of dependency edges
func (s *Snapshot) EdgeCount() int {
	count := 0
	for _, n := range s.nodes {
		count += len(n.Dependencies)
	}
	return count
}

// Has reports whether path is an analyzed node
func (s *Snapshot) Has(path string) bool {
	_, ok := s.nodes[path]
	return ok
}

// IsExternal reports whether path is only known as a dependency target
func (s *Snapshot) IsExternal(path string) bool {
	if s.Has(path) {
		return false
	}
	return len(s.reverse[path]) > 0
}

// Node returns a copy of the node at path
func (s *Snapshot) Node(path string) (*model.Node, bool) {
	n, ok := s.nodes[path]
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

// Lookup returns the shared node at path, or an external stand-in when the
// path is only referenced as a dependency. Returns nil for unknown paths.
func (s *Snapshot) Lookup(path string) *model.Node {
	if n, ok := s.nodes[path]; ok {
		return n
	}
	if s.IsExternal(path) {
		return model.External(path)
	}
	return nil
}

// Paths yields all node keys in sorted order
func (s *Snapshot) Paths() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, p := range s.sortedPaths() {
			if !yield(p) {
				return
			}
		}
	}
}

// Nodes yields the shared nodes in path order
func (s *Snapshot) Nodes() iter.Seq[*model.Node] {
	return func(yield func(*model.Node) bool) {
		for _, p := range s.sortedPaths() {
			if !yield(s.nodes[p]) {
				return
			}
		}
	}
}

// Edges yields every dependency edge, grouped by source in path order
func (s *Snapshot) Edges() iter.Seq[model.Edge] {
	return func(yield func(model.Edge) bool) {
		for _, p := range s.sortedPaths() {
			for _, dep := range s.nodes[p].Dependencies {
				if !yield(model.Edge{From: p, To: dep}) {
					return
				}
			}
		}
	}
}

// Dependencies returns the direct dependencies of path
func (s *Snapshot) Dependencies(path string) []string {
	n, ok := s.nodes[path]
	if !ok {
		return nil
	}
	return slices.Clone(n.Dependencies)
}

// Dependents returns the nodes with a direct edge to path
func (s *Snapshot) Dependents(path string) []string {
	return slices.Clone(s.reverse[path])
}

// Directed returns the gonum view of this snapshot, built on first use
func (s *Snapshot) Directed() *FileGraph {
	s.viewOnce.Do(func() {
		s.view = newFileGraph(s)
	})
	return s.view
}

func (s *Snapshot) sortedPaths() []string {
	s.sortOnce.Do(func() {
		s.sorted = make([]string, 0, len(s.nodes))
		for p := range s.nodes {
			s.sorted = append(s.sorted, p)
		}
		slices.Sort(s.sorted)
	})
	return s.sorted
}

// HasSelfLoop reports whether path lists itself as a dependency
func (s *Snapshot) HasSelfLoop(path string) bool {
	n, ok := s.nodes[path]
	return ok && n.DependsOn(path)
}
