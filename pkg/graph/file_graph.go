package graph

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// FileGraph is a gonum view of one snapshot. Every node and every external
// dependency target gets a stable int64 ID (assigned in sorted path order).
// Self-loops are tracked separately because simple.DirectedGraph rejects them.
type FileGraph struct {
	graph     *simple.DirectedGraph
	ids       map[string]int64 // Map from file path to graph ID
	paths     []string         // Map from graph ID to file path
	selfLoops map[string]bool
}

func newFileGraph(s *Snapshot) *FileGraph {
	all := make(map[string]struct{}, len(s.nodes))
	for path, node := range s.nodes {
		all[path] = struct{}{}
		for _, dep := range node.Dependencies {
			all[dep] = struct{}{}
		}
	}
	paths := make([]string, 0, len(all))
	for p := range all {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	fg := &FileGraph{
		graph:     simple.NewDirectedGraph(),
		ids:       make(map[string]int64, len(paths)),
		paths:     paths,
		selfLoops: make(map[string]bool),
	}
	for id, p := range paths {
		fg.ids[p] = int64(id)
		fg.graph.AddNode(simple.Node(int64(id)))
	}

	for _, path := range paths {
		node, ok := s.nodes[path]
		if !ok {
			continue
		}
		sourceID := fg.ids[path]
		for _, dep := range node.Dependencies {
			if dep == path {
				fg.selfLoops[path] = true
				continue
			}
			targetID := fg.ids[dep]
			if !fg.graph.HasEdgeFromTo(sourceID, targetID) {
				fg.graph.SetEdge(fg.graph.NewEdge(fg.graph.Node(sourceID), fg.graph.Node(targetID)))
			}
		}
	}
	return fg
}

// Graph returns the underlying directed graph
func (fg *FileGraph) Graph() *simple.DirectedGraph {
	return fg.graph
}

// ID returns the graph ID for a path
func (fg *FileGraph) ID(path string) (int64, bool) {
	id, ok := fg.ids[path]
	return id, ok
}

// Path returns the file path for a graph ID
func (fg *FileGraph) Path(id int64) string {
	if id < 0 || int(id) >= len(fg.paths) {
		return ""
	}
	return fg.paths[id]
}

// Len returns the number of graph nodes, external targets included
func (fg *FileGraph) Len() int {
	return len(fg.paths)
}

// HasSelfLoop reports whether path lists itself as a dependency
func (fg *FileGraph) HasSelfLoop(path string) bool {
	return fg.selfLoops[path]
}

// Reversed returns a traversal view that follows incoming edges
func (fg *FileGraph) Reversed() *ReversedGraph {
	return &ReversedGraph{g: fg.graph}
}

// ReversedGraph swaps edge direction for traversal purposes
type ReversedGraph struct {
	g *simple.DirectedGraph
}

// From returns the nodes with an edge into id
func (r *ReversedGraph) From(id int64) graph.Nodes {
	return r.g.To(id)
}

// Edge returns the reversed edge between uid and vid
func (r *ReversedGraph) Edge(uid, vid int64) graph.Edge {
	e := r.g.Edge(vid, uid)
	if e == nil {
		return nil
	}
	return e.ReversedEdge()
}
