package cycles

import (
	"github.com/ritzau/depgraph/pkg/graph"
)

// DefaultDepthCap bounds depths when the caller does not set one
const DefaultDepthCap = 1000

// Depths computes the longest-path depth of every node reachable from roots.
// Roots have depth 0. The walk runs over the component condensation, so it is
// linear and terminates on cyclic graphs: a cyclic component, and anything
// reached through one, gets maxDepth. Unreached nodes are absent.
//
// With no roots the search starts at every component that nothing outside it
// depends on. Unknown roots are ignored.
func Depths(snap *graph.Snapshot, r *Result, roots []string, maxDepth int) map[string]int {
	if maxDepth <= 0 {
		maxDepth = DefaultDepthCap
	}
	fg := r.view
	g := fg.Graph()

	depth := make([]int, len(r.components))
	for c := range depth {
		depth[c] = -1
	}

	if len(roots) == 0 {
		for c := range r.components {
			if !r.hasExternalIncoming(c) {
				depth[c] = 0
			}
		}
	} else {
		for _, root := range roots {
			if id, ok := fg.ID(root); ok {
				depth[r.componentOf[id]] = 0
			}
		}
	}

	// Walk components sources-first
	for c := len(r.components) - 1; c >= 0; c-- {
		d := depth[c]
		if d < 0 {
			continue
		}
		if r.cyclic[c] {
			d = maxDepth
			depth[c] = d
		}
		next := min(d+1, maxDepth)
		for _, id := range r.components[c] {
			successors := g.From(id)
			for successors.Next() {
				s := r.componentOf[successors.Node().ID()]
				if s != c && depth[s] < next {
					depth[s] = next
				}
			}
		}
	}

	out := make(map[string]int)
	for c, d := range depth {
		if d < 0 {
			continue
		}
		for _, id := range r.components[c] {
			out[fg.Path(id)] = d
		}
	}
	return out
}

func (r *Result) hasExternalIncoming(c int) bool {
	g := r.view.Graph()
	for _, id := range r.components[c] {
		predecessors := g.To(id)
		for predecessors.Next() {
			if r.componentOf[predecessors.Node().ID()] != c {
				return true
			}
		}
	}
	return false
}
