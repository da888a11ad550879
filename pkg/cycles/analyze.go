// Package cycles derives per-node annotations from a graph snapshot:
// cycle membership, depth from a root set and the mobility color.
package cycles

import (
	"slices"
	"strings"

	"github.com/ritzau/depgraph/pkg/graph"
)

// FileCycle represents a circular dependency between source files
type FileCycle struct {
	Files []string `json:"files"` // sorted
}

// Result is the strongly connected component analysis of one snapshot
type Result struct {
	generation  uint64
	view        *graph.FileGraph
	components  [][]int64 // reverse topological order
	componentOf []int     // indexed by graph ID
	cyclic      []bool
}

// Analyze runs Tarjan's algorithm over the snapshot in O(V+E)
func Analyze(snap *graph.Snapshot) *Result {
	fg := snap.Directed()
	tarjan := NewTarjanSCC(fg.Graph())
	sccs := tarjan.FindSCCs()

	r := &Result{
		generation:  snap.Generation(),
		view:        fg,
		components:  sccs,
		componentOf: make([]int, fg.Len()),
		cyclic:      make([]bool, len(sccs)),
	}
	for c, scc := range sccs {
		for _, id := range scc {
			r.componentOf[id] = c
		}
		r.cyclic[c] = len(scc) > 1 || (len(scc) == 1 && fg.HasSelfLoop(fg.Path(scc[0])))
	}
	return r
}

// Generation returns the snapshot generation this result was computed for
func (r *Result) Generation() uint64 {
	return r.generation
}

// InCycle reports whether path is on at least one cycle
func (r *Result) InCycle(path string) bool {
	id, ok := r.view.ID(path)
	if !ok {
		return false
	}
	return r.cyclic[r.componentOf[id]]
}

// Component returns the sorted members of the component holding path
func (r *Result) Component(path string) []string {
	id, ok := r.view.ID(path)
	if !ok {
		return nil
	}
	return r.paths(r.components[r.componentOf[id]])
}

// Cycles returns every cyclic component, ordered by first member
func (r *Result) Cycles() []FileCycle {
	var out []FileCycle
	for c, scc := range r.components {
		if r.cyclic[c] {
			out = append(out, FileCycle{Files: r.paths(scc)})
		}
	}
	slices.SortFunc(out, func(a, b FileCycle) int {
		return strings.Compare(a.Files[0], b.Files[0])
	})
	return out
}

// CycleCount returns the number of cyclic components
func (r *Result) CycleCount() int {
	count := 0
	for _, c := range r.cyclic {
		if c {
			count++
		}
	}
	return count
}

func (r *Result) paths(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.view.Path(id)
	}
	slices.Sort(out)
	return out
}
