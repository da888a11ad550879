package cycles

import (
	"slices"

	"gonum.org/v1/gonum/graph"
)

// TarjanSCC partitions a directed graph into strongly connected components
// using Tarjan's algorithm. Components are emitted in reverse topological
// order: every component comes after all components it can reach.
type TarjanSCC struct {
	graph     graph.Directed
	index     int
	stack     []int64
	onStack   map[int64]bool
	indices   map[int64]int
	lowLink   map[int64]int
	component map[int64]int
	sccs      [][]int64
}

// NewTarjanSCC creates a new Tarjan SCC finder
func NewTarjanSCC(g graph.Directed) *TarjanSCC {
	return &TarjanSCC{
		graph:     g,
		onStack:   make(map[int64]bool),
		indices:   make(map[int64]int),
		lowLink:   make(map[int64]int),
		component: make(map[int64]int),
	}
}

// FindSCCs returns every component, singletons included.
// Nodes are visited in ascending ID order so the result is deterministic.
func (t *TarjanSCC) FindSCCs() [][]int64 {
	ids := make([]int64, 0, t.graph.Nodes().Len())
	for _, n := range graph.NodesOf(t.graph.Nodes()) {
		ids = append(ids, n.ID())
	}
	slices.Sort(ids)

	for _, id := range ids {
		if _, visited := t.indices[id]; !visited {
			t.strongConnect(id)
		}
	}
	return t.sccs
}

// ComponentOf returns the index into FindSCCs of the component holding id
func (t *TarjanSCC) ComponentOf(id int64) int {
	c, ok := t.component[id]
	if !ok {
		return -1
	}
	return c
}

func (t *TarjanSCC) strongConnect(nodeID int64) {
	t.indices[nodeID] = t.index
	t.lowLink[nodeID] = t.index
	t.index++

	t.stack = append(t.stack, nodeID)
	t.onStack[nodeID] = true

	successors := t.graph.From(nodeID)
	for successors.Next() {
		successorID := successors.Node().ID()

		if _, visited := t.indices[successorID]; !visited {
			t.strongConnect(successorID)
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.lowLink[successorID])
		} else if t.onStack[successorID] {
			t.lowLink[nodeID] = min(t.lowLink[nodeID], t.indices[successorID])
		}
	}

	// Root of a component: pop it off the stack
	if t.lowLink[nodeID] == t.indices[nodeID] {
		var scc []int64
		for {
			w := t.stack[len(t.stack)-1]
			t.stack = t.stack[:len(t.stack)-1]
			t.onStack[w] = false
			t.component[w] = len(t.sccs)
			scc = append(scc, w)
			if w == nodeID {
				break
			}
		}
		slices.Sort(scc)
		t.sccs = append(t.sccs, scc)
	}
}
