package cycles

import (
	"github.com/ritzau/depgraph/pkg/graph"
)

// FindFileCycles finds all circular dependencies in the snapshot,
// self-loops included.
func FindFileCycles(snap *graph.Snapshot) []FileCycle {
	return Analyze(snap).Cycles()
}
