package query

import (
	"slices"
	"time"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
)

// DefaultPathLimit bounds path enumeration when no limit is configured
const DefaultPathLimit = 1000

// PathResult is the outcome of FindPaths
type PathResult struct {
	Direct    bool       `json:"direct"`    // some from node has a direct edge to a distinct to node
	Paths     [][]string `json:"paths"`     // full node sequences, shortest first
	Truncated bool       `json:"truncated"` // the path limit was reached
}

// FindPaths enumerates the simple paths of 2 up to border edges that lead
// from any node in from to any node in to. Direct adjacency is reported
// separately in Direct for every border. Pairs where the start equals the
// end are skipped and border 0 requests no path search at all.
func (e *Engine) FindPaths(from, to []string, border int) PathResult {
	defer observe("paths", time.Now())
	snap := e.store.Snapshot()

	targets := make(map[string]bool, len(to))
	for _, t := range to {
		targets[t] = true
	}

	var result PathResult
	sources := uniqueKnown(snap, from)
	for _, f := range sources {
		for _, dep := range snap.Dependencies(f) {
			if dep != f && targets[dep] {
				result.Direct = true
			}
		}
	}

	if border == 0 || len(sources) == 0 || len(targets) == 0 {
		return result
	}
	maxLen := hops(border)
	if maxLen < 2 {
		return result
	}

	result.Paths, result.Truncated = e.enumerate(snap, sources, targets, maxLen)
	if result.Truncated {
		logging.Debug("path enumeration truncated", "limit", e.pathLimit, "sources", len(sources))
	}
	return result
}

// enumerate runs a breadth-first search over partial paths. Neighbours are
// visited in dependency declaration order, so paths of equal length come out
// in discovery order. Nodes that cannot reach a target within the remaining
// hops are pruned.
func (e *Engine) enumerate(snap *graph.Snapshot, sources []string, targets map[string]bool, maxLen int) ([][]string, bool) {
	dist := distanceToTargets(snap, targets)
	budget := e.pathLimit * 64

	var out [][]string
	queue := make([][]string, 0, len(sources))
	for _, s := range sources {
		if _, ok := dist[s]; ok {
			queue = append(queue, []string{s})
		}
	}

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if budget--; budget < 0 {
			return out, true
		}

		last := p[len(p)-1]
		edges := len(p) - 1
		for _, next := range snap.Dependencies(last) {
			if slices.Contains(p, next) {
				continue
			}
			remaining := maxLen - edges - 1
			d, ok := dist[next]
			if !ok || d > remaining {
				continue
			}

			extended := make([]string, len(p)+1)
			copy(extended, p)
			extended[len(p)] = next

			if targets[next] && edges+1 >= 2 && next != p[0] {
				out = append(out, extended)
				if len(out) >= e.pathLimit {
					return out, true
				}
			}
			if remaining > 0 {
				queue = append(queue, extended)
			}
		}
	}
	return out, false
}

// distanceToTargets returns the minimum number of edges from every node that
// reaches a target to the nearest target.
func distanceToTargets(snap *graph.Snapshot, targets map[string]bool) map[string]int {
	dist := make(map[string]int, len(targets))
	queue := make([]string, 0, len(targets))
	for t := range targets {
		dist[t] = 0
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, prev := range snap.Dependents(cur) {
			if _, seen := dist[prev]; !seen {
				dist[prev] = dist[cur] + 1
				queue = append(queue, prev)
			}
		}
	}
	return dist
}

func uniqueKnown(snap *graph.Snapshot, paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if seen[p] || !snap.Has(p) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
