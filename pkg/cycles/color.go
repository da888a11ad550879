package cycles

import (
	"cmp"
	"slices"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

// Thresholds configure the mobility coloring. Zero values disable a check.
type Thresholds struct {
	DepthCap       int      // bound passed to Depths
	MaxDepth       int      // nodes deeper than this are red
	MaxSize        uint64   // nodes larger than this are red
	GreenModules   []string // when set, nodes outside these modules are red
	RedClassifiers []string // classifiers that are always red
}

// Colorize assigns a mobility color to every node of the snapshot view.
// External targets are gray. A node is red when it is on a cycle or breaks a
// threshold; otherwise it is green, yellow or red by the number of its
// dependencies that are themselves yellow or red (0, 1, more). Red from a
// cycle or a threshold is final; such a node never becomes yellow.
func Colorize(snap *graph.Snapshot, r *Result, depths map[string]int, th Thresholds) map[string]model.Color {
	fg := r.view
	colors := make(map[string]model.Color, fg.Len())

	// Components come sinks-first, so dependencies are colored before dependents
	for c, scc := range r.components {
		for _, id := range scc {
			path := fg.Path(id)
			node := snap.Lookup(path)
			switch {
			case !snap.Has(path):
				colors[path] = model.ColorGray
			case r.cyclic[c] || intrinsicallyRed(node, depths, th):
				colors[path] = model.ColorRed
			default:
				colors[path] = colorByBlockers(len(blockingDeps(node, colors)))
			}
		}
	}
	return colors
}

func intrinsicallyRed(n *model.Node, depths map[string]int, th Thresholds) bool {
	if th.MaxSize > 0 && n.Size > th.MaxSize {
		return true
	}
	if d, ok := depths[n.Path]; ok && th.MaxDepth > 0 && d > th.MaxDepth {
		return true
	}
	if len(th.GreenModules) > 0 && !slices.Contains(th.GreenModules, n.Module) {
		return true
	}
	return n.Classifier != "" && slices.Contains(th.RedClassifiers, n.Classifier)
}

func blockingDeps(n *model.Node, colors map[string]model.Color) []string {
	var blocking []string
	for _, dep := range n.Dependencies {
		if dep == n.Path {
			continue
		}
		if c := colors[dep]; c == model.ColorYellow || c == model.ColorRed {
			blocking = append(blocking, dep)
		}
	}
	return blocking
}

func colorByBlockers(count int) model.Color {
	switch count {
	case 0:
		return model.ColorGreen
	case 1:
		return model.ColorYellow
	default:
		return model.ColorRed
	}
}

// Blocker is a node that alone keeps yellow nodes from being movable
type Blocker struct {
	Path    string `json:"path"`
	Blocked uint64 `json:"blocked"` // summed size of the yellow nodes it blocks
}

// Blockers aggregates the size of every yellow node onto its single blocking
// dependency, largest first.
func Blockers(snap *graph.Snapshot, colors map[string]model.Color) []Blocker {
	totals := make(map[string]uint64)
	for node := range snap.Nodes() {
		if colors[node.Path] != model.ColorYellow {
			continue
		}
		blocking := blockingDeps(node, colors)
		if len(blocking) == 1 {
			totals[blocking[0]] += node.Size
		}
	}

	out := make([]Blocker, 0, len(totals))
	for path, size := range totals {
		out = append(out, Blocker{Path: path, Blocked: size})
	}
	slices.SortFunc(out, func(a, b Blocker) int {
		if c := cmp.Compare(b.Blocked, a.Blocked); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	return out
}

// Annotate combines cycle membership, depth from roots and color for every
// node of the snapshot view.
func Annotate(snap *graph.Snapshot, r *Result, roots []string, th Thresholds) map[string]model.Annotation {
	depths := Depths(snap, r, roots, th.DepthCap)
	colors := Colorize(snap, r, depths, th)

	fg := r.view
	out := make(map[string]model.Annotation, fg.Len())
	for id := range fg.Len() {
		path := fg.Path(int64(id))
		d, ok := depths[path]
		if !ok {
			d = -1
		}
		out[path] = model.Annotation{
			InCycle: r.InCycle(path),
			Depth:   d,
			Color:   colors[path],
		}
	}
	return out
}
