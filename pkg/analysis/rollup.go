package analysis

import (
	"cmp"
	"iter"
	"path"
	"slices"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

// DirRollup totals the sizes of the files at or below a directory by color
type DirRollup struct {
	Dir    string `json:"dir"`
	Files  int    `json:"files"`
	Green  uint64 `json:"green"`
	Yellow uint64 `json:"yellow"`
	Red    uint64 `json:"red"`
	Gray   uint64 `json:"gray"`
}

// RollupDirs aggregates annotated files into every ancestor directory.
// External stand-ins are not files and are skipped. Results are sorted by
// directory; files at the top level roll up into ".".
func RollupDirs(snap *graph.Snapshot, annotations map[string]model.Annotation) []DirRollup {
	dirs := make(map[string]*DirRollup)
	for node := range snap.Nodes() {
		a, ok := annotations[node.Path]
		if !ok {
			continue
		}
		for dir := range ancestors(node.Path) {
			d, ok := dirs[dir]
			if !ok {
				d = &DirRollup{Dir: dir}
				dirs[dir] = d
			}
			d.Files++
			switch a.Color {
			case model.ColorGreen:
				d.Green += node.Size
			case model.ColorYellow:
				d.Yellow += node.Size
			case model.ColorRed:
				d.Red += node.Size
			default:
				d.Gray += node.Size
			}
		}
	}

	out := make([]DirRollup, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, *d)
	}
	slices.SortFunc(out, func(a, b DirRollup) int { return cmp.Compare(a.Dir, b.Dir) })
	return out
}

func ancestors(p string) iter.Seq[string] {
	return func(yield func(string) bool) {
		dir := path.Dir(p)
		for {
			if !yield(dir) {
				return
			}
			if dir == "." || dir == "/" {
				return
			}
			dir = path.Dir(dir)
		}
	}
}

// CrossModuleDep is a direct edge whose endpoints belong to different modules
type CrossModuleDep struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceModule string `json:"sourceModule"`
	TargetModule string `json:"targetModule"`
}

// FindCrossModuleDeps lists the edges between known nodes of different
// modules in edge order. These are the candidates for module rules.
func FindCrossModuleDeps(snap *graph.Snapshot) []CrossModuleDep {
	var out []CrossModuleDep
	for edge := range snap.Edges() {
		src, ok := snap.Node(edge.From)
		if !ok {
			continue
		}
		dst, ok := snap.Node(edge.To)
		if !ok || src.Module == dst.Module {
			continue
		}
		out = append(out, CrossModuleDep{
			Source:       edge.From,
			Target:       edge.To,
			SourceModule: src.Module,
			TargetModule: dst.Module,
		})
	}
	return out
}
