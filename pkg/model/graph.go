package model

import "slices"

// Node represents one analyzed source file and its outgoing dependencies.
// Path is the primary key and stays stable across rebuilds.
type Node struct {
	Path         string   `json:"path"`
	Module       string   `json:"module"`
	Classifier   string   `json:"classifier"` // e.g. the file's principal declared symbol
	Size         uint64   `json:"size"`
	Dependencies []string `json:"dependencies"` // insertion-ordered set of target paths
}

// NewNode creates a node with a normalized dependency set
func NewNode(path, module, classifier string, size uint64, dependencies []string) *Node {
	return &Node{
		Path:         path,
		Module:       module,
		Classifier:   classifier,
		Size:         size,
		Dependencies: UniquePaths(dependencies),
	}
}

// External returns the attribute-less stand-in for a dependency target that
// is not part of the analyzed set.
func External(path string) *Node {
	return &Node{Path: path}
}

// Clone returns a deep copy of the node
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Dependencies = slices.Clone(n.Dependencies)
	return &c
}

// DependsOn reports whether the node has a direct edge to target
func (n *Node) DependsOn(target string) bool {
	return slices.Contains(n.Dependencies, target)
}

// Edge represents a directed dependency between two files.
// Edges are never stored; they are materialized from dependency sets.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// UniquePaths collapses duplicates and empty entries while preserving the
// order of first occurrence.
func UniquePaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// NodesEqual compares two node collections by node set and per-node
// attributes. Dependency lists are compared as sets.
func NodesEqual(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	index := make(map[string]*Node, len(a))
	for _, n := range a {
		index[n.Path] = n
	}
	if len(index) != len(a) {
		return false
	}
	for _, n := range b {
		other, ok := index[n.Path]
		if !ok || !nodeEqual(n, other) {
			return false
		}
	}
	return true
}

func nodeEqual(a, b *Node) bool {
	if a.Module != b.Module || a.Classifier != b.Classifier || a.Size != b.Size {
		return false
	}
	x := UniquePaths(a.Dependencies)
	y := UniquePaths(b.Dependencies)
	if len(x) != len(y) {
		return false
	}
	set := make(map[string]struct{}, len(x))
	for _, p := range x {
		set[p] = struct{}{}
	}
	for _, p := range y {
		if _, ok := set[p]; !ok {
			return false
		}
	}
	return true
}
