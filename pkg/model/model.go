package model

// Extraction is the per-file record produced by an edge extractor.
// Order of records is irrelevant to the engine.
type Extraction struct {
	Path         string   `json:"path"`
	Module       string   `json:"module"`
	Classifier   string   `json:"classifier"`
	Size         uint64   `json:"size"`
	Dependencies []string `json:"dependencies"`
}

// Node converts the extraction into a graph node
func (e *Extraction) Node() *Node {
	return NewNode(e.Path, e.Module, e.Classifier, e.Size, e.Dependencies)
}

// Scope is a caller-defined subset of nodes used as a build, query or rule boundary
type Scope interface {
	Contains(n *Node) bool
}

// ScopeFunc adapts a function to the Scope interface
type ScopeFunc func(n *Node) bool

func (f ScopeFunc) Contains(n *Node) bool { return f(n) }

// Everything returns a scope containing every node
func Everything() Scope {
	return ScopeFunc(func(*Node) bool { return true })
}

// PathSet is a scope made of an explicit selection of paths
type PathSet map[string]struct{}

// NewPathSet creates a path set from the given paths
func NewPathSet(paths ...string) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s PathSet) Contains(n *Node) bool {
	_, ok := s[n.Path]
	return ok
}

// Color is the 4-way node classification consumed by the presentation layer
type Color int

const (
	ColorGray   Color = iota // external or not analyzed
	ColorGreen               // movable: no blocking dependencies
	ColorYellow              // blocked by exactly one red dependency
	ColorRed                 // hard to move
)

func (c Color) String() string {
	switch c {
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	case ColorRed:
		return "red"
	default:
		return "gray"
	}
}

// MarshalText renders the color by name in JSON output
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Annotation holds the derived, non-persisted per-node properties
type Annotation struct {
	InCycle bool  `json:"inCycle"`
	Depth   int   `json:"depth"` // -1 when not reached from the query roots
	Color   Color `json:"color"`
}

// NodeKind classifies presentation tree nodes. The graph engine never uses it.
type NodeKind string

const (
	NodeKindModule    NodeKind = "module"
	NodeKindGroup     NodeKind = "group"
	NodeKindDirectory NodeKind = "directory"
	NodeKindFile      NodeKind = "file"
)
