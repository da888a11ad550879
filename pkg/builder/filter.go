package builder

import (
	"path"
	"slices"
	"strings"

	"github.com/ritzau/depgraph/pkg/model"
)

// Filter excludes files from the graph by module, path suffix or base name
// prefix. Edges to excluded paths are dropped as well; since a dependency
// target's module is unknown at that point, module exclusion applies to
// visited files only.
type Filter struct {
	ExcludedModules      []string `koanf:"excluded_modules" json:"excludedModules"`
	ExcludedSuffixes     []string `koanf:"excluded_suffixes" json:"excludedSuffixes"`
	ExcludedNamePrefixes []string `koanf:"excluded_name_prefixes" json:"excludedNamePrefixes"`
}

// IsZero reports whether the filter excludes nothing
func (f Filter) IsZero() bool {
	return len(f.ExcludedModules) == 0 && len(f.ExcludedSuffixes) == 0 && len(f.ExcludedNamePrefixes) == 0
}

// ExcludesPath reports whether path is excluded by suffix or name prefix
func (f Filter) ExcludesPath(p string) bool {
	for _, s := range f.ExcludedSuffixes {
		if s != "" && strings.HasSuffix(p, s) {
			return true
		}
	}
	base := path.Base(p)
	for _, prefix := range f.ExcludedNamePrefixes {
		if prefix != "" && strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

// Apply converts an extraction into a node, or reports false when the file
// itself is excluded.
func (f Filter) Apply(ext *model.Extraction) (*model.Node, bool) {
	node := ext.Node()
	if f.IsZero() {
		return node, true
	}
	if slices.Contains(f.ExcludedModules, ext.Module) || f.ExcludesPath(ext.Path) {
		return nil, false
	}
	node.Dependencies = slices.DeleteFunc(node.Dependencies, f.ExcludesPath)
	return node, true
}
