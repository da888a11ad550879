// Package rules evaluates dependency rules against the edges of a graph
// snapshot and decides which edges are illegal.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/ritzau/depgraph/pkg/model"
)

// ErrInvalidPattern is returned for empty or unparsable patterns
var ErrInvalidPattern = errors.New("invalid pattern")

const modulePrefix = "module:"

const globMeta = "*?[]{}\\"

// Pattern selects nodes by path or by module.
//
//	module:core*     nodes whose module matches the glob
//	src/core/**      paths matching the glob; * stays within one directory
//	src/core         the path itself and everything below it
type Pattern struct {
	raw         string
	module      bool
	glob        glob.Glob // nil for plain prefixes
	prefix      string
	specificity int
}

// ParsePattern compiles a pattern
func ParsePattern(s string) (Pattern, error) {
	raw := strings.TrimSpace(s)
	p := Pattern{raw: raw}

	expr := raw
	if rest, ok := strings.CutPrefix(raw, modulePrefix); ok {
		p.module = true
		expr = rest
	}
	if expr == "" {
		return Pattern{}, fmt.Errorf("%w: %q is empty", ErrInvalidPattern, s)
	}

	if p.module || strings.ContainsAny(expr, globMeta) {
		g, err := glob.Compile(expr, '/')
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, s, err)
		}
		p.glob = g
	} else {
		p.prefix = strings.TrimSuffix(expr, "/")
		if p.prefix == "" {
			return Pattern{}, fmt.Errorf("%w: %q is empty", ErrInvalidPattern, s)
		}
	}

	for _, r := range expr {
		if !strings.ContainsRune(globMeta, r) {
			p.specificity++
		}
	}
	return p, nil
}

// MustParsePattern is ParsePattern for constant patterns; it panics on error
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the pattern as written
func (p Pattern) String() string {
	return p.raw
}

// Specificity counts the literal characters of the pattern. Longer literal
// patterns are more specific.
func (p Pattern) Specificity() int {
	return p.specificity
}

// Contains implements model.Scope
func (p Pattern) Contains(n *model.Node) bool {
	if n == nil {
		return false
	}
	if p.module {
		return p.glob.Match(n.Module)
	}
	return p.MatchPath(n.Path)
}

// MatchPath matches a path pattern against path. Module patterns never
// match a bare path.
func (p Pattern) MatchPath(path string) bool {
	switch {
	case p.module:
		return false
	case p.glob != nil:
		return p.glob.Match(path)
	default:
		return path == p.prefix || strings.HasPrefix(path, p.prefix+"/")
	}
}
