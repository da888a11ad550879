package rules

import (
	"slices"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

// Violation lists the targets a source reaches against one rule
type Violation struct {
	Rule    Rule     `json:"rule"`
	Targets []string `json:"targets"`
}

// Classification maps a source path to its violations.
// Sources without illegal edges are absent.
type Classification map[string][]Violation

// IsLegal reports whether the edge from -> to is legal
func (c Classification) IsLegal(from, to string) bool {
	for _, v := range c[from] {
		if slices.Contains(v.Targets, to) {
			return false
		}
	}
	return true
}

// Illegal returns every illegal edge, ordered by source path
func (c Classification) Illegal() []model.Edge {
	sources := make([]string, 0, len(c))
	for from := range c {
		sources = append(sources, from)
	}
	slices.Sort(sources)

	var out []model.Edge
	for _, from := range sources {
		for _, v := range c[from] {
			for _, to := range v.Targets {
				out = append(out, model.Edge{From: from, To: to})
			}
		}
	}
	return out
}

// Count returns the number of illegal edges
func (c Classification) Count() int {
	n := 0
	for _, vs := range c {
		for _, v := range vs {
			n += len(v.Targets)
		}
	}
	return n
}

// Clone returns a deep copy of the classification
func (c Classification) Clone() Classification {
	out := make(Classification, len(c))
	for from, vs := range c {
		cloned := make([]Violation, len(vs))
		for i, v := range vs {
			cloned[i] = Violation{Rule: v.Rule, Targets: slices.Clone(v.Targets)}
		}
		out[from] = cloned
	}
	return out
}

// Classify evaluates rules against every edge of the snapshot.
//
// Rules whose source matches the edge's origin are applicable; without any
// the edge is legal. Among applicable rules whose target matches, the most
// specific one decides (ties go to the rule declared first) and the edge is
// illegal if that rule denies. When no applicable rule matches the target
// but some applicable rule is an allow rule, the allow rules form an
// allow-list and the edge is illegal; it is attributed to the most specific
// applicable allow rule.
func Classify(snap *graph.Snapshot, rules []Rule) Classification {
	out := make(Classification)
	if len(rules) == 0 {
		return out
	}

	for node := range snap.Nodes() {
		applicable := make([]int, 0, len(rules))
		for i, r := range rules {
			if r.Source.Contains(node) {
				applicable = append(applicable, i)
			}
		}
		if len(applicable) == 0 {
			continue
		}

		fallback := mostSpecific(rules, applicable, func(r Rule) bool { return !r.Deny })
		byRule := make(map[int][]string)
		var order []int
		for _, dep := range node.Dependencies {
			target := snap.Lookup(dep)
			decided := mostSpecific(rules, applicable, func(r Rule) bool { return r.Target.Contains(target) })

			violated := -1
			switch {
			case decided >= 0 && rules[decided].Deny:
				violated = decided
			case decided < 0 && fallback >= 0:
				violated = fallback
			}
			if violated < 0 {
				continue
			}
			if _, seen := byRule[violated]; !seen {
				order = append(order, violated)
			}
			byRule[violated] = append(byRule[violated], dep)
		}

		if len(order) == 0 {
			continue
		}
		slices.Sort(order)
		violations := make([]Violation, 0, len(order))
		for _, i := range order {
			violations = append(violations, Violation{Rule: rules[i], Targets: byRule[i]})
		}
		out[node.Path] = violations
	}
	return out
}

// mostSpecific returns the index of the most specific rule among candidates
// that satisfies match, or -1. Candidates are in declaration order, so the
// strict comparison keeps the first of equally specific rules.
func mostSpecific(rules []Rule, candidates []int, match func(Rule) bool) int {
	best, bestScore := -1, -1
	for _, i := range candidates {
		if !match(rules[i]) {
			continue
		}
		if s := rules[i].Specificity(); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
