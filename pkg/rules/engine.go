package rules

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/logging"
	"github.com/ritzau/depgraph/pkg/metrics"
	"github.com/ritzau/depgraph/pkg/model"
)

type ruleSet struct {
	rules   []Rule
	version uint64
}

type cachedClassification struct {
	generation uint64
	version    uint64
	result     Classification
}

// Engine owns the rule list and caches the classification of the latest
// snapshot. The cache is keyed by graph generation and rule version, so any
// commit or rule change invalidates it lazily.
type Engine struct {
	store *graph.Store

	writeMu sync.Mutex
	current atomic.Pointer[ruleSet]

	cacheMu sync.Mutex
	cache   *cachedClassification
}

// NewEngine creates an engine without rules
func NewEngine(store *graph.Store) *Engine {
	e := &Engine{store: store}
	e.current.Store(&ruleSet{})
	return e
}

// Rules returns the rules in declaration order
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.current.Load().rules)
}

// Specs returns the rules in their serializable form
func (e *Engine) Specs() []Spec {
	rules := e.current.Load().rules
	out := make([]Spec, len(rules))
	for i, r := range rules {
		out[i] = r.Spec()
	}
	return out
}

// Version increments with every change to the rule list
func (e *Engine) Version() uint64 {
	return e.current.Load().version
}

// SetRules replaces the rule list. No rule is installed unless all compile.
func (e *Engine) SetRules(specs []Spec) error {
	compiled, err := CompileAll(specs)
	if err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	prev := e.current.Load()
	e.current.Store(&ruleSet{rules: compiled, version: prev.version + 1})
	return nil
}

// CanAddRule reports whether some node in src has a direct edge to a node,
// or an external target, in dst.
func (e *Engine) CanAddRule(src, dst model.Scope) bool {
	snap := e.store.Snapshot()
	for node := range snap.Nodes() {
		if !src.Contains(node) {
			continue
		}
		for _, dep := range node.Dependencies {
			if dst.Contains(snap.Lookup(dep)) {
				return true
			}
		}
	}
	return false
}

// AddRule appends a rule if a direct edge backs it. It returns false, and
// leaves the rule list untouched, when no node matching source depends
// directly on a node matching target. Malformed patterns are an error.
func (e *Engine) AddRule(source, target string, deny bool) (bool, error) {
	rule, err := Spec{Source: source, Target: target, Deny: deny}.Compile()
	if err != nil {
		return false, fmt.Errorf("add rule: %w", err)
	}
	if !e.CanAddRule(rule.Source, rule.Target) {
		logging.Debug("rule refused, no direct edge", "rule", rule.Descriptor())
		return false, nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	prev := e.current.Load()
	rules := append(slices.Clone(prev.rules), rule)
	e.current.Store(&ruleSet{rules: rules, version: prev.version + 1})
	logging.Info("rule added", "rule", rule.Descriptor(), "rules", len(rules))
	return true, nil
}

// Classify returns the classification of the latest snapshot. The result
// is a copy the caller may modify.
func (e *Engine) Classify() Classification {
	snap := e.store.Snapshot()
	set := e.current.Load()

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	if c := e.cache; c != nil && c.generation == snap.Generation() && c.version == set.version {
		return c.result.Clone()
	}

	metrics.RuleClassifications.Inc()
	result := Classify(snap, set.rules)
	e.cache = &cachedClassification{
		generation: snap.Generation(),
		version:    set.version,
		result:     result,
	}
	logging.Debug("classified edges",
		"generation", snap.Generation(),
		"rules", len(set.rules),
		"illegal", result.Count())
	return result.Clone()
}
