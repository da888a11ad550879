package rules

import (
	"encoding/json"
	"fmt"
)

// Spec is the configuration and persistence form of a rule
type Spec struct {
	Source string `json:"source" koanf:"source" validate:"required"`
	Target string `json:"target" koanf:"target" validate:"required"`
	Deny   bool   `json:"deny" koanf:"deny"`
}

// Rule restricts the edges from nodes matching Source to nodes matching Target
type Rule struct {
	Source Pattern
	Target Pattern
	Deny   bool
}

// Compile parses both patterns of the spec
func (s Spec) Compile() (Rule, error) {
	src, err := ParsePattern(s.Source)
	if err != nil {
		return Rule{}, fmt.Errorf("source: %w", err)
	}
	dst, err := ParsePattern(s.Target)
	if err != nil {
		return Rule{}, fmt.Errorf("target: %w", err)
	}
	return Rule{Source: src, Target: dst, Deny: s.Deny}, nil
}

// Spec returns the serializable form of the rule
func (r Rule) Spec() Spec {
	return Spec{Source: r.Source.String(), Target: r.Target.String(), Deny: r.Deny}
}

// Specificity is the combined specificity of both patterns
func (r Rule) Specificity() int {
	return r.Source.Specificity() + r.Target.Specificity()
}

// Descriptor renders the rule for reports, e.g. "deny pkgA/* -> pkgB/*"
func (r Rule) Descriptor() string {
	kind := "allow"
	if r.Deny {
		kind = "deny"
	}
	return fmt.Sprintf("%s %s -> %s", kind, r.Source, r.Target)
}

func (r Rule) String() string {
	return r.Descriptor()
}

// MarshalJSON encodes the rule as its spec
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Spec())
}

// UnmarshalJSON decodes a spec and compiles it
func (r *Rule) UnmarshalJSON(data []byte) error {
	var s Spec
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	compiled, err := s.Compile()
	if err != nil {
		return err
	}
	*r = compiled
	return nil
}

// CompileAll compiles specs in order, stopping at the first invalid one
func CompileAll(specs []Spec) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for i, s := range specs {
		r, err := s.Compile()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
