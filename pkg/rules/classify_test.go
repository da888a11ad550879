package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ritzau/depgraph/pkg/graph"
	"github.com/ritzau/depgraph/pkg/model"
)

func snapshot(nodes ...*model.Node) *graph.Snapshot {
	return graph.NewStore().Replace(nodes)
}

func compile(t *testing.T, specs ...Spec) []Rule {
	t.Helper()
	rules, err := CompileAll(specs)
	require.NoError(t, err)
	return rules
}

func TestClassify_DenyScenario(t *testing.T) {
	snap := snapshot(
		model.NewNode("pkgA/X", "a", "", 0, []string{"pkgB/Y", "pkgA/Z"}),
		model.NewNode("pkgB/Y", "b", "", 0, nil),
		model.NewNode("pkgA/Z", "a", "", 0, nil),
	)
	rules := compile(t, Spec{Source: "pkgA/*", Target: "pkgB/*", Deny: true})

	c := Classify(snap, rules)

	require.Len(t, c["pkgA/X"], 1)
	assert.Equal(t, "deny pkgA/* -> pkgB/*", c["pkgA/X"][0].Rule.Descriptor())
	assert.Equal(t, []string{"pkgB/Y"}, c["pkgA/X"][0].Targets)
	assert.False(t, c.IsLegal("pkgA/X", "pkgB/Y"))
	assert.True(t, c.IsLegal("pkgA/X", "pkgA/Z"), "deny-only rules leave unmatched targets legal")
	assert.Equal(t, 1, c.Count())
}

func TestClassify_NoRulesAllLegal(t *testing.T) {
	snap := snapshot(model.NewNode("a", "", "", 0, []string{"b"}))

	c := Classify(snap, nil)

	assert.Empty(t, c)
	assert.True(t, c.IsLegal("a", "b"))
}

func TestClassify_AllowListDefaultDeny(t *testing.T) {
	snap := snapshot(
		model.NewNode("app/main.cc", "app", "", 0, []string{"lib/api.h", "lib/internal/impl.h", "<vector>"}),
		model.NewNode("tools/t.cc", "tools", "", 0, []string{"lib/internal/impl.h"}),
	)
	rules := compile(t,
		Spec{Source: "app", Target: "lib/api.h"},
		Spec{Source: "app", Target: "<vector>"},
	)

	c := Classify(snap, rules)

	assert.True(t, c.IsLegal("app/main.cc", "lib/api.h"))
	assert.True(t, c.IsLegal("app/main.cc", "<vector>"))
	assert.False(t, c.IsLegal("app/main.cc", "lib/internal/impl.h"))
	require.Len(t, c["app/main.cc"], 1)
	// Attributed to the most specific allow rule
	assert.Equal(t, "allow app -> lib/api.h", c["app/main.cc"][0].Rule.Descriptor())
	assert.True(t, c.IsLegal("tools/t.cc", "lib/internal/impl.h"), "no rule applies to tools")
}

// Precedence matrix for mixed allow and deny rules
func TestClassify_Precedence(t *testing.T) {
	snap := snapshot(
		model.NewNode("app/main.cc", "app", "", 0, []string{
			"lib/public/a.h",
			"lib/private/b.h",
			"lib/private/ok.h",
			"other/c.h",
		}),
	)

	tests := []struct {
		name    string
		rules   []Spec
		illegal []string
	}{
		{
			name: "specific deny beats broad allow",
			rules: []Spec{
				{Source: "app", Target: "lib"},
				{Source: "app", Target: "lib/private", Deny: true},
			},
			illegal: []string{"lib/private/b.h", "lib/private/ok.h", "other/c.h"},
		},
		{
			name: "specific allow beats broad deny",
			rules: []Spec{
				{Source: "app", Target: "lib/**", Deny: true},
				{Source: "app", Target: "lib/private/ok.h"},
			},
			illegal: []string{"lib/public/a.h", "lib/private/b.h", "other/c.h"},
		},
		{
			name: "equal specificity first declared wins",
			rules: []Spec{
				{Source: "app", Target: "lib/public", Deny: true},
				{Source: "app", Target: "lib/public"},
			},
			illegal: []string{"lib/public/a.h", "lib/private/b.h", "lib/private/ok.h", "other/c.h"},
		},
		{
			name: "deny only",
			rules: []Spec{
				{Source: "app", Target: "other", Deny: true},
			},
			illegal: []string{"other/c.h"},
		},
		{
			name: "source specificity counts",
			rules: []Spec{
				{Source: "app/main.cc", Target: "lib", Deny: true},
				{Source: "app", Target: "lib"},
			},
			illegal: []string{"lib/public/a.h", "lib/private/b.h", "lib/private/ok.h", "other/c.h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(snap, compile(t, tt.rules...))

			var got []string
			for _, e := range c.Illegal() {
				got = append(got, e.To)
			}
			assert.ElementsMatch(t, tt.illegal, got)
		})
	}
}

func TestClassify_ModulePatterns(t *testing.T) {
	snap := snapshot(
		model.NewNode("ui/view.cc", "ui", "", 0, []string{"db/store.h", "core/types.h"}),
		model.NewNode("db/store.h", "db", "", 0, nil),
		model.NewNode("core/types.h", "core", "", 0, nil),
	)
	rules := compile(t, Spec{Source: "module:ui", Target: "module:db", Deny: true})

	c := Classify(snap, rules)

	assert.Equal(t, []model.Edge{{From: "ui/view.cc", To: "db/store.h"}}, c.Illegal())
}
