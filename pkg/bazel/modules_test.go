package bazel

import (
	"context"
	"errors"
	"testing"
)

type fakeExecutor struct {
	output []byte
	err    error
	query  string
}

func (f *fakeExecutor) RunQuery(ctx context.Context, workspacePath string, query string) ([]byte, error) {
	f.query = query
	return f.output, f.err
}

const queryOutput = `<?xml version="1.1" encoding="UTF-8" standalone="no"?>
<query version="2">
	<rule class="cc_library" location="/ws/util/BUILD:1:11" name="//util:util">
		<string name="name" value="util"/>
		<list name="srcs">
			<label value="//util:strings.cc"/>
		</list>
		<list name="hdrs">
			<label value="//util:strings.h"/>
			<label value="//util:detail/impl.h"/>
		</list>
		<list name="deps">
			<label value="@abseil//absl/strings"/>
		</list>
	</rule>
	<rule class="cc_binary" location="/ws/BUILD:1:10" name="//:app">
		<list name="srcs">
			<label value="//:main.cc"/>
			<label value="//util:strings.h"/>
		</list>
	</rule>
	<rule class="genrule" location="/ws/gen/BUILD:1:8" name="//gen:version">
		<list name="srcs">
			<label value="//gen:version.in"/>
		</list>
	</rule>
	<source-file name="//util:strings.cc" location="/ws/util/strings.cc:1:1"/>
</query>`

func TestParseModules(t *testing.T) {
	m, err := ParseModules([]byte(queryOutput))
	if err != nil {
		t.Fatalf("ParseModules failed: %v", err)
	}

	want := map[string]string{
		"util/strings.cc":    "//util:util",
		"util/strings.h":     "//util:util",
		"util/detail/impl.h": "//util:util",
		"main.cc":            "//:app",
	}
	if len(m) != len(want) {
		t.Errorf("got %d entries, want %d: %v", len(m), len(want), m)
	}
	for p, label := range want {
		if got, ok := m.ModuleOf(p); !ok || got != label {
			t.Errorf("ModuleOf(%q) = %q, %v; want %q", p, got, ok, label)
		}
	}
	if _, ok := m.ModuleOf("gen/version.in"); ok {
		t.Error("genrule sources should not define modules")
	}
}

func TestParseModulesInvalid(t *testing.T) {
	if _, err := ParseModules([]byte("<query><rule")); err == nil {
		t.Error("expected error for truncated output")
	}
}

func TestLabelToPath(t *testing.T) {
	tests := []struct {
		label string
		want  string
		ok    bool
	}{
		{"//util:strings.cc", "util/strings.cc", true},
		{"//:main.cc", "main.cc", true},
		{"//a/b:c/d.h", "a/b/c/d.h", true},
		{"@ext//lib:x.h", "", false},
		{"//util", "", false},
		{"//util:", "", false},
	}
	for _, tt := range tests {
		got, ok := LabelToPath(tt.label)
		if got != tt.want || ok != tt.ok {
			t.Errorf("LabelToPath(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoadModules(t *testing.T) {
	exec := &fakeExecutor{output: []byte(queryOutput)}
	m, err := LoadModules(context.Background(), exec, "/ws")
	if err != nil {
		t.Fatalf("LoadModules failed: %v", err)
	}
	if exec.query != ModuleQuery {
		t.Errorf("query = %q, want %q", exec.query, ModuleQuery)
	}
	if len(m) != 4 {
		t.Errorf("got %d entries, want 4", len(m))
	}

	failing := &fakeExecutor{err: errors.New("bazel not found")}
	if _, err := LoadModules(context.Background(), failing, "/ws"); err == nil {
		t.Error("expected executor error to propagate")
	}
}
