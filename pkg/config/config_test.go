package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"github.com/ritzau/depgraph/pkg/rules"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workspace != "." {
		t.Errorf("Expected workspace '.', got %q", cfg.Workspace)
	}
	if cfg.State.Backend != "file" || cfg.State.Dir != ".depgraph" {
		t.Errorf("Unexpected state config %+v", cfg.State)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.PathLimit != 1000 {
		t.Errorf("Expected path limit 1000, got %d", cfg.PathLimit)
	}
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	toml := `
border = 2
max_size = 5000
green_modules = ["core", "util"]

[state]
backend = "badger"

[filter]
excluded_suffixes = ["_test.cc"]

[[rules]]
source = "pkgA/*"
target = "pkgB/*"
deny = true
`
	if err := os.WriteFile(filepath.Join(dir, DefaultFile), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEPGRAPH_BORDER", "3")
	t.Setenv("DEPGRAPH_STATE__DIR", "/tmp/state")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("border", 0, "")
	fs.Int("port", 8080, "")
	fs.String("state-backend", "file", "")
	fs.Bool("bazel-modules", false, "")
	if err := fs.Parse([]string{"--port", "9090", "--bazel-modules"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Border != 3 {
		t.Errorf("Expected env to override file border, got %d", cfg.Border)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected flag port 9090, got %d", cfg.Port)
	}
	if !cfg.BazelModules {
		t.Error("Expected --bazel-modules to set bazel_modules")
	}
	if cfg.State.Backend != "badger" {
		t.Errorf("Expected unchanged flag to keep file value badger, got %q", cfg.State.Backend)
	}
	if cfg.State.Dir != "/tmp/state" {
		t.Errorf("Expected state dir from env, got %q", cfg.State.Dir)
	}
	if cfg.MaxSize != 5000 || len(cfg.GreenModules) != 2 {
		t.Errorf("Unexpected thresholds %+v", cfg.Thresholds())
	}
	if len(cfg.Filter.ExcludedSuffixes) != 1 {
		t.Errorf("Expected filter from file, got %+v", cfg.Filter)
	}
	want := rules.Spec{Source: "pkgA/*", Target: "pkgB/*", Deny: true}
	if len(cfg.Rules) != 1 || cfg.Rules[0] != want {
		t.Errorf("Expected rule %+v, got %+v", want, cfg.Rules)
	}
}

func TestLoadUnchangedStateFlags(t *testing.T) {
	chdir(t, t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.StringP("workspace", "w", ".", "")
	fs.String("state-dir", ".depgraph", "")
	fs.String("state-backend", "file", "")
	fs.StringP("verbosity", "v", "", "")
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.State.Dir != ".depgraph" || cfg.State.Backend != "file" {
		t.Errorf("Expected default state config, got %+v", cfg.State)
	}

	if err := fs.Parse([]string{"--state-dir", "custom"}); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.State.Dir != "custom" || cfg.State.Backend != "file" {
		t.Errorf("Expected state dir from flag, got %+v", cfg.State)
	}
}

func TestLoadDoesNotLeakBetweenCalls(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("DEPGRAPH_STATE__BACKEND", "badger")
	if _, err := Load(nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	os.Unsetenv("DEPGRAPH_STATE__BACKEND")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.State.Backend != "file" {
		t.Errorf("Expected default backend on second load, got %q", cfg.State.Backend)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())

	tests := map[string]string{
		"DEPGRAPH_STATE__BACKEND": "sqlite",
		"DEPGRAPH_VERBOSITY":      "loud",
		"DEPGRAPH_BORDER":         "-5",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(nil); err == nil {
				t.Errorf("Expected error for %s=%s", key, value)
			}
		})
	}
}

func TestLoadExplicitConfigMustExist(t *testing.T) {
	chdir(t, t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	if err := fs.Parse([]string{"--config", "missing.toml"}); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(fs); err == nil {
		t.Error("Expected error for missing explicit config file")
	}
}

func TestValidateRejectsBadRulePattern(t *testing.T) {
	cfg := &Config{
		Workspace: ".",
		State:     StateConfig{Dir: "x", Backend: "file"},
		Rules:     []rules.Spec{{Source: "src/[", Target: "x"}},
	}
	if err := Validate(cfg); err == nil {
		t.Error("Expected error for invalid rule pattern")
	}
}
