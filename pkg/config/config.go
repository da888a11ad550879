package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/depgraph/pkg/builder"
	"github.com/ritzau/depgraph/pkg/cycles"
	"github.com/ritzau/depgraph/pkg/rules"
)

// DefaultFile is read from the working directory when present
const DefaultFile = "depgraph.toml"

// EnvPrefix prefixes environment overrides. A double underscore separates
// nesting levels: DEPGRAPH_STATE__BACKEND=badger sets state.backend.
const EnvPrefix = "DEPGRAPH_"

// Config holds all configuration for the application
type Config struct {
	Workspace string      `koanf:"workspace" validate:"required"`
	State     StateConfig `koanf:"state"`

	Border    int `koanf:"border" validate:"gte=-1"`
	PathLimit int `koanf:"path_limit" validate:"gte=0"`

	DepthCap       int      `koanf:"depth_cap" validate:"gte=0"`
	MaxDepth       int      `koanf:"max_depth" validate:"gte=0"`
	MaxSize        uint64   `koanf:"max_size"`
	GreenModules   []string `koanf:"green_modules"`
	RedClassifiers []string `koanf:"red_classifiers"`

	// BazelModules takes modules from the owning cc_* targets
	BazelModules bool `koanf:"bazel_modules"`

	Workers   int            `koanf:"workers" validate:"gte=0"`
	CacheSize int            `koanf:"cache_size" validate:"gte=0"`
	Filter    builder.Filter `koanf:"filter"`
	Rules     []rules.Spec   `koanf:"rules" validate:"dive"`

	Port      int    `koanf:"port" validate:"gte=0,lte=65535"`
	Watch     bool   `koanf:"watch"`
	Verbosity string `koanf:"verbosity" validate:"omitempty,oneof=trace debug info warn error"`
	JSONLogs  bool   `koanf:"json_logs"`
}

// StateConfig selects where the graph and rules are persisted
type StateConfig struct {
	Dir     string `koanf:"dir" validate:"required"`
	Backend string `koanf:"backend" validate:"oneof=file badger"`
}

// Thresholds returns the coloring thresholds
func (c *Config) Thresholds() cycles.Thresholds {
	return cycles.Thresholds{
		DepthCap:       c.DepthCap,
		MaxDepth:       c.MaxDepth,
		MaxSize:        c.MaxSize,
		GreenModules:   c.GreenModules,
		RedClassifiers: c.RedClassifiers,
	}
}

// defaults returns a fresh nested map per load since koanf merges later
// layers into it. Keys must be nested; mapProvider does not unflatten.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"workspace": ".",
		"state": map[string]interface{}{
			"dir":     ".depgraph",
			"backend": "file",
		},
		"border":          0,
		"path_limit":      1000,
		"depth_cap":       cycles.DefaultDepthCap,
		"max_depth":       0,
		"max_size":        0,
		"green_modules":   []string{},
		"red_classifiers": []string{},
		"bazel_modules":   false,
		"workers":         0,
		"cache_size":      builder.DefaultCacheSize,
		"port":            8080,
		"watch":           false,
		"verbosity":       "",
		"json_logs":       false,
	}
}

// flagKeys maps flag names that do not follow the key naming
var flagKeys = map[string]string{
	"state-dir":     "state.dir",
	"state-backend": "state.backend",
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
//
// The config file is the value of a "config" flag when the flag set defines
// one, otherwise depgraph.toml if it exists.
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	path, explicit := configPath(f)
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, flagKey(f)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and rule patterns
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := rules.CompileAll(cfg.Rules); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func configPath(f *pflag.FlagSet) (string, bool) {
	if f != nil {
		if flag := f.Lookup("config"); flag != nil && flag.Value.String() != "" {
			return flag.Value.String(), flag.Changed
		}
	}
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p, true
	}
	return DefaultFile, false
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func flagKey(fs *pflag.FlagSet) func(*pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		if f.Name == "config" {
			return "", nil
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
