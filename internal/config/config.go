// Package config loads polyevolve settings from defaults, an optional YAML
// file and POLYEVOLVE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"polyevolve/internal/logging"
	"polyevolve/internal/metrics"
	"polyevolve/internal/plugin"
)

const EnvPrefix = "POLYEVOLVE_"

var ErrInvalid = errors.New("invalid config")

var storeKinds = []string{"memory", "sqlite", "badger"}

type Config struct {
	Shapes      int    `yaml:"shapes" env:"SHAPES"`
	Vertices    int    `yaml:"vertices" env:"VERTICES"`
	Initializer string `yaml:"initializer" env:"INITIALIZER"`
	Mutator     string `yaml:"mutator" env:"MUTATOR"`
	Evaluator   string `yaml:"evaluator" env:"EVALUATOR"`

	Store   StoreConfig   `yaml:"store" envPrefix:"STORE_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`
}

type StoreConfig struct {
	// Kind is memory, sqlite or badger.
	Kind string `yaml:"kind" env:"KIND"`
	// Path is the sqlite database file or badger directory.
	Path string `yaml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Shapes:      50,
		Vertices:    6,
		Initializer: plugin.TagSegmented,
		Mutator:     plugin.TagHard,
		Evaluator:   plugin.TagRGB,
		Store: StoreConfig{
			Kind: "memory",
		},
		Log: LogConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
		Metrics: MetricsConfig{
			Namespace: metrics.DefaultNamespace,
		},
	}
}

// Load applies path (skipped when empty) and the environment over the
// defaults, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Shapes <= 0 {
		return fmt.Errorf("%w: shapes must be positive, got %d", ErrInvalid, c.Shapes)
	}
	if c.Vertices <= 0 {
		return fmt.Errorf("%w: vertices must be positive, got %d", ErrInvalid, c.Vertices)
	}
	for _, check := range []struct {
		role plugin.Role
		tag  string
	}{
		{plugin.RoleInitializer, c.Initializer},
		{plugin.RoleMutator, c.Mutator},
		{plugin.RoleEvaluator, c.Evaluator},
	} {
		if !slices.Contains(plugin.List(check.role), check.tag) {
			return fmt.Errorf("%w: unknown %s %q", ErrInvalid, check.role, check.tag)
		}
	}
	if !slices.Contains(storeKinds, c.Store.Kind) {
		return fmt.Errorf("%w: unknown store kind %q", ErrInvalid, c.Store.Kind)
	}
	if c.Store.Kind != "memory" && c.Store.Path == "" {
		return fmt.Errorf("%w: store %s requires a path", ErrInvalid, c.Store.Kind)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}
