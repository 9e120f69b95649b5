// Package config loads the reconcile configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

// DefaultPath is read when no --config flag is given. A missing default
// file is not an error.
const DefaultPath = "reconcile.yaml"

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the reconcile configuration.
type Config struct {
	RecordsDir   string `yaml:"records_dir"`
	ProposedDir  string `yaml:"proposed_dir"`
	OutputDir    string `yaml:"output_dir"`
	DecisionsDB  string `yaml:"decisions_db"`
	Expectations string `yaml:"expectations"`
	Workers      int    `yaml:"workers"`
	TargetSchema string `yaml:"target_schema"`
	Log          Log    `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RecordsDir:   "records",
		ProposedDir:  "proposed",
		OutputDir:    "final",
		DecisionsDB:  ".reconcile/decisions.db",
		Workers:      4,
		TargetSchema: string(schema.Latest),
		Log:          Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. If path is DefaultPath and the file
// does not exist, the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that have a closed set of options.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers: must be at least 1, got %d", c.Workers)
	}
	if _, err := schema.ParseVersion(c.TargetSchema); err != nil {
		return fmt.Errorf("target_schema: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: want text or json, got %q", c.Log.Format)
	}
	return nil
}

// Target returns the parsed target schema version.
func (c Config) Target() schema.Version {
	v, err := schema.ParseVersion(c.TargetSchema)
	if err != nil {
		return schema.Latest
	}
	return v
}
