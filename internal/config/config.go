// Package config loads the optional engine configuration file (.pake.yaml)
// from the engine root. Everything has a sensible default; a missing config
// file is not an error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up under the engine root.
const DefaultFileName = ".pake.yaml"

// JournalConfig controls the SQLite run journal.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Config is the engine configuration.
type Config struct {
	StateFile string        `yaml:"state_file"`
	Journal   JournalConfig `yaml:"journal"`
	LogLevel  string        `yaml:"log_level"`
	Color     string        `yaml:"color"` // auto | always | never
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	enabled := true
	return &Config{
		StateFile: ".pake-state",
		Journal: JournalConfig{
			Enabled: &enabled,
			Path:    ".pake-journal.db",
		},
		LogLevel: "INFO",
		Color:    "auto",
	}
}

// Load reads and parses configuration from path. A missing file yields the
// defaults; a present but invalid file is an error.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.StateFile == "" {
		cfg.StateFile = def.StateFile
	}
	if cfg.Journal.Enabled == nil {
		cfg.Journal.Enabled = def.Journal.Enabled
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = def.Journal.Path
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Color == "" {
		cfg.Color = def.Color
	}
}

func validate(cfg *Config) error {
	switch cfg.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", cfg.Color)
	}
	switch cfg.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log_level must be DEBUG, INFO, WARN or ERROR, got %q", cfg.LogLevel)
	}
	return nil
}

// JournalEnabled reports whether the run journal should be written.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled != nil && *c.Journal.Enabled
}
