// Package config loads mdrun configuration from an optional YAML file with
// MDRUN_* environment overrides layered on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given explicitly.
const DefaultPath = ".mdrun.yaml"

// Config holds all mdrun configuration.
type Config struct {
	// RootDir resolves go-include: targets in source documents.
	RootDir string `yaml:"root_dir" env:"MDRUN_ROOT_DIR"`

	// TimeoutSeconds is the per-document watchdog deadline.
	TimeoutSeconds float64 `yaml:"timeout_seconds" env:"MDRUN_TIMEOUT_SECONDS"`

	// Timezone is forced process-wide before documents run, so snippets
	// formatting local times produce the same output on every machine.
	Timezone string `yaml:"timezone" env:"MDRUN_TIMEZONE"`

	// Seed seeds the rng capability injected into every document namespace.
	Seed int64 `yaml:"seed" env:"MDRUN_SEED"`

	// LegacyCommand is the out-of-process runtime for go-legacy blocks. It
	// receives the block body on stdin; its stdout becomes the result.
	LegacyCommand []string `yaml:"legacy_command" env:"MDRUN_LEGACY_COMMAND" envSeparator:" "`

	// SyntaxCommand parses without executing for go-syntax-error blocks. It
	// receives the block body on stdin; its stderr carries the diagnostics.
	SyntaxCommand []string `yaml:"syntax_command" env:"MDRUN_SYNTAX_COMMAND" envSeparator:" "`

	// Logging controls the categorized debug logger.
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" env:"MDRUN_DEBUG"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level" env:"MDRUN_LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RootDir:        ".",
		TimeoutSeconds: 5,
		Timezone:       "US/Pacific",
		Seed:           1234,
		LegacyCommand:  []string{"yaegi", "run"},
		SyntaxCommand:  []string{"gofmt", "-e"},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path (missing file is fine when path is the
// default), applies environment overrides, validates, and returns the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && path == DefaultPath:
		// No config file: defaults plus environment.
	default:
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate fills blanks with defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.RootDir == "" {
		c.RootDir = "."
	}
	if c.Timezone == "" {
		c.Timezone = "US/Pacific"
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %v", c.TimeoutSeconds)
	}
	if len(c.LegacyCommand) == 0 || c.LegacyCommand[0] == "" {
		return fmt.Errorf("legacy_command must name a runnable command")
	}
	if len(c.SyntaxCommand) == 0 || c.SyntaxCommand[0] == "" {
		return fmt.Errorf("syntax_command must name a runnable command")
	}
	return nil
}

// Timeout returns the watchdog deadline as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds * float64(time.Second))
}
