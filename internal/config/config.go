// Package config loads sleuth settings from an optional HCL file and the
// environment. Environment variables override the file; CLI flags override
// both and are applied by the cmd package.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config holds process configuration.
type Config struct {
	LogLevel     string `hcl:"log_level,optional"`
	LogFormat    string `hcl:"log_format,optional"`
	ExportFormat string `hcl:"export_format,optional"` // csv, json, sqlite
	OutputDir    string `hcl:"output_dir,optional"`
}

var ErrInvalid = errors.New("invalid configuration")

// Formats accepted by export_format.
var Formats = []string{"csv", "json", "sqlite"}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "console",
		ExportFormat: "csv",
		OutputDir:    ".",
	}
}

// Load reads path (skipped when empty) over the defaults, then applies the
// SLEUTH_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var file Config
		if err := hclsimple.DecodeFile(path, nil, &file); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg.merge(&file)
	}

	cfg.LogLevel = envOr("SLEUTH_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envOr("SLEUTH_LOG_FORMAT", cfg.LogFormat)
	cfg.ExportFormat = envOr("SLEUTH_EXPORT_FORMAT", cfg.ExportFormat)
	cfg.OutputDir = envOr("SLEUTH_OUTPUT_DIR", cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	c.ExportFormat = strings.ToLower(c.ExportFormat)
	for _, f := range Formats {
		if c.ExportFormat == f {
			return nil
		}
	}
	return fmt.Errorf("%w: export_format %q (want one of %s)", ErrInvalid, c.ExportFormat, strings.Join(Formats, ", "))
}

func (c *Config) merge(o *Config) {
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		c.LogFormat = o.LogFormat
	}
	if o.ExportFormat != "" {
		c.ExportFormat = o.ExportFormat
	}
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
