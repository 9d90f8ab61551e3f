// Package config loads the service configuration from defaults, an optional
// JSON file and RDS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvConfigPath names the variable that points at a JSON config file when no
// explicit path is given.
const EnvConfigPath = "RDS_CONFIG"

// Config is the single typed configuration shape used by the service.
type Config struct {
	OutputDir     string  `mapstructure:"output_dir"`
	TemplateDir   string  `mapstructure:"template_dir"`
	WordTemplate  string  `mapstructure:"word_template"`
	DumpPath      string  `mapstructure:"dump_path"`
	DefaultMargin float64 `mapstructure:"default_margin"`
	PDFEnabled    bool    `mapstructure:"pdf_enabled"`
	CostSheetPath string  `mapstructure:"cost_sheet_path"`
	LogLevel      string  `mapstructure:"log_level"`
	SeedDemo      bool    `mapstructure:"seed_demo"`
}

// ConfigError reports a config file that was requested but could not be read.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: read %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var defaults = map[string]any{
	"output_dir":      "./output",
	"template_dir":    "./data/templates",
	"word_template":   "./data/templates/proposal_template.docx",
	"dump_path":       "./.cache/ingest/workbook.json",
	"default_margin":  0.24,
	"pdf_enabled":     true,
	"cost_sheet_path": "",
	"log_level":       "info",
	"seed_demo":       false,
}

// Load resolves the configuration. path may be empty, in which case
// RDS_CONFIG is consulted; a named file that cannot be read is an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("RDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, &ConfigError{Path: path, Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	c.TemplateDir = strings.TrimSpace(c.TemplateDir)
	c.WordTemplate = strings.TrimSpace(c.WordTemplate)
	c.DumpPath = strings.TrimSpace(c.DumpPath)
	c.CostSheetPath = strings.TrimSpace(c.CostSheetPath)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))

	if c.OutputDir == "" || c.TemplateDir == "" {
		return errors.New("config: output_dir and template_dir must be set")
	}
	if c.WordTemplate == "" {
		c.WordTemplate = filepath.Join(c.TemplateDir, "proposal_template.docx")
	}

	switch {
	case math.IsNaN(c.DefaultMargin), c.DefaultMargin < 0:
		c.DefaultMargin = 0
	case c.DefaultMargin > 0.99:
		c.DefaultMargin = 0.99
	}

	for _, dir := range []string{c.TemplateDir, c.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}
