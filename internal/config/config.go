// Package config provides configuration loading for the waterfall tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"waterfall-mcp/internal/logging"
	"waterfall-mcp/internal/waterfall"
)

const (
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "WATERFALL_CONFIG"

	defaultDir  = ".waterfall"
	defaultFile = "config.yaml"
)

// Export formats understood by the export command.
const (
	FormatPprof  = "pprof"
	FormatSQLite = "sqlite"
	FormatJSONL  = "jsonl"
)

// Config is the top-level configuration.
type Config struct {
	Log       logging.Config    `yaml:"log"`
	Waterfall waterfall.Options `yaml:"waterfall"`
	Report    ReportConfig      `yaml:"report"`
	Export    ExportConfig      `yaml:"export"`
}

// ReportConfig controls text reports.
type ReportConfig struct {
	// TopN limits ranked listings such as the slowest spans.
	TopN int `yaml:"top_n"`
}

// ExportConfig controls the export command.
type ExportConfig struct {
	Format     string `yaml:"format"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log:    logging.DefaultConfig(),
		Report: ReportConfig{TopN: 10},
		Export: ExportConfig{
			Format:     FormatPprof,
			SQLitePath: "waterfall.db",
		},
	}
}

// DefaultPath returns the config file path: $WATERFALL_CONFIG when set,
// otherwise ~/.waterfall/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(defaultDir, defaultFile)
	}
	return filepath.Join(home, defaultDir, defaultFile)
}

// Load reads the configuration with layered precedence: defaults, then the
// YAML file at path (when it exists), then environment variables. An empty
// path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		//nolint:gosec // G304: Path is chosen by the operator.
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	if err := MergeFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeFromEnv applies WATERFALL_* environment variables onto cfg.
func MergeFromEnv(cfg *Config) error {
	if v := os.Getenv("WATERFALL_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("WATERFALL_LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WATERFALL_LOG_PRETTY %q: %w", v, err)
		}
		cfg.Log.Pretty = b
	}
	if v := os.Getenv("WATERFALL_HIGH_RESOLUTION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WATERFALL_HIGH_RESOLUTION %q: %w", v, err)
		}
		cfg.Waterfall.HighResolution = b
	}
	if v := os.Getenv("WATERFALL_FILTER"); v != "" {
		cfg.Waterfall.Filter = v
	}
	if v := os.Getenv("WATERFALL_BUCKET_FILTER"); v != "" {
		cfg.Waterfall.BucketFilter = v
	}
	if v := os.Getenv("WATERFALL_TOP_N"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid WATERFALL_TOP_N %q: %w", v, err)
		}
		cfg.Report.TopN = n
	}
	if v := os.Getenv("WATERFALL_SQLITE_PATH"); v != "" {
		cfg.Export.SQLitePath = v
	}
	return nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Report.TopN < 0 {
		return fmt.Errorf("report.top_n cannot be negative, got %d", c.Report.TopN)
	}
	switch c.Export.Format {
	case FormatPprof, FormatSQLite, FormatJSONL:
	default:
		return fmt.Errorf("export.format must be one of %s, %s, %s, got %q",
			FormatPprof, FormatSQLite, FormatJSONL, c.Export.Format)
	}
	return nil
}
