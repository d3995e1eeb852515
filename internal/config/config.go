// Package config provides unified configuration loading for xtd.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the per-project configuration file inside
// the data directory.
const ConfigFileName = "config.yaml"

// DataDirName is the name of the per-project data directory.
const DataDirName = ".xtd"

// Config contains all xtd configuration settings.
type Config struct {
	// Detect contains the detection pipeline parameters.
	Detect DetectConfig `json:"detect" yaml:"detect"`

	// Catalog contains settings for the persistent run catalog.
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Logging contains settings for operational and trace logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// DetectConfig configures the detection pipeline.
type DetectConfig struct {
	// Columns names the event attributes forming the feature vector, in
	// order. The last three are treated as the spatial position.
	Columns []string `json:"columns" yaml:"columns"`

	// K is the neighbor count of the k-nearest-neighbor graph.
	K int `json:"k" yaml:"k"`

	// Layers is the number of diffusion iterations.
	Layers int `json:"layers" yaml:"layers"`

	// Quantile is the per-iteration survivor threshold quantile, in (0, 1).
	Quantile float64 `json:"quantile" yaml:"quantile"`

	// MinPoints is the DBSCAN core-point neighbor minimum.
	MinPoints int `json:"min_points" yaml:"min_points"`

	// Filters holds inclusive [low, high] row filters keyed by column name,
	// applied while loading the event table.
	Filters map[string][]float64 `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// CatalogConfig configures the persistent run catalog.
type CatalogConfig struct {
	// Enabled controls whether detection runs are recorded in the catalog.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// LoggingConfig configures xtd's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables iteration tracing to .xtd/trace.jsonl.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the reference detection parameters.
func Default() *Config {
	return &Config{
		Detect: DetectConfig{
			Columns:   []string{"PI", "TIME", "X", "Y"},
			K:         8,
			Layers:    10,
			Quantile:  0.99,
			MinPoints: 5,
			Filters:   map[string][]float64{"FLAG": {0, 4}},
		},
		Catalog: CatalogConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the project rooted at root.
// Order: defaults -> root/.xtd/config.yaml -> environment variables.
func Load(root string) (*Config, error) {
	config := Default()

	configPath := filepath.Join(root, DataDirName, ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		fileConfig, loadErr := LoadFromFile(configPath)
		if loadErr != nil {
			return nil, fmt.Errorf("loading config file: %w", loadErr)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	d := c.Detect
	if len(d.Columns) < 3 {
		return fmt.Errorf("detect.columns needs at least 3 entries for a spatial position, got %d", len(d.Columns))
	}
	if d.K <= 0 {
		return fmt.Errorf("detect.k must be positive, got %d", d.K)
	}
	if d.Layers < 0 {
		return fmt.Errorf("detect.layers must be non-negative, got %d", d.Layers)
	}
	if d.Quantile <= 0 || d.Quantile >= 1 {
		return fmt.Errorf("detect.quantile must lie in (0, 1), got %f", d.Quantile)
	}
	if d.MinPoints <= 0 {
		return fmt.Errorf("detect.min_points must be positive, got %d", d.MinPoints)
	}
	for col, bounds := range d.Filters {
		if len(bounds) != 2 {
			return fmt.Errorf("detect.filters[%s] needs exactly [low, high], got %d values", col, len(bounds))
		}
		if bounds[0] > bounds[1] {
			return fmt.Errorf("detect.filters[%s] has low %f above high %f", col, bounds[0], bounds[1])
		}
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// FilterRanges converts the validated filter configuration into the fixed
// [low, high] pairs the reader consumes.
func (c *Config) FilterRanges() map[string][2]float64 {
	out := make(map[string][2]float64, len(c.Detect.Filters))
	for col, bounds := range c.Detect.Filters {
		if len(bounds) == 2 {
			out[col] = [2]float64{bounds[0], bounds[1]}
		}
	}
	return out
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("XTD_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Detect.K = n
		}
	}

	if v := os.Getenv("XTD_LAYERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Detect.Layers = n
		}
	}

	if v := os.Getenv("XTD_QUANTILE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Detect.Quantile = f
		}
	}

	if v := os.Getenv("XTD_MIN_POINTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Detect.MinPoints = n
		}
	}

	if v := os.Getenv("XTD_CATALOG_ENABLED"); v != "" {
		config.Catalog.Enabled = v == "true" || v == "1"
	}

	if v := os.Getenv("XTD_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// WriteDefault writes the default configuration to the project's data
// directory, creating it when necessary. Existing files are left alone.
func WriteDefault(root string) (string, error) {
	dir := filepath.Join(root, DataDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating %s directory: %w", DataDirName, err)
	}

	path := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
