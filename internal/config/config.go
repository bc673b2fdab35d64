package config

import (
	"fmt"
	"math"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backtest is the top-level run configuration.
type Backtest struct {
	SchemaVersion      string   `yaml:"schema_version"`
	Pairs              []string `yaml:"pairs"`
	DataBasePath       string   `yaml:"data_base_path"`
	OutputBasePath     string   `yaml:"output_base_path"`
	YearStart          int      `yaml:"year_start"`
	YearEnd            int      `yaml:"year_end"`
	MonthStart         int      `yaml:"month_start"`
	MonthEnd           int      `yaml:"month_end"`
	PipSize            float64  `yaml:"pip_size"`
	WarmupSeconds      float64  `yaml:"warmup_seconds"`
	MetricsConfigPath  string   `yaml:"metrics_config_path"`
	StrategyConfigPath string   `yaml:"strategy_config_path"`
}

// LoadEnv loads a .env file if present and returns the value of key,
// falling back to def.
func LoadEnv(key, def string) string {
	_ = godotenv.Load() // missing .env is fine
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LoadBacktest parses and validates a backtest YAML config. Environment
// variables TICKBT_DATA_PATH and TICKBT_OUTPUT_PATH override the file
// paths when set.
func LoadBacktest(path string) (*Backtest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read backtest config: %w", err)
	}

	var cfg Backtest
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse backtest config: %w", err)
	}

	if v := LoadEnv("TICKBT_DATA_PATH", ""); v != "" {
		cfg.DataBasePath = v
	}
	if v := os.Getenv("TICKBT_OUTPUT_PATH"); v != "" {
		cfg.OutputBasePath = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the numeric and structural invariants of the run
// configuration.
func (c *Backtest) Validate() error {
	if c.SchemaVersion == "" {
		return fmt.Errorf("config: 'schema_version' must be a non-empty string")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("config: 'pairs' must list at least one pair")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for _, pair := range c.Pairs {
		if pair == "" {
			return fmt.Errorf("config: pairs must be non-empty strings")
		}
		if seen[pair] {
			return fmt.Errorf("config: duplicate pair %q", pair)
		}
		seen[pair] = true
	}
	if c.DataBasePath == "" {
		return fmt.Errorf("config: 'data_base_path' must be set")
	}
	if c.OutputBasePath == "" {
		return fmt.Errorf("config: 'output_base_path' must be set")
	}
	if c.MonthStart < 1 || c.MonthStart > 12 {
		return fmt.Errorf("config: 'month_start' must be between 1 and 12, got %d", c.MonthStart)
	}
	if c.MonthEnd < 1 || c.MonthEnd > 12 {
		return fmt.Errorf("config: 'month_end' must be between 1 and 12, got %d", c.MonthEnd)
	}
	if c.YearStart > c.YearEnd || (c.YearStart == c.YearEnd && c.MonthStart > c.MonthEnd) {
		return fmt.Errorf("config: start year/month must not be after end year/month")
	}
	if err := positiveFinite(c.PipSize, "pip_size"); err != nil {
		return err
	}
	if err := nonNegativeFinite(c.WarmupSeconds, "warmup_seconds"); err != nil {
		return err
	}
	if c.MetricsConfigPath == "" {
		return fmt.Errorf("config: 'metrics_config_path' must be set")
	}
	if c.StrategyConfigPath == "" {
		return fmt.Errorf("config: 'strategy_config_path' must be set")
	}
	return nil
}

func positiveFinite(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("config: '%s' must be positive and finite, got %v", name, v)
	}
	return nil
}

func nonNegativeFinite(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("config: '%s' must be non-negative and finite, got %v", name, v)
	}
	return nil
}
