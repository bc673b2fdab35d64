package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Default parameter values applied when a metric entry omits them.
const (
	DefaultBins       = 64
	DefaultBaseVol    = 1e-4
	DefaultStddevCap  = 5.0
	DefaultPriceField = "mid"
)

// MetricsFile is the parsed metrics YAML document.
type MetricsFile struct {
	SchemaVersion string   `yaml:"schema_version"`
	Metrics       []Metric `yaml:"metrics"`
}

// Metric is one named metric entry. Params carries the union of all
// per-type parameters; Validate checks only the ones the type uses.
type Metric struct {
	Name    string       `yaml:"name"`
	Type    string       `yaml:"type"`
	Enabled *bool        `yaml:"enabled"`
	Params  MetricParams `yaml:"params"`
}

// MetricParams holds every tunable any metric type accepts.
type MetricParams struct {
	TauSeconds               float64  `yaml:"tau_seconds"`
	LookbackSeconds          float64  `yaml:"lookback_seconds"`
	WindowSeconds            float64  `yaml:"window_seconds"`
	PercentileHorizonSeconds float64  `yaml:"percentile_horizon_seconds"`
	Bins                     int      `yaml:"bins"`
	BaseVol                  float64  `yaml:"base_vol"`
	StddevCap                float64  `yaml:"stddev_cap"`
	PipSize                  float64  `yaml:"pip_size"`
	PriceField               string   `yaml:"price_field"`
	InitialValue             *float64 `yaml:"initial_value"`
	ThresholdPips            float64  `yaml:"threshold_pips"`
	TPPips                   *float64 `yaml:"tp_pips"`
	SLPips                   *float64 `yaml:"sl_pips"`
	MinRecencySeconds        float64  `yaml:"min_recency_seconds"`
	TradeTimeoutSeconds      *float64 `yaml:"trade_timeout_seconds"`
}

// IsEnabled reports whether the metric should be instantiated.
// Entries default to enabled when the key is absent.
func (m *Metric) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// LoadMetrics parses and validates a metrics YAML config.
func LoadMetrics(path string) (*MetricsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read metrics config: %w", err)
	}

	var mf MetricsFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("config: parse metrics config: %w", err)
	}

	if mf.SchemaVersion == "" {
		return nil, fmt.Errorf("config: metrics 'schema_version' must be a non-empty string")
	}

	seen := make(map[string]bool, len(mf.Metrics))
	for i := range mf.Metrics {
		m := &mf.Metrics[i]
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("config: metric entry #%d: %w", i+1, err)
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("config: duplicate metric name %q", m.Name)
		}
		seen[m.Name] = true
	}
	return &mf, nil
}

// Validate applies defaults and checks the parameters the metric type
// uses. Parameters a type does not use are ignored.
func (m *Metric) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("metric entry missing 'name'")
	}
	if m.Type == "" {
		return fmt.Errorf("metric %q missing 'type'", m.Name)
	}

	p := &m.Params
	switch m.Type {
	case "ewma":
		if err := m.validatePriceField(); err != nil {
			return err
		}
		return m.paramPositive(p.TauSeconds, "tau_seconds")

	case "ewma_slope":
		if err := m.validatePriceField(); err != nil {
			return err
		}
		if err := m.paramPositive(p.TauSeconds, "tau_seconds"); err != nil {
			return err
		}
		return m.paramPositive(p.WindowSeconds, "window_seconds")

	case "zscore", "drift_sign":
		return m.paramPositive(p.LookbackSeconds, "lookback_seconds")

	case "ewma_vol":
		if p.Bins == 0 {
			p.Bins = DefaultBins
		}
		if p.BaseVol == 0 {
			p.BaseVol = DefaultBaseVol
		}
		if p.StddevCap == 0 {
			p.StddevCap = DefaultStddevCap
		}
		if err := m.paramPositive(p.TauSeconds, "tau_seconds"); err != nil {
			return err
		}
		if err := m.paramPositive(p.PercentileHorizonSeconds, "percentile_horizon_seconds"); err != nil {
			return err
		}
		if p.Bins < 2 || p.Bins > 10000 {
			return fmt.Errorf("metric %q: 'bins' must be between 2 and 10000, got %d", m.Name, p.Bins)
		}
		if err := m.paramPositive(p.BaseVol, "base_vol"); err != nil {
			return err
		}
		return m.paramPositive(p.StddevCap, "stddev_cap")

	case "spread":
		if err := m.paramPositive(p.PipSize, "pip_size"); err != nil {
			return err
		}
		return m.paramPositive(p.WindowSeconds, "window_seconds")

	case "tick_rate":
		return m.paramPositive(p.WindowSeconds, "window_seconds")

	case "session":
		return nil

	case "threshold_reversion":
		if err := m.paramPositive(p.LookbackSeconds, "lookback_seconds"); err != nil {
			return err
		}
		if err := m.paramPositive(p.ThresholdPips, "threshold_pips"); err != nil {
			return err
		}
		if err := m.paramPositive(p.PipSize, "pip_size"); err != nil {
			return err
		}
		if p.TPPips == nil {
			v := p.ThresholdPips
			p.TPPips = &v
		} else if err := m.paramPositive(*p.TPPips, "tp_pips"); err != nil {
			return err
		}
		if p.SLPips == nil {
			v := p.ThresholdPips
			p.SLPips = &v
		} else if err := m.paramPositive(*p.SLPips, "sl_pips"); err != nil {
			return err
		}
		if err := m.paramNonNegative(p.MinRecencySeconds, "min_recency_seconds"); err != nil {
			return err
		}
		if p.TradeTimeoutSeconds != nil {
			return m.paramPositive(*p.TradeTimeoutSeconds, "trade_timeout_seconds")
		}
		return nil

	default:
		return fmt.Errorf("unrecognized metric type %q for metric %q", m.Type, m.Name)
	}
}

func (m *Metric) validatePriceField() error {
	if m.Params.PriceField == "" {
		m.Params.PriceField = DefaultPriceField
	}
	switch m.Params.PriceField {
	case "mid", "bid", "ask":
		return nil
	}
	return fmt.Errorf("metric %q: 'price_field' must be one of mid/bid/ask, got %q", m.Name, m.Params.PriceField)
}

func (m *Metric) paramPositive(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("metric %q: '%s' must be positive and finite, got %v", m.Name, name, v)
	}
	return nil
}

func (m *Metric) paramNonNegative(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("metric %q: '%s' must be non-negative and finite, got %v", m.Name, name, v)
	}
	return nil
}
