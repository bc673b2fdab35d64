package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry engine names accepted by the strategy config.
const (
	EngineThresholdReversion = "threshold_reversion"
	EngineEWMACrossover      = "ewma_crossover"
	EngineNull               = "null"
)

var validOperators = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

// Predicate compares a snapshot field against a constant or another
// snapshot field. Exactly one of Value/OtherMetric must be set.
type Predicate struct {
	Metric      string   `yaml:"metric"`
	Operator    string   `yaml:"operator"`
	Value       *float64 `yaml:"value"`
	OtherMetric string   `yaml:"other_metric"`
	UseAbs      bool     `yaml:"use_abs"`
}

// Validate checks the predicate's structural invariants.
func (p *Predicate) Validate() error {
	if p.Metric == "" {
		return fmt.Errorf("predicate 'metric' must be a non-empty string")
	}
	if !validOperators[p.Operator] {
		return fmt.Errorf("predicate 'operator' must be one of < <= > >= == !=, got %q", p.Operator)
	}
	if p.Value == nil && p.OtherMetric == "" {
		return fmt.Errorf("predicate on %q must define either 'value' or 'other_metric'", p.Metric)
	}
	if p.Value != nil && p.OtherMetric != "" {
		return fmt.Errorf("predicate on %q cannot define both 'value' and 'other_metric'", p.Metric)
	}
	if p.Value != nil && math.IsNaN(*p.Value) {
		return fmt.Errorf("predicate 'value' on %q must not be NaN", p.Metric)
	}
	return nil
}

// EntryParams is the union of all entry engine parameter bundles.
type EntryParams struct {
	// threshold_reversion
	LookbackSeconds     float64  `yaml:"lookback_seconds"`
	ThresholdPips       float64  `yaml:"threshold_pips"`
	MinRecencySeconds   float64  `yaml:"min_recency_seconds"`
	TradeTimeoutSeconds *float64 `yaml:"trade_timeout_seconds"`

	// ewma_crossover
	FastMetric   string `yaml:"fast_metric"`
	SlowMetric   string `yaml:"slow_metric"`
	LongOnCross  *bool  `yaml:"long_on_cross"`
	ShortOnCross *bool  `yaml:"short_on_cross"`

	// shared
	TPPips *float64 `yaml:"tp_pips"`
	SLPips *float64 `yaml:"sl_pips"`
}

// Entry names one entry engine plus the predicates gating it.
type Entry struct {
	Name       string      `yaml:"name"`
	Engine     string      `yaml:"engine"`
	Params     EntryParams `yaml:"params"`
	Predicates []Predicate `yaml:"predicates"`
}

// Exit names one predicate-driven exit rule.
type Exit struct {
	Name       string      `yaml:"name"`
	Predicates []Predicate `yaml:"predicates"`
}

// Strategy is the parsed strategy YAML document.
type Strategy struct {
	SchemaVersion string `yaml:"schema_version"`
	Name          string `yaml:"name"`
	Entry         Entry  `yaml:"entry"`
	Exit          Exit   `yaml:"exit"`
}

// LoadStrategy parses and validates a strategy YAML config.
func LoadStrategy(path string) (*Strategy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read strategy config: %w", err)
	}

	var s Strategy
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("config: parse strategy config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the document structure, engine params and every
// predicate.
func (s *Strategy) Validate() error {
	if s.SchemaVersion == "" {
		return fmt.Errorf("config: strategy 'schema_version' must be a non-empty string")
	}
	if s.Name == "" {
		return fmt.Errorf("config: strategy 'name' must be a non-empty string")
	}
	if s.Entry.Name == "" {
		return fmt.Errorf("config: entry 'name' must be a non-empty string")
	}
	if s.Exit.Name == "" {
		return fmt.Errorf("config: exit 'name' must be a non-empty string")
	}

	if err := s.Entry.validateParams(); err != nil {
		return fmt.Errorf("config: entry %q: %w", s.Entry.Name, err)
	}
	for i := range s.Entry.Predicates {
		if err := s.Entry.Predicates[i].Validate(); err != nil {
			return fmt.Errorf("config: entry %q: %w", s.Entry.Name, err)
		}
	}
	for i := range s.Exit.Predicates {
		if err := s.Exit.Predicates[i].Validate(); err != nil {
			return fmt.Errorf("config: exit %q: %w", s.Exit.Name, err)
		}
	}
	return nil
}

func (e *Entry) validateParams() error {
	p := &e.Params
	switch e.Engine {
	case EngineThresholdReversion:
		if err := entryPositive(p.LookbackSeconds, "lookback_seconds"); err != nil {
			return err
		}
		if err := entryPositive(p.ThresholdPips, "threshold_pips"); err != nil {
			return err
		}
		if p.TPPips == nil {
			v := p.ThresholdPips
			p.TPPips = &v
		} else if err := entryPositive(*p.TPPips, "tp_pips"); err != nil {
			return err
		}
		if p.SLPips == nil {
			v := p.ThresholdPips
			p.SLPips = &v
		} else if err := entryPositive(*p.SLPips, "sl_pips"); err != nil {
			return err
		}
		if err := entryNonNegative(p.MinRecencySeconds, "min_recency_seconds"); err != nil {
			return err
		}

	case EngineEWMACrossover:
		if p.FastMetric == "" {
			return fmt.Errorf("'fast_metric' must be a non-empty string")
		}
		if p.SlowMetric == "" {
			return fmt.Errorf("'slow_metric' must be a non-empty string")
		}
		if p.LongOnCross == nil {
			v := true
			p.LongOnCross = &v
		}
		if p.ShortOnCross == nil {
			v := false
			p.ShortOnCross = &v
		}
		if p.TPPips == nil {
			v := 0.0
			p.TPPips = &v
		} else if err := entryNonNegative(*p.TPPips, "tp_pips"); err != nil {
			return err
		}
		if p.SLPips == nil {
			v := 0.0
			p.SLPips = &v
		} else if err := entryNonNegative(*p.SLPips, "sl_pips"); err != nil {
			return err
		}

	case EngineNull:
		// No parameters.

	default:
		return fmt.Errorf("unrecognized entry engine %q", e.Engine)
	}

	if p.TradeTimeoutSeconds != nil {
		return entryPositive(*p.TradeTimeoutSeconds, "trade_timeout_seconds")
	}
	return nil
}

func entryPositive(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("'%s' must be positive and finite, got %v", name, v)
	}
	return nil
}

func entryNonNegative(v float64, name string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("'%s' must be non-negative and finite, got %v", name, v)
	}
	return nil
}
