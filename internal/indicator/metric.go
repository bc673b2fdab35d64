package indicator

import (
	"fmt"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// Minimum inter-tick dt fed into the rolling primitives. Duplicate or
// regressed timestamps collapse to this value.
const minTickDt = 1e-6

// Metric is the interface every per-tick metric implements.
// Update folds one tick into the state; Value returns the current
// named output fields.
type Metric interface {
	// Name returns the configured instance name (e.g. "ewma_fast")
	Name() string

	// Update processes a new tick and updates the metric state
	Update(tick feed.Tick)

	// Value returns the current output fields keyed by field name
	Value() map[string]float64
}

// Builder constructs a metric from its validated config entry.
type Builder func(cfg config.Metric) (Metric, error)

var builders = map[string]Builder{
	"ewma": func(cfg config.Metric) (Metric, error) {
		return NewEWMAMetric(cfg.Name, cfg.Params.TauSeconds, cfg.Params.InitialValue, cfg.Params.PriceField)
	},
	"ewma_slope": func(cfg config.Metric) (Metric, error) {
		return NewEWMASlopeMetric(cfg.Name, cfg.Params.TauSeconds, cfg.Params.WindowSeconds, cfg.Params.InitialValue, cfg.Params.PriceField)
	},
	"zscore": func(cfg config.Metric) (Metric, error) {
		return NewZScoreMetric(cfg.Name, cfg.Params.LookbackSeconds)
	},
	"drift_sign": func(cfg config.Metric) (Metric, error) {
		return NewDriftSignMetric(cfg.Name, cfg.Params.LookbackSeconds)
	},
	"ewma_vol": func(cfg config.Metric) (Metric, error) {
		return NewEWMAVolMetric(cfg.Name, cfg.Params.TauSeconds, cfg.Params.PercentileHorizonSeconds,
			cfg.Params.Bins, cfg.Params.BaseVol, cfg.Params.StddevCap)
	},
	"spread": func(cfg config.Metric) (Metric, error) {
		return NewSpreadMetric(cfg.Name, cfg.Params.PipSize, cfg.Params.WindowSeconds)
	},
	"tick_rate": func(cfg config.Metric) (Metric, error) {
		return NewTickRateMetric(cfg.Name, cfg.Params.WindowSeconds)
	},
	"session": func(cfg config.Metric) (Metric, error) {
		return NewSessionMetric(cfg.Name), nil
	},
	"threshold_reversion": func(cfg config.Metric) (Metric, error) {
		return NewThresholdReversionMetric(cfg.Name, ThresholdReversionParams{
			LookbackSeconds:     cfg.Params.LookbackSeconds,
			ThresholdPips:       cfg.Params.ThresholdPips,
			PipSize:             cfg.Params.PipSize,
			TPPips:              deref(cfg.Params.TPPips, cfg.Params.ThresholdPips),
			SLPips:              deref(cfg.Params.SLPips, cfg.Params.ThresholdPips),
			MinRecencySeconds:   cfg.Params.MinRecencySeconds,
			TradeTimeoutSeconds: cfg.Params.TradeTimeoutSeconds,
		})
	},
}

// Build instantiates the metric described by cfg.
func Build(cfg config.Metric) (Metric, error) {
	builder, ok := builders[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("indicator: unrecognized metric type %q", cfg.Type)
	}
	m, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("indicator: failed to build metric %q of type %q: %w", cfg.Name, cfg.Type, err)
	}
	return m, nil
}

func deref(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}
