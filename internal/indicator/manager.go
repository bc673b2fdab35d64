package indicator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// Manager owns the configured metrics for one pair and fans each tick
// out to all of them in config order. Snapshots flatten every metric's
// output fields under "<metric>.<field>" keys.
type Manager struct {
	metrics []Metric
	logger  *zap.Logger
}

// NewManager builds all enabled metrics from the config. Disabled
// entries are skipped with a log line; duplicate names are rejected.
func NewManager(mf *config.MetricsFile, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := make([]Metric, 0, len(mf.Metrics))
	names := make(map[string]bool, len(mf.Metrics))

	for _, cfg := range mf.Metrics {
		if !cfg.IsEnabled() {
			logger.Info("metric disabled via config", zap.String("metric", cfg.Name))
			continue
		}
		if names[cfg.Name] {
			return nil, fmt.Errorf("indicator: duplicate metric name %q", cfg.Name)
		}

		metric, err := Build(cfg)
		if err != nil {
			return nil, err
		}
		names[cfg.Name] = true
		metrics = append(metrics, metric)
	}

	return &Manager{metrics: metrics, logger: logger}, nil
}

// Update feeds the tick to every metric and returns the flattened
// snapshot of all current values.
func (m *Manager) Update(tick feed.Tick) map[string]float64 {
	for _, metric := range m.metrics {
		metric.Update(tick)
	}
	return m.Current()
}

// Current returns the flattened snapshot without advancing state.
func (m *Manager) Current() map[string]float64 {
	snapshot := make(map[string]float64, len(m.metrics)*3)
	for _, metric := range m.metrics {
		name := metric.Name()
		for field, value := range metric.Value() {
			snapshot[name+"."+field] = value
		}
	}
	return snapshot
}

// Metrics returns the managed metrics in config order.
func (m *Manager) Metrics() []Metric {
	return m.metrics
}
