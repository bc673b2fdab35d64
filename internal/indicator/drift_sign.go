package indicator

import (
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
	"github.com/mohamedkhairy/tick-backtest/pkg/rolling"
)

// DriftSignMetric reports the per-second drift of the mid relative to
// its time-weighted rolling mean, plus its sign (+1/-1/0). The sign
// compares against exact zero, not an epsilon band.
type DriftSignMetric struct {
	name     string
	lookback float64
	window   *rolling.TimeWindow

	lastTS float64
	seen   bool
	drift  float64
	sign   float64
}

// NewDriftSignMetric creates a drift direction tracker over the mid price.
func NewDriftSignMetric(name string, lookbackSeconds float64) (*DriftSignMetric, error) {
	window, err := rolling.NewTimeWindow(lookbackSeconds)
	if err != nil {
		return nil, err
	}
	return &DriftSignMetric{
		name:     name,
		lookback: lookbackSeconds,
		window:   window,
		drift:    math.NaN(),
	}, nil
}

// Name returns the metric name
func (d *DriftSignMetric) Name() string {
	return d.name
}

// Update folds one tick into the rolling window.
func (d *DriftSignMetric) Update(tick feed.Tick) {
	t := tick.Timestamp
	dt := 0.0
	if d.seen {
		dt = t - d.lastTS
		if dt < minTickDt {
			dt = minTickDt
		}
	}
	d.window.Append(t, tick.Mid, dt)
	d.lastTS = t
	d.seen = true

	mean, _ := d.window.Stats()
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		d.drift = math.NaN()
		d.sign = 0
		return
	}

	d.drift = (tick.Mid - mean) / d.lookback
	switch {
	case d.drift > 0:
		d.sign = 1
	case d.drift < 0:
		d.sign = -1
	default:
		d.sign = 0
	}
}

// Value returns the current output fields
func (d *DriftSignMetric) Value() map[string]float64 {
	return map[string]float64{
		"drift":      d.drift,
		"drift_sign": d.sign,
	}
}
