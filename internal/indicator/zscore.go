package indicator

import (
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
	"github.com/mohamedkhairy/tick-backtest/pkg/rolling"
)

// ZScoreMetric measures how far the current mid sits from its
// time-weighted rolling mean, in units of rolling standard deviation.
// Both outputs fall back to 0 until the window carries usable variance.
type ZScoreMetric struct {
	name   string
	window *rolling.TimeWindow

	lastTS   float64
	seen     bool
	residual float64
	zScore   float64
}

// NewZScoreMetric creates a z-score tracker over the mid price.
func NewZScoreMetric(name string, lookbackSeconds float64) (*ZScoreMetric, error) {
	window, err := rolling.NewTimeWindow(lookbackSeconds)
	if err != nil {
		return nil, err
	}
	return &ZScoreMetric{name: name, window: window}, nil
}

// Name returns the metric name
func (z *ZScoreMetric) Name() string {
	return z.name
}

// Update folds one tick into the rolling window.
func (z *ZScoreMetric) Update(tick feed.Tick) {
	t := tick.Timestamp
	dt := 0.0
	if z.seen {
		dt = t - z.lastTS
		if dt < minTickDt {
			dt = minTickDt
		}
	}
	z.window.Append(t, tick.Mid, dt)
	z.lastTS = t
	z.seen = true

	mean, stddev := z.window.Stats()
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		z.residual = 0
		z.zScore = 0
		return
	}

	z.residual = tick.Mid - mean
	if math.IsNaN(stddev) || math.IsInf(stddev, 0) || stddev <= 0 {
		z.zScore = 0
		return
	}
	z.zScore = z.residual / stddev
}

// Value returns the current output fields
func (z *ZScoreMetric) Value() map[string]float64 {
	return map[string]float64{
		"rolling_residual": z.residual,
		"z_score":          z.zScore,
	}
}
