package indicator

import (
	"fmt"
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// TickRateMetric counts ticks inside a trailing time window and
// derives arrival rates per second and per minute. Timestamps exactly
// on the cutoff are evicted.
type TickRateMetric struct {
	name   string
	window float64

	timestamps []float64
	head       int
}

// NewTickRateMetric creates a tick arrival rate tracker.
func NewTickRateMetric(name string, windowSeconds float64) (*TickRateMetric, error) {
	if windowSeconds <= 0 || math.IsNaN(windowSeconds) || math.IsInf(windowSeconds, 0) {
		return nil, fmt.Errorf("window_seconds must be positive, got %v", windowSeconds)
	}
	return &TickRateMetric{name: name, window: windowSeconds}, nil
}

// Name returns the metric name
func (r *TickRateMetric) Name() string {
	return r.name
}

// Update records one tick arrival.
func (r *TickRateMetric) Update(tick feed.Tick) {
	t := tick.Timestamp
	r.timestamps = append(r.timestamps, t)

	cutoff := t - r.window
	for r.head < len(r.timestamps) && r.timestamps[r.head] <= cutoff {
		r.head++
	}
	if r.head > 64 && r.head*2 >= len(r.timestamps) {
		r.timestamps = append(r.timestamps[:0], r.timestamps[r.head:]...)
		r.head = 0
	}
}

// Value returns the current output fields
func (r *TickRateMetric) Value() map[string]float64 {
	count := float64(len(r.timestamps) - r.head)
	perSec := count / r.window
	return map[string]float64{
		"tick_count":        count,
		"tick_rate_per_sec": perSec,
		"tick_rate_per_min": perSec * 60.0,
	}
}
