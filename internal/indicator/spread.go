package indicator

import (
	"fmt"
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// SpreadMetric reports the raw bid/ask spread, the spread in pips and
// its empirical percentile over a trailing time window. Ties count in
// favor of the higher percentile (inclusive <= comparator).
type SpreadMetric struct {
	name    string
	pipSize float64
	window  float64

	spread     float64
	spreadPips float64
	percentile float64

	history []spreadSample
	head    int
}

type spreadSample struct {
	ts   float64
	pips float64
}

// NewSpreadMetric creates a spread percentile tracker.
func NewSpreadMetric(name string, pipSize, windowSeconds float64) (*SpreadMetric, error) {
	if pipSize <= 0 || math.IsNaN(pipSize) || math.IsInf(pipSize, 0) {
		return nil, fmt.Errorf("pip_size must be positive, got %v", pipSize)
	}
	if windowSeconds <= 0 || math.IsNaN(windowSeconds) || math.IsInf(windowSeconds, 0) {
		return nil, fmt.Errorf("window_seconds must be positive, got %v", windowSeconds)
	}
	return &SpreadMetric{
		name:       name,
		pipSize:    pipSize,
		window:     windowSeconds,
		spread:     math.NaN(),
		spreadPips: math.NaN(),
		percentile: math.NaN(),
	}, nil
}

// Name returns the metric name
func (s *SpreadMetric) Name() string {
	return s.name
}

// Update folds one tick into the spread history.
func (s *SpreadMetric) Update(tick feed.Tick) {
	raw := math.Max(0, tick.Ask-tick.Bid)
	pips := raw / s.pipSize
	t := tick.Timestamp

	s.spread = raw
	s.spreadPips = pips

	s.history = append(s.history, spreadSample{ts: t, pips: pips})
	cutoff := t - s.window
	for s.head < len(s.history) && s.history[s.head].ts < cutoff {
		s.head++
	}
	if s.head > 64 && s.head*2 >= len(s.history) {
		s.history = append(s.history[:0], s.history[s.head:]...)
		s.head = 0
	}

	n := len(s.history) - s.head
	if n == 0 {
		s.percentile = math.NaN()
		return
	}
	count := 0
	for _, sample := range s.history[s.head:] {
		if sample.pips <= pips {
			count++
		}
	}
	s.percentile = float64(count) / float64(n)
}

// Value returns the current output fields
func (s *SpreadMetric) Value() map[string]float64 {
	return map[string]float64{
		"spread":            s.spread,
		"spread_pips":       s.spreadPips,
		"spread_percentile": s.percentile,
	}
}
