package indicator

import (
	"fmt"
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// EWMASlopeMetric wraps an EWMAMetric and reports the slope of the
// average over a trailing time window: (current - oldest) / dt.
// Slope is NaN until at least two points sit inside the window.
type EWMASlopeMetric struct {
	name   string
	window float64
	ewma   *EWMAMetric

	history []slopePoint
	head    int
	slope   float64
}

type slopePoint struct {
	ts    float64
	value float64
}

// NewEWMASlopeMetric creates a slope tracker over the EWMA of the
// given price field.
func NewEWMASlopeMetric(name string, tauSeconds, windowSeconds float64, initialValue *float64, priceField string) (*EWMASlopeMetric, error) {
	if windowSeconds <= 0 || math.IsNaN(windowSeconds) || math.IsInf(windowSeconds, 0) {
		return nil, fmt.Errorf("window_seconds must be positive, got %v", windowSeconds)
	}
	inner, err := NewEWMAMetric(name+"_inner", tauSeconds, initialValue, priceField)
	if err != nil {
		return nil, err
	}
	return &EWMASlopeMetric{
		name:   name,
		window: windowSeconds,
		ewma:   inner,
		slope:  math.NaN(),
	}, nil
}

// Name returns the metric name
func (s *EWMASlopeMetric) Name() string {
	return s.name
}

// Update folds one tick into the average and recomputes the slope.
func (s *EWMASlopeMetric) Update(tick feed.Tick) {
	t := tick.Timestamp
	s.ewma.Update(tick)
	current := s.ewma.Current()

	s.history = append(s.history, slopePoint{ts: t, value: current})
	cutoff := t - s.window
	for s.head < len(s.history)-1 && s.history[s.head].ts < cutoff {
		s.head++
	}
	s.compact()

	if len(s.history)-s.head < 2 {
		s.slope = math.NaN()
		return
	}

	oldest := s.history[s.head]
	dt := math.Max(minTickDt, t-oldest.ts)
	s.slope = (current - oldest.value) / dt
}

// Value returns the current output fields
func (s *EWMASlopeMetric) Value() map[string]float64 {
	return map[string]float64{
		"ewma":  s.ewma.Current(),
		"slope": s.slope,
	}
}

func (s *EWMASlopeMetric) compact() {
	if s.head > 64 && s.head*2 >= len(s.history) {
		s.history = append(s.history[:0], s.history[s.head:]...)
		s.head = 0
	}
}
