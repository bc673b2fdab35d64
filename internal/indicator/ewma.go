package indicator

import (
	"fmt"
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// EWMAMetric smooths the selected price field with an exponential
// moving average whose decay is driven by wall-clock time.
// alpha = 1 - exp(-dt/tau), dt = max(1e-6, t - last_t).
// The first tick seeds the value unless an initial value is given.
type EWMAMetric struct {
	name       string
	tau        float64
	priceField string

	value  float64
	lastTS float64
}

// NewEWMAMetric creates a time-decayed EWMA over the given price field.
func NewEWMAMetric(name string, tauSeconds float64, initialValue *float64, priceField string) (*EWMAMetric, error) {
	if tauSeconds <= 0 || math.IsNaN(tauSeconds) || math.IsInf(tauSeconds, 0) {
		return nil, fmt.Errorf("tau_seconds must be positive, got %v", tauSeconds)
	}
	switch priceField {
	case "mid", "bid", "ask":
	default:
		return nil, fmt.Errorf("unsupported price_field %q, expected one of mid/bid/ask", priceField)
	}

	value := math.NaN()
	if initialValue != nil {
		value = *initialValue
	}
	return &EWMAMetric{
		name:       name,
		tau:        tauSeconds,
		priceField: priceField,
		value:      value,
		lastTS:     math.NaN(),
	}, nil
}

// Name returns the metric name
func (e *EWMAMetric) Name() string {
	return e.name
}

// Update folds one tick into the average.
func (e *EWMAMetric) Update(tick feed.Tick) {
	price, _ := tick.Price(e.priceField)
	t := tick.Timestamp

	if math.IsNaN(e.value) {
		e.value = price
		e.lastTS = t
		return
	}

	dt := minTickDt
	if !math.IsNaN(e.lastTS) {
		dt = math.Max(minTickDt, t-e.lastTS)
	}
	alpha := 1.0 - math.Exp(-dt/e.tau)
	e.value = (1.0-alpha)*e.value + alpha*price
	e.lastTS = t
}

// Value returns the current output fields
func (e *EWMAMetric) Value() map[string]float64 {
	return map[string]float64{"ewma": e.value}
}

// Current returns the raw average for composition by other metrics.
func (e *EWMAMetric) Current() float64 {
	return e.value
}
