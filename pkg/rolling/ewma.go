package rolling

import (
	"fmt"
	"math"
)

// minEWMADt guards against duplicate timestamps producing a zero decay
// interval. Must stay well below the smallest real tick spacing.
const minEWMADt = 1e-9

// EWMA is an exponentially weighted moving average over irregularly
// spaced observations. Decay is computed from the wall-clock gap between
// updates rather than a fixed per-sample multiplier, so bursts of ticks
// and quiet stretches weight correctly.
//
// With power == 2 inputs are squared before blending, which turns the
// accumulator into an exponentially weighted variance tracker.
type EWMA struct {
	tau    float64
	power  int
	value  float64
	lastT  float64
	seeded bool
}

// NewEWMA creates an EWMA with the given decay constant in seconds.
// power must be 1 (mean) or 2 (second moment).
func NewEWMA(tauSeconds float64, power int) (*EWMA, error) {
	if !(tauSeconds > 0) {
		return nil, fmt.Errorf("ewma: tau_seconds must be positive, got %v", tauSeconds)
	}
	if power != 1 && power != 2 {
		return nil, fmt.Errorf("ewma: power must be 1 or 2, got %d", power)
	}
	return &EWMA{tau: tauSeconds, power: power}, nil
}

// Update blends x into the accumulator at time t (epoch seconds) and
// returns the new value. The first call only seeds the clock and returns
// the zero accumulator untouched.
func (e *EWMA) Update(t, x float64) float64 {
	if !e.seeded {
		e.lastT = t
		e.seeded = true
		return e.value
	}

	dt := t - e.lastT
	if dt < minEWMADt {
		dt = minEWMADt
	}
	decay := math.Exp(-dt / e.tau)
	if e.power == 2 {
		x = x * x
	}
	e.value = decay*e.value + (1.0-decay)*x
	e.lastT = t
	return e.value
}

// Value returns the current accumulator without advancing time.
func (e *EWMA) Value() float64 {
	return e.value
}

// Reset clears the accumulator and the seed timestamp.
func (e *EWMA) Reset() {
	e.value = 0
	e.lastT = 0
	e.seeded = false
}
