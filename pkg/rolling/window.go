package rolling

import (
	"fmt"
	"math"
)

const trimEps = 1e-12

type sample struct {
	start    float64
	value    float64
	duration float64
}

// TimeWindow maintains duration-weighted sum, sum-of-values and
// sum-of-squares over a trailing time horizon. Samples are weighted by
// how long they were the prevailing observation; a sample straddling the
// horizon boundary is shrunk proportionally instead of dropped, so the
// aggregates always cover exactly the trailing lookback.
type TimeWindow struct {
	lookback float64
	samples  []sample
	head     int

	sumW  float64
	sumX  float64
	sumX2 float64
}

// NewTimeWindow creates a window covering the trailing lookbackSeconds.
func NewTimeWindow(lookbackSeconds float64) (*TimeWindow, error) {
	if !(lookbackSeconds > 0) {
		return nil, fmt.Errorf("timewindow: lookback_seconds must be positive, got %v", lookbackSeconds)
	}
	return &TimeWindow{lookback: lookbackSeconds}, nil
}

// Len returns the number of retained samples.
func (w *TimeWindow) Len() int {
	return len(w.samples) - w.head
}

// Append inserts a sample observed at ts that held for dt seconds, then
// trims everything older than ts-lookback. Non-finite inputs are skipped
// silently; a non-positive dt is coerced to an infinitesimal weight so
// the sample still registers.
func (w *TimeWindow) Append(ts, value, dt float64) {
	if !finite(ts) || !finite(value) || !finite(dt) {
		return
	}
	if dt <= 0 {
		dt = 1e-9
	}

	w.samples = append(w.samples, sample{start: ts, value: value, duration: dt})
	w.sumW += dt
	w.sumX += dt * value
	w.sumX2 += dt * value * value

	w.trim(ts)
}

func (w *TimeWindow) trim(ts float64) {
	cutoff := ts - w.lookback

	for w.head < len(w.samples) {
		s := w.samples[w.head]
		end := s.start + s.duration

		if end <= cutoff-trimEps {
			w.sumW -= s.duration
			w.sumX -= s.duration * s.value
			w.sumX2 -= s.duration * s.value * s.value
			w.head++
			continue
		}

		if s.start < cutoff && cutoff < end {
			dropDt := cutoff - s.start
			keepDt := s.duration - dropDt
			if keepDt < 0 {
				keepDt = 0
				dropDt = s.duration
			}
			w.sumW -= dropDt
			w.sumX -= dropDt * s.value
			w.sumX2 -= dropDt * s.value * s.value
			w.samples[w.head] = sample{start: cutoff, value: s.value, duration: keepDt}
		}
		break
	}

	// Reclaim the evicted prefix once it dominates the backing array.
	if w.head > 64 && w.head*2 >= len(w.samples) {
		n := copy(w.samples, w.samples[w.head:])
		w.samples = w.samples[:n]
		w.head = 0
	}

	// Residual epsilon from incremental subtraction must not leak into
	// later means; snap empty aggregates to exact zero.
	if math.Abs(w.sumW) < trimEps {
		w.sumW = 0
		w.sumX = 0
		w.sumX2 = 0
	}
}

// Stats returns the duration-weighted mean and population stddev of the
// retained samples. Both are NaN while the window holds no weight; the
// stddev alone is NaN if the raw variance is non-finite.
func (w *TimeWindow) Stats() (mean, stddev float64) {
	if !finite(w.sumW) || w.sumW <= 1e-12 {
		return math.NaN(), math.NaN()
	}
	if !finite(w.sumX) || !finite(w.sumX2) {
		return math.NaN(), math.NaN()
	}

	mean = w.sumX / w.sumW
	raw := w.sumX2/w.sumW - mean*mean
	if !finite(raw) {
		return mean, math.NaN()
	}
	if raw < 0 {
		raw = 0
	}
	return mean, math.Sqrt(raw)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
