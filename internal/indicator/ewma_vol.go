package indicator

import (
	"fmt"
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
	"github.com/mohamedkhairy/tick-backtest/pkg/rolling"
)

// EWMAVolMetric tracks return variance via a squared-input EWMA over
// log-returns of the mid, and ranks the current variance against its
// own recent distribution with a time-weighted histogram. The first
// tick only seeds the previous mid and yields (0, NaN).
type EWMAVolMetric struct {
	name string

	smoother *rolling.EWMA
	hist     *rolling.Histogram

	lastTS     float64
	lastMid    float64
	seen       bool
	volEWMA    float64
	percentile float64
}

// NewEWMAVolMetric creates a volatility tracker. Histogram bin edges
// span [0, (stddevCap*baseVol)^2] across bins buckets.
func NewEWMAVolMetric(name string, tauSeconds, percentileHorizonSeconds float64, bins int, baseVol, stddevCap float64) (*EWMAVolMetric, error) {
	if baseVol <= 0 || math.IsNaN(baseVol) || math.IsInf(baseVol, 0) {
		return nil, fmt.Errorf("base_vol must be positive, got %v", baseVol)
	}
	if stddevCap <= 0 || math.IsNaN(stddevCap) || math.IsInf(stddevCap, 0) {
		return nil, fmt.Errorf("stddev_cap must be positive, got %v", stddevCap)
	}

	smoother, err := rolling.NewEWMA(tauSeconds, 2)
	if err != nil {
		return nil, err
	}
	varMax := (stddevCap * baseVol) * (stddevCap * baseVol)
	hist, err := rolling.NewHistogram(rolling.LinearEdges(0, varMax, bins), percentileHorizonSeconds)
	if err != nil {
		return nil, err
	}

	return &EWMAVolMetric{
		name:       name,
		smoother:   smoother,
		hist:       hist,
		percentile: math.NaN(),
	}, nil
}

// Name returns the metric name
func (v *EWMAVolMetric) Name() string {
	return v.name
}

// Update folds one tick into the variance estimate and histogram.
func (v *EWMAVolMetric) Update(tick feed.Tick) {
	t := tick.Timestamp
	mid := tick.Mid

	if !v.seen {
		v.lastTS = t
		v.lastMid = mid
		v.seen = true
		return
	}

	dt := t - v.lastTS
	if dt < minTickDt {
		dt = minTickDt
	}

	ret := 0.0
	if mid > 0 && v.lastMid > 0 {
		ret = math.Log(mid / v.lastMid)
	}

	v.volEWMA = v.smoother.Update(t, ret)
	v.hist.Add(t-dt, t, v.volEWMA)
	v.hist.Trim(t)
	v.percentile = v.hist.PercentileRank(v.volEWMA)

	v.lastTS = t
	v.lastMid = mid
}

// Value returns the current output fields
func (v *EWMAVolMetric) Value() map[string]float64 {
	return map[string]float64{
		"vol_ewma":       v.volEWMA,
		"vol_percentile": v.percentile,
	}
}
