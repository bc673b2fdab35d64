package indicator

import (
	"fmt"
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// ThresholdReversionParams configures a ThresholdReversionMetric.
type ThresholdReversionParams struct {
	LookbackSeconds     float64
	ThresholdPips       float64
	PipSize             float64
	TPPips              float64
	SLPips              float64
	MinRecencySeconds   float64
	TradeTimeoutSeconds *float64
}

// ThresholdReversionMetric watches for the mid deviating from a
// trailing extreme by at least the configured threshold and emits a
// reversion position toward the reference. An upward breach of the
// trailing minimum emits a short; a downward breach of the trailing
// maximum emits a long. The reference must be at least
// min_recency_seconds old, and when both directions breach at once the
// larger deviation wins. A persisting breach keeps its original
// anchors; only a direction change re-anchors TP/SL at the breaching
// tick's mid.
type ThresholdReversionMetric struct {
	name      string
	lookback  float64
	threshold float64 // absolute price units
	pipSize   float64
	tpPips    float64
	slPips    float64
	minAge    float64
	timeout   float64 // NaN when unset

	minDeque []pricePoint // increasing prices, trailing minimum at front
	maxDeque []pricePoint // decreasing prices, trailing maximum at front

	position float64
	refPrice float64
	refTS    float64
	tpPrice  float64
	slPrice  float64
	openTS   float64
	lastTick feed.Tick
	seen     bool
}

type pricePoint struct {
	ts    float64
	price float64
}

// NewThresholdReversionMetric creates a threshold reversion signal metric.
func NewThresholdReversionMetric(name string, p ThresholdReversionParams) (*ThresholdReversionMetric, error) {
	if p.LookbackSeconds <= 0 {
		return nil, fmt.Errorf("lookback_seconds must be positive, got %v", p.LookbackSeconds)
	}
	if p.ThresholdPips <= 0 {
		return nil, fmt.Errorf("threshold_pips must be positive, got %v", p.ThresholdPips)
	}
	if p.PipSize <= 0 {
		return nil, fmt.Errorf("pip_size must be positive, got %v", p.PipSize)
	}
	if p.TPPips <= 0 || p.SLPips <= 0 {
		return nil, fmt.Errorf("tp_pips and sl_pips must be positive, got %v/%v", p.TPPips, p.SLPips)
	}
	if p.MinRecencySeconds < 0 {
		return nil, fmt.Errorf("min_recency_seconds must be non-negative, got %v", p.MinRecencySeconds)
	}

	timeout := math.NaN()
	if p.TradeTimeoutSeconds != nil {
		if *p.TradeTimeoutSeconds <= 0 {
			return nil, fmt.Errorf("trade_timeout_seconds must be positive, got %v", *p.TradeTimeoutSeconds)
		}
		timeout = *p.TradeTimeoutSeconds
	}

	return &ThresholdReversionMetric{
		name:      name,
		lookback:  p.LookbackSeconds,
		threshold: p.ThresholdPips * p.PipSize,
		pipSize:   p.PipSize,
		tpPips:    p.TPPips,
		slPips:    p.SLPips,
		minAge:    p.MinRecencySeconds,
		timeout:   timeout,
		refPrice:  math.NaN(),
		refTS:     math.NaN(),
		tpPrice:   math.NaN(),
		slPrice:   math.NaN(),
		openTS:    math.NaN(),
	}, nil
}

// Name returns the metric name
func (m *ThresholdReversionMetric) Name() string {
	return m.name
}

// Update folds one tick into the trailing extremes and re-evaluates
// the breach state.
func (m *ThresholdReversionMetric) Update(tick feed.Tick) {
	t := tick.Timestamp
	mid := tick.Mid
	m.lastTick = tick
	m.seen = true

	m.pushExtremes(t, mid)

	// Candidate breaches against the trailing extremes.
	desired := 0.0
	var candidateRef, candidateRefTS float64

	upDist, upRef, upTS, upOK := m.breach(m.minDeque, mid, t, true)
	downDist, downRef, downTS, downOK := m.breach(m.maxDeque, mid, t, false)

	switch {
	case upOK && downOK:
		if upDist >= downDist {
			desired, candidateRef, candidateRefTS = -1, upRef, upTS
		} else {
			desired, candidateRef, candidateRefTS = 1, downRef, downTS
		}
	case upOK:
		desired, candidateRef, candidateRefTS = -1, upRef, upTS
	case downOK:
		desired, candidateRef, candidateRefTS = 1, downRef, downTS
	}

	if desired == 0 {
		m.flatten()
		return
	}
	if desired == m.position {
		return // persisting breach keeps its anchors
	}

	m.position = desired
	m.refPrice = candidateRef
	m.refTS = candidateRefTS
	m.openTS = t
	if desired < 0 {
		m.tpPrice = mid - m.tpPips*m.pipSize
		m.slPrice = mid + m.slPips*m.pipSize
	} else {
		m.tpPrice = mid + m.tpPips*m.pipSize
		m.slPrice = mid - m.slPips*m.pipSize
	}
}

// Value returns the current output fields
func (m *ThresholdReversionMetric) Value() map[string]float64 {
	refAge := math.NaN()
	distance := math.NaN()
	openAge := math.NaN()
	if m.position != 0 && m.seen {
		refAge = m.lastTick.Timestamp - m.refTS
		distance = math.Abs(m.lastTick.Mid - m.refPrice)
		openAge = m.lastTick.Timestamp - m.openTS
	}
	return map[string]float64{
		"position":                  m.position,
		"reference_price":           m.refPrice,
		"reference_age_seconds":     refAge,
		"distance_from_reference":   distance,
		"threshold":                 m.threshold,
		"tp_price":                  m.tpPrice,
		"sl_price":                  m.slPrice,
		"position_open_age_seconds": openAge,
		"trade_timeout_seconds":     m.timeout,
	}
}

func (m *ThresholdReversionMetric) pushExtremes(t, mid float64) {
	for len(m.minDeque) > 0 && m.minDeque[len(m.minDeque)-1].price >= mid {
		m.minDeque = m.minDeque[:len(m.minDeque)-1]
	}
	m.minDeque = append(m.minDeque, pricePoint{ts: t, price: mid})

	for len(m.maxDeque) > 0 && m.maxDeque[len(m.maxDeque)-1].price <= mid {
		m.maxDeque = m.maxDeque[:len(m.maxDeque)-1]
	}
	m.maxDeque = append(m.maxDeque, pricePoint{ts: t, price: mid})

	cutoff := t - m.lookback
	for len(m.minDeque) > 0 && m.minDeque[0].ts < cutoff {
		m.minDeque = m.minDeque[1:]
	}
	for len(m.maxDeque) > 0 && m.maxDeque[0].ts < cutoff {
		m.maxDeque = m.maxDeque[1:]
	}
}

// breach reports the deviation from the front extreme if it clears the
// threshold and the recency gate.
func (m *ThresholdReversionMetric) breach(deque []pricePoint, mid, t float64, above bool) (dist, ref, refTS float64, ok bool) {
	if len(deque) == 0 {
		return 0, 0, 0, false
	}
	front := deque[0]
	if above {
		dist = mid - front.price
	} else {
		dist = front.price - mid
	}
	if dist < m.threshold {
		return 0, 0, 0, false
	}
	if t-front.ts < m.minAge {
		return 0, 0, 0, false
	}
	return dist, front.price, front.ts, true
}

func (m *ThresholdReversionMetric) flatten() {
	m.position = 0
	m.refPrice = math.NaN()
	m.refTS = math.NaN()
	m.tpPrice = math.NaN()
	m.slPrice = math.NaN()
	m.openTS = math.NaN()
}
