package strategy

import (
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// ewmaCrossoverEngine opens on sign changes of the fast-slow metric
// difference, gated by the long/short crossing flags. A non-finite
// operand resets the tracked difference so a cross is never inferred
// across a gap in the metrics.
type ewmaCrossoverEngine struct {
	name    string
	pipSize float64
	params  config.EntryParams

	lastDiff float64
	hasLast  bool
}

func newEWMACrossoverEngine(cfg config.Entry, pipSize float64) (EntryEngine, error) {
	return &ewmaCrossoverEngine{
		name:    cfg.Name,
		pipSize: pipSize,
		params:  cfg.Params,
	}, nil
}

func (e *ewmaCrossoverEngine) TPMultiple() float64 { return 1.0 }
func (e *ewmaCrossoverEngine) SLMultiple() float64 { return 1.0 }

func (e *ewmaCrossoverEngine) Update(tick feed.Tick, metrics map[string]float64) EntryResult {
	fast, fastOK := metrics[e.params.FastMetric]
	slow, slowOK := metrics[e.params.SlowMetric]
	if !fastOK {
		fast = math.NaN()
	}
	if !slowOK {
		slow = math.NaN()
	}
	metadata := map[string]float64{"fast": fast, "slow": slow}

	if !isFinite(fast) || !isFinite(slow) {
		e.hasLast = false
		return noSignal(e.name, metadata)
	}

	diff := fast - slow
	metadata["diff"] = diff

	if !e.hasLast {
		e.lastDiff = diff
		e.hasLast = true
		return noSignal(e.name, metadata)
	}

	shouldOpen := false
	direction := 0
	switch {
	case *e.params.LongOnCross && diff >= 0 && e.lastDiff < 0:
		shouldOpen = true
		direction = 1
	case *e.params.ShortOnCross && diff <= 0 && e.lastDiff > 0:
		shouldOpen = true
		direction = -1
	}
	e.lastDiff = diff

	if !shouldOpen {
		return noSignal(e.name, metadata)
	}

	price := tick.Mid
	tp, sl := math.NaN(), math.NaN()
	if *e.params.TPPips > 0 {
		offset := *e.params.TPPips * e.pipSize
		if direction == 1 {
			tp = price + offset
		} else {
			tp = price - offset
		}
	}
	if *e.params.SLPips > 0 {
		offset := *e.params.SLPips * e.pipSize
		if direction == 1 {
			sl = price - offset
		} else {
			sl = price + offset
		}
	}

	timeout := math.NaN()
	if e.params.TradeTimeoutSeconds != nil && *e.params.TradeTimeoutSeconds > 0 {
		timeout = *e.params.TradeTimeoutSeconds
	}

	metadata["direction"] = float64(direction)
	metadata["signal_price"] = price

	return EntryResult{
		ShouldOpen:     true,
		Direction:      direction,
		TP:             tp,
		SL:             sl,
		TimeoutSeconds: timeout,
		Reason:         e.name,
		Metadata:       metadata,
	}
}
