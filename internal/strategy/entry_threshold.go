package strategy

import (
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
	"github.com/mohamedkhairy/tick-backtest/internal/indicator"
)

// thresholdReversionEngine drives entries from the threshold reversion
// metric. It opens only on a fresh position change reported by the
// metric; a persisting breach does not re-trigger.
type thresholdReversionEngine struct {
	name    string
	pipSize float64
	params  config.EntryParams
	metric  *indicator.ThresholdReversionMetric

	tpMultiple   float64
	slMultiple   float64
	lastPosition int
}

func newThresholdReversionEngine(cfg config.Entry, pipSize float64) (EntryEngine, error) {
	p := cfg.Params
	metric, err := indicator.NewThresholdReversionMetric(cfg.Name, indicator.ThresholdReversionParams{
		LookbackSeconds:     p.LookbackSeconds,
		ThresholdPips:       p.ThresholdPips,
		PipSize:             pipSize,
		TPPips:              *p.TPPips,
		SLPips:              *p.SLPips,
		MinRecencySeconds:   p.MinRecencySeconds,
		TradeTimeoutSeconds: p.TradeTimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	return &thresholdReversionEngine{
		name:       cfg.Name,
		pipSize:    pipSize,
		params:     p,
		metric:     metric,
		tpMultiple: *p.TPPips / p.ThresholdPips,
		slMultiple: *p.SLPips / p.ThresholdPips,
	}, nil
}

func (e *thresholdReversionEngine) TPMultiple() float64 { return e.tpMultiple }
func (e *thresholdReversionEngine) SLMultiple() float64 { return e.slMultiple }

func (e *thresholdReversionEngine) Update(tick feed.Tick, _ map[string]float64) EntryResult {
	e.metric.Update(tick)
	snapshot := e.metric.Value()

	metadata := map[string]float64{
		"reference_price":           snapshot["reference_price"],
		"threshold":                 snapshot["threshold"],
		"threshold_pips":            e.params.ThresholdPips,
		"tp_price":                  snapshot["tp_price"],
		"sl_price":                  snapshot["sl_price"],
		"reference_age_seconds":     snapshot["reference_age_seconds"],
		"position_open_age_seconds": snapshot["position_open_age_seconds"],
		"trade_timeout_seconds":     snapshot["trade_timeout_seconds"],
	}

	position := int(snapshot["position"])
	if position == 0 {
		e.lastPosition = 0
		return noSignal(e.name, metadata)
	}
	if e.lastPosition == position {
		return noSignal(e.name, metadata)
	}
	e.lastPosition = position

	price := tick.Mid
	tp := snapshot["tp_price"]
	sl := snapshot["sl_price"]
	if !isFinite(tp) || !isFinite(sl) {
		tpOffset := *e.params.TPPips * e.pipSize
		slOffset := *e.params.SLPips * e.pipSize
		if position == 1 {
			tp = price + tpOffset
			sl = price - slOffset
		} else {
			tp = price - tpOffset
			sl = price + slOffset
		}
	}

	timeout := math.NaN()
	if e.params.TradeTimeoutSeconds != nil && *e.params.TradeTimeoutSeconds > 0 {
		timeout = *e.params.TradeTimeoutSeconds
	}

	metadata["direction"] = float64(position)
	metadata["signal_price"] = price
	metadata["trade_timeout_seconds"] = timeout

	return EntryResult{
		ShouldOpen:     true,
		Direction:      position,
		TP:             tp,
		SL:             sl,
		TimeoutSeconds: timeout,
		Reason:         e.name,
		Metadata:       metadata,
	}
}
