package backtest

import "math"

// EntryContext captures everything known about a trade at the moment the
// open signal fired. It is built once in openPosition and, apart from the
// fill-time TP/SL re-anchoring, never mutated afterwards. Float fields use
// NaN when the signal did not carry the value.
type EntryContext struct {
	Reason          string
	SignalTimestamp float64 // epoch seconds of the signal tick
	SignalPrice     float64 // mid at the signal tick
	TimeoutSeconds  float64
	Threshold       float64 // breach distance in price units
	TPPrice         float64
	SLPrice         float64

	// Metrics is the full metric snapshot at the signal tick.
	Metrics map[string]float64
	// Extra holds the entry engine's own metadata fields.
	Extra map[string]float64
}

// Position is one trade, from open decision through fill to close.
// Entry price/time stay unset (NaN, filled=false) until the fill tick.
type Position struct {
	EntryTime      float64 // epoch seconds
	EntryPrice     float64
	TP             float64 // NaN disarms the level
	SL             float64
	Direction      int // +1 long, -1 short
	TimeoutSeconds float64
	ExitTime       float64
	ExitPrice      float64
	PnLPips        float64
	OutcomeLabel   string
	Context        EntryContext

	filled bool
	closed bool
}

// SetEntryFill records the fill price/time once the trade actually opens.
func (p *Position) SetEntryFill(price, fillTime float64) {
	p.EntryPrice = price
	p.EntryTime = fillTime
	p.filled = true
}

// Close closes the position and computes realized PnL in pips. When
// exitReason is empty the outcome label is derived from which level the
// exit price breached.
func (p *Position) Close(exitPrice, exitTime, pipSize float64, exitReason string) {
	p.ExitPrice = exitPrice
	p.ExitTime = exitTime
	p.PnLPips = (exitPrice - p.EntryPrice) * float64(p.Direction) / pipSize
	p.closed = true

	if exitReason != "" {
		p.OutcomeLabel = exitReason
		return
	}

	label := "EXIT"
	switch p.Direction {
	case 1:
		if isFinite(p.TP) && exitPrice >= p.TP {
			label = "TP"
		} else if isFinite(p.SL) && exitPrice <= p.SL {
			label = "SL"
		}
	case -1:
		if isFinite(p.TP) && exitPrice <= p.TP {
			label = "TP"
		} else if isFinite(p.SL) && exitPrice >= p.SL {
			label = "SL"
		}
	}
	p.OutcomeLabel = label
}

// IsOpen reports whether the position has not been closed yet.
func (p *Position) IsOpen() bool {
	return !p.closed
}

// Filled reports whether the entry fill has happened.
func (p *Position) Filled() bool {
	return p.filled
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
