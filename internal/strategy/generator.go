package strategy

import (
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// SignalGenerator orchestrates the entry engine and the predicate
// gates defined by one strategy. During warmup both opens and closes
// are suppressed while the engine's internal state keeps advancing, so
// live trading starts from a warmed-up state instead of false
// triggering on the first live tick.
type SignalGenerator struct {
	strategy *config.Strategy
	pipSize  float64
	engine   EntryEngine
}

// NewSignalGenerator builds the generator for a validated strategy.
func NewSignalGenerator(strategy *config.Strategy, pipSize float64) (*SignalGenerator, error) {
	engine, err := NewEntryEngine(strategy.Entry, pipSize)
	if err != nil {
		return nil, err
	}
	return &SignalGenerator{
		strategy: strategy,
		pipSize:  pipSize,
		engine:   engine,
	}, nil
}

// TPMultiple exposes the engine's take-profit multiple for fill-time
// re-anchoring.
func (g *SignalGenerator) TPMultiple() float64 {
	return g.engine.TPMultiple()
}

// SLMultiple exposes the engine's stop-loss multiple.
func (g *SignalGenerator) SLMultiple() float64 {
	return g.engine.SLMultiple()
}

// Update computes the latest trading intent from the metric snapshot
// and tick.
func (g *SignalGenerator) Update(metrics map[string]float64, tick feed.Tick, isWarmup bool) Signal {
	signal := Signal{
		Reason:         g.strategy.Entry.Name,
		TP:             math.NaN(),
		SL:             math.NaN(),
		TimeoutSeconds: math.NaN(),
	}

	entryOK := EvaluateAll(g.strategy.Entry.Predicates, metrics)
	exitOK := EvaluateAll(g.strategy.Exit.Predicates, metrics)

	result := g.engine.Update(tick, metrics)
	if result.Metadata != nil {
		signal.EntryMetadata = result.Metadata
	}

	switch {
	case result.ShouldOpen && entryOK && !isWarmup:
		signal.ShouldOpen = true
		signal.Direction = result.Direction
		signal.TP = result.TP
		signal.SL = result.SL
		signal.TimeoutSeconds = result.TimeoutSeconds
		signal.Reason = result.Reason
	case result.ShouldOpen && !entryOK:
		signal.Reason = "entry_predicate_blocked"
	default:
		signal.Reason = result.Reason
	}

	if exitOK && !isWarmup {
		signal.ShouldClose = true
		signal.CloseReason = g.strategy.Exit.Name
	}

	return signal
}
