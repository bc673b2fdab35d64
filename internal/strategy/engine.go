package strategy

import (
	"fmt"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// EntryEngine produces entry decisions from the tick stream and the
// metric snapshot. Engines carry their own internal state.
type EntryEngine interface {
	// Update returns the latest entry decision for this tick
	Update(tick feed.Tick, metrics map[string]float64) EntryResult

	// TPMultiple returns the take-profit distance as a multiple of the
	// engine's threshold (1.0 for engines without a threshold)
	TPMultiple() float64

	// SLMultiple returns the stop-loss distance as a multiple of the
	// engine's threshold
	SLMultiple() float64
}

type engineBuilder func(cfg config.Entry, pipSize float64) (EntryEngine, error)

var engineBuilders = map[string]engineBuilder{
	config.EngineThresholdReversion: newThresholdReversionEngine,
	config.EngineEWMACrossover:      newEWMACrossoverEngine,
	config.EngineNull:               newNullEngine,
}

// NewEntryEngine builds the engine named by the entry config.
func NewEntryEngine(cfg config.Entry, pipSize float64) (EntryEngine, error) {
	builder, ok := engineBuilders[cfg.Engine]
	if !ok {
		return nil, fmt.Errorf("strategy: unrecognized entry engine %q", cfg.Engine)
	}
	return builder(cfg, pipSize)
}
