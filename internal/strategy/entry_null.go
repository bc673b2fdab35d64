package strategy

import (
	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// nullEngine never opens. Used for predicate-only strategies and tests.
type nullEngine struct {
	name string
}

func newNullEngine(cfg config.Entry, _ float64) (EntryEngine, error) {
	return &nullEngine{name: cfg.Name}, nil
}

func (e *nullEngine) TPMultiple() float64 { return 1.0 }
func (e *nullEngine) SLMultiple() float64 { return 1.0 }

func (e *nullEngine) Update(_ feed.Tick, _ map[string]float64) EntryResult {
	return noSignal(e.name, nil)
}
