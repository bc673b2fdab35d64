package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters for the backtest runner. Served on the optional
// metrics listener while a run executes.

var (
	TicksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_ticks_processed_total",
			Help: "Total number of ticks replayed through the backtest loop",
		},
		[]string{"pair"},
	)

	TicksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_ticks_skipped_total",
			Help: "Total number of ticks dropped by validation",
		},
		[]string{"pair"},
	)

	TradesClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backtest_trades_closed_total",
			Help: "Total number of completed trades",
		},
		[]string{"pair", "outcome"},
	)

	PairsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_pairs_completed_total",
			Help: "Number of pair backtests that finished cleanly",
		},
	)

	PairsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "backtest_pairs_failed_total",
			Help: "Number of pair backtests that failed",
		},
	)
)
