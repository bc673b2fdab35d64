package backtest

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mohamedkhairy/tick-backtest/internal/feed"
	"github.com/mohamedkhairy/tick-backtest/internal/strategy"
	"github.com/mohamedkhairy/tick-backtest/pkg/logger"
)

// MetricEngine produces the flattened metric snapshot for each tick.
// *indicator.Manager is the production implementation.
type MetricEngine interface {
	Update(tick feed.Tick) map[string]float64
}

// SignalEngine turns metric snapshots into trading intent.
// *strategy.SignalGenerator is the production implementation.
type SignalEngine interface {
	Update(metrics map[string]float64, tick feed.Tick, isWarmup bool) strategy.Signal
	TPMultiple() float64
	SLMultiple() float64
}

// TradeRecord is one completed trade, flat apart from the entry context.
type TradeRecord struct {
	Pair           string
	EntryTime      float64
	ExitTime       float64
	Direction      int
	EntryPrice     float64
	ExitPrice      float64
	PnLPips        float64
	HoldingSeconds float64
	OutcomeLabel   string
	Context        EntryContext
}

// Backtest replays one pair's tick stream through the metric manager and
// signal generator, managing the single live position. The loop is
// strictly serial: each tick's decision depends on the prior tick's
// state, so there is no intra-pair concurrency.
type Backtest struct {
	source  feed.Source
	metrics MetricEngine
	signals SignalEngine
	pair    string
	pipSize float64
	logger  *zap.Logger

	trades         []TradeRecord
	position       *Position
	tradeOpen      bool
	openedLastTick bool
	lastTick       feed.Tick
	seenTick       bool
}

// NewBacktest wires a single-pair backtest. The source is consumed until
// it returns feed.ErrNoMoreTicks.
func NewBacktest(pair string, source feed.Source, metrics MetricEngine, signals SignalEngine, pipSize float64, log *zap.Logger) *Backtest {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backtest{
		source:  source,
		metrics: metrics,
		signals: signals,
		pair:    pair,
		pipSize: pipSize,
		logger:  log,
	}
}

// Warmup primes metric and entry-engine state with simulated time before
// live trading starts. The initial tick is always consumed; further ticks
// are pulled until warmupSeconds of stream time have elapsed. Exhausting
// the source during warmup logs a warning instead of failing; any other
// source error fails the pair.
func (b *Backtest) Warmup(initialTick feed.Tick, warmupSeconds float64) error {
	startTS := initialTick.Timestamp
	lastTS := startTS

	snapshot := b.metrics.Update(initialTick)
	b.signals.Update(snapshot, initialTick, true)

	if warmupSeconds <= 0 {
		return nil
	}

	for lastTS-startTS < warmupSeconds {
		tick, err := b.source.Next()
		if err != nil {
			if errors.Is(err, feed.ErrNoMoreTicks) {
				b.logger.Warn("tick source exhausted during warmup phase",
					zap.String("pair", b.pair),
					zap.Float64("elapsed_seconds", lastTS-startTS),
					zap.Float64("warmup_seconds", warmupSeconds))
				return nil
			}
			return fmt.Errorf("backtest: tick source failed during warmup for %s: %w", b.pair, err)
		}
		lastTS = tick.Timestamp
		snapshot = b.metrics.Update(tick)
		b.signals.Update(snapshot, tick, true)
	}
	return nil
}

// Run replays the stream to exhaustion, then finalizes any live position
// at the last observed tick.
func (b *Backtest) Run() error {
	ticksProcessed := logger.TicksProcessed.WithLabelValues(b.pair)
	for {
		tick, err := b.source.Next()
		if err != nil {
			if errors.Is(err, feed.ErrNoMoreTicks) {
				break
			}
			return fmt.Errorf("backtest: tick source failed for %s: %w", b.pair, err)
		}
		if err := b.handleTick(tick); err != nil {
			return err
		}
		ticksProcessed.Inc()
	}
	b.finish()
	return nil
}

// Trades returns the completed trades in close order.
func (b *Backtest) Trades() []TradeRecord {
	return b.trades
}

func (b *Backtest) handleTick(tick feed.Tick) error {
	b.lastTick = tick
	b.seenTick = true

	justFilled := false
	if b.openedLastTick {
		b.fillPending(tick)
		justFilled = true
	}

	snapshot := b.metrics.Update(tick)
	signal := b.signals.Update(snapshot, tick, false)

	if justFilled {
		// The fill tick does not arm TP/SL/timeout checks, but an exit
		// signal ordering an immediate close still takes priority.
		if signal.ShouldClose {
			b.finalizeTrade(tick.Mid, tick.Timestamp, closeReasonOrDefault(signal.CloseReason))
		}
	} else if err := b.closePosition(tick, signal); err != nil {
		return err
	}

	if signal.ShouldOpen {
		b.openPosition(tick, signal, snapshot)
	}
	return nil
}

// fillPending fills the entry of a trade opened on the prior tick at this
// tick's mid, then re-anchors TP/SL to the original signal price when the
// entry carried a breach threshold. Anchoring to the signal price rather
// than the fill keeps the intended risk distance immune to slippage
// between signal and fill.
func (b *Backtest) fillPending(tick feed.Tick) {
	b.position.SetEntryFill(tick.Mid, tick.Timestamp)

	ctx := &b.position.Context
	signalPrice := ctx.SignalPrice
	if !isFinite(signalPrice) {
		signalPrice = tick.Mid
		ctx.SignalPrice = signalPrice
	}

	if isFinite(ctx.Threshold) && ctx.Threshold > 0 {
		tpOffset := ctx.Threshold * multipleOrUnit(b.signals.TPMultiple())
		slOffset := ctx.Threshold * multipleOrUnit(b.signals.SLMultiple())

		switch b.position.Direction {
		case 1:
			b.position.TP = signalPrice + tpOffset
			b.position.SL = signalPrice - slOffset
		case -1:
			b.position.TP = signalPrice - tpOffset
			b.position.SL = signalPrice + slOffset
		}
		ctx.TPPrice = b.position.TP
		ctx.SLPrice = b.position.SL
	}

	b.openedLastTick = false
}

func (b *Backtest) openPosition(tick feed.Tick, signal strategy.Signal, snapshot map[string]float64) {
	if b.tradeOpen {
		b.logger.Debug("ignored open signal while position active",
			zap.String("pair", b.pair),
			zap.String("reason", signal.Reason),
			zap.Int("direction", signal.Direction))
		return
	}

	ctx := EntryContext{
		Reason:          signal.Reason,
		SignalTimestamp: tick.Timestamp,
		SignalPrice:     tick.Mid,
		TimeoutSeconds:  signal.TimeoutSeconds,
		Threshold:       math.NaN(),
		TPPrice:         sanitizeLevel(signal.TP),
		SLPrice:         sanitizeLevel(signal.SL),
		Metrics:         copyFloats(snapshot),
		Extra:           copyFloats(signal.EntryMetadata),
	}
	if v, ok := signal.EntryMetadata["threshold"]; ok {
		ctx.Threshold = v
	}
	if v, ok := signal.EntryMetadata["signal_price"]; ok && isFinite(v) {
		ctx.SignalPrice = v
	}

	b.position = &Position{
		EntryTime:      math.NaN(),
		EntryPrice:     math.NaN(),
		TP:             sanitizeLevel(signal.TP),
		SL:             sanitizeLevel(signal.SL),
		Direction:      signal.Direction,
		TimeoutSeconds: signal.TimeoutSeconds,
		ExitTime:       math.NaN(),
		ExitPrice:      math.NaN(),
		PnLPips:        math.NaN(),
		Context:        ctx,
	}
	b.tradeOpen = true
	b.openedLastTick = true
}

// closePosition applies the close checks in precedence order: exit signal
// first, then direction-aware TP/SL, then timeout. If TP and SL would
// both trigger on the same tick, SL wins.
func (b *Backtest) closePosition(tick feed.Tick, signal strategy.Signal) error {
	if !b.tradeOpen {
		return nil
	}

	price := tick.Mid
	now := tick.Timestamp

	if signal.ShouldClose {
		b.finalizeTrade(price, now, closeReasonOrDefault(signal.CloseReason))
		return nil
	}

	pos := b.position
	hitTP, hitSL := false, false
	switch pos.Direction {
	case 1:
		hitTP = isFinite(pos.TP) && price >= pos.TP
		hitSL = isFinite(pos.SL) && price <= pos.SL
	case -1:
		hitTP = isFinite(pos.TP) && price <= pos.TP
		hitSL = isFinite(pos.SL) && price >= pos.SL
	default:
		return fmt.Errorf("backtest: invalid position direction %d", pos.Direction)
	}

	timeoutHit := false
	if !hitTP && !hitSL {
		if isFinite(pos.TimeoutSeconds) && pos.TimeoutSeconds > 0 && pos.Filled() {
			timeoutHit = now-pos.EntryTime >= pos.TimeoutSeconds
		}
	}

	if !hitTP && !hitSL && !timeoutHit {
		return nil
	}

	if hitTP && hitSL {
		hitTP = false
		hitSL = true
	}

	if timeoutHit {
		b.finalizeTrade(price, now, "TIMEOUT")
		return nil
	}

	// Stops exit at the level price, not the observed mid.
	if hitSL {
		b.finalizeTrade(pos.SL, now, "SL")
	} else {
		b.finalizeTrade(pos.TP, now, "TP")
	}
	return nil
}

func (b *Backtest) finalizeTrade(exitPrice, exitTime float64, exitReason string) {
	pos := b.position
	pos.Close(exitPrice, exitTime, b.pipSize, exitReason)

	holding := math.NaN()
	if pos.Filled() {
		holding = pos.ExitTime - pos.EntryTime
	}

	b.trades = append(b.trades, TradeRecord{
		Pair:           b.pair,
		EntryTime:      pos.EntryTime,
		ExitTime:       pos.ExitTime,
		Direction:      pos.Direction,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      pos.ExitPrice,
		PnLPips:        pos.PnLPips,
		HoldingSeconds: holding,
		OutcomeLabel:   pos.OutcomeLabel,
		Context:        pos.Context,
	})
	logger.TradesClosed.WithLabelValues(b.pair, pos.OutcomeLabel).Inc()
	b.tradeOpen = false
}

// finish force-closes any live position at the last observed tick,
// completing a pending fill first.
func (b *Backtest) finish() {
	if b.tradeOpen && b.seenTick {
		if b.openedLastTick {
			b.fillPending(b.lastTick)
		}
		b.finalizeTrade(b.lastTick.Mid, b.lastTick.Timestamp, "DATA_END")
	}

	if len(b.trades) == 0 {
		b.logger.Info("no trades executed", zap.String("pair", b.pair))
	}
}

func closeReasonOrDefault(reason string) string {
	if reason == "" {
		return "EXIT_SIGNAL"
	}
	return reason
}

func sanitizeLevel(v float64) float64 {
	if !isFinite(v) {
		return math.NaN()
	}
	return v
}

// multipleOrUnit treats a zero or non-finite multiple as 1.0.
func multipleOrUnit(m float64) float64 {
	if !isFinite(m) || m == 0 {
		return 1.0
	}
	return m
}

func copyFloats(src map[string]float64) map[string]float64 {
	if src == nil {
		return nil
	}
	dst := make(map[string]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
