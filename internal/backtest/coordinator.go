package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
	"github.com/mohamedkhairy/tick-backtest/internal/indicator"
	"github.com/mohamedkhairy/tick-backtest/internal/strategy"
	"github.com/mohamedkhairy/tick-backtest/pkg/logger"
)

// PairStatus is one pair's outcome in the run manifest.
type PairStatus struct {
	Status     string                `json:"status"` // completed | failed
	Error      string                `json:"error,omitempty"`
	Trades     int                   `json:"trades"`
	Validation *feed.ValidationStats `json:"validation,omitempty"`
}

// Manifest summarizes one run for downstream tooling.
type Manifest struct {
	RunID         string                `json:"run_id"`
	SchemaVersion string                `json:"schema_version"`
	StartedAt     string                `json:"started_at"`
	FinishedAt    string                `json:"finished_at"`
	Pairs         map[string]PairStatus `json:"pairs"`
}

// Coordinator runs one backtest per configured pair. Pairs are fully
// isolated units of work: a failing pair is recorded and skipped, never
// aborting the rest of the run, and no partial trade file is written for
// it.
type Coordinator struct {
	cfg    *config.Backtest
	runID  string
	logger *zap.Logger

	PairFailures    map[string]string
	ValidationStats map[string]feed.ValidationStats
	tradeCounts     map[string]int
}

// NewCoordinator prepares a run with a fresh uuid run identifier and
// ensures the output directory exists.
func NewCoordinator(cfg *config.Backtest, log *zap.Logger) (*Coordinator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.OutputBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("backtest: create output directory: %w", err)
	}
	return &Coordinator{
		cfg:             cfg,
		runID:           uuid.NewString(),
		logger:          log,
		PairFailures:    make(map[string]string),
		ValidationStats: make(map[string]feed.ValidationStats),
		tradeCounts:     make(map[string]int),
	}, nil
}

// RunID returns the run identifier stamped into the manifest.
func (c *Coordinator) RunID() string {
	return c.runID
}

// Run executes a backtest for each configured pair and writes the run
// manifest when done.
func (c *Coordinator) Run() error {
	started := time.Now().UTC()
	c.logger.Info("starting backtest run",
		zap.String("run_id", c.runID),
		zap.Strings("pairs", c.cfg.Pairs))

	for _, pair := range c.cfg.Pairs {
		log := c.logger.With(zap.String("pair", pair))
		log.Info("starting pair backtest")
		if err := c.runPair(pair); err != nil {
			c.PairFailures[pair] = err.Error()
			logger.PairsFailed.Inc()
			log.Error("pair backtest failed", zap.Error(err))
			continue
		}
		logger.PairsCompleted.Inc()
		log.Info("completed pair backtest", zap.Int("trades", c.tradeCounts[pair]))
	}

	if err := c.writeManifest(started, time.Now().UTC()); err != nil {
		return err
	}
	c.logger.Info("all backtests complete", zap.String("run_id", c.runID))
	return nil
}

func (c *Coordinator) runPair(pair string) error {
	raw, err := feed.NewCSVFeed(
		c.cfg.DataBasePath, pair,
		c.cfg.YearStart, c.cfg.YearEnd,
		c.cfg.MonthStart, c.cfg.MonthEnd,
		c.logger,
	)
	if err != nil {
		return err
	}
	defer raw.Close()

	validator := feed.NewValidator(pair)
	source := feed.NewValidatingSource(raw, validator)
	defer func() {
		c.ValidationStats[pair] = validator.Stats
		logger.TicksSkipped.WithLabelValues(pair).Add(float64(validator.Stats.SkippedTicks))
	}()

	metricsCfg, err := config.LoadMetrics(c.cfg.MetricsConfigPath)
	if err != nil {
		return err
	}
	manager, err := indicator.NewManager(metricsCfg, c.logger)
	if err != nil {
		return err
	}

	strategyCfg, err := config.LoadStrategy(c.cfg.StrategyConfigPath)
	if err != nil {
		return err
	}
	generator, err := strategy.NewSignalGenerator(strategyCfg, c.cfg.PipSize)
	if err != nil {
		return err
	}

	initialTick, err := source.Next()
	if err != nil {
		if errors.Is(err, feed.ErrNoMoreTicks) {
			c.logger.Warn("no data available for pair; skipping", zap.String("pair", pair))
			return nil
		}
		return err
	}

	bt := NewBacktest(pair, source, manager, generator, c.cfg.PipSize, c.logger)
	if err := bt.Warmup(initialTick, c.cfg.WarmupSeconds); err != nil {
		return err
	}
	if err := bt.Run(); err != nil {
		return err
	}

	trades := bt.Trades()
	c.tradeCounts[pair] = len(trades)
	if len(trades) == 0 {
		return nil
	}

	pairDir := filepath.Join(c.cfg.OutputBasePath, pair)
	if err := os.MkdirAll(pairDir, 0o755); err != nil {
		return fmt.Errorf("backtest: create pair output directory: %w", err)
	}
	return WriteTrades(filepath.Join(pairDir, "trades.csv"), trades)
}

func (c *Coordinator) writeManifest(started, finished time.Time) error {
	manifest := Manifest{
		RunID:         c.runID,
		SchemaVersion: c.cfg.SchemaVersion,
		StartedAt:     started.Format(time.RFC3339Nano),
		FinishedAt:    finished.Format(time.RFC3339Nano),
		Pairs:         make(map[string]PairStatus, len(c.cfg.Pairs)),
	}
	for _, pair := range c.cfg.Pairs {
		status := PairStatus{Status: "completed", Trades: c.tradeCounts[pair]}
		if msg, failed := c.PairFailures[pair]; failed {
			status.Status = "failed"
			status.Error = msg
		}
		if stats, ok := c.ValidationStats[pair]; ok {
			statsCopy := stats
			status.Validation = &statsCopy
		}
		manifest.Pairs[pair] = status
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("backtest: encode manifest: %w", err)
	}
	path := filepath.Join(c.cfg.OutputBasePath, "manifest.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backtest: write manifest: %w", err)
	}
	return nil
}
