package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

// Fixed trade columns, written before the variable metric/metadata
// columns. Metric snapshot keys follow under their own names and engine
// metadata keys under a "meta." prefix, both sorted, so column order is
// stable across runs.
var tradeColumns = []string{
	"pair",
	"entry_time",
	"exit_time",
	"timestamp_entry",
	"timestamp_exit",
	"direction",
	"entry_price",
	"exit_price",
	"pnl_pips",
	"holding_seconds",
	"outcome_label",
	"reason",
	"signal_timestamp",
	"signal_price",
	"timeout_seconds",
	"threshold",
	"tp_price",
	"sl_price",
}

// WriteTrades persists completed trades to a CSV file. The header is
// written even when no trades completed so downstream consumers see a
// consistent schema.
func WriteTrades(path string, trades []TradeRecord) error {
	metricKeys, extraKeys := collectVariableColumns(trades)

	header := make([]string, 0, len(tradeColumns)+len(metricKeys)+len(extraKeys))
	header = append(header, tradeColumns...)
	header = append(header, metricKeys...)
	for _, k := range extraKeys {
		header = append(header, "meta."+k)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backtest: create trade file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("backtest: write trade header: %w", err)
	}

	row := make([]string, len(header))
	for _, trade := range trades {
		row = row[:0]
		row = append(row,
			trade.Pair,
			formatEpoch(trade.EntryTime),
			formatEpoch(trade.ExitTime),
			formatFloat(trade.EntryTime),
			formatFloat(trade.ExitTime),
			strconv.Itoa(trade.Direction),
			formatFloat(trade.EntryPrice),
			formatFloat(trade.ExitPrice),
			formatFloat(trade.PnLPips),
			formatFloat(trade.HoldingSeconds),
			trade.OutcomeLabel,
			trade.Context.Reason,
			formatFloat(trade.Context.SignalTimestamp),
			formatFloat(trade.Context.SignalPrice),
			formatFloat(trade.Context.TimeoutSeconds),
			formatFloat(trade.Context.Threshold),
			formatFloat(trade.Context.TPPrice),
			formatFloat(trade.Context.SLPrice),
		)
		for _, k := range metricKeys {
			row = append(row, formatOptional(trade.Context.Metrics, k))
		}
		for _, k := range extraKeys {
			row = append(row, formatOptional(trade.Context.Extra, k))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("backtest: write trade row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("backtest: flush trade file: %w", err)
	}
	return nil
}

// collectVariableColumns returns the sorted union of metric snapshot keys
// and engine metadata keys across all trades.
func collectVariableColumns(trades []TradeRecord) (metricKeys, extraKeys []string) {
	metricSet := make(map[string]bool)
	extraSet := make(map[string]bool)
	for _, trade := range trades {
		for k := range trade.Context.Metrics {
			metricSet[k] = true
		}
		for k := range trade.Context.Extra {
			extraSet[k] = true
		}
	}
	for k := range metricSet {
		metricKeys = append(metricKeys, k)
	}
	for k := range extraSet {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(metricKeys)
	sort.Strings(extraKeys)
	return metricKeys, extraKeys
}

func formatFloat(v float64) string {
	if !isFinite(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatOptional(m map[string]float64, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	return formatFloat(v)
}

func formatEpoch(seconds float64) string {
	if !isFinite(seconds) {
		return ""
	}
	return time.Unix(0, int64(seconds*1e9)).UTC().Format(time.RFC3339Nano)
}
