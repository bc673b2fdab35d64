package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validBacktestYAML = `
schema_version: "1.0"
pairs: [EURUSD, GBPUSD]
data_base_path: /data/ticks
output_base_path: /data/results
year_start: 2015
year_end: 2015
month_start: 1
month_end: 3
pip_size: 0.0001
warmup_seconds: 300
metrics_config_path: metrics.yaml
strategy_config_path: strategy.yaml
`

func TestLoadBacktest_Valid(t *testing.T) {
	path := writeYAML(t, "backtest.yaml", validBacktestYAML)

	cfg, err := LoadBacktest(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, cfg.Pairs)
	assert.Equal(t, 0.0001, cfg.PipSize)
	assert.Equal(t, 300.0, cfg.WarmupSeconds)
	assert.Equal(t, 2015, cfg.YearStart)
}

func TestLoadBacktest_EnvOverridesPaths(t *testing.T) {
	t.Setenv("TICKBT_DATA_PATH", "/override/data")
	t.Setenv("TICKBT_OUTPUT_PATH", "/override/out")

	path := writeYAML(t, "backtest.yaml", validBacktestYAML)
	cfg, err := LoadBacktest(path)
	require.NoError(t, err)

	assert.Equal(t, "/override/data", cfg.DataBasePath)
	assert.Equal(t, "/override/out", cfg.OutputBasePath)
}

func TestBacktestValidate_Rejections(t *testing.T) {
	base := func() Backtest {
		return Backtest{
			SchemaVersion:      "1.0",
			Pairs:              []string{"EURUSD"},
			DataBasePath:       "/data",
			OutputBasePath:     "/out",
			YearStart:          2015,
			YearEnd:            2015,
			MonthStart:         1,
			MonthEnd:           12,
			PipSize:            0.0001,
			WarmupSeconds:      0,
			MetricsConfigPath:  "m.yaml",
			StrategyConfigPath: "s.yaml",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Backtest)
		want   string
	}{
		{"no pairs", func(c *Backtest) { c.Pairs = nil }, "pairs"},
		{"duplicate pair", func(c *Backtest) { c.Pairs = []string{"EURUSD", "EURUSD"} }, "duplicate pair"},
		{"bad month", func(c *Backtest) { c.MonthStart = 13 }, "month_start"},
		{"inverted range", func(c *Backtest) { c.YearEnd = 2014 }, "must not be after"},
		{"zero pip size", func(c *Backtest) { c.PipSize = 0 }, "pip_size"},
		{"negative warmup", func(c *Backtest) { c.WarmupSeconds = -1 }, "warmup_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

const validMetricsYAML = `
schema_version: "1.0"
metrics:
  - name: ewma_fast
    type: ewma
    params:
      tau_seconds: 10
  - name: vol
    type: ewma_vol
    enabled: false
    params:
      tau_seconds: 30
      percentile_horizon_seconds: 600
  - name: sess
    type: session
`

func TestLoadMetrics_DefaultsApplied(t *testing.T) {
	path := writeYAML(t, "metrics.yaml", validMetricsYAML)

	mf, err := LoadMetrics(path)
	require.NoError(t, err)
	require.Len(t, mf.Metrics, 3)

	fast := mf.Metrics[0]
	assert.True(t, fast.IsEnabled())
	assert.Equal(t, "mid", fast.Params.PriceField)

	vol := mf.Metrics[1]
	assert.False(t, vol.IsEnabled())
	assert.Equal(t, DefaultBins, vol.Params.Bins)
	assert.Equal(t, DefaultBaseVol, vol.Params.BaseVol)
	assert.Equal(t, DefaultStddevCap, vol.Params.StddevCap)
}

func TestLoadMetrics_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"duplicate names",
			"schema_version: \"1.0\"\nmetrics:\n  - {name: a, type: session}\n  - {name: a, type: session}\n",
			"duplicate metric name",
		},
		{
			"unknown type",
			"schema_version: \"1.0\"\nmetrics:\n  - {name: a, type: bogus}\n",
			"unrecognized metric type",
		},
		{
			"missing name",
			"schema_version: \"1.0\"\nmetrics:\n  - {type: session}\n",
			"missing 'name'",
		},
		{
			"bad tau",
			"schema_version: \"1.0\"\nmetrics:\n  - name: a\n    type: ewma\n    params: {tau_seconds: -5}\n",
			"tau_seconds",
		},
		{
			"bad price field",
			"schema_version: \"1.0\"\nmetrics:\n  - name: a\n    type: ewma\n    params: {tau_seconds: 5, price_field: close}\n",
			"price_field",
		},
		{
			"bins out of range",
			"schema_version: \"1.0\"\nmetrics:\n  - name: a\n    type: ewma_vol\n    params: {tau_seconds: 5, percentile_horizon_seconds: 60, bins: 1}\n",
			"bins",
		},
		{
			"missing schema version",
			"metrics: []\n",
			"schema_version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeYAML(t, "metrics.yaml", tt.yaml)
			_, err := LoadMetrics(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestMetricValidate_ThresholdReversionDefaults(t *testing.T) {
	m := Metric{
		Name: "tr",
		Type: "threshold_reversion",
		Params: MetricParams{
			LookbackSeconds: 600,
			ThresholdPips:   10,
			PipSize:         0.0001,
		},
	}
	require.NoError(t, m.Validate())

	require.NotNil(t, m.Params.TPPips)
	require.NotNil(t, m.Params.SLPips)
	assert.Equal(t, 10.0, *m.Params.TPPips)
	assert.Equal(t, 10.0, *m.Params.SLPips)
}

const validStrategyYAML = `
schema_version: "1.0"
name: reversion_basic
entry:
  name: threshold_entry
  engine: threshold_reversion
  params:
    lookback_seconds: 600
    threshold_pips: 10
    sl_pips: 12
    trade_timeout_seconds: 900
  predicates:
    - metric: spread.spread_pips
      operator: "<"
      value: 2.0
exit:
  name: zscore_revert
  predicates:
    - metric: zscore.z_score
      operator: "<="
      value: 0.0
      use_abs: true
`

func TestLoadStrategy_Valid(t *testing.T) {
	path := writeYAML(t, "strategy.yaml", validStrategyYAML)

	s, err := LoadStrategy(path)
	require.NoError(t, err)

	assert.Equal(t, "reversion_basic", s.Name)
	assert.Equal(t, EngineThresholdReversion, s.Entry.Engine)
	require.NotNil(t, s.Entry.Params.TPPips)
	assert.Equal(t, 10.0, *s.Entry.Params.TPPips) // defaulted to threshold
	require.NotNil(t, s.Entry.Params.SLPips)
	assert.Equal(t, 12.0, *s.Entry.Params.SLPips)
	require.Len(t, s.Exit.Predicates, 1)
	assert.True(t, s.Exit.Predicates[0].UseAbs)
}

func TestLoadStrategy_CrossoverDefaults(t *testing.T) {
	path := writeYAML(t, "strategy.yaml", `
schema_version: "1.0"
name: cross
entry:
  name: ewma_cross
  engine: ewma_crossover
  params:
    fast_metric: ewma_fast.ewma
    slow_metric: ewma_slow.ewma
exit:
  name: never
`)

	s, err := LoadStrategy(path)
	require.NoError(t, err)

	require.NotNil(t, s.Entry.Params.LongOnCross)
	assert.True(t, *s.Entry.Params.LongOnCross)
	require.NotNil(t, s.Entry.Params.ShortOnCross)
	assert.False(t, *s.Entry.Params.ShortOnCross)
	assert.Equal(t, 0.0, *s.Entry.Params.TPPips)
}

func TestPredicateValidate(t *testing.T) {
	val := 1.0
	tests := []struct {
		name    string
		p       Predicate
		wantErr string
	}{
		{"value only ok", Predicate{Metric: "a", Operator: ">", Value: &val}, ""},
		{"other metric ok", Predicate{Metric: "a", Operator: "==", OtherMetric: "b"}, ""},
		{"neither", Predicate{Metric: "a", Operator: ">"}, "either 'value' or 'other_metric'"},
		{"both", Predicate{Metric: "a", Operator: ">", Value: &val, OtherMetric: "b"}, "cannot define both"},
		{"bad operator", Predicate{Metric: "a", Operator: "=", Value: &val}, "operator"},
		{"empty metric", Predicate{Operator: ">", Value: &val}, "metric"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadStrategy_UnknownEngine(t *testing.T) {
	path := writeYAML(t, "strategy.yaml", `
schema_version: "1.0"
name: bad
entry:
  name: e
  engine: martingale
exit:
  name: x
`)
	_, err := LoadStrategy(path)
	assert.ErrorContains(t, err, "unrecognized entry engine")
}
