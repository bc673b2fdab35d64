package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

const pip = 0.0001

func tickAt(offsetSeconds, mid float64) feed.Tick {
	return feed.NewTick(int64(offsetSeconds*1e9), mid-0.00005, mid+0.00005)
}

func boolPtr(v bool) *bool { return &v }

func thresholdEntryConfig() config.Entry {
	return config.Entry{
		Name:   "reversion_entry",
		Engine: config.EngineThresholdReversion,
		Params: config.EntryParams{
			LookbackSeconds: 120,
			ThresholdPips:   10,
			TPPips:          floatPtr(10),
			SLPips:          floatPtr(20),
		},
	}
}

func crossoverEntryConfig() config.Entry {
	return config.Entry{
		Name:   "cross_entry",
		Engine: config.EngineEWMACrossover,
		Params: config.EntryParams{
			FastMetric:   "fast.ewma",
			SlowMetric:   "slow.ewma",
			LongOnCross:  boolPtr(true),
			ShortOnCross: boolPtr(true),
			TPPips:       floatPtr(10),
			SLPips:       floatPtr(10),
		},
	}
}

func TestNewEntryEngine_UnknownEngine(t *testing.T) {
	_, err := NewEntryEngine(config.Entry{Name: "x", Engine: "martingale"}, pip)
	assert.ErrorContains(t, err, "unrecognized entry engine")
}

func TestThresholdEngine_EmitsOncePerPosition(t *testing.T) {
	engine, err := NewEntryEngine(thresholdEntryConfig(), pip)
	require.NoError(t, err)

	engine.Update(tickAt(0, 1.2000), nil)
	res := engine.Update(tickAt(30, 1.2012), nil)
	require.True(t, res.ShouldOpen)
	assert.Equal(t, -1, res.Direction)
	assert.InDelta(t, 1.2002, res.TP, 1e-6)
	assert.InDelta(t, 1.2032, res.SL, 1e-6)
	assert.Equal(t, -1.0, res.Metadata["direction"])
	assert.InDelta(t, 1.2012, res.Metadata["signal_price"], 1e-9)

	// Persisting short breach does not re-trigger.
	res = engine.Update(tickAt(31, 1.2014), nil)
	assert.False(t, res.ShouldOpen)
	assert.Equal(t, "reversion_entry", res.Reason)
}

func TestThresholdEngine_Multiples(t *testing.T) {
	engine, err := NewEntryEngine(thresholdEntryConfig(), pip)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, engine.TPMultiple(), 1e-12)
	assert.InDelta(t, 2.0, engine.SLMultiple(), 1e-12)
}

func TestCrossoverEngine_GeneratesLongAndShort(t *testing.T) {
	engine, err := NewEntryEngine(crossoverEntryConfig(), pip)
	require.NoError(t, err)

	// Establish a negative diff, then cross upward.
	res := engine.Update(tickAt(0, 1.2000), map[string]float64{"fast.ewma": 1.0, "slow.ewma": 2.0})
	assert.False(t, res.ShouldOpen)

	res = engine.Update(tickAt(1, 1.2000), map[string]float64{"fast.ewma": 3.0, "slow.ewma": 2.0})
	require.True(t, res.ShouldOpen)
	assert.Equal(t, 1, res.Direction)
	assert.InDelta(t, 1.2010, res.TP, 1e-9)
	assert.InDelta(t, 1.1990, res.SL, 1e-9)

	// Cross back downward emits a short.
	res = engine.Update(tickAt(2, 1.2000), map[string]float64{"fast.ewma": 1.0, "slow.ewma": 2.0})
	require.True(t, res.ShouldOpen)
	assert.Equal(t, -1, res.Direction)
}

func TestCrossoverEngine_GatedByCrossFlags(t *testing.T) {
	cfg := crossoverEntryConfig()
	cfg.Params.ShortOnCross = boolPtr(false)
	engine, err := NewEntryEngine(cfg, pip)
	require.NoError(t, err)

	engine.Update(tickAt(0, 1.2000), map[string]float64{"fast.ewma": 3.0, "slow.ewma": 2.0})
	res := engine.Update(tickAt(1, 1.2000), map[string]float64{"fast.ewma": 1.0, "slow.ewma": 2.0})
	assert.False(t, res.ShouldOpen)
}

func TestCrossoverEngine_ResetsOnNonFiniteMetrics(t *testing.T) {
	engine, err := NewEntryEngine(crossoverEntryConfig(), pip)
	require.NoError(t, err)

	engine.Update(tickAt(0, 1.2000), map[string]float64{"fast.ewma": 1.0, "slow.ewma": 2.0})
	engine.Update(tickAt(1, 1.2000), map[string]float64{"fast.ewma": math.NaN(), "slow.ewma": 2.0})

	// After the gap the first finite diff only re-seeds; no cross is
	// inferred against the pre-gap state.
	res := engine.Update(tickAt(2, 1.2000), map[string]float64{"fast.ewma": 3.0, "slow.ewma": 2.0})
	assert.False(t, res.ShouldOpen)
}

func TestCrossoverEngine_ZeroPipsMeansNoStops(t *testing.T) {
	cfg := crossoverEntryConfig()
	cfg.Params.TPPips = floatPtr(0)
	cfg.Params.SLPips = floatPtr(0)
	engine, err := NewEntryEngine(cfg, pip)
	require.NoError(t, err)

	engine.Update(tickAt(0, 1.2000), map[string]float64{"fast.ewma": -1.0, "slow.ewma": 0.0})
	res := engine.Update(tickAt(1, 1.2000), map[string]float64{"fast.ewma": 1.0, "slow.ewma": 0.0})
	require.True(t, res.ShouldOpen)
	assert.True(t, math.IsNaN(res.TP))
	assert.True(t, math.IsNaN(res.SL))
}

func TestNullEngine_NeverOpens(t *testing.T) {
	engine, err := NewEntryEngine(config.Entry{Name: "noop", Engine: config.EngineNull}, pip)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		res := engine.Update(tickAt(float64(i), 1.2000), nil)
		assert.False(t, res.ShouldOpen)
		assert.Equal(t, "noop", res.Reason)
	}
	assert.Equal(t, 1.0, engine.TPMultiple())
	assert.Equal(t, 1.0, engine.SLMultiple())
}
