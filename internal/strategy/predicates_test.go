package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
)

func floatPtr(v float64) *float64 { return &v }

func TestEvaluatePredicate_Operators(t *testing.T) {
	metrics := map[string]float64{"z.z_score": -1.5, "spread.pips": 2.0}

	tests := []struct {
		name string
		p    config.Predicate
		want bool
	}{
		{"less than", config.Predicate{Metric: "z.z_score", Operator: "<", Value: floatPtr(0)}, true},
		{"greater than fails", config.Predicate{Metric: "z.z_score", Operator: ">", Value: floatPtr(0)}, false},
		{"abs flips comparison", config.Predicate{Metric: "z.z_score", Operator: ">", Value: floatPtr(1.0), UseAbs: true}, true},
		{"equality", config.Predicate{Metric: "spread.pips", Operator: "==", Value: floatPtr(2.0)}, true},
		{"not equal", config.Predicate{Metric: "spread.pips", Operator: "!=", Value: floatPtr(2.0)}, false},
		{"lte boundary", config.Predicate{Metric: "spread.pips", Operator: "<=", Value: floatPtr(2.0)}, true},
		{"gte boundary", config.Predicate{Metric: "spread.pips", Operator: ">=", Value: floatPtr(2.0)}, true},
		{"metric vs metric", config.Predicate{Metric: "spread.pips", Operator: ">", OtherMetric: "z.z_score"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluatePredicate(tt.p, metrics))
		})
	}
}

func TestEvaluatePredicate_NonFiniteShortCircuitsToFalse(t *testing.T) {
	metrics := map[string]float64{
		"a": math.NaN(),
		"b": 1.0,
		"c": math.Inf(1),
	}

	assert.False(t, EvaluatePredicate(config.Predicate{Metric: "a", Operator: ">", Value: floatPtr(0)}, metrics))
	assert.False(t, EvaluatePredicate(config.Predicate{Metric: "c", Operator: ">", Value: floatPtr(0)}, metrics))
	assert.False(t, EvaluatePredicate(config.Predicate{Metric: "missing", Operator: ">", Value: floatPtr(0)}, metrics))
	assert.False(t, EvaluatePredicate(config.Predicate{Metric: "b", Operator: ">", OtherMetric: "a"}, metrics))
	assert.False(t, EvaluatePredicate(config.Predicate{Metric: "b", Operator: ">", OtherMetric: "missing"}, metrics))
}

func TestEvaluateAll_AndSemantics(t *testing.T) {
	metrics := map[string]float64{"x": 1.0, "y": 2.0}

	both := []config.Predicate{
		{Metric: "x", Operator: ">", Value: floatPtr(0)},
		{Metric: "y", Operator: ">", Value: floatPtr(0)},
	}
	assert.True(t, EvaluateAll(both, metrics))

	oneFails := []config.Predicate{
		{Metric: "x", Operator: ">", Value: floatPtr(0)},
		{Metric: "y", Operator: "<", Value: floatPtr(0)},
	}
	assert.False(t, EvaluateAll(oneFails, metrics))

	// An empty predicate list gates nothing.
	assert.True(t, EvaluateAll(nil, metrics))
}
