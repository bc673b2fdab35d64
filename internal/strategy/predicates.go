package strategy

import (
	"math"

	"github.com/mohamedkhairy/tick-backtest/internal/config"
)

// EvaluatePredicate checks one predicate against the metric snapshot.
// A missing or non-finite operand short-circuits to false.
func EvaluatePredicate(p config.Predicate, metrics map[string]float64) bool {
	left, ok := metrics[p.Metric]
	if !ok || !isFinite(left) {
		return false
	}
	if p.UseAbs {
		left = math.Abs(left)
	}

	var right float64
	if p.Value != nil {
		right = *p.Value
	} else {
		right, ok = metrics[p.OtherMetric]
		if !ok || !isFinite(right) {
			return false
		}
	}

	switch p.Operator {
	case ">":
		return left > right
	case ">=":
		return left >= right
	case "<":
		return left < right
	case "<=":
		return left <= right
	case "==":
		return left == right
	case "!=":
		return left != right
	default:
		return false
	}
}

// EvaluateAll applies AND semantics across the predicate list. An
// empty list evaluates to true.
func EvaluateAll(predicates []config.Predicate, metrics map[string]float64) bool {
	for i := range predicates {
		if !EvaluatePredicate(predicates[i], metrics) {
			return false
		}
	}
	return true
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
