package feed

import (
	"math"
)

// ValidationStats tallies validation outcomes for one pair's stream.
type ValidationStats struct {
	TotalTicks    int            `json:"total_ticks"`
	AcceptedTicks int            `json:"accepted_ticks"`
	SkippedTicks  int            `json:"skipped_ticks"`
	Issues        map[string]int `json:"issues"`
}

// Validator checks stream invariants tick by tick: finite fields,
// non-negative spread, mid consistency and monotone timestamps. Invalid
// ticks are skipped, never fatal; per-issue counts feed the run manifest.
type Validator struct {
	Pair  string
	Stats ValidationStats

	lastTimestampNS int64
	seen            bool
}

// NewValidator creates a validator for one pair.
func NewValidator(pair string) *Validator {
	return &Validator{
		Pair:  pair,
		Stats: ValidationStats{Issues: make(map[string]int)},
	}
}

// Validate returns true if the tick passes all checks, recording the
// first failed check otherwise.
func (v *Validator) Validate(t Tick) bool {
	v.Stats.TotalTicks++

	switch {
	case !isFinite(t.Bid):
		return v.reject("non_finite_field:bid")
	case !isFinite(t.Ask):
		return v.reject("non_finite_field:ask")
	case !isFinite(t.Mid):
		return v.reject("non_finite_field:mid")
	case !isFinite(t.Timestamp):
		return v.reject("non_finite_field:timestamp")
	}

	if t.Ask < t.Bid {
		return v.reject("negative_spread")
	}

	expectedMid := 0.5 * (t.Bid + t.Ask)
	tol := 1e-6 * math.Max(1.0, math.Abs(expectedMid))
	if !isFinite(expectedMid) || math.Abs(expectedMid-t.Mid) > tol {
		return v.reject("invalid_mid")
	}

	if v.seen && t.TimestampNS < v.lastTimestampNS {
		return v.reject("timestamp_regression")
	}

	v.lastTimestampNS = t.TimestampNS
	v.seen = true
	v.Stats.AcceptedTicks++
	return true
}

func (v *Validator) reject(issue string) bool {
	v.Stats.SkippedTicks++
	v.Stats.Issues[issue]++
	return false
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ValidatingSource wraps a Source and drops ticks its validator rejects.
type ValidatingSource struct {
	inner     Source
	validator *Validator
}

// NewValidatingSource wraps src so only validated ticks reach consumers.
func NewValidatingSource(src Source, validator *Validator) *ValidatingSource {
	return &ValidatingSource{inner: src, validator: validator}
}

// Next implements Source, skipping invalid ticks.
func (s *ValidatingSource) Next() (Tick, error) {
	for {
		tick, err := s.inner.Next()
		if err != nil {
			return Tick{}, err
		}
		if s.validator.Validate(tick) {
			return tick, nil
		}
	}
}

// Validator exposes the wrapped validator for stats collection.
func (s *ValidatingSource) Validator() *Validator {
	return s.validator
}
