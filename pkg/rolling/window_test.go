package rolling

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteWindow applies the same front-trim policy as TimeWindow but
// recomputes the weighted aggregates from scratch over the retained
// samples on every call, so any drift in the incremental sums shows up.
type bruteWindow struct {
	lookback float64
	samples  []sample
}

func (b *bruteWindow) append(ts, value, dt float64) {
	if dt <= 0 {
		dt = 1e-9
	}
	b.samples = append(b.samples, sample{start: ts, value: value, duration: dt})

	cutoff := ts - b.lookback
	for len(b.samples) > 0 {
		s := b.samples[0]
		end := s.start + s.duration
		if end <= cutoff-1e-12 {
			b.samples = b.samples[1:]
			continue
		}
		if s.start < cutoff && cutoff < end {
			b.samples[0] = sample{start: cutoff, value: s.value, duration: end - cutoff}
		}
		break
	}
}

func (b *bruteWindow) stats() (float64, float64) {
	var sumW, sumX, sumX2 float64
	for _, s := range b.samples {
		sumW += s.duration
		sumX += s.duration * s.value
		sumX2 += s.duration * s.value * s.value
	}
	if sumW <= 1e-12 {
		return math.NaN(), math.NaN()
	}
	mean := sumX / sumW
	raw := sumX2/sumW - mean*mean
	if raw < 0 {
		raw = 0
	}
	return mean, math.Sqrt(raw)
}

func TestNewTimeWindow_RejectsBadLookback(t *testing.T) {
	_, err := NewTimeWindow(0)
	assert.Error(t, err)
	_, err = NewTimeWindow(-1)
	assert.Error(t, err)
}

func TestTimeWindow_WeightedMeanAndStddev(t *testing.T) {
	w, err := NewTimeWindow(100)
	require.NoError(t, err)

	// No horizon interaction: all samples well inside the window.
	w.Append(0, 1.0, 2.0)
	w.Append(2, 3.0, 1.0)
	w.Append(3, 5.0, 1.0)

	mean, std := w.Stats()
	// mean = (2*1 + 1*3 + 1*5) / 4 = 2.5
	assert.InDelta(t, 2.5, mean, 1e-9)
	// E[x^2] = (2*1 + 1*9 + 1*25) / 4 = 9; var = 9 - 6.25 = 2.75
	assert.InDelta(t, math.Sqrt(2.75), std, 1e-9)
}

func TestTimeWindow_SkipsNonFinite(t *testing.T) {
	w, err := NewTimeWindow(10)
	require.NoError(t, err)

	w.Append(math.NaN(), 1, 1)
	w.Append(0, math.Inf(1), 1)
	w.Append(0, 1, math.NaN())
	assert.Equal(t, 0, w.Len())

	mean, std := w.Stats()
	assert.True(t, math.IsNaN(mean))
	assert.True(t, math.IsNaN(std))
}

func TestTimeWindow_ZeroDurationRegistersTokenPresence(t *testing.T) {
	w, err := NewTimeWindow(10)
	require.NoError(t, err)

	w.Append(5, 2.0, 0)
	require.Equal(t, 1, w.Len())

	mean, std := w.Stats()
	assert.InDelta(t, 2.0, mean, 1e-9)
	assert.InDelta(t, 0.0, std, 1e-9)
}

func TestTimeWindow_FullEviction(t *testing.T) {
	w, err := NewTimeWindow(5)
	require.NoError(t, err)

	w.Append(0, 10.0, 1.0)
	w.Append(20, 2.0, 1.0) // pushes cutoff to 15, first sample fully gone

	mean, _ := w.Stats()
	assert.InDelta(t, 2.0, mean, 1e-9)
	assert.Equal(t, 1, w.Len())
}

func TestTimeWindow_PartialTrimShrinksStraddlingSample(t *testing.T) {
	w, err := NewTimeWindow(5)
	require.NoError(t, err)

	// Sample covers [0, 4]; appending at ts=7 puts the cutoff at 2, so
	// only [2, 4] of the first sample survives.
	w.Append(0, 10.0, 4.0)
	w.Append(7, 2.0, 1.0)

	brute := &bruteWindow{lookback: 5}
	brute.append(0, 10.0, 4.0)
	brute.append(7, 2.0, 1.0)
	wantMean, wantStd := brute.stats()

	mean, std := w.Stats()
	assert.InDelta(t, wantMean, mean, 1e-9)
	assert.InDelta(t, wantStd, std, 1e-9)
	assert.Equal(t, 2, w.Len())
}

func TestTimeWindow_EmptyAggregatesSnapToZero(t *testing.T) {
	w, err := NewTimeWindow(1)
	require.NoError(t, err)

	w.Append(0, 123.456, 0.5)
	w.Append(100, 1.0, 0.5)
	w.Append(200, 1.0, 0.5)

	// Only the latest sample remains; residual float noise from the
	// evictions must not distort the mean.
	mean, std := w.Stats()
	assert.InDelta(t, 1.0, mean, 1e-12)
	assert.InDelta(t, 0.0, std, 1e-9)
}

func TestTimeWindow_RandomSequenceMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	w, err := NewTimeWindow(7.5)
	require.NoError(t, err)
	brute := &bruteWindow{lookback: 7.5}

	ts := 0.0
	lastTs := math.NaN()
	for i := 0; i < 500; i++ {
		ts += rng.Float64() * 2.0
		value := 1.25 + rng.NormFloat64()*0.01

		dt := 0.0
		if !math.IsNaN(lastTs) {
			dt = ts - lastTs
		}
		w.Append(ts, value, dt)
		brute.append(ts, value, dt)
		lastTs = ts

		wantMean, wantStd := brute.stats()
		mean, std := w.Stats()
		require.InDelta(t, wantMean, mean, 1e-9, "tick %d", i)
		require.InDelta(t, wantStd, std, 1e-9, "tick %d", i)
	}
}
