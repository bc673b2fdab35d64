package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEWMAMetric_RejectsBadParams(t *testing.T) {
	_, err := NewEWMAMetric("e", 0, nil, "mid")
	assert.Error(t, err)

	_, err = NewEWMAMetric("e", -1, nil, "mid")
	assert.Error(t, err)

	_, err = NewEWMAMetric("e", 10, nil, "close")
	assert.ErrorContains(t, err, "price_field")
}

func TestEWMAMetric_SeedsToFirstPrice(t *testing.T) {
	m, err := NewEWMAMetric("e", 10, nil, "mid")
	require.NoError(t, err)

	m.Update(tickAt(0, 1.2345))
	assert.InDelta(t, 1.2345, m.Value()["ewma"], 1e-12)
}

func TestEWMAMetric_InitialValueSkipsSeeding(t *testing.T) {
	initial := 1.0
	m, err := NewEWMAMetric("e", 10, &initial, "mid")
	require.NoError(t, err)

	// With no prior tick on record the blend uses the floor dt of 1e-6,
	// not the tick's own timestamp.
	m.Update(tickAt(10, 2.0))
	alpha := 1.0 - math.Exp(-minTickDt/10.0)
	want := (1.0-alpha)*1.0 + alpha*2.0
	assert.InDelta(t, want, m.Value()["ewma"], 1e-12)

	// That first update seeds the clock, so the next blend decays over
	// the real 10s gap.
	prev := m.Value()["ewma"]
	m.Update(tickAt(20, 2.0))
	alpha = 1.0 - math.Exp(-1.0)
	assert.InDelta(t, (1.0-alpha)*prev+alpha*2.0, m.Value()["ewma"], 1e-12)
}

func TestEWMAMetric_KnownBlendSteps(t *testing.T) {
	m, err := NewEWMAMetric("e", 5, nil, "mid")
	require.NoError(t, err)

	m.Update(tickAt(0, 1.0))
	m.Update(tickAt(5, 2.0)) // dt=5, alpha = 1 - e^-1

	alpha := 1.0 - math.Exp(-1.0)
	assert.InDelta(t, 1.0+alpha, m.Value()["ewma"], 1e-12)
}

func TestEWMAMetric_UsesSelectedPriceField(t *testing.T) {
	m, err := NewEWMAMetric("e", 10, nil, "ask")
	require.NoError(t, err)

	tick := tickAt(0, 1.2000)
	m.Update(tick)
	assert.InDelta(t, tick.Ask, m.Value()["ewma"], 1e-12)
}

func TestEWMASlopeMetric_RequiresTwoPoints(t *testing.T) {
	m, err := NewEWMASlopeMetric("s", 10, 60, nil, "mid")
	require.NoError(t, err)

	m.Update(tickAt(0, 1.2000))
	assert.True(t, math.IsNaN(m.Value()["slope"]))
}

func TestEWMASlopeMetric_TracksTrend(t *testing.T) {
	// Tiny tau makes the inner average follow the price exactly, so the
	// slope reduces to (newest - oldest) / dt.
	m, err := NewEWMASlopeMetric("s", 0.001, 60, nil, "mid")
	require.NoError(t, err)

	m.Update(tickAt(0, 1.0000))
	m.Update(tickAt(1, 1.0002))
	m.Update(tickAt(2, 1.0004))

	values := m.Value()
	assert.InDelta(t, 1.0004, values["ewma"], 1e-9)
	assert.InDelta(t, 0.0002, values["slope"], 1e-9)
}

func TestEWMASlopeMetric_WindowEvictsOldPoints(t *testing.T) {
	m, err := NewEWMASlopeMetric("s", 0.001, 5, nil, "mid")
	require.NoError(t, err)

	m.Update(tickAt(0, 1.0000))
	m.Update(tickAt(10, 1.0010))
	m.Update(tickAt(11, 1.0020))

	// The t=0 point is outside the 5s window; slope spans t=10..11.
	assert.InDelta(t, 0.0010, m.Value()["slope"], 1e-9)
}

func TestNewEWMASlopeMetric_RejectsBadWindow(t *testing.T) {
	_, err := NewEWMASlopeMetric("s", 10, 0, nil, "mid")
	assert.Error(t, err)
}
