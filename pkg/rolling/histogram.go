package rolling

import (
	"fmt"
	"math"
	"sort"
)

type event struct {
	start float64
	end   float64
	bin   int
}

// Histogram is a fixed-edge histogram whose bin occupancy is weighted by
// time: each observation contributes the length of the interval it
// covered, and contributions expire once they fall behind the trailing
// horizon. Supports percentile-rank queries against the current
// occupancy.
type Histogram struct {
	edges   []float64
	horizon float64
	weights []float64
	total   float64
	events  []event
	head    int
}

// NewHistogram creates a histogram over the given strictly-increasing
// bin edges (n+1 edges for n bins) with occupancy retained for
// horizonSeconds.
func NewHistogram(edges []float64, horizonSeconds float64) (*Histogram, error) {
	if len(edges) < 2 {
		return nil, fmt.Errorf("histogram: need at least 2 edges, got %d", len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, fmt.Errorf("histogram: edges must be strictly increasing at index %d", i)
		}
	}
	if !(horizonSeconds > 0) {
		return nil, fmt.Errorf("histogram: horizon_seconds must be positive, got %v", horizonSeconds)
	}
	owned := make([]float64, len(edges))
	copy(owned, edges)
	return &Histogram{
		edges:   owned,
		horizon: horizonSeconds,
		weights: make([]float64, len(edges)-1),
	}, nil
}

// LinearEdges returns bins+1 evenly spaced edges covering [lo, hi].
func LinearEdges(lo, hi float64, bins int) []float64 {
	edges := make([]float64, bins+1)
	step := (hi - lo) / float64(bins)
	for i := range edges {
		edges[i] = lo + float64(i)*step
	}
	edges[bins] = hi
	return edges
}

// BinIndex maps x onto a bin, clamping values at or beyond the outer
// edges into the first/last bin.
func (h *Histogram) BinIndex(x float64) int {
	n := len(h.weights)
	if x <= h.edges[0] {
		return 0
	}
	if x >= h.edges[len(h.edges)-1] {
		return n - 1
	}
	// First edge strictly greater than x, minus one.
	idx := sort.SearchFloat64s(h.edges, x)
	if idx < len(h.edges) && h.edges[idx] == x {
		idx++
	}
	idx--
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}

// Add records that value held over [start, end). Empty or inverted
// intervals are ignored.
func (h *Histogram) Add(start, end, value float64) {
	if end <= start {
		return
	}
	b := h.BinIndex(value)
	w := end - start
	h.weights[b] += w
	h.total += w
	h.events = append(h.events, event{start: start, end: end, bin: b})
}

// Trim expires events whose interval ends at or before now-horizon.
// Events are time-ordered, so trimming stops at the first survivor; a
// straddling event is shrunk in place.
func (h *Histogram) Trim(now float64) {
	cutoff := now - h.horizon
	for h.head < len(h.events) {
		ev := h.events[h.head]
		if ev.end <= cutoff {
			w := ev.end - ev.start
			h.weights[ev.bin] -= w
			h.total -= w
			h.head++
			continue
		}
		if ev.start < cutoff && cutoff < ev.end {
			dropW := cutoff - ev.start
			h.weights[ev.bin] -= dropW
			h.total -= dropW
			h.events[h.head] = event{start: cutoff, end: ev.end, bin: ev.bin}
		}
		break
	}

	if h.head > 64 && h.head*2 >= len(h.events) {
		n := copy(h.events, h.events[h.head:])
		h.events = h.events[:n]
		h.head = 0
	}

	if h.total < 0 && -h.total < 1e-9 {
		h.total = 0
	}
}

// Total returns the summed occupancy weight.
func (h *Histogram) Total() float64 {
	return h.total
}

// PercentileRank returns the fraction of retained occupancy at or below
// x, interpolating fractionally within x's bin. NaN while empty.
func (h *Histogram) PercentileRank(x float64) float64 {
	if h.total <= 0 {
		return math.NaN()
	}
	b := h.BinIndex(x)
	below := 0.0
	for i := 0; i < b; i++ {
		below += h.weights[i]
	}
	left, right := h.edges[b], h.edges[b+1]
	frac := 0.0
	if right > left {
		frac = (x - left) / (right - left)
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
	}
	return (below + h.weights[b]*frac) / h.total
}
