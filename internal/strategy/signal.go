package strategy

import "math"

// Signal is the per-tick trading intent produced by the generator.
// TP, SL and TimeoutSeconds use NaN when the signal does not carry one.
type Signal struct {
	ShouldOpen     bool
	Direction      int // +1 long, -1 short, 0 none
	TP             float64
	SL             float64
	Reason         string
	TimeoutSeconds float64
	ShouldClose    bool
	CloseReason    string
	EntryMetadata  map[string]float64
}

// EntryResult is the structured response produced by entry engines.
type EntryResult struct {
	ShouldOpen     bool
	Direction      int
	TP             float64
	SL             float64
	TimeoutSeconds float64
	Reason         string
	Metadata       map[string]float64
}

func noSignal(reason string, metadata map[string]float64) EntryResult {
	return EntryResult{
		TP:             math.NaN(),
		SL:             math.NaN(),
		TimeoutSeconds: math.NaN(),
		Reason:         reason,
		Metadata:       metadata,
	}
}
