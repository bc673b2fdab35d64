package feed

// Tick is a single top-of-book FX quote. The nanosecond timestamp is
// authoritative; the float-seconds form is derived from it once so every
// consumer sees identical values. Ticks are never mutated downstream.
type Tick struct {
	Timestamp   float64 // UTC epoch seconds, derived from TimestampNS
	TimestampNS int64   // UTC epoch nanoseconds
	Bid         float64
	Ask         float64
	Mid         float64
	Hour        int // UTC hour of day
	Minute      int // UTC minute of hour
}

// NewTick builds a Tick from a nanosecond timestamp and quote prices.
// Mid is computed here so it is consistent with bid/ask by construction.
func NewTick(timestampNS int64, bid, ask float64) Tick {
	seconds := timestampNS / 1_000_000_000
	secondsInDay := seconds % 86_400
	if secondsInDay < 0 {
		secondsInDay += 86_400
	}
	return Tick{
		Timestamp:   float64(timestampNS) / 1e9,
		TimestampNS: timestampNS,
		Bid:         bid,
		Ask:         ask,
		Mid:         0.5 * (bid + ask),
		Hour:        int(secondsInDay / 3600),
		Minute:      int((secondsInDay % 3600) / 60),
	}
}

// Price returns the named price field. Supported fields are "mid",
// "bid" and "ask"; anything else returns false.
func (t Tick) Price(field string) (float64, bool) {
	switch field {
	case "mid":
		return t.Mid, true
	case "bid":
		return t.Bid, true
	case "ask":
		return t.Ask, true
	default:
		return 0, false
	}
}
