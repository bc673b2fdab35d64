package indicator

import (
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

const halfSpread = 0.00005

// tickAt builds a tick whose mid equals the given price, offset seconds
// into the test epoch.
func tickAt(offsetSeconds, mid float64) feed.Tick {
	ns := int64(offsetSeconds * 1e9)
	return feed.NewTick(ns, mid-halfSpread, mid+halfSpread)
}

// tickSeries builds ticks one second apart.
func tickSeries(mids ...float64) []feed.Tick {
	ticks := make([]feed.Tick, len(mids))
	for i, mid := range mids {
		ticks[i] = tickAt(float64(i), mid)
	}
	return ticks
}
