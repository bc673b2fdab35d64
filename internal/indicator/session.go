package indicator

import (
	"github.com/mohamedkhairy/tick-backtest/internal/feed"
)

// Session identifies an FX trading session by numeric id so it can
// ride along in the float snapshot.
type Session int

const (
	SessionAsia Session = iota
	SessionLondon
	SessionLondonNewYorkOverlap
	SessionNewYork
	SessionOther
)

var sessionLabels = map[Session]string{
	SessionAsia:                 "Asia",
	SessionLondon:               "London",
	SessionLondonNewYorkOverlap: "London_New_York_Overlap",
	SessionNewYork:              "New_York",
	SessionOther:                "Other",
}

// sessionByHour maps each UTC hour of day to its session:
// - Asia: 23:00 - 06:59
// - London: 07:00 - 12:59
// - London/New York overlap: 13:00 - 16:59
// - New York: 17:00 - 20:59
// - Other: 21:00 - 22:59
var sessionByHour = [24]Session{
	0: SessionAsia, 1: SessionAsia, 2: SessionAsia, 3: SessionAsia,
	4: SessionAsia, 5: SessionAsia, 6: SessionAsia,
	7: SessionLondon, 8: SessionLondon, 9: SessionLondon,
	10: SessionLondon, 11: SessionLondon, 12: SessionLondon,
	13: SessionLondonNewYorkOverlap, 14: SessionLondonNewYorkOverlap,
	15: SessionLondonNewYorkOverlap, 16: SessionLondonNewYorkOverlap,
	17: SessionNewYork, 18: SessionNewYork, 19: SessionNewYork,
	20: SessionNewYork,
	21: SessionOther, 22: SessionOther,
	23: SessionAsia,
}

// SessionForHour classifies a UTC hour of day.
func SessionForHour(hour int) Session {
	if hour < 0 || hour > 23 {
		return SessionOther
	}
	return sessionByHour[hour]
}

// Label returns the human-readable session name.
func (s Session) Label() string {
	if label, ok := sessionLabels[s]; ok {
		return label
	}
	return "Other"
}

// SessionMetric classifies each tick into its UTC trading session.
type SessionMetric struct {
	name    string
	current Session
}

// NewSessionMetric creates a session classifier.
func NewSessionMetric(name string) *SessionMetric {
	return &SessionMetric{name: name, current: SessionOther}
}

// Name returns the metric name
func (s *SessionMetric) Name() string {
	return s.name
}

// Update classifies the tick's hour.
func (s *SessionMetric) Update(tick feed.Tick) {
	s.current = SessionForHour(tick.Hour)
}

// Value returns the current output fields
func (s *SessionMetric) Value() map[string]float64 {
	return map[string]float64{"session_id": float64(s.current)}
}

// Current returns the session as a typed value.
func (s *SessionMetric) Current() Session {
	return s.current
}
