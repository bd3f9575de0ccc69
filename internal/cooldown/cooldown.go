package cooldown

import (
	"time"
)

// SecondsRemaining returns how long a user must still wait before acting
// again. A nil last means the user never acted and may act immediately.
func SecondsRemaining(now float64, last *float64, cooldownSeconds float64) float64 {
	if last == nil {
		return 0
	}
	remaining := cooldownSeconds - (now - *last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Gate applies a fixed interval. It never records anything; callers store
// the new action time only after the action succeeded.
type Gate struct {
	Interval time.Duration
}

func NewGate(interval time.Duration) Gate {
	return Gate{Interval: interval}
}

// Remaining is SecondsRemaining for wall-clock times.
func (g Gate) Remaining(now time.Time, last *time.Time) float64 {
	if last == nil {
		return SecondsRemaining(0, nil, g.Interval.Seconds())
	}
	// Measure from last so large epoch values do not eat float precision.
	origin := 0.0
	return SecondsRemaining(now.Sub(*last).Seconds(), &origin, g.Interval.Seconds())
}

// Ready reports whether the interval has elapsed since last.
func (g Gate) Ready(now time.Time, last *time.Time) bool {
	return g.Remaining(now, last) <= 0
}
