package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "placebot",
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		},
		[]string{"command", "outcome"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "placebot",
			Name:      "command_duration_seconds",
			Help:      "Command handling time in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	placementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "placebot",
			Name:      "placements_total",
			Help:      "Successful placements by canvas and result (claimed or cleared).",
		},
		[]string{"canvas", "result"},
	)

	cooldownRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "placebot",
			Name:      "cooldown_rejections_total",
			Help:      "Placements refused because the cooldown was still running.",
		},
	)

	wagersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "placebot",
			Name:      "wagers_total",
			Help:      "Settled wagers by result.",
		},
		[]string{"result"},
	)

	wageredGems = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "placebot",
			Name:      "wagered_gems_total",
			Help:      "Gems staked on accepted wagers.",
		},
	)

	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "placebot",
			Name:      "storage_breaker_state",
			Help:      "Storage circuit breaker state: 0 closed, 1 open, 2 half-open.",
		},
	)
)

// Command outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// ObserveCommand records one dispatched command.
func ObserveCommand(command, outcome string, seconds float64) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command).Observe(seconds)
}

// ObservePlacement records a successful toggle. cleared is true when the
// user removed their own tile.
func ObservePlacement(canvas string, cleared bool) {
	result := "claimed"
	if cleared {
		result = "cleared"
	}
	placementsTotal.WithLabelValues(canvas, result).Inc()
}

func ObserveCooldownRejection() { cooldownRejections.Inc() }

// ObserveWager records a settled wager.
func ObserveWager(bet int64, won bool) {
	result := "lost"
	if won {
		result = "won"
	}
	wagersTotal.WithLabelValues(result).Inc()
	wageredGems.Add(float64(bet))
}

// SetBreakerState publishes the storage breaker state.
func SetBreakerState(state int) { breakerState.Set(float64(state)) }
