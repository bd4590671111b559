// Package metrics defines the server's Prometheus metrics. All of them are
// registered on the default registry at init via promauto and exposed on
// /metrics by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flux"

// ResultSuccess is the result label for an action that completed.
const ResultSuccess = "success"

// APIActionsTotal counts dispatched POST /api actions.
// Labels:
//   - action: register, reconnect, update or unknown
//   - result: "success", a domain error kind (e.g. "email_exists"),
//     "invalid_request" or "internal_error"
var APIActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_actions_total",
		Help:      "Total number of API actions handled, by action and result.",
	},
	[]string{"action", "result"},
)

// LeaderboardRequestsTotal counts leaderboard reads.
var LeaderboardRequestsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leaderboard_requests_total",
		Help:      "Total number of leaderboard requests served.",
	},
)

// RecordAction increments APIActionsTotal for one handled action.
func RecordAction(action, result string) {
	APIActionsTotal.WithLabelValues(action, result).Inc()
}
