// Package metrics defines the Prometheus collectors for the portal.
//
// Naming follows Prometheus conventions: portal_ prefix, _total suffix for counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// GateDecisionsTotal counts AuthGate decisions by terminal state.
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_gate_decisions_total",
			Help: "Inbound requests by gate decision.",
		},
		[]string{"decision"},
	)

	// GateFaultsTotal counts requests admitted because the gate itself failed.
	GateFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_gate_faults_total",
			Help: "Requests admitted by the fail-open path of the gate.",
		},
	)

	// APICallsTotal counts intercepted API results by outcome kind.
	APICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_api_calls_total",
			Help: "Outbound API calls by intercepted outcome.",
		},
		[]string{"outcome"},
	)

	// SessionEventsTotal counts session lifecycle events.
	SessionEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_session_events_total",
			Help: "Session lifecycle events (established, renewed, closed, expired).",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		GateDecisionsTotal,
		GateFaultsTotal,
		APICallsTotal,
		SessionEventsTotal,
	)
}

// SessionEvent increments the session lifecycle counter.
func SessionEvent(event string) {
	SessionEventsTotal.WithLabelValues(event).Inc()
}
