// Package metrics exposes Prometheus instrumentation for the matchmaking
// engine. Label cardinality is kept bounded on purpose: denial reasons are
// recorded under their check code (gender/region/location/distance/age),
// never the user-facing reason text, and resolutions under the terminal
// status name. All collectors are safe for concurrent use.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// requestsCreated counts chat requests that passed every creation gate.
	requestsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaking_requests_created_total",
			Help: "Total number of chat requests created.",
		},
	)

	// requestsDenied counts eligibility denials by check code.
	requestsDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_requests_denied_total",
			Help: "Total number of chat requests denied by the receiver's filter.",
		},
		[]string{"reason"},
	)

	// requestsResolved counts terminal transitions by resulting status.
	requestsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchmaking_requests_resolved_total",
			Help: "Total number of chat requests resolved to a terminal status.",
		},
		[]string{"status"},
	)

	// cooldownHits counts creations refused by the per-pair cooldown window.
	cooldownHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaking_cooldown_hits_total",
			Help: "Total number of chat requests refused while the sender/receiver cooldown was active.",
		},
	)

	// chatsOpened counts chat sessions opened after successful accepts.
	chatsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "matchmaking_chats_opened_total",
			Help: "Total number of chat sessions opened.",
		},
	)

	// acceptDuration records the latency of the transactional accept path,
	// lock wait included.
	acceptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchmaking_accept_duration_seconds",
			Help:    "Duration of the accept busy-check-and-flip path in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		requestsCreated,
		requestsDenied,
		requestsResolved,
		cooldownHits,
		chatsOpened,
		acceptDuration,
	)
}

// RequestCreated records a successfully created request.
func RequestCreated() { requestsCreated.Inc() }

// RequestDenied records an eligibility denial under its check code.
func RequestDenied(code string) { requestsDenied.WithLabelValues(code).Inc() }

// RequestResolved records a terminal transition.
func RequestResolved(status string) { requestsResolved.WithLabelValues(status).Inc() }

// CooldownHit records a creation attempt refused by the cooldown window.
func CooldownHit() { cooldownHits.Inc() }

// ChatOpened records an opened chat session.
func ChatOpened() { chatsOpened.Inc() }

// ObserveAccept records the duration of one accept call.
func ObserveAccept(seconds float64) { acceptDuration.Observe(seconds) }
