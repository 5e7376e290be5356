// Package metrics provides Prometheus instrumentation for the rendezvous
// server: connection and pairing gauges, relay throughput, report outcomes
// and the silent-ignore paths of the session engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of live WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rendezvous_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// WaitingPoolSize tracks the number of entries in the waiting pool,
	// including stale entries not yet discarded by the matchmaker.
	WaitingPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rendezvous_waiting_pool_size",
		Help: "Current number of entries in the waiting pool",
	})

	// ActiveRooms tracks the number of live pairings.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rendezvous_active_rooms",
		Help: "Current number of active rooms",
	})

	// MatchesTotal counts rooms created by the matchmaker.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rendezvous_matches_total",
		Help: "Total number of pairings created",
	})

	// RoomsEndedTotal counts dissolved rooms by trigger.
	RoomsEndedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_rooms_ended_total",
		Help: "Total number of rooms dissolved, by trigger",
	}, []string{"trigger"}) // disconnect, skip, stop, report

	// RelayedTotal counts forwarded signaling and chat events by kind.
	RelayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_relayed_total",
		Help: "Total number of relayed events, by kind",
	}, []string{"kind"}) // offer, answer, ice-candidate, chat-message

	// ReportsTotal counts report submissions by outcome.
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_reports_total",
		Help: "Total number of abuse reports, by outcome",
	}, []string{"outcome"}) // success, failure, rejected

	// IgnoredEventsTotal counts inbound events dropped without a transition.
	IgnoredEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rendezvous_ignored_events_total",
		Help: "Total number of events ignored by the session engine, by reason",
	}, []string{"reason"})

	// MatchWait records the time a user spent searching before being paired.
	MatchWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rendezvous_match_wait_seconds",
		Help:    "Time from entering the waiting pool to match-found",
		Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		WaitingPoolSize,
		ActiveRooms,
		MatchesTotal,
		RoomsEndedTotal,
		RelayedTotal,
		ReportsTotal,
		IgnoredEventsTotal,
		MatchWait,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
