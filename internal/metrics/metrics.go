// Package metrics provides Prometheus instrumentation for the pairing relay.
// It exposes gauges for connection, pool, and room counts, plus counters for
// pairings, relayed messages, and report submissions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairline_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// WaitingPoolSize tracks the current number of connections seeking a partner.
	WaitingPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairline_waiting_pool_size",
		Help: "Current number of connections in the waiting pool",
	})

	// ActiveRooms tracks the current number of live two-party rooms.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairline_active_rooms",
		Help: "Current number of active rooms",
	})

	// PairingsTotal counts pairings made since start.
	PairingsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairline_pairings_total",
		Help: "Total number of pairings made",
	})

	// RelayedTotal counts relayed messages, labeled by kind: "signal" or "chat".
	RelayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairline_relayed_messages_total",
		Help: "Total number of relayed messages",
	}, []string{"kind"})

	// ReportsTotal counts report submissions, labeled by result status.
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairline_reports_total",
		Help: "Total number of moderation report submissions",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		WaitingPoolSize,
		ActiveRooms,
		PairingsTotal,
		RelayedTotal,
		ReportsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
