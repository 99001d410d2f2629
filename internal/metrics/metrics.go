// Package metrics exposes Prometheus instrumentation for profile activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AppliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_applies_total",
			Help: "Total number of profile applies by family and initiating surface",
		},
		[]string{"family", "origin"},
	)

	ProfileMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_profile_mutations_total",
			Help: "Total number of profile mutations by family and operation",
		},
		[]string{"family", "op"},
	)

	EventsBroadcastTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchyard_events_broadcast_total",
			Help: "Total number of change events broadcast to subscribers",
		},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchyard_events_dropped_total",
			Help: "Total number of change events dropped on slow subscribers",
		},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "switchyard_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)
)

// RecordApply records a completed apply transition.
func RecordApply(family, origin string) {
	AppliesTotal.WithLabelValues(family, origin).Inc()
}

// RecordMutation records a profile mutation.
func RecordMutation(family, op string) {
	ProfileMutationsTotal.WithLabelValues(family, op).Inc()
}
