package rooms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spark_rooms_created_total",
			Help: "Connection rooms opened for mutual matches",
		},
	)

	roomTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spark_room_transitions_total",
			Help: "Rooms leaving the active status, by outcome and trigger",
		},
		[]string{"outcome", "trigger"},
	)

	roomExtensions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spark_room_extensions_total",
			Help: "Premium room extensions granted",
		},
	)

	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spark_messages_sent_total",
			Help: "Chat messages stored, by type",
		},
		[]string{"type"},
	)

	sweepItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spark_room_sweep_items_total",
			Help: "Rooms handled by the scheduled sweeps, by sweep and result",
		},
		[]string{"sweep", "result"},
	)

	roomsArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spark_rooms_archived_total",
			Help: "Finished rooms moved to cold storage",
		},
	)
)

func recordTransition(outcome Status, trigger string) {
	roomTransitions.WithLabelValues(string(outcome), trigger).Inc()
}

func recordSweepItem(sweep, result string) {
	sweepItems.WithLabelValues(sweep, result).Inc()
}
