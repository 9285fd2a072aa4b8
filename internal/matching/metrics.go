package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spark_matches_created_total",
			Help: "Total number of weekly match records created",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spark_compatibility_scores",
			Help:    "Distribution of full compatibility scores of created matches",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	generationUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spark_generation_users_total",
			Help: "Users handled by weekly generation, by outcome",
		},
		[]string{"outcome"},
	)

	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spark_generation_duration_seconds",
			Help:    "Wall time of a weekly generation run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	matchActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spark_match_actions_total",
			Help: "Match actions recorded, by action and resulting status",
		},
		[]string{"action", "status"},
	)

	matchesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spark_matches_expired_total",
			Help: "Open match records expired by the daily sweep",
		},
	)
)

func recordMatchCreated(score int) {
	matchesCreated.Inc()
	compatibilityScores.Observe(float64(score))
}

func recordGenerationUser(outcome string) {
	generationUsers.WithLabelValues(outcome).Inc()
}

func recordGenerationDuration(d time.Duration) {
	generationDuration.Observe(d.Seconds())
}

func recordMatchAction(action Action, status MatchStatus) {
	matchActions.WithLabelValues(string(action), string(status)).Inc()
}
