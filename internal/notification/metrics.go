// internal/notification/metrics.go

package notification

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_notifications_sent_total",
		Help: "Push notifications delivered to the gateway",
	}, []string{"type"})

	notificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_notifications_failed_total",
		Help: "Push notifications the gateway rejected",
	}, []string{"type"})
)

func recordSent(t Type) {
	notificationsSent.WithLabelValues(string(t)).Inc()
}

func recordFailed(t Type) {
	notificationsFailed.WithLabelValues(string(t)).Inc()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
