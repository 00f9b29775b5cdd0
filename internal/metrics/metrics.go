package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rack_leasing"

var (
	// ServerTransitions counts status changes by origin and destination status.
	ServerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "server_transitions_total",
		Help:      "Server status transitions.",
	}, []string{"from", "to"})

	// CapacityRejections counts AddServer calls refused because the rack was full.
	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "capacity_rejections_total",
		Help:      "Servers refused because their rack had no free slot.",
	})

	// SweepDuration observes how long one SweepOnce pass takes.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one status sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// Notifications counts web push deliveries by result (sent, failed, expired, skipped).
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Web push notifications by result.",
	}, []string{"result"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
