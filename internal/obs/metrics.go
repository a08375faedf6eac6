package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	approvalsDecided = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approvals_decided_total",
			Help: "Approval requests decided, by type and terminal status.",
		},
		[]string{"type", "status"},
	)

	sweepTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewal_sweep_transitions_total",
			Help: "Resources flipped to needs-renewal by the sweep.",
		},
		[]string{"kind"},
	)

	sweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renewal_sweep_runs_total",
			Help: "Completed renewal sweeps.",
		},
	)

	notificationsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notification records accepted for delivery.",
		},
		[]string{"channel"},
	)

	notificationsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notification records handed to the sink.",
		},
		[]string{"channel"},
	)

	notificationsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notification records dead-lettered after retries.",
		},
		[]string{"channel"},
	)
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		approvalsDecided,
		sweepTransitions,
		sweepRuns,
		notificationsEnqueued,
		notificationsDelivered,
		notificationsFailed,
	)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ApprovalDecided counts a terminal decision.
func ApprovalDecided(requestType, status string) {
	approvalsDecided.WithLabelValues(requestType, status).Inc()
}

// SweepTransition counts one resource flipped to needs-renewal.
func SweepTransition(kind string) {
	sweepTransitions.WithLabelValues(kind).Inc()
}

// SweepCompleted counts one finished sweep.
func SweepCompleted() {
	sweepRuns.Inc()
}

// NotificationEnqueued counts an accepted record.
func NotificationEnqueued(channel string) {
	notificationsEnqueued.WithLabelValues(channel).Inc()
}

// NotificationDelivered counts a successful delivery.
func NotificationDelivered(channel string) {
	notificationsDelivered.WithLabelValues(channel).Inc()
}

// NotificationFailed counts a dead-lettered record.
func NotificationFailed(channel string) {
	notificationsFailed.WithLabelValues(channel).Inc()
}
