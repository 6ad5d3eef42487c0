package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by status.",
		},
		[]string{"status"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	slotsComputed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "slots_computed_total",
			Help:      "Count of availability computations served.",
		},
	)

	conflictRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "conflict_rejected_total",
			Help:      "Count of service selections rejected by conflict rules.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "http_requests_total",
			Help:      "Count of API requests by route.",
		},
		[]string{"route"},
	)

	notificationSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Name:      "notification_sent_total",
			Help:      "Count of notifications sent by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingCancelled, slotsComputed,
			conflictRejected, httpRequests, notificationSent,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncSlotsComputed() {
	slotsComputed.Inc()
}

func IncConflictRejected() {
	conflictRejected.Inc()
}

func IncHTTP(route string) {
	httpRequests.WithLabelValues(route).Inc()
}

func IncNotificationSent(channel, outcome string) {
	notificationSent.WithLabelValues(channel, outcome).Inc()
}
