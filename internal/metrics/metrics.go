package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "booking_submitted_total",
			Help:      "Count of bookings submitted for approval.",
		},
	)

	adminDecision = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "admin_decision_total",
			Help:      "Count of admin decisions over bookings.",
		},
		[]string{"decision"},
	)

	notificationSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "notification_sent_total",
			Help:      "Count of outbound notifications by channel and result.",
		},
		[]string{"channel", "status"},
	)

	notificationRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "notification_retries_total",
			Help:      "Count of notification retry attempts.",
		},
	)

	availabilityLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "availability_lookup_total",
			Help:      "Count of availability lookups by outcome.",
		},
		[]string{"outcome"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studiobook",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"route", "code"},
	)

	remindersProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studiobook",
			Name:      "session_reminders_total",
			Help:      "Count of session reminders by result.",
		},
		[]string{"status"},
	)

	storeDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studiobook",
			Name:      "store_degraded",
			Help:      "1 while the settings store serves from its fallback.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingSubmitted,
			adminDecision,
			notificationSent,
			notificationRetries,
			availabilityLookups,
			httpDuration,
			remindersProcessed,
			storeDegraded,
		)
	})
}

func IncBookingSubmitted() {
	bookingSubmitted.Inc()
}

func IncAdminDecision(decision string) {
	adminDecision.WithLabelValues(decision).Inc()
}

func IncNotification(channel, status string) {
	notificationSent.WithLabelValues(channel, status).Inc()
}

func IncNotificationRetry() {
	notificationRetries.Inc()
}

// IncAvailabilityLookup counts lookups; outcome is "open", "closed" or "error".
func IncAvailabilityLookup(outcome string) {
	availabilityLookups.WithLabelValues(outcome).Inc()
}

func ObserveHTTP(route, code string, seconds float64) {
	httpDuration.WithLabelValues(route, code).Observe(seconds)
}

// IncReminder counts reminders; status is "queued" or "failed".
func IncReminder(status string) {
	remindersProcessed.WithLabelValues(status).Inc()
}

func SetStoreDegraded(degraded bool) {
	if degraded {
		storeDegraded.Set(1)
		return
	}
	storeDegraded.Set(0)
}
