package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking flows.
// A nil *BookingMetrics is valid and records nothing.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	bookingLatency     prometheus.Histogram
	confirmationsTotal *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	webhooksTotal      *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	slotQueriesTotal   prometheus.Counter
	expiredTotal       prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of the booking transaction including payment session creation",
			Buckets:   prometheus.DefBuckets,
		}),
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "payment",
			Name:      "confirmations_total",
			Help:      "Payment confirmations by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "appointment",
			Name:      "transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"to"}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "payment",
			Name:      "webhooks_total",
			Help:      "Inbound payment webhooks",
		}, []string{"event_type", "result"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Customer notifications",
		}, []string{"kind", "status"}),
		slotQueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "availability",
			Name:      "queries_total",
			Help:      "Slot listing requests",
		}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "appointment",
			Name:      "expired_total",
			Help:      "Pending holds cancelled by the expiry sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.bookingLatency,
		m.confirmationsTotal,
		m.transitionsTotal,
		m.webhooksTotal,
		m.notificationsTotal,
		m.slotQueriesTotal,
		m.expiredTotal,
	)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *BookingMetrics) ObserveWebhook(eventType, result string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(eventType, result).Inc()
}

func (m *BookingMetrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

func (m *BookingMetrics) ObserveSlotQuery() {
	if m == nil {
		return
	}
	m.slotQueriesTotal.Inc()
}

func (m *BookingMetrics) ObserveExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredTotal.Add(float64(n))
}
