package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

// Metrics exposes counters/histograms for the booking and settlement flows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	bookingsTotal   *prometheus.CounterVec
	bookingLatency  prometheus.Histogram
	sessionsTotal   *prometheus.CounterVec
	joinTokensTotal *prometheus.CounterVec
	payoutsTotal    *prometheus.CounterVec
	txRetriesTotal  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "End to end latency of booking attempts",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "video",
			Name:      "session_create_total",
			Help:      "Video session creation calls by status",
		}, []string{"status"}),
		joinTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "video",
			Name:      "join_tokens_total",
			Help:      "Join token requests by outcome",
		}, []string{"outcome"}),
		payoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "payout",
			Name:      "approvals_total",
			Help:      "Payout approvals by outcome",
		}, []string{"outcome"}),
		txRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "store",
			Name:      "tx_retries_total",
			Help:      "Store transactions retried after a retryable failure",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingLatency, m.sessionsTotal, m.joinTokensTotal, m.payoutsTotal, m.txRetriesTotal)
	return m
}

func (m *Metrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *Metrics) ObserveSessionCreate(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.sessionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveJoinToken(outcome string) {
	if m == nil {
		return
	}
	m.joinTokensTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObservePayout(outcome string) {
	if m == nil {
		return
	}
	m.payoutsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTxRetry() {
	if m == nil {
		return
	}
	m.txRetriesTotal.Inc()
}

// Outcome turns an operation result into a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := apperr.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}
