package sessionpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pool's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	SessionsActive   prometheus.Gauge
	SessionsCreated  prometheus.Counter
	SessionsClosed   *prometheus.CounterVec
	CreationFailures prometheus.Counter
	DestroyFailures  prometheus.Counter
}

// Reasons a session leaves the pool.
const (
	reasonClosed   = "closed"
	reasonEvicted  = "evicted"
	reasonExpired  = "expired"
	reasonShutdown = "shutdown"
)

// NewMetrics creates the pool collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them process-wide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "browserpool_sessions_active",
			Help: "Number of live browser sessions",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browserpool_sessions_created_total",
			Help: "Total number of browser sessions created",
		}),
		SessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browserpool_sessions_closed_total",
				Help: "Total number of browser sessions removed, by reason",
			},
			[]string{"reason"},
		),
		CreationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browserpool_session_creation_failures_total",
			Help: "Total number of failed resource creations",
		}),
		DestroyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "browserpool_session_destroy_failures_total",
			Help: "Total number of failed resource teardowns",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsActive,
			m.SessionsCreated,
			m.SessionsClosed,
			m.CreationFailures,
			m.DestroyFailures,
		)
	}
	return m
}

func (m *Metrics) created() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) removed(reason string) {
	if m == nil {
		return
	}
	m.SessionsClosed.WithLabelValues(reason).Inc()
	m.SessionsActive.Dec()
}

func (m *Metrics) creationFailed() {
	if m == nil {
		return
	}
	m.CreationFailures.Inc()
}

func (m *Metrics) destroyFailed() {
	if m == nil {
		return
	}
	m.DestroyFailures.Inc()
}
