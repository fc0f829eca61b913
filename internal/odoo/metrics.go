package odoo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the Odoo client.
// A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	auths    *prometheus.CounterVec
}

// NewMetrics creates the client collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "odoo_mcp",
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Total execute_kw calls by final result.",
			},
			[]string{"model", "method", "result"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "odoo_mcp",
				Subsystem: "rpc",
				Name:      "retries_total",
				Help:      "Failed execute_kw attempts that were retried.",
			},
			[]string{"model", "method"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "odoo_mcp",
				Subsystem: "rpc",
				Name:      "duration_seconds",
				Help:      "execute_kw duration in seconds, retries included.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model", "method"},
		),
		auths: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "odoo_mcp",
				Name:      "authentications_total",
				Help:      "Authentication handshakes by result.",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.retries, m.duration, m.auths)
	}
	return m
}

func (m *Metrics) recordCall(model, method string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.calls.WithLabelValues(model, method, result).Inc()
	m.duration.WithLabelValues(model, method).Observe(elapsed.Seconds())
}

func (m *Metrics) recordRetry(model, method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(model, method).Inc()
}

func (m *Metrics) recordAuth(err error) {
	if m == nil {
		return
	}
	result := "success"
	switch Kind(err) {
	case "":
	case "AuthenticationError":
		result = "rejected"
	default:
		result = "unreachable"
	}
	m.auths.WithLabelValues(result).Inc()
}
