package mcpserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tool call outcomes, the result label of odoo_mcp_tool_calls_total.
const (
	resultOK          = "ok"
	resultError       = "error"
	resultRateLimited = "rate_limited"
)

// Metrics collects per-tool counters. A nil *Metrics records nothing.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the tool metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odoo_mcp_tool_calls_total",
			Help: "MCP tool invocations by tool and outcome.",
		}, []string{"tool", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odoo_mcp_tool_duration_seconds",
			Help:    "MCP tool handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

func (m *Metrics) record(tool, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(tool, result).Inc()
	if result != resultRateLimited {
		m.duration.WithLabelValues(tool).Observe(elapsed.Seconds())
	}
}
