// Package monitor periodically checks the Odoo server and keeps the latest
// result for health reporting.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/prometheus/client_golang/prometheus"
)

// ServiceName is the service registry key of the *Monitor.
const ServiceName = "monitor.odoo"

// Checker reports the reachability of an Odoo server. *odoo.Client
// satisfies it.
type Checker interface {
	CheckConnection(ctx context.Context) odoo.ServerInfo
}

// Status is the outcome of one connection check.
type Status struct {
	odoo.ServerInfo
	CheckedAt time.Time     `json:"checked_at"`
	Latency   time.Duration `json:"latency_ns"`
}

// Monitor runs connection checks and remembers the last result.
type Monitor struct {
	checker Checker
	timeout time.Duration
	logger  *slog.Logger
	up      prometheus.Gauge
	now     func() time.Time

	mu     sync.RWMutex
	last   Status
	have   bool
	checks int
}

// New creates a monitor. A nil gauge disables the connection_up metric.
func New(checker Checker, timeout time.Duration, logger *slog.Logger, up prometheus.Gauge) *Monitor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		checker: checker,
		timeout: timeout,
		logger:  logger,
		up:      up,
		now:     time.Now,
	}
}

// NewConnectionGauge registers odoo_mcp_connection_up on reg.
func NewConnectionGauge(reg prometheus.Registerer) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odoo_mcp_connection_up",
		Help: "1 if the last Odoo connection check succeeded, 0 otherwise.",
	})
	reg.MustRegister(g)
	return g
}

// Check runs one connection check, records it and logs state changes.
// A check interrupted by the caller's ctx says nothing about the server: it
// is returned but not recorded. The monitor's own timeout counts as a
// failed check.
func (m *Monitor) Check(ctx context.Context) Status {
	parent := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := m.now()
	info := m.checker.CheckConnection(ctx)
	st := Status{ServerInfo: info, CheckedAt: start, Latency: m.now().Sub(start)}

	if !info.Connected && parent.Err() != nil {
		m.logger.Debug("connection check interrupted", "error", context.Cause(parent))
		return st
	}

	m.mu.Lock()
	prev, had := m.last, m.have
	m.last, m.have = st, true
	m.checks++
	m.mu.Unlock()

	if m.up != nil {
		if info.Connected {
			m.up.Set(1)
		} else {
			m.up.Set(0)
		}
	}

	switch {
	case !had && info.Connected:
		m.logger.Info("odoo reachable", "server_version", info.ServerVersion, "database", info.Database)
	case !info.Connected && (!had || prev.Connected):
		m.logger.Warn("odoo unreachable", "error", info.Error)
	case info.Connected && had && !prev.Connected:
		m.logger.Info("odoo reachable again", "server_version", info.ServerVersion)
	}
	return st
}

// Last returns the most recent check, if any.
func (m *Monitor) Last() (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last, m.have
}

// Checks returns how many checks have run.
func (m *Monitor) Checks() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checks
}

// Name implements Job.
func (m *Monitor) Name() string { return "odoo_connection" }

// Run implements Job.
func (m *Monitor) Run(ctx context.Context) error {
	m.Check(ctx)
	return nil
}
