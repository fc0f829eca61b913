package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/core"
	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultSchedule = "@every 1m"
	DefaultTimeout  = 10 * time.Second
)

func init() {
	core.RegisterModule(&Module{})
}

// Config configures the connection monitor.
type Config struct {
	Schedule string          `yaml:"schedule"`
	Timeout  config.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Timeout <= 0 {
		c.Timeout = config.Duration(DefaultTimeout)
	}
}

// Module checks the Odoo connection on a schedule and publishes the
// *Monitor for the gateway's health endpoint.
type Module struct {
	config    Config
	monitor   *Monitor
	scheduler *Scheduler
	logger    *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "monitor.odoo",
		New:      func() core.Module { return &Module{} },
		Priority: 30,
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	return node.Decode(&m.config)
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.config.defaults()

	client, ok := core.ServiceAs[*odoo.Client](ctx, odoo.ServiceName)
	if !ok {
		return fmt.Errorf("monitor.odoo: service %q not available", odoo.ServiceName)
	}

	var gauge prometheus.Gauge
	if reg, ok := core.ServiceAs[prometheus.Registerer](ctx, "metrics.registry"); ok {
		gauge = NewConnectionGauge(reg)
	}

	m.monitor = New(client, m.config.Timeout.Std(), m.logger, gauge)
	m.scheduler = NewScheduler(m.logger)
	if err := m.scheduler.RegisterJob(m.config.Schedule, m.monitor); err != nil {
		return err
	}
	ctx.RegisterService(ServiceName, m.monitor)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if err := ParseSchedule(m.config.Schedule); err != nil {
		return fmt.Errorf("monitor.odoo: invalid schedule %q: %w", m.config.Schedule, err)
	}
	if m.monitor == nil {
		return errors.New("monitor.odoo: not provisioned")
	}
	return nil
}

// Start implements core.Starter. The first check runs immediately.
func (m *Module) Start() error {
	m.scheduler.Start()
	m.scheduler.Trigger(m.monitor.Name())
	m.logger.Info("connection monitor started", "schedule", m.config.Schedule, "timeout", m.config.Timeout.Std())
	return nil
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Stop(ctx)
}

// Monitor returns the provisioned monitor.
func (m *Module) Monitor() *Monitor { return m.monitor }
