package odoo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/flemzord/odoo-mcp/internal/core"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// ServiceName is the service registry key of the *Client.
const ServiceName = "odoo.client"

func init() {
	core.RegisterModule(&Module{})
}

// Module owns the process-wide Odoo client and publishes it to the other
// modules.
type Module struct {
	config Config
	client *Client
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "odoo.client",
		New:      func() core.Module { return &Module{} },
		Priority: 20,
		Required: true,
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	m.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	m.config.defaults()

	if store, ok := core.ServiceAs[*security.CredentialStore](ctx, "security.credentials"); ok {
		store.Set("odoo.password", m.config.Password)
	}
	if redactor, ok := core.ServiceAs[*security.Redactor](ctx, "security.redactor"); ok {
		redactor.AddLiteral(m.config.Password)
	}

	opts := []Option{WithLogger(m.logger)}
	if reg, ok := core.ServiceAs[prometheus.Registerer](ctx, "metrics.registry"); ok {
		opts = append(opts, WithMetrics(NewMetrics(reg)))
	}

	client, err := New(m.config, opts...)
	if err != nil {
		return err
	}
	m.client = client
	ctx.RegisterService(ServiceName, client)

	m.logger.Info("odoo client configured",
		"url", m.config.URL,
		"database", m.config.Database,
		"username", m.config.Username,
		"max_retries", *m.config.MaxRetries,
		"retry_delay", m.config.RetryDelay.Std(),
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	if m.client == nil {
		return errors.New("odoo: client not provisioned")
	}
	return m.config.Validate()
}

// Client returns the provisioned client.
func (m *Module) Client() *Client { return m.client }

// Stop implements core.Stopper.
func (m *Module) Stop(context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Close()
}
