package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/odoo-mcp/internal/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"
)

// ProviderService is the service registry key of the installed
// *sdktrace.TracerProvider.
const ProviderService = "telemetry.tracer_provider"

func init() {
	core.RegisterModule(&Module{})
}

// Module installs the global tracer provider. It loads before every other
// module so that their tracers resolve to it.
type Module struct {
	config   Config
	provider *sdktrace.TracerProvider
	logger   *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "telemetry.otlp",
		New:      func() core.Module { return &Module{} },
		Priority: 10,
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
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("telemetry.otlp: %w", err)
	}
	if !m.config.Enabled() {
		m.logger.Debug("trace export disabled")
		return nil
	}

	provider, err := NewProvider(context.Background(), m.config, ctx.Version)
	if err != nil {
		return err
	}
	m.provider = provider

	otel.SetErrorHandler(errorHandler{logger: m.logger})
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	ctx.RegisterService(ProviderService, provider)

	m.logger.Info("trace export enabled",
		"endpoint", m.config.Endpoint,
		"service", m.config.ServiceName,
		"sample_ratio", *m.config.SampleRatio,
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.Validate()
}

// Stop implements core.Stopper. Pending spans are flushed.
func (m *Module) Stop(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry.otlp: shutdown: %w", err)
	}
	return nil
}
