// Package gateway exposes health, metrics and status endpoints over HTTP and
// hosts the MCP HTTP transports when they are enabled.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/odoo-mcp/internal/core"
	"github.com/flemzord/odoo-mcp/internal/mcpserver"
	"github.com/flemzord/odoo-mcp/internal/monitor"
	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing depends
// on it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	gatherer  prometheus.Gatherer
	audit     *security.AuditLogger
	startedAt time.Time
	now       func() time.Time

	// Resolved lazily at Start() via the service registry.
	client  *odoo.Client
	monitor *monitor.Monitor
	mcp     http.Handler
	mcpPath string
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "gateway.http",
		New:      func() core.Module { return &Gateway{} },
		Priority: 50,
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.now = time.Now

	if reg, ok := core.ServiceAs[prometheus.Registerer](ctx, "metrics.registry"); ok {
		g.metrics = NewMetrics(reg)
	}
	if gatherer, ok := core.ServiceAs[prometheus.Gatherer](ctx, "metrics.registry"); ok {
		g.gatherer = gatherer
	}
	if audit, ok := core.ServiceAs[*security.AuditLogger](ctx, "security.audit"); ok {
		g.audit = audit
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves optional services and starts
// the HTTP server.
func (g *Gateway) Start() error {
	if client, ok := core.ServiceAs[*odoo.Client](g.appCtx, odoo.ServiceName); ok {
		g.client = client
	}
	if m, ok := core.ServiceAs[*monitor.Monitor](g.appCtx, monitor.ServiceName); ok {
		g.monitor = m
	}
	if h, ok := core.ServiceAs[http.Handler](g.appCtx, mcpserver.HandlerService); ok {
		g.mcp = h
		g.mcpPath, _ = core.ServiceAs[string](g.appCtx, mcpserver.EndpointPathService)
	}

	if g.now == nil {
		g.now = time.Now
	}
	g.startedAt = g.now()

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadTimeout.Std(),
		ReadTimeout:       g.config.ReadTimeout.Std(),
		WriteTimeout:      g.config.WriteTimeout.Std(),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String(), "auth", g.config.Auth.IsConfigured())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout.Std())
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
