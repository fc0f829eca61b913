package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/flemzord/odoo-mcp/internal/core"
	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Service registry keys published for the gateway.
const (
	HandlerService      = "mcp.handler"
	EndpointPathService = "mcp.endpoint_path"
)

const shutdownTimeout = 5 * time.Second

func init() {
	core.RegisterModule(&Module{})
}

// Module serves the MCP server. With stdio it owns the process lifetime:
// Run returns when the host closes stdin.
type Module struct {
	config  Config
	server  *Server
	handler http.Handler
	logger  *slog.Logger

	// stdin and stdout are swapped in tests.
	stdin  io.Reader
	stdout io.Writer
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:       "mcp.server",
		New:      func() core.Module { return &Module{} },
		Priority: 40,
		Required: true,
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return err
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.logger = ctx.Logger
	if m.config.Version == "" {
		m.config.Version = ctx.Version
	}
	m.config.defaults()

	client, ok := core.ServiceAs[*odoo.Client](ctx, odoo.ServiceName)
	if !ok {
		return fmt.Errorf("mcp.server: service %q not available", odoo.ServiceName)
	}

	opts := []Option{WithLogger(m.logger)}
	if rl, ok := core.ServiceAs[*security.RateLimiter](ctx, "security.ratelimiter"); ok {
		opts = append(opts, WithRateLimiter(rl))
	}
	if al, ok := core.ServiceAs[*security.AuditLogger](ctx, "security.audit"); ok {
		opts = append(opts, WithAuditLogger(al))
	}
	if r, ok := core.ServiceAs[*security.Redactor](ctx, "security.redactor"); ok {
		opts = append(opts, WithRedactor(r))
	}
	if reg, ok := core.ServiceAs[prometheus.Registerer](ctx, "metrics.registry"); ok {
		opts = append(opts, WithMetrics(NewMetrics(reg)))
	}

	m.server = New(m.config, client, opts...)

	// The gateway and the standalone listener share one handler, and with it
	// one set of sessions.
	m.handler = m.server.Handler()
	if m.handler != nil {
		ctx.RegisterService(HandlerService, m.handler)
		ctx.RegisterService(EndpointPathService, m.config.EndpointPath)
	}
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.Validate()
}

// Run implements core.Runner.
func (m *Module) Run(ctx context.Context) error {
	if m.config.Transport == TransportStdio {
		in, out := m.stdin, m.stdout
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stdout
		}
		return m.server.ServeStdio(ctx, in, out)
	}

	if m.config.Bind == "" {
		m.logger.Info("mcp server handler published for the gateway",
			"transport", m.config.Transport,
			"path", m.config.EndpointPath,
		)
		<-ctx.Done()
		return nil
	}
	return m.serveHTTP(ctx)
}

// routes mounts the provisioned handler at the endpoint path.
func (m *Module) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(m.config.EndpointPath, m.handler)
	mux.Handle(m.config.EndpointPath+"/", m.handler)
	return mux
}

func (m *Module) serveHTTP(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", m.config.Bind)
	if err != nil {
		return fmt.Errorf("mcp.server: listen failed: %w", err)
	}

	srv := &http.Server{
		Handler:           m.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("mcp server listening",
			"transport", m.config.Transport,
			"addr", ln.Addr().String(),
			"path", m.config.EndpointPath,
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
