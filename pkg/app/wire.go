package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/core"
	"github.com/flemzord/odoo-mcp/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	// Compiled-in modules.
	_ "github.com/flemzord/odoo-mcp/internal/gateway"
	_ "github.com/flemzord/odoo-mcp/internal/mcpserver"
	_ "github.com/flemzord/odoo-mcp/internal/monitor"
	_ "github.com/flemzord/odoo-mcp/internal/odoo"
	_ "github.com/flemzord/odoo-mcp/internal/telemetry"
)

// services are the process-wide objects modules discover through the
// service registry.
type services struct {
	credentials *security.CredentialStore
	redactor    *security.Redactor
	limiter     *security.RateLimiter
	audit       *security.AuditLogger
	registry    *prometheus.Registry
	closers     []io.Closer
}

func newServices(cfg *config.Config) (*services, error) {
	s := &services{
		credentials: security.NewCredentialStore(),
		redactor:    security.NewRedactor(),
		registry:    prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var rl security.RateLimitConfig
	if cfg.Security != nil {
		rl = security.RateLimitConfig{
			ToolCallsPerMin: cfg.Security.RateLimits.ToolCallsPerMin,
			WritesPerMin:    cfg.Security.RateLimits.WritesPerMin,
		}
	}
	s.limiter = security.NewRateLimiter(rl)

	if cfg.Security != nil && cfg.Security.Audit.Enabled {
		w, err := s.auditWriter(cfg.Security.Audit.Path)
		if err != nil {
			return nil, err
		}
		s.audit = security.NewAuditLogger(security.AuditLoggerConfig{
			Writer:   w,
			Redactor: s.redactor,
		})
	}
	return s, nil
}

func (s *services) auditWriter(path string) (io.Writer, error) {
	if path == "" {
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit log: %w", err)
	}
	s.closers = append(s.closers, f)
	return f, nil
}

// register publishes the services for cross-module discovery.
func (s *services) register(ctx *core.AppContext) {
	ctx.RegisterService("security.credentials", s.credentials)
	ctx.RegisterService("security.redactor", s.redactor)
	ctx.RegisterService("security.ratelimiter", s.limiter)
	ctx.RegisterService("metrics.registry", s.registry)
	if s.audit != nil {
		ctx.RegisterService("security.audit", s.audit)
	}
}

func (s *services) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
