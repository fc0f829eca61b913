// Package telemetry installs the OpenTelemetry tracer provider that exports
// Odoo RPC spans over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	defaultPort        = "4318"
	defaultServiceName = "odoo-mcp"
	exportTimeout      = 10 * time.Second
)

// Config configures trace export. An empty Endpoint disables it.
type Config struct {
	// Endpoint is host[:port] or an http(s) URL. A URL path overrides
	// URLPath; the http scheme implies Insecure.
	Endpoint    string   `yaml:"endpoint"`
	Insecure    bool     `yaml:"insecure"`
	URLPath     string   `yaml:"url_path"`
	SampleRatio *float64 `yaml:"sample_ratio"`
	ServiceName string   `yaml:"service_name"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.Endpoint) != "" }

func (c *Config) defaults() {
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	if c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	if c.SampleRatio == nil {
		one := 1.0
		c.SampleRatio = &one
	}
}

// Validate checks the endpoint and the sample ratio.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRatio != nil && (*c.SampleRatio < 0 || *c.SampleRatio > 1) {
		errs = append(errs, fmt.Errorf("sample_ratio must be within [0, 1], got %v", *c.SampleRatio))
	}
	if c.Enabled() {
		if _, err := resolveTarget(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type target struct {
	endpoint string
	path     string
	insecure bool
}

func resolveTarget(cfg Config) (target, error) {
	raw := strings.TrimSpace(cfg.Endpoint)
	if raw == "" {
		return target{}, errors.New("telemetry: empty endpoint")
	}
	t := target{endpoint: raw, path: cfg.URLPath, insecure: cfg.Insecure}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return target{}, fmt.Errorf("telemetry: parse endpoint: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http":
			t.insecure = true
		case "https":
		default:
			return target{}, fmt.Errorf("telemetry: unsupported scheme %q", u.Scheme)
		}
		if u.Host == "" {
			return target{}, fmt.Errorf("telemetry: endpoint %q has no host", raw)
		}
		t.endpoint = u.Host
		if p := strings.TrimSuffix(u.Path, "/"); p != "" {
			t.path = p
		}
	}
	if _, _, err := net.SplitHostPort(t.endpoint); err != nil {
		t.endpoint = net.JoinHostPort(t.endpoint, defaultPort)
	}
	return t, nil
}

// NewProvider builds a tracer provider exporting to cfg.Endpoint. The
// exporter connects lazily, so an unreachable collector is not an error
// here.
func NewProvider(ctx context.Context, cfg Config, version string) (*sdktrace.TracerProvider, error) {
	cfg.defaults()
	t, err := resolveTarget(cfg)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(t.endpoint),
		otlptracehttp.WithTimeout(exportTimeout),
	}
	if t.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if t.path != "" && t.path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(t.path))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: start trace exporter: %w", err)
	}

	res, err := newResource(ctx, cfg.ServiceName, version)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, err
	}
	return newProvider(exporter, res, *cfg.SampleRatio), nil
}

func newResource(ctx context.Context, service, version string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}
	return res, nil
}

func newProvider(exporter sdktrace.SpanExporter, res *resource.Resource, ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(exporter),
	)
}

// errorHandler routes exporter errors to the application logger.
type errorHandler struct {
	logger *slog.Logger
}

func (h errorHandler) Handle(err error) {
	if err != nil {
		h.logger.Warn("trace export failed", "error", err)
	}
}
