package odoo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/odoo-mcp/internal/odoo"

// Client is the resilient access layer to one Odoo database. It is safe
// for concurrent use.
type Client struct {
	session *Session
	policy  RetryPolicy
	sleep   Sleeper
	exec    Executor
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	defaultLimit int
	maxLimit     int

	ownsExec bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithExecutor replaces the worker pool that runs remote calls.
func WithExecutor(exec Executor) Option {
	return func(c *Client) { c.exec = exec }
}

// WithDialer replaces the XML-RPC dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.session.dialer = d }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithSleeper replaces the wait between retry attempts.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithTracerProvider sets the provider of the client tracer. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// New creates a client for cfg. No network traffic happens until the
// first operation.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		session: &Session{
			baseURL:  cfg.URL,
			database: cfg.Database,
			username: cfg.Username,
			password: cfg.Password,
		},
		policy:       cfg.retryPolicy(),
		sleep:        sleepContext,
		tracer:       otel.Tracer(tracerName),
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.session.dialer == nil {
		c.session.dialer = NewXMLRPCDialer(cfg.URL, cfg.Timeout.Std())
	}
	if c.exec == nil {
		pool, err := NewPoolExecutor(cfg.Workers)
		if err != nil {
			return nil, err
		}
		c.exec = pool
		c.ownsExec = true
	}

	c.session.exec = c.exec
	c.session.logger = c.logger
	c.session.metrics = c.metrics
	c.session.tracer = c.tracer
	return c, nil
}

// Session returns the client's session.
func (c *Client) Session() *Session { return c.session }

// CheckConnection reports whether the server answers, without
// authenticating.
func (c *Client) CheckConnection(ctx context.Context) ServerInfo {
	return c.session.CheckConnection(ctx)
}

// ExecuteKw invokes method on model through execute_kw. nil args and
// kwargs are sent as empty collections.
//
// The session is authenticated first; authentication and connection
// failures of the handshake are returned immediately. The remote call
// itself is attempted up to MaxRetries+1 times with a fixed delay in
// between, whatever the failure. The error of the last attempt is returned
// unchanged. A fault signalling an expired session invalidates the session
// so the next attempt re-authenticates.
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	if model == "" || method == "" {
		return nil, fmt.Errorf("%w: model and method are required", ErrInvalidRequest)
	}
	if args == nil {
		args = []any{}
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}

	ctx, span := c.tracer.Start(ctx, "odoo.execute_kw", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("odoo.model", model),
		attribute.String("odoo.method", method),
	)

	if err := c.session.EnsureAuthenticated(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		return nil, err
	}

	start := time.Now()
	hooks := retryHooks{
		beforeAttempt: func(attempt int) error {
			if attempt == 1 {
				return nil
			}
			return c.session.EnsureAuthenticated(ctx)
		},
		onRetry: func(attempt int, err error) {
			c.metrics.recordRetry(model, method)
			c.logger.Warn("odoo call failed, retrying",
				"model", model,
				"method", method,
				"attempt", attempt,
				"max_attempts", c.policy.MaxAttempts(),
				"delay", c.policy.Delay,
				"error", err,
			)
		},
	}

	res, attempts, err := retry(ctx, c.policy, c.sleep, hooks, func(int) (any, error) {
		return c.invoke(ctx, model, method, args, kwargs)
	})

	c.metrics.recordCall(model, method, err, time.Since(start))
	span.SetAttributes(attribute.Int("odoo.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execute_kw failed")
		c.logger.Error("odoo call failed",
			"model", model,
			"method", method,
			"attempts", attempts,
			"error", err,
		)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// invoke performs one execute_kw attempt.
func (c *Client) invoke(ctx context.Context, model, method string, args []any, kwargs map[string]any) (any, error) {
	creds, ok := c.session.credentials()
	if !ok {
		return nil, fmt.Errorf("%w: session is not authenticated", ErrAuthentication)
	}
	res, err := c.exec.Do(ctx, func() (any, error) {
		return creds.object.Call("execute_kw",
			creds.database, creds.uid, creds.password,
			model, method, args, kwargs,
		)
	})
	if err != nil && isSessionFault(err) {
		c.session.Invalidate()
	}
	return res, err
}

// Close releases the session endpoints and the worker pool when the
// client created it.
func (c *Client) Close() error {
	err := c.session.Close()
	if c.ownsExec {
		if pool, ok := c.exec.(*PoolExecutor); ok {
			pool.Close()
		}
	}
	return err
}

// wrapOp wraps err in an OperationError unless it is an authentication or
// connection failure, which callers need to see as such.
func wrapOp(op Op, model string, err error, fill func(*OperationError)) error {
	if err == nil {
		return nil
	}
	if isFatal(err) {
		return err
	}
	oe := &OperationError{Op: op, Model: model, Err: err}
	if fill != nil {
		fill(oe)
	}
	return oe
}
