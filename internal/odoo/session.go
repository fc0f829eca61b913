package odoo

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Session owns the authenticated handle to one Odoo database.
//
// The zero UID means "not authenticated"; uid != 0 iff authenticated.
// Authentication happens lazily on first use and again after Invalidate.
type Session struct {
	baseURL  string
	database string
	username string
	password string

	dialer  Dialer
	exec    Executor
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// mu is held for the whole handshake; commonMu guards only the common
	// endpoint. Lock order: mu, then commonMu.
	mu            sync.Mutex
	uid           int64
	authenticated bool
	handshakes    int
	object        Endpoint

	commonMu sync.Mutex
	common   Endpoint
}

// SessionState is a point-in-time view of a Session.
type SessionState struct {
	BaseURL       string `json:"url"`
	Database      string `json:"database"`
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
	UID           int64  `json:"uid,omitempty"`
	Handshakes    int    `json:"handshakes"`
}

// ServerInfo is the result of CheckConnection.
type ServerInfo struct {
	ServerVersion   string `json:"server_version,omitempty"`
	ServerSerie     string `json:"server_serie,omitempty"`
	ProtocolVersion int64  `json:"protocol_version,omitempty"`
	Database        string `json:"database,omitempty"`
	Connected       bool   `json:"connected"`
	Error           string `json:"error,omitempty"`
}

// EnsureAuthenticated performs the authentication handshake unless the
// session is already authenticated. Concurrent callers share one handshake.
//
// A falsy user ID or a server fault yields *AuthenticationError; any other
// failure yields *ConnectionError. Neither is retried here.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.authenticated && s.uid != 0 {
		return nil
	}
	err := s.authenticateLocked(ctx)
	s.metrics.recordAuth(err)
	return err
}

func (s *Session) authenticateLocked(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "odoo.authenticate", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("odoo.database", s.database),
		attribute.String("odoo.username", s.username),
	)

	s.handshakes++
	s.authenticated = false
	s.uid = 0

	fail := func(err error) error {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		s.logger.Error("odoo authentication failed",
			"database", s.database,
			"username", s.username,
			"error", err,
		)
		return err
	}

	common, err := s.commonEndpoint()
	if err != nil {
		return fail(&ConnectionError{URL: s.baseURL, Err: err})
	}

	database, username, password := s.database, s.username, s.password
	res, err := s.exec.Do(ctx, func() (any, error) {
		return common.Call("authenticate", database, username, password, map[string]any{})
	})
	if err != nil {
		var fault *FaultError
		if errors.As(err, &fault) {
			return fail(&AuthenticationError{Database: database, Username: username, Err: fault})
		}
		return fail(&ConnectionError{URL: s.baseURL, Err: err})
	}

	uid, ok := asID(res)
	if !ok || uid == 0 {
		return fail(&AuthenticationError{Database: database, Username: username})
	}

	object, err := s.dialer.Dial(ServiceObject)
	if err != nil {
		return fail(&ConnectionError{URL: s.baseURL, Err: err})
	}
	if s.object != nil {
		_ = s.object.Close()
	}
	s.object = object
	s.uid = uid
	s.authenticated = true

	span.SetAttributes(attribute.Int64("odoo.uid", uid))
	span.SetStatus(codes.Ok, "")
	s.logger.Info("authenticated with odoo", "database", database, "uid", uid)
	return nil
}

// commonEndpoint returns the common endpoint, dialing it on first use.
func (s *Session) commonEndpoint() (Endpoint, error) {
	s.commonMu.Lock()
	defer s.commonMu.Unlock()
	if s.common != nil {
		return s.common, nil
	}
	common, err := s.dialer.Dial(ServiceCommon)
	if err != nil {
		return nil, err
	}
	s.common = common
	return common, nil
}

// Invalidate drops the authentication so that the next EnsureAuthenticated
// performs a fresh handshake.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authenticated {
		s.logger.Warn("odoo session invalidated", "uid", s.uid)
	}
	s.authenticated = false
	s.uid = 0
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		BaseURL:       s.baseURL,
		Database:      s.database,
		Username:      s.username,
		Authenticated: s.authenticated,
		UID:           s.uid,
		Handshakes:    s.handshakes,
	}
}

// credentials are the per-call parameters of execute_kw.
type credentials struct {
	database string
	uid      int64
	password string
	object   Endpoint
}

// credentials returns the current call parameters, or false when the
// session is not authenticated.
func (s *Session) credentials() (credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated || s.uid == 0 || s.object == nil {
		return credentials{}, false
	}
	return credentials{
		database: s.database,
		uid:      s.uid,
		password: s.password,
		object:   s.object,
	}, true
}

// CheckConnection reads the server version without authenticating. It
// never fails: errors are reported in ServerInfo.Error. Session state is
// left untouched.
func (s *Session) CheckConnection(ctx context.Context) ServerInfo {
	common, err := s.commonEndpoint()
	if err == nil {
		var res any
		res, err = s.exec.Do(ctx, func() (any, error) {
			return common.Call("version")
		})
		if err == nil {
			return serverInfo(res, s.database)
		}
	}
	s.logger.Error("odoo connection check failed", "error", err)
	return ServerInfo{Connected: false, Error: err.Error()}
}

func serverInfo(res any, database string) ServerInfo {
	info := ServerInfo{Database: database, Connected: true}
	version, _ := res.(map[string]any)
	info.ServerVersion, _ = version["server_version"].(string)
	info.ServerSerie, _ = version["server_serie"].(string)
	info.ProtocolVersion, _ = asID(version["protocol_version"])
	return info
}

// Close releases the open endpoints.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	s.commonMu.Lock()
	if s.common != nil {
		errs = append(errs, s.common.Close())
		s.common = nil
	}
	s.commonMu.Unlock()
	if s.object != nil {
		errs = append(errs, s.object.Close())
		s.object = nil
	}
	s.authenticated = false
	s.uid = 0
	return errors.Join(errs...)
}

// asID converts an XML-RPC integer result to int64.
func asID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}
