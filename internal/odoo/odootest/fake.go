// Package odootest provides an in-memory Odoo server for tests of the odoo
// package and its consumers.
package odootest

import (
	"fmt"
	"sync"

	"github.com/flemzord/odoo-mcp/internal/odoo"
)

// ExecuteKwCall is one execute_kw request received by the fake server.
type ExecuteKwCall struct {
	Database string
	UID      int64
	Password string
	Model    string
	Method   string
	Args     []any
	Kwargs   map[string]any
}

// Server is a configurable test double implementing odoo.Dialer.
// Set the Func fields to control behavior. A nil AuthenticateFunc accepts
// every login with UID 2, a nil VersionFunc answers a 17.0 server, and a
// nil ExecuteKwFunc answers nil. All methods are safe for concurrent use.
type Server struct {
	AuthenticateFunc func(database, username, password string) (any, error)
	VersionFunc      func() (any, error)
	ExecuteKwFunc    func(call ExecuteKwCall) (any, error)
	// DialFunc, when set, can fail the dial of a service.
	DialFunc func(service string) error

	mu           sync.Mutex
	dials        map[string]int
	authCalls    int
	versionCalls int
	executeCalls []ExecuteKwCall
	closed       int
}

// Dial implements odoo.Dialer.
func (s *Server) Dial(service string) (odoo.Endpoint, error) {
	s.mu.Lock()
	if s.dials == nil {
		s.dials = make(map[string]int)
	}
	s.dials[service]++
	dial := s.DialFunc
	s.mu.Unlock()

	if dial != nil {
		if err := dial(service); err != nil {
			return nil, err
		}
	}
	return &endpoint{server: s, service: service}, nil
}

// Dials returns how many times service was dialed.
func (s *Server) Dials(service string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials[service]
}

// AuthCalls returns the number of authenticate requests.
func (s *Server) AuthCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

// VersionCalls returns the number of version requests.
func (s *Server) VersionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versionCalls
}

// ExecuteCalls returns a copy of the execute_kw requests received so far.
func (s *Server) ExecuteCalls() []ExecuteKwCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExecuteKwCall(nil), s.executeCalls...)
}

// Closed returns how many endpoints were closed.
func (s *Server) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type endpoint struct {
	server  *Server
	service string
}

func (e *endpoint) Call(method string, args ...any) (any, error) {
	switch e.service + "." + method {
	case "common.authenticate":
		return e.server.authenticate(args)
	case "common.version":
		return e.server.version()
	case "object.execute_kw":
		return e.server.executeKw(args)
	default:
		return nil, &odoo.FaultError{Code: 1, Message: fmt.Sprintf("method %s.%s not found", e.service, method)}
	}
}

func (e *endpoint) Close() error {
	e.server.mu.Lock()
	e.server.closed++
	e.server.mu.Unlock()
	return nil
}

func (s *Server) authenticate(args []any) (any, error) {
	s.mu.Lock()
	s.authCalls++
	fn := s.AuthenticateFunc
	s.mu.Unlock()

	if len(args) != 4 {
		return nil, &odoo.FaultError{Code: 1, Message: fmt.Sprintf("authenticate expects 4 arguments, got %d", len(args))}
	}
	if fn == nil {
		return int64(2), nil
	}
	db, _ := args[0].(string)
	user, _ := args[1].(string)
	pass, _ := args[2].(string)
	return fn(db, user, pass)
}

func (s *Server) version() (any, error) {
	s.mu.Lock()
	s.versionCalls++
	fn := s.VersionFunc
	s.mu.Unlock()

	if fn == nil {
		return map[string]any{
			"server_version":   "17.0",
			"server_serie":     "17.0",
			"protocol_version": int64(1),
		}, nil
	}
	return fn()
}

func (s *Server) executeKw(args []any) (any, error) {
	if len(args) != 7 {
		return nil, &odoo.FaultError{Code: 1, Message: fmt.Sprintf("execute_kw expects 7 arguments, got %d", len(args))}
	}
	call := ExecuteKwCall{}
	call.Database, _ = args[0].(string)
	call.UID, _ = args[1].(int64)
	call.Password, _ = args[2].(string)
	call.Model, _ = args[3].(string)
	call.Method, _ = args[4].(string)
	call.Args, _ = args[5].([]any)
	call.Kwargs, _ = args[6].(map[string]any)

	s.mu.Lock()
	s.executeCalls = append(s.executeCalls, call)
	fn := s.ExecuteKwFunc
	s.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

// Interface guard.
var _ odoo.Dialer = (*Server)(nil)
