package odoo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for Odoo operations. Every typed error below matches
// exactly one of them through errors.Is.
var (
	// ErrAuthentication indicates the server rejected the credentials.
	ErrAuthentication = errors.New("odoo authentication failed")

	// ErrConnection indicates the server could not be reached during the
	// authentication handshake (DNS, refused connection, timeout, TLS).
	ErrConnection = errors.New("odoo connection failed")

	// ErrOperation indicates a data operation failed after authentication.
	ErrOperation = errors.New("odoo operation failed")

	// ErrInvalidRequest indicates a malformed request (empty model or method).
	ErrInvalidRequest = errors.New("invalid odoo request")
)

// AuthenticationError is returned when the handshake yields no user ID or
// the server answers it with a fault. It is never retried.
type AuthenticationError struct {
	Database string
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed for user %q on database %q: %v", e.Username, e.Database, e.Err)
	}
	return fmt.Sprintf("authentication failed for user %q on database %q", e.Username, e.Database)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// ConnectionError wraps a transport failure during the handshake.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to odoo at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// Op names a high-level operation for error context.
type Op string

// Operation names used in OperationError.
const (
	OpSearch Op = "search"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpFields Op = "fields"
	OpCall   Op = "call"
)

// OperationError wraps the final error of a data operation with its
// model and operation context. The original error stays reachable
// through errors.Unwrap.
type OperationError struct {
	Op       Op
	Model    string
	Method   string
	RecordID int64
	Err      error
}

func (e *OperationError) Error() string {
	var what string
	switch e.Op {
	case OpSearch:
		what = "failed to search records in " + e.Model
	case OpCreate:
		what = "failed to create record in " + e.Model
	case OpUpdate:
		what = fmt.Sprintf("failed to update record %d in %s", e.RecordID, e.Model)
	case OpDelete:
		what = fmt.Sprintf("failed to delete record %d from %s", e.RecordID, e.Model)
	case OpFields:
		what = "failed to get fields for model " + e.Model
	default:
		what = fmt.Sprintf("failed to call method %s on %s", e.Method, e.Model)
	}
	return what + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrOperation.
func (e *OperationError) Is(target error) bool { return target == ErrOperation }

// FaultError is an XML-RPC fault returned by the server.
type FaultError struct {
	Code    int
	Message string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("xml-rpc fault %d: %s", e.Code, e.Message)
}

// parseFault recognizes the "Fault(<code>): <message>" text produced by the
// XML-RPC client for server faults.
func parseFault(s string) (*FaultError, bool) {
	rest, ok := strings.CutPrefix(s, "Fault(")
	if !ok {
		return nil, false
	}
	codeText, msg, ok := strings.Cut(rest, "):")
	if !ok {
		return nil, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(codeText))
	if err != nil {
		return nil, false
	}
	return &FaultError{Code: code, Message: strings.TrimSpace(msg)}, true
}

// sessionFaultMarkers are fault texts Odoo emits when the credentials used
// by execute_kw are no longer accepted (password rotated, user archived,
// session expired).
var sessionFaultMarkers = []string{
	"AccessDenied",
	"Access Denied",
	"SessionExpired",
	"Session expired",
}

// isSessionFault reports whether err indicates the current session is no
// longer valid and re-authentication may help.
func isSessionFault(err error) bool {
	var fault *FaultError
	if !errors.As(err, &fault) {
		return false
	}
	for _, marker := range sessionFaultMarkers {
		if strings.Contains(fault.Message, marker) {
			return true
		}
	}
	return false
}

// isFatal reports whether err must bypass operation wrapping and retries.
func isFatal(err error) bool {
	return errors.Is(err, ErrAuthentication) || errors.Is(err, ErrConnection)
}

// Kind classifies err for structured tool results.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthentication):
		return "AuthenticationError"
	case errors.Is(err, ErrConnection):
		return "ConnectionError"
	case errors.Is(err, ErrOperation):
		return "OdooError"
	default:
		return "UnexpectedError"
	}
}
