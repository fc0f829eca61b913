package odoo

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"net/url"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// XML-RPC services exposed by every Odoo server under /xmlrpc/2/.
const (
	ServiceCommon = "common"
	ServiceObject = "object"
)

// Endpoint is an open handle to one XML-RPC service of an Odoo server.
// Call blocks until the server answers or the transport times out.
type Endpoint interface {
	Call(method string, args ...any) (any, error)
	Close() error
}

// Dialer opens endpoints by service name.
type Dialer interface {
	Dial(service string) (Endpoint, error)
}

// XMLRPCDialer dials Odoo's XML-RPC services over HTTP(S).
type XMLRPCDialer struct {
	baseURL   string
	base      *http.Transport
	transport http.RoundTripper
}

// NewXMLRPCDialer returns a dialer for the server at baseURL. timeout bounds
// connection setup, the TLS handshake and the wait for response headers.
// Outgoing requests are traced with otelhttp.
func NewXMLRPCDialer(baseURL string, timeout time.Duration) *XMLRPCDialer {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
		base.DialContext = dialer.DialContext
		base.TLSHandshakeTimeout = timeout
		base.ResponseHeaderTimeout = timeout
	}
	return &XMLRPCDialer{
		baseURL:   strings.TrimRight(baseURL, "/"),
		base:      base,
		transport: otelhttp.NewTransport(base),
	}
}

// Dial implements Dialer. The endpoint is safe for concurrent use: every
// Call gets its own xmlrpc.Client, since one client serializes requests
// for the whole HTTP round trip. Connections are pooled by the shared
// transport.
func (d *XMLRPCDialer) Dial(service string) (Endpoint, error) {
	u := d.baseURL + "/xmlrpc/2/" + service
	if _, err := url.Parse(u); err != nil {
		return nil, fmt.Errorf("odoo: dial %s: %w", u, err)
	}
	return &xmlrpcEndpoint{url: u, service: service, dialer: d}, nil
}

type xmlrpcEndpoint struct {
	url     string
	service string
	dialer  *XMLRPCDialer
}

func (e *xmlrpcEndpoint) Call(method string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	client, err := xmlrpc.NewClient(e.url, e.dialer.transport)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", e.service, method, err)
	}
	defer client.Close()

	var reply any
	if err := client.Call(method, args, &reply); err != nil {
		return nil, classifyRPCError(e.service, method, err)
	}
	return reply, nil
}

func (e *xmlrpcEndpoint) Close() error {
	e.dialer.base.CloseIdleConnections()
	return nil
}

// classifyRPCError turns server faults into *FaultError and annotates
// everything else with the service and method.
func classifyRPCError(service, method string, err error) error {
	var serverErr rpc.ServerError
	if errors.As(err, &serverErr) {
		if fault, ok := parseFault(string(serverErr)); ok {
			return fault
		}
	}
	return fmt.Errorf("%s.%s: %w", service, method, err)
}
