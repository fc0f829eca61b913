package mcpserver

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
	TransportSSE   = "sse"
)

// DefaultName is the server name announced to MCP hosts.
const DefaultName = "odoo-mcp"

// Config configures the MCP server module.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Transport is stdio, http (streamable HTTP) or sse.
	Transport string `yaml:"transport"`
	// Bind, when set with an HTTP transport, makes the module listen on its
	// own. Otherwise the handler is mounted by the gateway.
	Bind         string `yaml:"bind"`
	EndpointPath string `yaml:"endpoint_path"`
	Instructions string `yaml:"instructions"`
}

func (c *Config) defaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.EndpointPath == "" {
		c.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(c.EndpointPath, "/") {
		c.EndpointPath = "/" + c.EndpointPath
	}
}

// Validate checks the transport settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportStdio, TransportHTTP, TransportSSE:
	default:
		errs = append(errs, fmt.Errorf("mcp.server: unknown transport %q (want stdio, http or sse)", c.Transport))
	}
	if c.Bind != "" {
		if c.Transport == TransportStdio {
			errs = append(errs, errors.New("mcp.server: bind requires the http or sse transport"))
		} else if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
			errs = append(errs, fmt.Errorf("mcp.server: invalid bind address %q", c.Bind))
		}
	}
	return errors.Join(errs...)
}
