package gateway

import (
	"time"

	"github.com/flemzord/odoo-mcp/internal/config"
)

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string          `yaml:"bind"`
	Auth            AuthConfig      `yaml:"auth"`
	ReadTimeout     config.Duration `yaml:"read_timeout"`
	WriteTimeout    config.Duration `yaml:"write_timeout"`
	ShutdownTimeout config.Duration `yaml:"shutdown_timeout"`
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = config.Duration(10 * time.Second)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = config.Duration(30 * time.Second)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = config.Duration(5 * time.Second)
	}
}

// AuthConfig configures authentication for /status and the MCP endpoint.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
