// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for odoo-mcp.
package config

import "gopkg.in/yaml.v3"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Security holds optional rate limiting settings.
	Security *SecurityConfig `yaml:"security,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "odoo.client").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	Audit      AuditConfig     `yaml:"audit"`
}

// AuditConfig enables the JSONL audit trail of data-modifying tool calls.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the file events are appended to. Empty means stderr.
	Path string `yaml:"path"`
}

// RateLimitConfig bounds how fast MCP clients may call tools.
type RateLimitConfig struct {
	// ToolCallsPerMin is the sliding-window limit of tool calls. Zero uses
	// the default.
	ToolCallsPerMin int `yaml:"tool_calls_per_min"`

	// WritesPerMin limits the tools that modify data (create, update,
	// delete, call).
	WritesPerMin int `yaml:"writes_per_min"`
}
