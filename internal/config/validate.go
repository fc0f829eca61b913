package config

import (
	"errors"
	"fmt"

	"github.com/flemzord/odoo-mcp/internal/core"
)

var (
	validLogLevels  = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"": true, "text": true, "json": true}
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present,
// and checks that all referenced module IDs exist in the registry.
// It also enforces that required modules have a config entry
// and validates log and security settings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	for _, info := range core.GetModules() {
		if !info.Required {
			continue
		}
		if _, exists := cfg.Modules[string(info.ID)]; !exists {
			errs = append(errs, fmt.Errorf("config: module %q requires configuration but has no entry", info.ID))
		}
	}

	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateSecurity(cfg.Security)...)

	return errors.Join(errs...)
}

func validateLog(l LogConfig) []error {
	var errs []error
	if !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("config: log.level %q must be one of debug, info, warn, error", l.Level))
	}
	if !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("config: log.format %q must be text or json", l.Format))
	}
	return errs
}

func validateSecurity(sec *SecurityConfig) []error {
	if sec == nil {
		return nil
	}
	var errs []error
	if sec.RateLimits.ToolCallsPerMin < 0 {
		errs = append(errs, fmt.Errorf("config: security.rate_limits.tool_calls_per_min must be >= 0, got %d", sec.RateLimits.ToolCallsPerMin))
	}
	if sec.RateLimits.WritesPerMin < 0 {
		errs = append(errs, fmt.Errorf("config: security.rate_limits.writes_per_min must be >= 0, got %d", sec.RateLimits.WritesPerMin))
	}
	return errs
}
