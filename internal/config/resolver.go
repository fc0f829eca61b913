package config

import "github.com/flemzord/odoo-mcp/internal/core"

// Resolve returns the configured module IDs in load order: by module
// priority, then ID. Dependencies publish their services before their
// consumers provision.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	core.SortIDs(ids)
	return ids
}
