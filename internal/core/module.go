package core

// ModuleID is the namespaced identifier of a module (e.g. "odoo.client").
type ModuleID string

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the unique module identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module

	// Priority orders module loading: lower values load (and start) first,
	// ties are broken by ID. Modules that publish services other modules
	// depend on must use a lower priority than their consumers.
	Priority int

	// Required modules must have an entry in the configuration.
	Required bool
}

// Module is implemented by every odoo-mcp module.
type Module interface {
	ModuleInfo() ModuleInfo
}
