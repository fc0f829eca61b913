// Package app provides the entry point shared by the odoo-mcp commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/core"
)

// SourceEnvironment is the config source reported when no file was found
// and the configuration was built from environment variables.
const SourceEnvironment = "environment"

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is tried and the environment is the
	// fallback.
	ConfigPath string

	// DotEnv is loaded into the environment before the configuration.
	// Defaults to ".env"; a missing file is ignored.
	DotEnv string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// LogLevel, when non-nil, overrides log.level from the configuration.
	LogLevel *slog.Level

	// LogOutput receives the process log. Defaults to stderr, which keeps
	// stdout free for the stdio transport.
	LogOutput io.Writer
}

// Instance is a loaded, not yet started application.
type Instance struct {
	App    *core.App
	Config *config.Config
	Logger *slog.Logger

	// Source is the configuration file path or SourceEnvironment.
	Source string

	// Modules lists the loaded module IDs in load order.
	Modules []string

	closers []io.Closer
}

// Close releases resources opened by Setup. Modules are stopped by
// App.Run; Close does not stop them.
func (i *Instance) Close() error {
	var errs []error
	for _, c := range i.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received or the MCP session ends.
func Run(ctx context.Context, params RunParams) error {
	inst, err := Setup(params)
	if err != nil {
		return err
	}
	defer func() { _ = inst.Close() }()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst.Logger.Info("starting odoo-mcp",
		"version", params.Version,
		"commit", params.Commit,
		"config", inst.Source,
		"modules", len(inst.Modules),
	)
	return inst.App.Run(ctx)
}

// Setup loads and validates the configuration, wires the shared services
// and loads every configured module.
func Setup(params RunParams) (*Instance, error) {
	dotenv := params.DotEnv
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := config.LoadDotEnv(dotenv); err != nil {
		return nil, err
	}

	cfg, source, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}

	svc, err := newServices(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(out, cfg.Log, params.LogLevel, svc.redactor)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}

	version := params.Version
	if version == "" {
		version = "dev"
	}
	appCtx := core.NewAppContext(logger, version).WithModuleConfigs(cfg.Modules)
	svc.register(appCtx)
	appCtx.RegisterService("config.path", source)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		_ = svc.Close()
		return nil, err
	}

	// Modules register their secrets while provisioning.
	svc.redactor.SyncCredentials(svc.credentials)

	return &Instance{
		App:     application,
		Config:  cfg,
		Logger:  logger,
		Source:  source,
		Modules: ids,
		closers: svc.closers,
	}, nil
}

// LoadConfig reads the configuration from path, from the first file
// ResolveConfigPath finds, or from the environment, in that order. It
// returns the source it used.
func LoadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			cfg, envErr := config.FromEnv()
			if envErr != nil {
				return nil, "", fmt.Errorf("%w; %w", err, envErr)
			}
			return cfg, SourceEnvironment, nil
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $ODOO_MCP_CONFIG → $XDG_CONFIG_HOME/odoo-mcp/odoo-mcp.yaml
// (or ~/.config/odoo-mcp/odoo-mcp.yaml) → ./odoo-mcp.yaml
func ResolveConfigPath() (string, error) {
	if path, ok := os.LookupEnv("ODOO_MCP_CONFIG"); ok && path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("ODOO_MCP_CONFIG: %w", err)
		}
		return path, nil
	}

	candidates := []string{DefaultConfigPath(), "odoo-mcp.yaml"}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "odoo-mcp", "odoo-mcp.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "odoo-mcp", "odoo-mcp.yaml")
}
