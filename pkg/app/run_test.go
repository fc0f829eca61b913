package app

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/security"
)

const validConfig = `version: "1"
log:
  level: debug
modules:
  telemetry.otlp: {}
  odoo.client:
    url: "https://odoo.example.com"
    database: "prod"
    username: "admin"
    password: "s3cr3t-pass"
  mcp.server:
    transport: stdio
  monitor.odoo:
    schedule: "@every 5m"
  gateway.http:
    bind: "127.0.0.1:0"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func noDotEnv(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestResolveConfigPath_EnvOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", validConfig)
	t.Setenv("ODOO_MCP_CONFIG", path)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != path {
		t.Errorf("got %q, want %q", got, path)
	}

	t.Setenv("ODOO_MCP_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := ResolveConfigPath(); err == nil || !strings.Contains(err.Error(), "ODOO_MCP_CONFIG") {
		t.Errorf("missing override: error = %v", err)
	}
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, filepath.Join("odoo-mcp", "odoo-mcp.yaml"), validConfig)
	t.Setenv("ODOO_MCP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "odoo-mcp.yaml", validConfig)
	t.Setenv("ODOO_MCP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "nonexistent"))
	t.Chdir(dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "odoo-mcp.yaml" {
		t.Errorf("got %q, want odoo-mcp.yaml", got)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("ODOO_MCP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestLoadConfig_FallsBackToEnvironment(t *testing.T) {
	t.Setenv("ODOO_MCP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())
	t.Setenv("ODOO_URL", "https://odoo.example.com")
	t.Setenv("ODOO_DATABASE", "prod")
	t.Setenv("ODOO_USERNAME", "admin")
	t.Setenv("ODOO_PASSWORD", `pa"ss`)

	cfg, source, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if source != SourceEnvironment {
		t.Errorf("source = %q, want %q", source, SourceEnvironment)
	}
	if _, ok := cfg.Modules["odoo.client"]; !ok {
		t.Errorf("modules = %v", cfg.Modules)
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfig_EnvironmentIncomplete(t *testing.T) {
	t.Setenv("ODOO_MCP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())
	for _, name := range []string{"ODOO_URL", "ODOO_DATABASE", "ODOO_USERNAME", "ODOO_PASSWORD"} {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}

	_, _, err := LoadConfig("")
	if err == nil || !strings.Contains(err.Error(), "ODOO_URL") || !strings.Contains(err.Error(), "no configuration file found") {
		t.Errorf("LoadConfig error = %v", err)
	}
}

func TestSetup_LoadsModulesInPriorityOrder(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "odoo-mcp.yaml", validConfig)
	var logs bytes.Buffer
	inst, err := Setup(RunParams{ConfigPath: path, DotEnv: noDotEnv(t), LogOutput: &logs, Version: "1.0.0"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	t.Cleanup(func() {
		inst.App.Stop()
		_ = inst.Close()
	})

	want := []string{"telemetry.otlp", "odoo.client", "monitor.odoo", "mcp.server", "gateway.http"}
	if !slices.Equal(inst.Modules, want) {
		t.Errorf("modules = %v, want %v", inst.Modules, want)
	}
	if inst.Source != path {
		t.Errorf("source = %q", inst.Source)
	}

	inst.Logger.Info("probe", "value", "connecting with s3cr3t-pass")
	if strings.Contains(logs.String(), "s3cr3t-pass") {
		t.Errorf("password leaked into logs:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), security.RedactPlaceholder) {
		t.Errorf("probe not redacted:\n%s", logs.String())
	}
	if !strings.Contains(logs.String(), "odoo client configured") {
		t.Errorf("debug logs missing:\n%s", logs.String())
	}
}

func TestSetup_AuditFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit", "audit.jsonl")
	cfg := validConfig + "security:\n  audit:\n    enabled: true\n    path: " + auditPath + "\n"
	path := writeFile(t, dir, "odoo-mcp.yaml", cfg)

	inst, err := Setup(RunParams{ConfigPath: path, DotEnv: noDotEnv(t), LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	inst.App.Stop()
	if err := inst.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	info, err := os.Stat(auditPath)
	if err != nil {
		t.Fatalf("audit file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("audit file mode = %o, want 600", perm)
	}
}

func TestSetup_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ODOO_MCP_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(dir)
	names := []string{"ODOO_URL", "ODOO_DATABASE", "ODOO_USERNAME", "ODOO_PASSWORD"}
	for _, name := range names {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
	t.Cleanup(func() {
		for _, name := range names {
			_ = os.Unsetenv(name)
		}
	})
	envPath := writeFile(t, dir, ".env", "ODOO_URL=https://odoo.example.com\nODOO_DATABASE=prod\nODOO_USERNAME=admin\nODOO_PASSWORD=from-dotenv\n")

	inst, err := Setup(RunParams{DotEnv: envPath, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer func() {
		inst.App.Stop()
		_ = inst.Close()
	}()
	if inst.Source != SourceEnvironment {
		t.Errorf("source = %q", inst.Source)
	}
	if !slices.Equal(inst.Modules, []string{"odoo.client", "mcp.server"}) {
		t.Errorf("modules = %v", inst.Modules)
	}
}

func TestSetup_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "not: valid: yaml: [", "parsing"},
		{"no version", "modules:\n  odoo.client: {}", "version field is required"},
		{"unknown module", "version: \"1\"\nmodules:\n  odoo.client: {}\n  billing.stripe: {}", "unknown module"},
		{"missing odoo", "version: \"1\"\nmodules:\n  mcp.server: {}", "odoo.client"},
		{"bad log format", strings.Replace(validConfig, "level: debug", "format: xml", 1), "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml", tt.content)
			_, err := Setup(RunParams{ConfigPath: path, DotEnv: noDotEnv(t), LogOutput: &bytes.Buffer{}})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Setup error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Parallel()

	err := Run(t.Context(), RunParams{ConfigPath: "/nonexistent/config.yaml", DotEnv: noDotEnv(t)})
	if err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	redactor := security.NewRedactor()
	redactor.AddLiteral("hunter2")
	warn := slog.LevelWarn

	tests := []struct {
		name     string
		cfg      config.LogConfig
		override *slog.Level
		wantErr  bool
		check    func(t *testing.T, out string)
	}{
		{
			name: "json",
			cfg:  config.LogConfig{Format: "json", Level: "debug"},
			check: func(t *testing.T, out string) {
				if !strings.HasPrefix(out, "{") || !strings.Contains(out, `"level":"DEBUG"`) {
					t.Errorf("output = %s", out)
				}
			},
		},
		{
			name:     "override level",
			cfg:      config.LogConfig{Level: "debug"},
			override: &warn,
			check: func(t *testing.T, out string) {
				if out != "" {
					t.Errorf("debug record written despite warn override: %s", out)
				}
			},
		},
		{name: "bad level", cfg: config.LogConfig{Level: "loud"}, wantErr: true},
		{name: "bad format", cfg: config.LogConfig{Format: "xml"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, tt.cfg, tt.override, redactor)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			logger.Debug("hello", "password_hint", "hunter2")
			if strings.Contains(buf.String(), "hunter2") {
				t.Errorf("secret leaked: %s", buf.String())
			}
			tt.check(t, buf.String())
		})
	}
}
