package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/mcpserver"
	"github.com/flemzord/odoo-mcp/internal/monitor"
	"gopkg.in/yaml.v3"
)

const passwordPlaceholder = "${ODOO_PASSWORD}"

// answers holds the values collected by config init.
type answers struct {
	URL           string
	Database      string
	Username      string
	Password      string
	StorePassword bool
	Transport     string
	Bind          string
	Monitor       bool
	Gateway       bool
	GatewayBind   string
}

func defaultAnswers() answers {
	return answers{
		URL:         "http://localhost:8069",
		Transport:   mcpserver.TransportStdio,
		Monitor:     true,
		GatewayBind: "127.0.0.1:8080",
	}
}

func askAnswers(ctx context.Context, a *answers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Odoo URL").Value(&a.URL).Validate(validateURL),
			huh.NewInput().Title("Database").Value(&a.Database).Validate(required("database")),
			huh.NewInput().Title("Username").Value(&a.Username).Validate(required("username")),
			huh.NewInput().Title("Password or API key").Value(&a.Password).EchoMode(huh.EchoModePassword),
			huh.NewConfirm().
				Title("Store the password in the file?").
				Description("Otherwise the file references $ODOO_PASSWORD.").
				Value(&a.StorePassword),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("MCP transport").
				Options(
					huh.NewOption("stdio (desktop clients)", mcpserver.TransportStdio),
					huh.NewOption("streamable HTTP", mcpserver.TransportHTTP),
					huh.NewOption("SSE", mcpserver.TransportSSE),
				).
				Value(&a.Transport),
			huh.NewConfirm().Title("Check the Odoo connection periodically?").Value(&a.Monitor),
			huh.NewConfirm().
				Title("Enable the HTTP gateway?").
				Description("Health, metrics and the MCP HTTP endpoint.").
				Value(&a.Gateway),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("aborted")
		}
		return err
	}
	return nil
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("expected an http(s) URL")
	}
	return nil
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

type fileConfig struct {
	Version string           `yaml:"version"`
	Log     config.LogConfig `yaml:"log"`
	Modules map[string]any   `yaml:"modules"`
}

type odooSection struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type mcpSection struct {
	Transport string `yaml:"transport"`
	Bind      string `yaml:"bind,omitempty"`
}

type monitorSection struct {
	Schedule string `yaml:"schedule"`
}

type gatewaySection struct {
	Bind string `yaml:"bind"`
}

// renderConfig turns the answers into a configuration file. HTTP
// transports are served by the gateway when it is enabled and by their own
// listener otherwise.
func renderConfig(a answers) ([]byte, error) {
	password := passwordPlaceholder
	if a.StorePassword {
		password = a.Password
	}

	mcp := mcpSection{Transport: a.Transport}
	if a.Transport != mcpserver.TransportStdio && !a.Gateway {
		mcp.Bind = a.Bind
		if mcp.Bind == "" {
			mcp.Bind = "127.0.0.1:8000"
		}
	}

	modules := map[string]any{
		"odoo.client": odooSection{
			URL:      strings.TrimSpace(a.URL),
			Database: a.Database,
			Username: a.Username,
			Password: password,
		},
		"mcp.server": mcp,
	}
	if a.Monitor {
		modules["monitor.odoo"] = monitorSection{Schedule: monitor.DefaultSchedule}
	}
	if a.Gateway {
		modules["gateway.http"] = gatewaySection{Bind: a.GatewayBind}
	}

	return yaml.Marshal(fileConfig{
		Version: "1",
		Log:     config.LogConfig{Level: "info", Format: "text"},
		Modules: modules,
	})
}
