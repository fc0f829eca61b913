package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/odoo-mcp/internal/config"
	"github.com/flemzord/odoo-mcp/internal/odoo"
	"github.com/flemzord/odoo-mcp/pkg/app"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(), configEnvCmd(), configInitCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	var connect bool
	cmd := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate configuration and load every module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			inst, err := app.Setup(app.RunParams{
				ConfigPath: path,
				Version:    version,
				LogLevel:   quietLevel(),
				LogOutput:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer func() {
				inst.App.Stop()
				_ = inst.Close()
			}()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Configuration OK: %s (%d modules)\n", inst.Source, len(inst.Modules))
			for _, id := range inst.Modules {
				fmt.Fprintf(out, "  %s\n", id)
			}

			if !connect {
				return nil
			}
			return checkConnection(cmd.Context(), out, inst)
		},
	}
	cmd.Flags().BoolVar(&connect, "connect", false, "Also authenticate against the Odoo server")
	return cmd
}

func checkConnection(ctx context.Context, out io.Writer, inst *app.Instance) error {
	mod, ok := inst.App.Module("odoo.client")
	if !ok {
		return errors.New("odoo.client is not configured")
	}
	client := mod.(*odoo.Module).Client()

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	info := client.CheckConnection(ctx)
	if !info.Connected {
		return fmt.Errorf("odoo connection failed: %s", info.Error)
	}
	if err := client.Session().EnsureAuthenticated(ctx); err != nil {
		return err
	}
	state := client.Session().State()
	fmt.Fprintf(out, "Connected to Odoo %s, database %s as %s (uid %d)\n",
		info.ServerVersion, state.Database, state.Username, state.UID)
	return nil
}

func configEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the configuration built from environment variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := io.WriteString(cmd.OutOrStdout(), config.EnvTemplate())
			return err
		},
	}
}

func configInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = app.DefaultConfigPath()
			}
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			answers := defaultAnswers()
			if err := askAnswers(cmd.Context(), &answers); err != nil {
				return err
			}
			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := writeConfig(path, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "output", "o", "", "Destination (default: per-user config path)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func writeConfig(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
