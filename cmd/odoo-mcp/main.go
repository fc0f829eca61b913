// Package main is the entry point for the odoo-mcp CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/flemzord/odoo-mcp/internal/core"
	"github.com/flemzord/odoo-mcp/pkg/app"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "odoo-mcp",
		Short:         "MCP server exposing an Odoo instance over XML-RPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), startCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "odoo-mcp %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	var (
		cfgPath  string
		envFile  string
		logLevel string
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the MCP server with all configured modules",
		Long: `Start the MCP server.

Without --config the configuration is read from $ODOO_MCP_CONFIG,
$XDG_CONFIG_HOME/odoo-mcp/odoo-mcp.yaml or ./odoo-mcp.yaml, and otherwise
built from the ODOO_* environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := app.RunParams{
				ConfigPath: cfgPath,
				DotEnv:     envFile,
				Version:    version,
				Commit:     commit,
				Date:       date,
			}
			if logLevel != "" {
				level, err := app.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				params.LogLevel = &level
			}
			return app.Run(cmd.Context(), params)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before the configuration")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	return cmd
}

func quietLevel() *slog.Level {
	level := slog.LevelWarn
	return &level
}
