package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskboard-cli/internal/config"
)

type App struct {
	ConfigPath string
	Pretty     bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "taskboard",
		Short:        "Kanban/calendar task client (TUI + scriptable commands)",
		SilenceUsage: true,
		Example: `  # Start the interactive TUI
  taskboard

  # Scriptable commands
  taskboard projects list
  taskboard tasks list --project proj-id
  taskboard tasks create --project proj-id --title "Ship it" --deadline 2026-09-15`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("TASKBOARD_CONFIG", ""), "Path to config file (default: user config dir)")
	cmd.PersistentFlags().BoolVar(&app.Pretty, "pretty", false, "Pretty-print JSON output")

	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newProjectsCmd(app))
	cmd.AddCommand(newTasksCmd(app))
	cmd.AddCommand(newTagsCmd(app))
	cmd.AddCommand(newAttachmentsCmd(app))

	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.ConfigPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.WriteTemplate(path); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"path": path}})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(app.ConfigPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			redact := func(s string) string {
				if s == "" {
					return ""
				}
				return "<set>"
			}
			cfg.Gateway.APIKey = redact(cfg.Gateway.APIKey)
			cfg.Gateway.AccessToken = redact(cfg.Gateway.AccessToken)
			cfg.Storage.SecretKey = redact(cfg.Storage.SecretKey)
			return writeOut(cmd, app, map[string]any{"data": cfg})
		},
	})
	return cmd
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// writeOut writes strict JSON; anything for humans goes to stderr so output
// stays scriptable.
func writeOut(cmd *cobra.Command, app *App, v any) error {
	var b []byte
	var err error
	if app.Pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
