package cli

import (
	"github.com/spf13/cobra"

	"taskboard-cli/internal/board"
)

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}
	cmd.AddCommand(newProjectsListCmd(app))
	cmd.AddCommand(newProjectsCreateCmd(app))
	cmd.AddCommand(newProjectsDeleteCmd(app))
	return cmd
}

func newProjectsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.LoadProjects(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": e.board.Projects()})
		},
	}
}

func newProjectsCreateCmd(app *App) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := e.board.CreateProject(cmd.Context(), board.ProjectInput{Name: name})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			id = e.board.CanonicalID(id)
			p, _ := e.board.Project(id)
			return writeOut(cmd, app, map[string]any{"data": p})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := buildEnv(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.LoadProjects(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.DeleteProject(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"deleted": args[0]}})
		},
	}
}
