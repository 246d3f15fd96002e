package cli

import (
	"github.com/spf13/cobra"

	"taskboard-cli/internal/board"
)

func newTagsCmd(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag commands",
	}
	cmd.PersistentFlags().StringVar(&projectID, "project", "", "Project id to operate in")
	_ = cmd.MarkPersistentFlagRequired("project")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": e.board.AllTags()})
		},
	})

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			color, _ := cmd.Flags().GetString("color")
			id, err := e.board.CreateTag(cmd.Context(), board.TagInput{Name: args[0], Color: color})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"id": e.board.CanonicalID(id)}})
		},
	}
	create.Flags().String("color", "", "Hex color, e.g. #ff8800")
	cmd.AddCommand(create)

	update := &cobra.Command{
		Use:   "update <tag-id> <name>",
		Short: "Rename or recolor a tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			color, _ := cmd.Flags().GetString("color")
			if err := e.board.UpdateTag(cmd.Context(), args[0], board.TagInput{Name: args[1], Color: color}); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"updated": args[0]}})
		},
	}
	update.Flags().String("color", "", "Hex color, e.g. #ff8800")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <tag-id>",
		Short: "Delete a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.DeleteTag(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"deleted": args[0]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "assign <task-id> <tag-id>",
		Short: "Tag a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.TagTask(cmd.Context(), args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"task": args[0], "tag": args[1]}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unassign <task-id> <tag-id>",
		Short: "Untag a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.UntagTask(cmd.Context(), args[0], args[1]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"task": args[0], "tag": args[1]}})
		},
	})

	return cmd
}
