package cli

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
)

func newAttachmentsCmd(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "attachments",
		Short: "Attachment commands",
	}
	cmd.PersistentFlags().StringVar(&projectID, "project", "", "Project id the task is in")
	_ = cmd.MarkPersistentFlagRequired("project")

	cmd.AddCommand(&cobra.Command{
		Use:   "list <task-id>",
		Short: "List a task's attachments with public URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			type entry struct {
				model.Attachment
				URL string `json:"url"`
			}
			out := []entry{}
			for _, a := range e.board.AttachmentsFor(args[0]) {
				out = append(out, entry{Attachment: a, URL: e.board.AttachmentURL(a)})
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <task-id> <file>",
		Short: "Upload a file and attach it to a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			name := filepath.Base(args[1])
			id, err := e.board.AttachFile(cmd.Context(), board.AttachmentInput{
				TaskID:      args[0],
				FileName:    name,
				ContentType: mime.TypeByExtension(filepath.Ext(name)),
				Data:        data,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"id": e.board.CanonicalID(id)}})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <attachment-id>",
		Short: "Delete an attachment (row and stored object)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.DeleteAttachment(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"deleted": args[0]}})
		},
	})

	return cmd
}
