package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/view"
)

func newTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Task commands",
	}
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTasksCreateCmd(app))
	cmd.AddCommand(newTasksUpdateCmd(app))
	cmd.AddCommand(newTasksMoveCmd(app))
	cmd.AddCommand(newTasksDeleteCmd(app))
	cmd.AddCommand(newSubtasksCmd(app))
	return cmd
}

// loadProject builds the env and loads one project's board state. Every task
// command is scoped to a project, like the interactive view.
func loadProject(app *App, cmd *cobra.Command, projectID string) (*env, error) {
	e, err := buildEnv(app)
	if err != nil {
		return nil, err
	}
	if err := e.board.SetActiveProject(cmd.Context(), projectID); err != nil {
		return nil, err
	}
	return e, nil
}

func newTasksListCmd(app *App) *cobra.Command {
	var (
		projectID string
		status    string
		priority  string
		tagID     string
		search    string
		overdue   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			f := view.Filter{
				Query:       search,
				Priority:    model.Priority(priority),
				TagID:       tagID,
				OverdueOnly: overdue,
			}
			links := e.board.TaskTags()
			out := []model.Task{}
			for _, t := range e.board.Tasks() {
				if status != "" && t.Status != model.Status(status) {
					continue
				}
				if f.Matches(t, links) {
					out = append(out, t)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": out})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (todo|in-progress|done)")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority (high|medium|low)")
	cmd.Flags().StringVar(&tagID, "tag", "", "Filter by tag id")
	cmd.Flags().StringVar(&search, "search", "", "Substring match on title or description")
	cmd.Flags().BoolVar(&overdue, "overdue", false, "Only overdue tasks")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newTasksCreateCmd(app *App) *cobra.Command {
	var (
		projectID string
		title     string
		desc      string
		priority  string
		deadline  string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			d, err := model.ParseDate(deadline)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := e.board.CreateTask(cmd.Context(), board.TaskInput{
				Title:       title,
				Description: desc,
				Priority:    model.Priority(priority),
				Deadline:    d,
				Status:      model.Status(status),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			t, _ := e.board.Task(e.board.CanonicalID(id))
			return writeOut(cmd, app, map[string]any{"data": t})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&desc, "desc", "", "Description (markdown)")
	cmd.Flags().StringVar(&priority, "priority", "medium", "Priority (high|medium|low)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "todo", "Status (todo|in-progress|done)")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}

func newTasksUpdateCmd(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "update <task-id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			var patch board.TaskPatch
			if f := cmd.Flags(); f.Changed("title") {
				v, _ := f.GetString("title")
				patch.Title = &v
			}
			if f := cmd.Flags(); f.Changed("desc") {
				v, _ := f.GetString("desc")
				patch.Description = &v
			}
			if f := cmd.Flags(); f.Changed("priority") {
				v, _ := f.GetString("priority")
				p := model.Priority(v)
				patch.Priority = &p
			}
			if f := cmd.Flags(); f.Changed("deadline") {
				v, _ := f.GetString("deadline")
				d, err := model.ParseDate(v)
				if err != nil {
					return writeErr(cmd, err)
				}
				patch.Deadline = &d
			}
			if err := e.board.UpdateTask(cmd.Context(), args[0], patch); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			t, _ := e.board.Task(args[0])
			return writeOut(cmd, app, map[string]any{"data": t})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id")
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("desc", "", "New description")
	cmd.Flags().String("priority", "", "New priority (high|medium|low)")
	cmd.Flags().String("deadline", "", "New deadline (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newTasksMoveCmd(app *App) *cobra.Command {
	var (
		projectID string
		status    string
		toProject string
	)

	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task to another status lane or project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (status == "") == (toProject == "") {
				return writeErr(cmd, fmt.Errorf("exactly one of --status or --to-project is required"))
			}
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if status != "" {
				err = e.board.MoveTaskStatus(cmd.Context(), args[0], model.Status(status))
			} else {
				err = e.board.MoveTaskProject(cmd.Context(), args[0], toProject)
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"moved": args[0]}})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id the task is in")
	cmd.Flags().StringVar(&status, "status", "", "Target status (todo|in-progress|done)")
	cmd.Flags().StringVar(&toProject, "to-project", "", "Target project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newTasksDeleteCmd(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.DeleteTask(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"deleted": args[0]}})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id the task is in")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newSubtasksCmd(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "subtasks",
		Short: "Subtask commands",
	}
	cmd.PersistentFlags().StringVar(&projectID, "project", "", "Project id the parent task is in")
	_ = cmd.MarkPersistentFlagRequired("project")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <task-id> <title>",
		Short: "Add a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			id, err := e.board.AddSubtask(cmd.Context(), board.SubtaskInput{TaskID: args[0], Title: args[1]})
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
		Use:   "toggle <subtask-id>",
		Short: "Toggle a subtask's done state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.ToggleSubtask(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.settle(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]string{"toggled": args[0]}})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <subtask-id>",
		Short: "Delete a subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadProject(app, cmd, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.board.DeleteSubtask(cmd.Context(), args[0]); err != nil {
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
