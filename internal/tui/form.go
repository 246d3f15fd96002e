package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
)

const (
	fieldTitle = iota
	fieldDeadline
	fieldPriority
	fieldStatus
	fieldDescription
	fieldCount
)

// taskForm edits a task in place or creates a new one. taskID empty means
// create; the status field is hidden when editing because moves go through
// the board, not the form.
type taskForm struct {
	taskID   string
	field    int
	title    textinput.Model
	deadline textinput.Model
	desc     textinput.Model
	priority model.Priority
	status   model.Status
	errMsg   string
}

func newTaskForm(t *model.Task, status model.Status) *taskForm {
	title := textinput.New()
	title.Placeholder = "title"
	title.CharLimit = 200
	title.Focus()

	deadline := textinput.New()
	deadline.Placeholder = "YYYY-MM-DD"
	deadline.CharLimit = 10

	desc := textinput.New()
	desc.Placeholder = "description (markdown)"
	desc.CharLimit = 2000

	f := &taskForm{
		title:    title,
		deadline: deadline,
		desc:     desc,
		priority: model.PriorityMedium,
		status:   status,
	}
	if t != nil {
		f.taskID = t.ID
		f.title.SetValue(t.Title)
		if t.Deadline != nil {
			f.deadline.SetValue(string(*t.Deadline))
		}
		f.desc.SetValue(t.Description)
		f.priority = t.Priority
		f.status = t.Status
	}
	return f
}

func (f *taskForm) focusField(i int) {
	f.field = i
	f.title.Blur()
	f.deadline.Blur()
	f.desc.Blur()
	switch i {
	case fieldTitle:
		f.title.Focus()
	case fieldDeadline:
		f.deadline.Focus()
	case fieldDescription:
		f.desc.Focus()
	}
}

func (f *taskForm) next() { f.focusField((f.field + 1) % fieldCount) }
func (f *taskForm) prev() { f.focusField((f.field + fieldCount - 1) % fieldCount) }

func (f *taskForm) isEdit() bool { return f.taskID != "" }

func cyclePriority(p model.Priority, back bool) model.Priority {
	order := model.Priorities
	for i, c := range order {
		if c == p {
			if back {
				return order[(i+len(order)-1)%len(order)]
			}
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func cycleStatus(s model.Status, back bool) model.Status {
	order := model.Statuses
	for i, c := range order {
		if c == s {
			if back {
				return order[(i+len(order)-1)%len(order)]
			}
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func (a *App) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := a.form
	switch msg.String() {
	case "esc":
		a.form = nil
		a.focus = focusBoard
		return a, nil
	case "tab", "down":
		f.next()
		return a, nil
	case "shift+tab", "up":
		f.prev()
		return a, nil
	case "left", "right":
		back := msg.String() == "left"
		switch f.field {
		case fieldPriority:
			f.priority = cyclePriority(f.priority, back)
			return a, nil
		case fieldStatus:
			if !f.isEdit() {
				f.status = cycleStatus(f.status, back)
			}
			return a, nil
		}
	case "enter":
		return a.submitForm()
	}

	var cmd tea.Cmd
	switch f.field {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDeadline:
		f.deadline, cmd = f.deadline.Update(msg)
	case fieldDescription:
		f.desc, cmd = f.desc.Update(msg)
	}
	return a, cmd
}

func (a *App) submitForm() (tea.Model, tea.Cmd) {
	f := a.form
	title := strings.TrimSpace(f.title.Value())
	rawDeadline := strings.TrimSpace(f.deadline.Value())
	if title == "" || rawDeadline == "" {
		f.errMsg = "title and deadline are required"
		return a, nil
	}
	deadline, err := model.ParseDate(rawDeadline)
	if err != nil {
		f.errMsg = "deadline must be YYYY-MM-DD"
		return a, nil
	}

	b := a.board
	if f.isEdit() {
		patch := board.TaskPatch{
			Title:       &title,
			Deadline:    &deadline,
			Priority:    &f.priority,
			Description: ptr(f.desc.Value()),
		}
		id := f.taskID
		a.form = nil
		a.focus = focusBoard
		return a, func() tea.Msg {
			if err := b.UpdateTask(context.Background(), id, patch); err != nil {
				return RejectMsg{Notice: noticeFor("task.update", err)}
			}
			return RefreshMsg{}
		}
	}

	in := board.TaskInput{
		Title:       title,
		Description: f.desc.Value(),
		Priority:    f.priority,
		Deadline:    deadline,
		Status:      f.status,
	}
	a.form = nil
	a.focus = focusBoard
	return a, func() tea.Msg {
		if _, err := b.CreateTask(context.Background(), in); err != nil {
			return RejectMsg{Notice: noticeFor("task.create", err)}
		}
		return RefreshMsg{}
	}
}

func ptr[T any](v T) *T { return &v }

func (f *taskForm) render(width int) string {
	label := func(i int, name string) string {
		if f.field == i {
			return styleSidebarActive.Render("> " + name)
		}
		return styleMuted.Render("  " + name)
	}
	header := "New task"
	if f.isEdit() {
		header = "Edit task"
	}
	lines := []string{
		styleColHeader.Render(header),
		"",
		label(fieldTitle, "Title    ") + f.title.View(),
		label(fieldDeadline, "Deadline ") + f.deadline.View(),
		label(fieldPriority, "Priority ") + priorityBadge(f.priority) + " " + string(f.priority),
	}
	if !f.isEdit() {
		lines = append(lines, label(fieldStatus, "Status   ")+f.status.Label())
	}
	lines = append(lines,
		label(fieldDescription, "Notes    ")+f.desc.View(),
		"",
		styleMuted.Render("enter save · tab next field · ←/→ cycle · esc cancel"),
	)
	if f.errMsg != "" {
		lines = append(lines, styleDanger.Render(f.errMsg))
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}
