package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/view"
)

// resolveSelection recomputes the row index from the tracked task id, so the
// highlight follows the card across re-sorts and remote updates.
func (a *App) resolveSelection(cols []view.Column) {
	if len(cols) == 0 {
		return
	}
	if a.sel.col >= len(cols) {
		a.sel.col = len(cols) - 1
	}
	if a.sel.taskID != "" {
		for ci, col := range cols {
			for ri, t := range col.Tasks {
				if t.ID == a.sel.taskID {
					a.sel.col, a.sel.row = ci, ri
					return
				}
			}
		}
	}
	// Fall back to clamping the positional selection.
	if a.sel.row >= len(cols[a.sel.col].Tasks) {
		a.sel.row = len(cols[a.sel.col].Tasks) - 1
	}
	if a.sel.row < 0 {
		a.sel.row = 0
	}
	if a.sel.row < len(cols[a.sel.col].Tasks) {
		a.sel.taskID = cols[a.sel.col].Tasks[a.sel.row].ID
	} else {
		a.sel.taskID = ""
	}
}

func (a *App) selectedTask(cols []view.Column) (model.Task, bool) {
	a.resolveSelection(cols)
	col := cols[a.sel.col]
	if a.sel.row < 0 || a.sel.row >= len(col.Tasks) {
		return model.Task{}, false
	}
	return col.Tasks[a.sel.row], true
}

func (a *App) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cols := a.columns()
	a.resolveSelection(cols)

	if a.grabbed != nil {
		return a.updateGrab(msg, cols)
	}

	switch msg.String() {
	case "left", "h":
		if a.sel.col > 0 {
			a.sel.col--
			a.sel.row = 0
			a.sel.taskID = ""
		}
	case "right", "l":
		if a.sel.col < len(cols)-1 {
			a.sel.col++
			a.sel.row = 0
			a.sel.taskID = ""
		}
	case "up", "k":
		if a.sel.row > 0 {
			a.sel.row--
			a.sel.taskID = cols[a.sel.col].Tasks[a.sel.row].ID
		}
	case "down", "j":
		if a.sel.row < len(cols[a.sel.col].Tasks)-1 {
			a.sel.row++
			a.sel.taskID = cols[a.sel.col].Tasks[a.sel.row].ID
		}
	case " ", "g":
		if t, ok := a.selectedTask(cols); ok {
			a.grabbed = &grab{taskID: t.ID, fromCol: a.sel.col, col: a.sel.col}
		}
	case "a":
		if a.board.ActiveProjectID() != "" {
			a.form = newTaskForm(nil, cols[a.sel.col].Status)
			a.focus = focusForm
		}
	case "e":
		if t, ok := a.selectedTask(cols); ok {
			a.form = newTaskForm(&t, t.Status)
			a.focus = focusForm
		}
	case "enter":
		if t, ok := a.selectedTask(cols); ok {
			a.detail = newDetailPane(t.ID)
			a.focus = focusDetail
		}
	case "x":
		if t, ok := a.selectedTask(cols); ok {
			a.sel.taskID = ""
			return a, a.deleteTaskCmd(t.ID)
		}
	}
	return a, nil
}

// updateGrab handles the keyboard drag. Left/right carries the card across
// columns; enter drops it (one move-status mutation only if the column
// actually changed); esc returns it to its origin with no mutation.
func (a *App) updateGrab(msg tea.KeyMsg, cols []view.Column) (tea.Model, tea.Cmd) {
	g := a.grabbed
	switch msg.String() {
	case "left", "h":
		if g.col > 0 {
			g.col--
		}
	case "right", "l":
		if g.col < len(cols)-1 {
			g.col++
		}
	case "enter", " ":
		a.grabbed = nil
		a.sel.col = g.col
		a.sel.taskID = g.taskID
		if g.col == g.fromCol {
			return a, nil // reorder within a column is not persisted
		}
		return a, a.moveStatusCmd(g.taskID, cols[g.col].Status)
	case "esc":
		a.grabbed = nil
		a.sel.col = g.fromCol
		a.sel.taskID = g.taskID
	}
	return a, nil
}

func noticeFor(op string, err error) board.Notice {
	return board.Notice{Op: op, Err: err}
}

func (a *App) moveStatusCmd(taskID string, to model.Status) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if err := b.MoveTaskStatus(context.Background(), taskID, to); err != nil {
			return RejectMsg{Notice: noticeFor("task.move-status", err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) deleteTaskCmd(taskID string) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if err := b.DeleteTask(context.Background(), taskID); err != nil {
			return RejectMsg{Notice: noticeFor("task.delete", err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) boardWidth() int {
	w := a.width
	if a.sidebar {
		w -= sidebarWidth + 1
	}
	if w < 30 {
		w = 30
	}
	return w
}

func (a *App) renderBoard() string {
	cols := a.columns()
	a.resolveSelection(cols)
	colWidth := a.boardWidth()/len(cols) - 2
	if colWidth < 16 {
		colWidth = 16
	}
	now := time.Now()

	rendered := make([]string, 0, len(cols))
	for ci, col := range cols {
		header := styleColHeader.Render(fmt.Sprintf("%s (%d)", col.Title, len(col.Tasks)))
		lines := []string{header}
		for ri, t := range col.Tasks {
			st := styleCard
			switch {
			case a.grabbed != nil && a.grabbed.taskID == t.ID:
				st = styleCardGrabbed
			case a.grabbed == nil && ci == a.sel.col && ri == a.sel.row:
				st = styleCardSelected
			}
			lines = append(lines, st.Width(colWidth).Render(a.renderCard(t, colWidth-2, now)))
		}
		if len(col.Tasks) == 0 {
			lines = append(lines, styleMuted.Render("no tasks"))
		}
		// A grabbed card hovering over an empty target column still needs a
		// visible landing slot.
		if a.grabbed != nil && ci == a.grabbed.col && a.grabbed.col != a.grabbed.fromCol {
			lines = append(lines, styleMuted.Render("· drop here ·"))
		}
		rendered = append(rendered, lipgloss.NewStyle().Width(colWidth+2).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (a *App) renderCard(t model.Task, width int, now time.Time) string {
	title := xansi.Truncate(t.Title, width-2, "…")
	head := styleTitle.Render(title) + " " + priorityBadge(t.Priority)

	deadline := styleMuted.Render("no deadline")
	if t.Deadline != nil {
		label := "due " + string(*t.Deadline)
		if t.Deadline.Overdue(now) {
			deadline = styleDanger.Render(label)
		} else {
			deadline = styleMuted.Render(label)
		}
	}

	lines := []string{head, deadline}
	if tags := a.board.TagsFor(t.ID); len(tags) > 0 {
		chips := make([]string, 0, len(tags))
		for _, tag := range tags {
			chips = append(chips, tagChip(tag))
		}
		lines = append(lines, xansi.Truncate(strings.Join(chips, " "), width, "…"))
	}
	if subs := a.board.SubtasksFor(t.ID); len(subs) > 0 {
		done := 0
		for _, s := range subs {
			if s.Done {
				done++
			}
		}
		lines = append(lines, faintIfDark(styleMuted).Render(fmt.Sprintf("[%d/%d]", done, len(subs))))
	}
	return strings.Join(lines, "\n")
}
