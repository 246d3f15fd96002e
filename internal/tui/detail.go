package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/model"
)

// detailPane shows one task: rendered notes, subtask checklist, tags and
// attachments. Rows index into the subtask list; the tag picker is a modal
// cycle over the project's tags.
type detailPane struct {
	taskID  string
	row     int
	adding  bool
	input   textinput.Model
	tagging bool
	tagIdx  int
}

func newDetailPane(taskID string) *detailPane {
	in := textinput.New()
	in.Placeholder = "new subtask"
	in.CharLimit = 200
	return &detailPane{taskID: taskID, input: in}
}

func (a *App) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := a.detail
	t, ok := a.board.Task(d.taskID)
	if !ok {
		// The task was deleted out from under the pane.
		a.detail = nil
		a.focus = focusBoard
		return a, nil
	}

	if d.adding {
		switch msg.String() {
		case "enter":
			title := strings.TrimSpace(d.input.Value())
			d.adding = false
			d.input.Blur()
			d.input.SetValue("")
			if title == "" {
				return a, nil
			}
			return a, a.addSubtaskCmd(t.ID, title)
		case "esc":
			d.adding = false
			d.input.Blur()
			return a, nil
		}
		var cmd tea.Cmd
		d.input, cmd = d.input.Update(msg)
		return a, cmd
	}

	if d.tagging {
		tags := a.board.AllTags()
		switch msg.String() {
		case "up", "k":
			if d.tagIdx > 0 {
				d.tagIdx--
			}
		case "down", "j":
			if d.tagIdx < len(tags)-1 {
				d.tagIdx++
			}
		case "enter":
			d.tagging = false
			if d.tagIdx < len(tags) {
				return a, a.toggleTagCmd(t.ID, tags[d.tagIdx].ID)
			}
		case "esc":
			d.tagging = false
		}
		return a, nil
	}

	subs := a.board.SubtasksFor(t.ID)
	if d.row >= len(subs) {
		d.row = len(subs) - 1
	}
	if d.row < 0 {
		d.row = 0
	}

	switch msg.String() {
	case "esc", "q":
		a.detail = nil
		a.focus = focusBoard
		return a, nil
	case "up", "k":
		if d.row > 0 {
			d.row--
		}
	case "down", "j":
		if d.row < len(subs)-1 {
			d.row++
		}
	case " ", "enter":
		if d.row < len(subs) {
			return a, a.toggleSubtaskCmd(subs[d.row].ID)
		}
	case "a":
		d.adding = true
		d.input.Focus()
	case "x":
		if d.row < len(subs) {
			return a, a.deleteSubtaskCmd(subs[d.row].ID)
		}
	case "t":
		if len(a.board.AllTags()) > 0 {
			d.tagging = true
			d.tagIdx = 0
		}
	case "e":
		a.detail = nil
		a.form = newTaskForm(&t, t.Status)
		a.focus = focusForm
		return a, nil
	}
	return a, nil
}

func (a *App) addSubtaskCmd(taskID, title string) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if _, err := b.AddSubtask(context.Background(), board.SubtaskInput{TaskID: taskID, Title: title}); err != nil {
			return RejectMsg{Notice: noticeFor("subtask.add", err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) toggleSubtaskCmd(id string) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if err := b.ToggleSubtask(context.Background(), id); err != nil {
			return RejectMsg{Notice: noticeFor("subtask.toggle", err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) deleteSubtaskCmd(id string) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if err := b.DeleteSubtask(context.Background(), id); err != nil {
			return RejectMsg{Notice: noticeFor("subtask.delete", err)}
		}
		return RefreshMsg{}
	}
}

// toggleTagCmd tags when the link is absent and untags when present.
func (a *App) toggleTagCmd(taskID, tagID string) tea.Cmd {
	b := a.board
	linked := false
	for _, tag := range b.TagsFor(taskID) {
		if tag.ID == tagID {
			linked = true
			break
		}
	}
	return func() tea.Msg {
		var err error
		op := "task.tag"
		if linked {
			op = "task.untag"
			err = b.UntagTask(context.Background(), taskID, tagID)
		} else {
			err = b.TagTask(context.Background(), taskID, tagID)
		}
		if err != nil {
			return RejectMsg{Notice: noticeFor(op, err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) renderDetail() string {
	d := a.detail
	t, ok := a.board.Task(d.taskID)
	if !ok {
		return styleMuted.Render("task gone")
	}
	width := a.width - 4
	if width > 100 {
		width = 100
	}

	head := styleTitle.Render(t.Title) + " " + priorityBadge(t.Priority) + " " + styleMuted.Render(t.Status.Label())
	lines := []string{head}

	if t.Deadline != nil {
		label := "due " + string(*t.Deadline)
		if t.Deadline.Overdue(time.Now()) {
			lines = append(lines, styleDanger.Render(label))
		} else {
			lines = append(lines, styleMuted.Render(label))
		}
	}

	if tags := a.board.TagsFor(t.ID); len(tags) > 0 {
		chips := make([]string, 0, len(tags))
		for _, tag := range tags {
			chips = append(chips, tagChip(tag))
		}
		lines = append(lines, strings.Join(chips, " "))
	}

	if t.Description != "" {
		lines = append(lines, renderMarkdown(t.Description, width))
	}

	lines = append(lines, styleColHeader.Render("Subtasks"))
	subs := a.board.SubtasksFor(t.ID)
	for i, s := range subs {
		box := "[ ]"
		if s.Done {
			box = "[x]"
		}
		line := fmt.Sprintf("%s %s", box, s.Title)
		if i == d.row && !d.adding && !d.tagging {
			line = styleSidebarActive.Render(line)
		} else if s.Done {
			line = styleMuted.Render(line)
		}
		lines = append(lines, line)
	}
	if len(subs) == 0 {
		lines = append(lines, styleMuted.Render("none"))
	}
	if d.adding {
		lines = append(lines, d.input.View())
	}

	if d.tagging {
		lines = append(lines, styleColHeader.Render("Tags"))
		lines = append(lines, a.renderTagPicker(t)...)
	}

	if atts := a.board.AttachmentsFor(t.ID); len(atts) > 0 {
		lines = append(lines, styleColHeader.Render("Attachments"))
		for _, at := range atts {
			lines = append(lines, styleMuted.Render("· ")+at.FileName+" "+styleMuted.Render(a.board.AttachmentURL(at)))
		}
	}

	lines = append(lines, "", styleMuted.Render("space toggle · a add subtask · x delete · t tags · e edit · esc back"))
	return lipgloss.NewStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (a *App) renderTagPicker(t model.Task) []string {
	linked := map[string]bool{}
	for _, tag := range a.board.TagsFor(t.ID) {
		linked[tag.ID] = true
	}
	var out []string
	for i, tag := range a.board.AllTags() {
		mark := "  "
		if linked[tag.ID] {
			mark = "* "
		}
		line := mark + tagChip(tag)
		if i == a.detail.tagIdx {
			line = styleSidebarActive.Render(mark) + tagChip(tag) + styleSidebarActive.Render(" <")
		}
		out = append(out, line)
	}
	return out
}
