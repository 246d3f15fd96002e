package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"taskboard-cli/internal/board"
)

const sidebarWidth = 22

func (a *App) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	projects := a.board.Projects()
	if a.projIndex >= len(projects) {
		a.projIndex = len(projects) - 1
	}
	if a.projIndex < 0 {
		a.projIndex = 0
	}

	switch msg.String() {
	case "up", "k":
		if a.projIndex > 0 {
			a.projIndex--
		}
	case "down", "j":
		if a.projIndex < len(projects)-1 {
			a.projIndex++
		}
	case "enter":
		if a.projIndex < len(projects) {
			a.focus = focusBoard
			a.sel = selection{}
			return a, a.loadProjectCmd(projects[a.projIndex].ID)
		}
	case "n":
		a.focus = focusNewProject
		a.projInput.SetValue("")
		a.projInput.Focus()
	case "d":
		if a.projIndex < len(projects) {
			return a, a.deleteProjectCmd(projects[a.projIndex].ID)
		}
	case "esc":
		a.focus = focusBoard
	}
	return a, nil
}

func (a *App) updateNewProject(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		name := strings.TrimSpace(a.projInput.Value())
		a.projInput.Blur()
		a.focus = focusSidebar
		if name == "" {
			return a, nil
		}
		return a, a.createProjectCmd(name)
	case "esc":
		a.projInput.Blur()
		a.focus = focusSidebar
		return a, nil
	}
	var cmd tea.Cmd
	a.projInput, cmd = a.projInput.Update(msg)
	return a, cmd
}

func (a *App) createProjectCmd(name string) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if _, err := b.CreateProject(context.Background(), board.ProjectInput{Name: name}); err != nil {
			return RejectMsg{Notice: noticeFor("project.create", err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) deleteProjectCmd(id string) tea.Cmd {
	b := a.board
	return func() tea.Msg {
		if err := b.DeleteProject(context.Background(), id); err != nil {
			return RejectMsg{Notice: noticeFor("project.delete", err)}
		}
		return RefreshMsg{}
	}
}

func (a *App) renderSidebar() string {
	lines := []string{styleColHeader.Render("Projects")}
	active := a.board.ActiveProjectID()
	for i, p := range a.board.Projects() {
		name := xansi.Truncate(p.Name, sidebarWidth-2, "…")
		marker := "  "
		if p.ID == active {
			marker = "* "
		}
		line := marker + name
		switch {
		case a.focus == focusSidebar && i == a.projIndex:
			line = styleSidebarActive.Render(line)
		case p.ID == active:
			line = styleTitle.Render(line)
		}
		lines = append(lines, line)
	}
	if a.focus == focusNewProject {
		lines = append(lines, a.projInput.View())
	} else if a.focus == focusSidebar {
		lines = append(lines, "", styleMuted.Render("n new · d delete"))
	}
	return lipgloss.NewStyle().Width(sidebarWidth).Render(strings.Join(lines, "\n"))
}
