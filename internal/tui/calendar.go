package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"taskboard-cli/internal/model"
	"taskboard-cli/internal/view"
)

// maxCalendarEntries caps how many task titles a day cell shows before
// collapsing the rest into a "+N more" line.
const maxCalendarEntries = 4

func (a *App) updateCalendar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "h", "pgup":
		a.month = a.month.Prev()
	case "right", "l", "pgdown":
		a.month = a.month.Next()
	case "t":
		a.month = view.MonthOf(time.Now())
	}
	return a, nil
}

func (a *App) renderCalendar() string {
	byDate := view.ByDate(a.board.Tasks(), a.filter, a.board.TaskTags())
	grid := a.month.Grid()
	today := model.DateOf(time.Now())

	width := a.boardWidth()
	cellWidth := width/7 - 1
	if cellWidth < 10 {
		cellWidth = 10
	}

	title := styleColHeader.Render(fmt.Sprintf("%s %d", a.month.Month, a.month.Year))

	var headers []string
	for _, d := range []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"} {
		headers = append(headers, lipgloss.NewStyle().Width(cellWidth+1).Render(styleMuted.Render(d)))
	}
	rows := []string{title, lipgloss.JoinHorizontal(lipgloss.Top, headers...)}

	for week := 0; week < len(grid)/7; week++ {
		var cells []string
		for day := 0; day < 7; day++ {
			d := grid[week*7+day]
			cells = append(cells, a.renderDayCell(d, byDate[d], cellWidth, today))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	rows = append(rows, styleMuted.Render("←/→ month · t today"))
	return strings.Join(rows, "\n")
}

func (a *App) renderDayCell(d model.Date, tasks []model.Task, width int, today model.Date) string {
	day := d.Time().Day()
	num := fmt.Sprintf("%2d", day)
	switch {
	case d == today:
		num = styleSidebarActive.Render(num)
	case !a.month.Contains(d):
		num = faintIfDark(styleMuted).Render(num)
	}
	lines := []string{num}

	shown := tasks
	if len(shown) > maxCalendarEntries {
		shown = shown[:maxCalendarEntries]
	}
	for _, t := range shown {
		entry := xansi.Truncate(t.Title, width-2, "…")
		switch {
		case t.Status == model.StatusDone:
			entry = styleMuted.Render(entry)
		case t.Deadline != nil && t.Deadline.Overdue(time.Now()):
			entry = styleDanger.Render(entry)
		}
		lines = append(lines, "·"+entry)
	}
	if extra := len(tasks) - len(shown); extra > 0 {
		lines = append(lines, styleMuted.Render(fmt.Sprintf("+%d more", extra)))
	}
	return lipgloss.NewStyle().Width(width + 1).Render(strings.Join(lines, "\n"))
}
