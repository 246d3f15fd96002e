package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"taskboard-cli/internal/model"
)

// Palette helpers. The board must stay readable on light and dark terminal
// backgrounds, so everything routes through lipgloss.AdaptiveColor; faint
// styling is only applied on dark backgrounds (faint on light terminals is
// often illegible).

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted    lipgloss.TerminalColor = ac("240", "245")
	colorAccent   lipgloss.TerminalColor = ac("25", "75")
	colorDanger   lipgloss.TerminalColor = ac("124", "203")
	colorOK       lipgloss.TerminalColor = ac("28", "78")
	colorSelected lipgloss.TerminalColor = ac("232", "255")
	colorBorder   lipgloss.TerminalColor = ac("250", "240")
)

var (
	styleTitle     = lipgloss.NewStyle().Bold(true)
	styleMuted     = lipgloss.NewStyle().Foreground(colorMuted)
	styleDanger    = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	styleNotice    = lipgloss.NewStyle().Foreground(colorDanger)
	styleColHeader = lipgloss.NewStyle().Bold(true).Underline(true)

	styleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
	styleCardSelected = styleCard.
				BorderForeground(colorSelected)
	styleCardGrabbed = styleCard.
				Border(lipgloss.DoubleBorder()).
				BorderForeground(colorAccent)

	styleSidebarActive = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	styleTabActive   = lipgloss.NewStyle().Bold(true).Underline(true)
	styleTabInactive = lipgloss.NewStyle().Foreground(colorMuted)
)

func priorityBadge(p model.Priority) string {
	var st lipgloss.Style
	switch p {
	case model.PriorityHigh:
		st = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	case model.PriorityLow:
		st = styleMuted
	default:
		st = lipgloss.NewStyle().Foreground(colorAccent)
	}
	return st.Render(strings.ToUpper(string(p)[:1]))
}

// tagChip renders a tag name in its stored color when the terminal supports
// it, falling back to the accent color for unparseable values.
func tagChip(t model.Tag) string {
	color := strings.TrimSpace(t.Color)
	if color == "" || termenv.ColorProfile() == termenv.Ascii {
		return "#" + t.Name
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("#" + t.Name)
}
