package tui

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/feed"
	"taskboard-cli/internal/model"
	"taskboard-cli/internal/view"
)

// Relay forwards board callbacks into the bubbletea program once it exists.
// The board is constructed before the program, so callbacks registered at
// construction go through here.
type Relay struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *Relay) Attach(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *Relay) Send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Messages delivered into the update loop. Remote feed events and gateway
// completions never touch the model directly; they arrive here, so all state
// transitions happen on the single update goroutine.
type (
	RefreshMsg struct{}
	RejectMsg  struct{ Notice board.Notice }

	projectLoadedMsg struct {
		projectID string
		err       error
	}
)

type focusArea int

const (
	focusBoard focusArea = iota
	focusSidebar
	focusNewProject
	focusSearch
	focusForm
	focusDetail
)

type tabKind int

const (
	tabBoard tabKind = iota
	tabCalendar
)

type selection struct {
	col int
	row int
	// taskID tracks the selected card across re-sorts; the row index is
	// recomputed from it on every render.
	taskID string
}

// grab is the keyboard drag: a grabbed card follows column moves and issues
// exactly one move-status mutation on drop in a different column.
type grab struct {
	taskID  string
	fromCol int
	col     int
}

type App struct {
	board *board.Board
	sub   *feed.Subscriber
	log   *slog.Logger

	statePath string
	state     UIState

	width  int
	height int

	tab     tabKind
	focus   focusArea
	sidebar bool

	projIndex int
	projInput textinput.Model

	filter      view.Filter
	searchInput textinput.Model

	sel     selection
	grabbed *grab

	form   *taskForm
	detail *detailPane

	month view.Month

	loading bool
	notice  string
}

type Options struct {
	Board      *board.Board
	Subscriber *feed.Subscriber
	Logger     *slog.Logger
	StatePath  string
}

func NewApp(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	proj := textinput.New()
	proj.Placeholder = "project name"
	proj.CharLimit = 80

	search := textinput.New()
	search.Placeholder = "search title or description"
	search.Prompt = "/"

	st := loadUIState(opts.StatePath)
	app := &App{
		board:       opts.Board,
		sub:         opts.Subscriber,
		log:         log,
		statePath:   opts.StatePath,
		state:       st,
		sidebar:     !st.SidebarCollapsed,
		projInput:   proj,
		searchInput: search,
		month:       view.MonthOf(time.Now()),
	}
	if st.Tab == "calendar" {
		app.tab = tabCalendar
	}
	return app
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{a.loadProjectCmd(a.state.SelectedProjectID)}
	return tea.Batch(cmds...)
}

// loadProjectCmd switches the active project: reconciler load plus feed
// re-subscription. Stale completions are discarded by the board's epoch
// guard; the message only reports the outcome for the status line.
func (a *App) loadProjectCmd(projectID string) tea.Cmd {
	a.loading = true
	b, sub := a.board, a.sub
	return func() tea.Msg {
		ctx := context.Background()
		if err := b.SetActiveProject(ctx, projectID); err != nil {
			return projectLoadedMsg{projectID: projectID, err: err}
		}
		if sub != nil {
			if err := sub.SetProject(ctx, projectID); err != nil {
				return projectLoadedMsg{projectID: projectID, err: err}
			}
		}
		return projectLoadedMsg{projectID: projectID}
	}
}

func (a *App) saveState() {
	a.state.SelectedProjectID = a.board.ActiveProjectID()
	a.state.SidebarCollapsed = !a.sidebar
	if a.tab == tabCalendar {
		a.state.Tab = "calendar"
	} else {
		a.state.Tab = "board"
	}
	saveUIState(a.statePath, a.state)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		return a, nil

	case RefreshMsg:
		// Reconciler state changed (remote event or mutation settled); the
		// render below re-reads it.
		return a, nil

	case RejectMsg:
		a.notice = msg.Notice.Op + " failed: " + msg.Notice.Err.Error()
		return a, nil

	case projectLoadedMsg:
		a.loading = false
		if msg.err != nil {
			a.notice = "load failed: " + msg.err.Error()
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)
	}
	return a, nil
}

func (a *App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Text-entry focuses swallow most keys.
	switch a.focus {
	case focusNewProject:
		return a.updateNewProject(msg)
	case focusSearch:
		return a.updateSearch(msg)
	case focusForm:
		return a.updateForm(msg)
	case focusDetail:
		return a.updateDetail(msg)
	}

	if a.notice != "" {
		a.notice = ""
	}

	switch msg.String() {
	case "ctrl+c", "q":
		a.saveState()
		a.board.Flush()
		if a.sub != nil {
			a.sub.Stop()
		}
		return a, tea.Quit
	case "tab":
		if a.tab == tabBoard {
			a.tab = tabCalendar
		} else {
			a.tab = tabBoard
		}
		return a, nil
	case "b":
		a.sidebar = !a.sidebar
		return a, nil
	case "p":
		if a.sidebar {
			a.focus = focusSidebar
		}
		return a, nil
	case "/":
		a.focus = focusSearch
		a.searchInput.SetValue(a.filter.Query)
		a.searchInput.Focus()
		return a, nil
	case "f":
		a.filter.Priority = nextPriorityFilter(a.filter.Priority)
		return a, nil
	case "o":
		a.filter.OverdueOnly = !a.filter.OverdueOnly
		return a, nil
	case "F":
		a.filter = view.Filter{}
		return a, nil
	}

	if a.focus == focusSidebar {
		return a.updateSidebar(msg)
	}
	if a.tab == tabCalendar {
		return a.updateCalendar(msg)
	}
	return a.updateBoard(msg)
}

func nextPriorityFilter(p model.Priority) model.Priority {
	switch p {
	case "":
		return model.PriorityHigh
	case model.PriorityHigh:
		return model.PriorityMedium
	case model.PriorityMedium:
		return model.PriorityLow
	default:
		return ""
	}
}

func (a *App) columns() []view.Column {
	return view.Columns(a.board.Tasks(), a.board.TaskTags(), a.filter)
}

func (a *App) View() string {
	if a.width == 0 {
		return ""
	}
	header := a.renderHeader()
	var body string
	switch {
	case a.focus == focusForm && a.form != nil:
		body = a.form.render(a.width)
	case a.focus == focusDetail && a.detail != nil:
		body = a.renderDetail()
	case a.tab == tabCalendar:
		body = a.renderCalendar()
	default:
		body = a.renderBoard()
	}
	if a.sidebar && a.focus != focusForm && a.focus != focusDetail {
		side := a.renderSidebar()
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, " ", body)
	}
	status := a.renderStatus()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (a *App) renderHeader() string {
	boardTab := styleTabActive.Render("Board")
	calTab := styleTabInactive.Render("Calendar")
	if a.tab == tabCalendar {
		boardTab = styleTabInactive.Render("Board")
		calTab = styleTabActive.Render("Calendar")
	}
	name := "(no project)"
	if p, ok := a.board.Project(a.board.ActiveProjectID()); ok {
		name = p.Name
	}
	title := styleTitle.Render("Taskboard") + "  " + styleMuted.Render(name)
	return title + "   " + boardTab + " " + styleMuted.Render("·") + " " + calTab
}

func (a *App) renderStatus() string {
	if a.focus == focusSearch {
		return a.searchInput.View()
	}
	if a.notice != "" {
		return styleNotice.Render(a.notice)
	}
	if a.loading {
		return styleMuted.Render("loading…")
	}
	parts := "q quit · tab view · b sidebar · / search · f priority · o overdue · space grab"
	if f := describeFilter(a.filter); f != "" {
		parts = f + "   " + parts
	}
	return styleMuted.Render(parts)
}

func describeFilter(f view.Filter) string {
	var parts []string
	if f.Query != "" {
		parts = append(parts, "search:"+f.Query)
	}
	if f.Priority != "" {
		parts = append(parts, "priority:"+string(f.Priority))
	}
	if f.TagID != "" {
		parts = append(parts, "tag")
	}
	if f.OverdueOnly {
		parts = append(parts, "overdue")
	}
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return "[" + out + "]"
}

func (a *App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.filter.Query = a.searchInput.Value()
		a.focus = focusBoard
		a.searchInput.Blur()
		return a, nil
	case "esc":
		a.focus = focusBoard
		a.searchInput.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	return a, cmd
}
