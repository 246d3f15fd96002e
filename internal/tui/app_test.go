package tui

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"taskboard-cli/internal/board"
	"taskboard-cli/internal/gateway"
	"taskboard-cli/internal/model"
)

// memGateway is a minimal in-memory Gateway for driving the app in tests.
type memGateway struct {
	mu      sync.Mutex
	rows    map[model.Collection][]model.Record
	updates []model.Record
}

func (g *memGateway) List(ctx context.Context, c model.Collection, f gateway.Filter) ([]model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Record
	for _, r := range g.rows[c] {
		if f.ProjectID != "" && r["project_id"] != f.ProjectID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *memGateway) Insert(ctx context.Context, c model.Collection, rec model.Record) (model.Record, error) {
	stored := model.Record{"id": "srv-new"}
	for k, v := range rec {
		stored[k] = v
	}
	g.mu.Lock()
	g.rows[c] = append(g.rows[c], stored)
	g.mu.Unlock()
	return stored, nil
}

func (g *memGateway) Update(ctx context.Context, c model.Collection, id string, patch model.Record) error {
	g.mu.Lock()
	g.updates = append(g.updates, patch)
	g.mu.Unlock()
	return nil
}

func (g *memGateway) Delete(ctx context.Context, c model.Collection, id string) error { return nil }

func (g *memGateway) DeleteWhere(ctx context.Context, c model.Collection, f gateway.Filter) error {
	return nil
}

func newTestApp(t *testing.T) (*App, *memGateway) {
	t.Helper()
	gw := &memGateway{rows: map[model.Collection][]model.Record{
		model.Projects: {
			{"id": "p1", "name": "Alpha"},
		},
		model.Tasks: {
			{"id": "t1", "title": "Write docs", "priority": "high", "status": "todo", "project_id": "p1", "deadline": "2026-09-10"},
			{"id": "t2", "title": "Review patch", "priority": "low", "status": "in-progress", "project_id": "p1"},
		},
	}}
	b := board.New(board.Config{
		Gateway: gw,
		Session: gateway.StaticSession{Session: gateway.Session{AccessToken: "tok"}},
	})
	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}
	app := NewApp(Options{Board: b, StatePath: filepath.Join(t.TempDir(), "state.json")})
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, gw
}

func key(s string) tea.KeyMsg {
	if len(s) == 1 {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "space":
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestViewShowsColumnsAndTasks(t *testing.T) {
	app, _ := newTestApp(t)
	out := app.View()
	for _, want := range []string{"Todo", "In progress", "Done", "Write docs", "Review patch", "Alpha"} {
		if !strings.Contains(out, want) {
			t.Fatalf("view missing %q:\n%s", want, out)
		}
	}
}

func TestGrabAndDropIssuesSingleStatusUpdate(t *testing.T) {
	app, gw := newTestApp(t)

	// Grab the selected todo card, carry it one column right, drop it.
	app.Update(key("space"))
	if app.grabbed == nil {
		t.Fatalf("space should grab the selected card")
	}
	app.Update(key("right"))
	_, cmd := app.Update(key("enter"))
	if cmd == nil {
		t.Fatalf("drop in a new column must issue a move")
	}
	cmd() // run the command synchronously
	app.board.Flush()

	gw.mu.Lock()
	updates := gw.updates
	gw.mu.Unlock()
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(updates))
	}
	if updates[0]["status"] != "in-progress" {
		t.Fatalf("unexpected patch %v", updates[0])
	}
	if task, _ := app.board.Task("t1"); task.Status != model.StatusInProgress {
		t.Fatalf("card did not move: %+v", task)
	}
}

func TestGrabEscCancelsWithoutMutation(t *testing.T) {
	app, gw := newTestApp(t)

	app.Update(key("space"))
	app.Update(key("right"))
	_, cmd := app.Update(key("esc"))
	if cmd != nil {
		t.Fatalf("esc must not issue a command")
	}
	if app.grabbed != nil {
		t.Fatalf("esc should release the grab")
	}
	app.board.Flush()
	if len(gw.updates) != 0 {
		t.Fatalf("cancelled drag must not persist anything, got %v", gw.updates)
	}
	if task, _ := app.board.Task("t1"); task.Status != model.StatusTodo {
		t.Fatalf("cancelled drag moved the card: %+v", task)
	}
}

func TestDropOnOriginColumnIsNoop(t *testing.T) {
	app, gw := newTestApp(t)

	app.Update(key("space"))
	_, cmd := app.Update(key("enter"))
	if cmd != nil {
		t.Fatalf("same-column drop must not issue a command")
	}
	app.board.Flush()
	if len(gw.updates) != 0 {
		t.Fatalf("same-column drop persisted: %v", gw.updates)
	}
}

func TestSearchFiltersBoard(t *testing.T) {
	app, _ := newTestApp(t)

	app.Update(key("/"))
	for _, r := range "docs" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	app.Update(key("enter"))

	out := app.View()
	if !strings.Contains(out, "Write docs") {
		t.Fatalf("matching task missing:\n%s", out)
	}
	if strings.Contains(out, "Review patch") {
		t.Fatalf("non-matching task still shown:\n%s", out)
	}
}

func TestTabSwitchesToCalendar(t *testing.T) {
	app, _ := newTestApp(t)
	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	if app.tab != tabCalendar {
		t.Fatalf("tab should switch to the calendar")
	}
	out := app.View()
	if !strings.Contains(out, "Mon") || !strings.Contains(out, "Sun") {
		t.Fatalf("calendar header missing:\n%s", out)
	}
}

func TestRejectNoticeShownInStatusLine(t *testing.T) {
	app, _ := newTestApp(t)
	app.Update(RejectMsg{Notice: board.Notice{Op: "task.move-status", Err: context.DeadlineExceeded}})
	out := app.View()
	if !strings.Contains(out, "task.move-status failed") {
		t.Fatalf("rejection notice missing:\n%s", out)
	}
}
