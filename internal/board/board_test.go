package board

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"taskboard-cli/internal/feed"
	"taskboard-cli/internal/gateway"
	"taskboard-cli/internal/model"
)

// fakeGateway is an in-memory Gateway with call recording and per-operation
// failure injection. Keys for calls and fail are "op/collection", e.g.
// "update/tasks".
type fakeGateway struct {
	mu     sync.Mutex
	rows   map[model.Collection][]model.Record
	nextID int
	calls  []string
	fail   map[string]error

	// blockProject, when set, parks task lists for that project until
	// unblock is closed. Used to interleave project switches.
	blockProject string
	unblock      chan struct{}

	// blockDelete, when set, parks every Delete until it is closed. Used to
	// interleave reads with an in-flight delete.
	blockDelete chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rows: map[model.Collection][]model.Record{},
		fail: map[string]error{},
	}
}

func (g *fakeGateway) record(op string, c model.Collection) error {
	g.mu.Lock()
	g.calls = append(g.calls, op+"/"+string(c))
	err := g.fail[op+"/"+string(c)]
	g.mu.Unlock()
	return err
}

func (g *fakeGateway) callCount(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (g *fakeGateway) List(ctx context.Context, c model.Collection, f gateway.Filter) ([]model.Record, error) {
	if err := g.record("list", c); err != nil {
		return nil, err
	}
	g.mu.Lock()
	block := c == model.Tasks && g.blockProject != "" && f.ProjectID == g.blockProject
	gate := g.unblock
	g.mu.Unlock()
	if block {
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Record
	for _, r := range g.rows[c] {
		if f.ProjectID != "" && r["project_id"] != f.ProjectID {
			continue
		}
		if f.TaskID != "" && r["task_id"] != f.TaskID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *fakeGateway) Insert(ctx context.Context, c model.Collection, rec model.Record) (model.Record, error) {
	if err := g.record("insert", c); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	stored := model.Record{}
	for k, v := range rec {
		stored[k] = v
	}
	if _, ok := stored["id"]; !ok && c != model.TaskTags {
		g.nextID++
		stored["id"] = fmt.Sprintf("srv-%d", g.nextID)
	}
	g.rows[c] = append(g.rows[c], stored)
	return stored, nil
}

func (g *fakeGateway) Update(ctx context.Context, c model.Collection, id string, patch model.Record) error {
	if err := g.record("update", c); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.rows[c] {
		if r["id"] == id {
			for k, v := range patch {
				r[k] = v
			}
			return nil
		}
	}
	return gateway.NotFoundError{Collection: c, ID: id}
}

func (g *fakeGateway) Delete(ctx context.Context, c model.Collection, id string) error {
	g.mu.Lock()
	gate := g.blockDelete
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := g.record("delete", c); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := g.rows[c]
	for i, r := range rows {
		if r["id"] == id {
			g.rows[c] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return gateway.NotFoundError{Collection: c, ID: id}
}

func (g *fakeGateway) DeleteWhere(ctx context.Context, c model.Collection, f gateway.Filter) error {
	if err := g.record("deletewhere", c); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var kept []model.Record
	for _, r := range g.rows[c] {
		if (f.TaskID == "" || r["task_id"] == f.TaskID) && (f.TagID == "" || r["tag_id"] == f.TagID) {
			continue
		}
		kept = append(kept, r)
	}
	g.rows[c] = kept
	return nil
}

type fakeObjects struct {
	mu       sync.Mutex
	uploads  []string
	removals []string
	failUp   error
}

func (o *fakeObjects) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failUp != nil {
		return o.failUp
	}
	o.uploads = append(o.uploads, key)
	return nil
}

func (o *fakeObjects) Remove(ctx context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.removals = append(o.removals, key)
	return nil
}

func (o *fakeObjects) PublicURL(key string) string { return "https://files.test/" + key }

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) add(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, n := range l.notices {
		out = append(out, n.Op)
	}
	return out
}

func newTestBoard(t *testing.T, gw *fakeGateway) (*Board, *noticeLog) {
	t.Helper()
	notices := &noticeLog{}
	b := New(Config{
		Gateway:  gw,
		Objects:  &fakeObjects{},
		Session:  gateway.StaticSession{Session: gateway.Session{AccessToken: "tok"}},
		OnReject: notices.add,
	})
	return b, notices
}

func seedProject(g *fakeGateway) {
	g.rows[model.Projects] = []model.Record{
		{"id": "p1", "name": "Alpha"},
		{"id": "p2", "name": "Beta"},
	}
	g.rows[model.Tasks] = []model.Record{
		{"id": "t1", "title": "First", "priority": "high", "status": "todo", "project_id": "p1", "deadline": "2026-09-10"},
		{"id": "t2", "title": "Second", "priority": "low", "status": "done", "project_id": "p1"},
		{"id": "t9", "title": "Other project", "priority": "medium", "status": "todo", "project_id": "p2"},
	}
	g.rows[model.Subtasks] = []model.Record{
		{"id": "s1", "task_id": "t1", "title": "step one", "done": false, "created_at": "2026-01-01T10:00:00Z"},
		{"id": "s2", "task_id": "t1", "title": "step two", "done": true, "created_at": "2026-01-02T10:00:00Z"},
	}
	g.rows[model.Tags] = []model.Record{
		{"id": "g1", "name": "urgent", "color": "#ff0000"},
	}
	g.rows[model.TaskTags] = []model.Record{
		{"task_id": "t1", "tag_id": "g1"},
	}
}

func taskEvent(kind feed.Kind, t model.Task) feed.Event {
	ev := feed.Event{Collection: model.Tasks, Kind: kind, ID: t.ID}
	if kind != feed.KindDelete {
		ev.Task = &t
	}
	return ev
}

func TestSetActiveProjectLoadsScoped(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)

	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}
	if got := len(b.Tasks()); got != 2 {
		t.Fatalf("expected 2 tasks for p1, got %d", got)
	}
	if _, ok := b.Task("t9"); ok {
		t.Fatalf("task from another project leaked into the board")
	}
	subs := b.SubtasksFor("t1")
	if len(subs) != 2 || subs[0].ID != "s1" || subs[1].ID != "s2" {
		t.Fatalf("expected subtasks [s1 s2] in creation order, got %v", subs)
	}
	tags := b.TagsFor("t1")
	if len(tags) != 1 || tags[0].Name != "urgent" {
		t.Fatalf("expected tag urgent on t1, got %v", tags)
	}
	projects := b.Projects()
	if len(projects) != 2 || projects[0].Name != "Alpha" {
		t.Fatalf("expected projects sorted by name, got %v", projects)
	}
}

func TestSetActiveProjectEmptyClearsBoard(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)

	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}
	if err := b.SetActiveProject(context.Background(), ""); err != nil {
		t.Fatalf("SetActiveProject(\"\"): %v", err)
	}
	if got := len(b.Tasks()); got != 0 {
		t.Fatalf("expected empty board, got %d tasks", got)
	}
	if got := len(b.Projects()); got != 2 {
		t.Fatalf("project list should survive clearing, got %d", got)
	}
}

func TestApplyRemoteEventIdempotent(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)
	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}

	task := model.Task{ID: "t3", Title: "New", Priority: model.PriorityMedium, Status: model.StatusTodo, ProjectID: "p1"}
	b.ApplyRemoteEvent(taskEvent(feed.KindInsert, task))
	b.ApplyRemoteEvent(taskEvent(feed.KindInsert, task)) // replay
	if got := len(b.Tasks()); got != 3 {
		t.Fatalf("replayed insert must not duplicate: got %d tasks", got)
	}

	// Update for an id never seen inserts it.
	ghost := model.Task{ID: "t4", Title: "Ghost", Priority: model.PriorityLow, Status: model.StatusDone, ProjectID: "p1"}
	b.ApplyRemoteEvent(taskEvent(feed.KindUpdate, ghost))
	if _, ok := b.Task("t4"); !ok {
		t.Fatalf("update for unknown id should insert")
	}

	// Delete for an absent id is a no-op.
	b.ApplyRemoteEvent(taskEvent(feed.KindDelete, model.Task{ID: "missing"}))
	if got := len(b.Tasks()); got != 4 {
		t.Fatalf("delete of unknown id changed state: got %d tasks", got)
	}
}

func TestDeleteBeforeInsertLeavesTaskAbsent(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)
	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}

	task := model.Task{ID: "t5", Title: "Reordered", Priority: model.PriorityHigh, Status: model.StatusTodo, ProjectID: "p1"}
	b.ApplyRemoteEvent(taskEvent(feed.KindDelete, task))
	b.ApplyRemoteEvent(taskEvent(feed.KindInsert, task))
	if _, ok := b.Task("t5"); ok {
		t.Fatalf("insert replayed after delete resurrected the task")
	}
}

func TestRemoteTaskDeleteHidesChildren(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)
	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}

	b.ApplyRemoteEvent(taskEvent(feed.KindDelete, model.Task{ID: "t1"}))
	if got := b.SubtasksFor("t1"); got != nil {
		t.Fatalf("expected no subtasks for deleted task, got %v", got)
	}
	if got := b.TagsFor("t1"); got != nil {
		t.Fatalf("expected no tags for deleted task, got %v", got)
	}
	// The tag itself stays in the vocabulary.
	if got := len(b.AllTags()); got != 1 {
		t.Fatalf("tag vocabulary should be untouched, got %d tags", got)
	}
}

func TestForeignProjectUpdateDropsCard(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)
	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}

	moved := model.Task{ID: "t1", Title: "First", Priority: model.PriorityHigh, Status: model.StatusTodo, ProjectID: "p2"}
	b.ApplyRemoteEvent(taskEvent(feed.KindUpdate, moved))
	if _, ok := b.Task("t1"); ok {
		t.Fatalf("task moved to another project should leave the board")
	}
}

func TestProjectSwitchDiscardsStaleLoad(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)

	gw.mu.Lock()
	gw.blockProject = "p1"
	gw.unblock = make(chan struct{})
	gw.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- b.SetActiveProject(context.Background(), "p1") }()

	// Wait until the p1 load is parked inside the gateway.
	for i := 0; gw.callCount("list/tasks") == 0; i++ {
		if i > 5000 {
			t.Fatalf("p1 task list never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := b.SetActiveProject(context.Background(), "p2"); err != nil {
		t.Fatalf("SetActiveProject(p2): %v", err)
	}
	close(gw.unblock)
	if err := <-done; err != nil {
		t.Fatalf("stale SetActiveProject(p1): %v", err)
	}

	if got := b.ActiveProjectID(); got != "p2" {
		t.Fatalf("active project = %q, want p2", got)
	}
	tasks := b.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "t9" {
		t.Fatalf("stale p1 load leaked into the p2 board: %v", tasks)
	}
}

func TestTaskTagEventsKeyedByPair(t *testing.T) {
	gw := newFakeGateway()
	seedProject(gw)
	b, _ := newTestBoard(t, gw)
	if err := b.SetActiveProject(context.Background(), "p1"); err != nil {
		t.Fatalf("SetActiveProject: %v", err)
	}

	tt := model.TaskTag{TaskID: "t2", TagID: "g1"}
	ev := feed.Event{Collection: model.TaskTags, Kind: feed.KindInsert, ID: tt.Key(), TaskTag: &tt}
	b.ApplyRemoteEvent(ev)
	b.ApplyRemoteEvent(ev) // replay
	if got := len(b.TagsFor("t2")); got != 1 {
		t.Fatalf("expected 1 tag on t2, got %d", got)
	}

	delEv := feed.Event{Collection: model.TaskTags, Kind: feed.KindDelete, ID: tt.Key(), TaskTag: &tt}
	b.ApplyRemoteEvent(delEv)
	if got := len(b.TagsFor("t2")); got != 0 {
		t.Fatalf("expected no tags on t2 after remote removal, got %d", got)
	}
}
