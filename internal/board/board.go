// Package board holds the single authoritative in-memory copy of the active
// project's entities and is its sole mutator. Local mutations apply
// optimistically and roll back on gateway rejection; remote feed events apply
// idempotently and tolerate reordering and replay.
//
// Known limitation, kept deliberately: the store carries no version or
// timestamp to adjudicate concurrent edits to the same row from two clients.
// The visible policy is last-writer-wins by arrival order, including the race
// where a remote event lands while a local mutation's gateway call is still
// outstanding. There is no field-level merge.
package board

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"taskboard-cli/internal/feed"
	"taskboard-cli/internal/gateway"
	"taskboard-cli/internal/model"
)

// ErrNoSession is returned for any mutation attempted without a session.
var ErrNoSession = errors.New("no active session")

// Notice is a surfaced rejection: the optimistic change has already been
// rolled back by the time the notice is delivered.
type Notice struct {
	Op  string
	Err error
}

type Config struct {
	Gateway gateway.Gateway
	Objects gateway.ObjectStore
	Session gateway.SessionSource
	Logger  *slog.Logger

	// OnChange fires after any state transition (outside the lock). The TUI
	// uses it to schedule a repaint.
	OnChange func()

	// OnReject receives rollback notices for failed local mutations.
	OnReject func(Notice)
}

type Board struct {
	mu sync.Mutex

	gw      gateway.Gateway
	objects gateway.ObjectStore
	session gateway.SessionSource
	log     *slog.Logger

	onChange func()
	onReject func(Notice)

	// epoch increments on every project switch. Async completions captured
	// under an older epoch are discarded: they were relevant to a board the
	// user has navigated away from.
	epoch           uint64
	activeProjectID string

	projects    map[string]model.Project
	tasks       map[string]model.Task
	subtasks    map[string]model.Subtask
	tags        map[string]model.Tag
	taskTags    map[string]model.TaskTag
	attachments map[string]model.Attachment

	// deletedTasks tombstones task ids removed during this epoch, so a
	// replayed insert delivered after its delete cannot resurrect the card,
	// and so orphan pruning knows which parents are gone rather than merely
	// foreign.
	deletedTasks map[string]bool
	dirty        bool // orphans may exist; prune lazily on next read

	// renames maps provisional ids to the canonical ids the backend assigned
	// on insert, so callers holding a provisional id can resolve the record
	// after the mutation settles.
	renames map[string]string

	inflight sync.WaitGroup
}

func New(cfg Config) *Board {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	session := cfg.Session
	if session == nil {
		session = gateway.StaticSession{}
	}
	b := &Board{
		gw:       cfg.Gateway,
		objects:  cfg.Objects,
		session:  session,
		log:      log,
		onChange: cfg.OnChange,
		onReject: cfg.OnReject,
	}
	b.resetLocked()
	return b
}

func (b *Board) resetLocked() {
	b.projects = map[string]model.Project{}
	b.tasks = map[string]model.Task{}
	b.subtasks = map[string]model.Subtask{}
	b.tags = map[string]model.Tag{}
	b.taskTags = map[string]model.TaskTag{}
	b.attachments = map[string]model.Attachment{}
	b.deletedTasks = map[string]bool{}
	b.dirty = false
	b.renames = map[string]string{}
}

// CanonicalID resolves a provisional id to the backend-assigned id once the
// insert has settled. Unknown ids come back unchanged.
func (b *Board) CanonicalID(id string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if canonical, ok := b.renames[id]; ok {
		return canonical
	}
	return id
}

func (b *Board) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}

func (b *Board) reject(op string, err error) {
	b.log.Warn("mutation rejected", "op", op, "error", err)
	if b.onReject != nil {
		b.onReject(Notice{Op: op, Err: err})
	}
}

// Flush blocks until all in-flight persistence calls have settled. Callers
// use it on shutdown and in tests; it makes no promise about calls started
// after it returns.
func (b *Board) Flush() { b.inflight.Wait() }

func (b *Board) ActiveProjectID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeProjectID
}

// SetActiveProject replaces every collection with a fresh load scoped to id.
// An empty id clears the board (the project list itself stays loaded). The
// load commits only if no later SetActiveProject superseded it, and only as a
// whole: any fetch failure leaves the collections empty, never partial.
func (b *Board) SetActiveProject(ctx context.Context, id string) error {
	b.mu.Lock()
	b.epoch++
	epoch := b.epoch
	b.activeProjectID = id
	keep := b.projects
	b.resetLocked()
	b.projects = keep
	b.mu.Unlock()
	b.changed()

	projects, err := gateway.ListProjects(ctx, b.gw)
	if err != nil {
		return err
	}
	var (
		tasks       []model.Task
		subtasks    []model.Subtask
		tags        []model.Tag
		taskTags    []model.TaskTag
		attachments []model.Attachment
	)
	if id != "" {
		if tasks, err = gateway.ListTasks(ctx, b.gw, id); err != nil {
			return err
		}
		if subtasks, err = gateway.ListSubtasks(ctx, b.gw); err != nil {
			return err
		}
		if tags, err = gateway.ListTags(ctx, b.gw); err != nil {
			return err
		}
		if taskTags, err = gateway.ListTaskTags(ctx, b.gw); err != nil {
			return err
		}
		if attachments, err = gateway.ListAttachments(ctx, b.gw); err != nil {
			return err
		}
	}

	b.mu.Lock()
	if b.epoch != epoch {
		// A later switch supersedes this load.
		b.mu.Unlock()
		return nil
	}
	for _, p := range projects {
		b.projects[p.ID] = p
	}
	for _, t := range tasks {
		b.tasks[t.ID] = t
	}
	for _, s := range subtasks {
		b.subtasks[s.ID] = s
	}
	for _, t := range tags {
		b.tags[t.ID] = t
	}
	for _, tt := range taskTags {
		b.taskTags[tt.Key()] = tt
	}
	for _, a := range attachments {
		b.attachments[a.ID] = a
	}
	b.mu.Unlock()
	b.changed()
	return nil
}

// LoadProjects refreshes the project list without touching task state. Used
// before any project is active.
func (b *Board) LoadProjects(ctx context.Context) error {
	projects, err := gateway.ListProjects(ctx, b.gw)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.projects = map[string]model.Project{}
	for _, p := range projects {
		b.projects[p.ID] = p
	}
	b.mu.Unlock()
	b.changed()
	return nil
}

// ApplyRemoteEvent folds one change-feed event into the collections.
// Idempotent and order-tolerant: an insert for a present id overwrites, an
// update for an absent id inserts, a delete for an absent id is a no-op.
// Remote state always wins over local optimistic state for the same id.
func (b *Board) ApplyRemoteEvent(ev feed.Event) {
	b.mu.Lock()
	switch ev.Collection {
	case model.Projects:
		if ev.Kind == feed.KindDelete {
			delete(b.projects, ev.ID)
		} else if ev.Project != nil {
			b.projects[ev.ID] = *ev.Project
		}
	case model.Tasks:
		b.applyTaskEventLocked(ev)
	case model.Subtasks:
		if ev.Kind == feed.KindDelete {
			delete(b.subtasks, ev.ID)
		} else if ev.Subtask != nil {
			b.subtasks[ev.ID] = *ev.Subtask
		}
	case model.Tags:
		if ev.Kind == feed.KindDelete {
			delete(b.tags, ev.ID)
		} else if ev.Tag != nil {
			b.tags[ev.ID] = *ev.Tag
		}
	case model.TaskTags:
		if ev.TaskTag == nil {
			break
		}
		if ev.Kind == feed.KindDelete {
			delete(b.taskTags, ev.TaskTag.Key())
		} else {
			b.taskTags[ev.TaskTag.Key()] = *ev.TaskTag
		}
	case model.Attachments:
		if ev.Kind == feed.KindDelete {
			delete(b.attachments, ev.ID)
		} else if ev.Attachment != nil {
			b.attachments[ev.ID] = *ev.Attachment
		}
	}
	b.mu.Unlock()
	b.changed()
}

func (b *Board) applyTaskEventLocked(ev feed.Event) {
	if ev.Kind == feed.KindDelete {
		delete(b.tasks, ev.ID)
		b.deletedTasks[ev.ID] = true
		b.dirty = true
		return
	}
	if ev.Task == nil {
		return
	}
	t := *ev.Task
	// A replayed insert arriving after the delete for the same id must not
	// resurrect the task.
	if b.deletedTasks[t.ID] {
		return
	}
	// The task stream is project-filtered at the transport, but a move-project
	// update can still arrive carrying a foreign project id: drop the card.
	if b.activeProjectID != "" && t.ProjectID != b.activeProjectID {
		if _, ok := b.tasks[t.ID]; ok {
			delete(b.tasks, t.ID)
			b.deletedTasks[t.ID] = true
			b.dirty = true
		}
		return
	}
	b.tasks[t.ID] = t
}

// pruneOrphansLocked drops subtasks, associations, and attachments whose
// parent task has been deleted this epoch. It runs lazily from read paths
// (delete itself stays O(1)); children of tasks that merely belong to other
// projects are left alone, since their parent may still arrive.
func (b *Board) pruneOrphansLocked() {
	if !b.dirty {
		return
	}
	for id, s := range b.subtasks {
		if b.deletedTasks[s.TaskID] {
			delete(b.subtasks, id)
		}
	}
	for key, tt := range b.taskTags {
		if b.deletedTasks[tt.TaskID] {
			delete(b.taskTags, key)
		}
	}
	for id, a := range b.attachments {
		if b.deletedTasks[a.TaskID] {
			delete(b.attachments, id)
		}
	}
	b.dirty = false
}

// Reads. Every accessor copies; callers never see the live maps.

func (b *Board) Projects() []model.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Project, 0, len(b.projects))
	for _, p := range b.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Board) Project(id string) (model.Project, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[id]
	return p, ok
}

func (b *Board) Tasks() []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t)
	}
	return out
}

func (b *Board) Task(id string) (model.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	return t, ok
}

// SubtasksFor returns the task's subtasks in creation order. A deleted or
// unknown task has no subtasks, whatever is still sitting in the map.
func (b *Board) SubtasksFor(taskID string) []model.Subtask {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneOrphansLocked()
	if _, ok := b.tasks[taskID]; !ok {
		return nil
	}
	var out []model.Subtask
	for _, s := range b.subtasks {
		if s.TaskID == taskID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (b *Board) AllTags() []model.Tag {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Tag, 0, len(b.tags))
	for _, t := range b.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *Board) TagsFor(taskID string) []model.Tag {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneOrphansLocked()
	if _, ok := b.tasks[taskID]; !ok {
		return nil
	}
	var out []model.Tag
	for _, tt := range b.taskTags {
		if tt.TaskID != taskID {
			continue
		}
		if tag, ok := b.tags[tt.TagID]; ok {
			out = append(out, tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TaskTags returns the visible association pairs (both endpoints present).
func (b *Board) TaskTags() []model.TaskTag {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneOrphansLocked()
	var out []model.TaskTag
	for _, tt := range b.taskTags {
		if _, ok := b.tasks[tt.TaskID]; !ok {
			continue
		}
		if _, ok := b.tags[tt.TagID]; !ok {
			continue
		}
		out = append(out, tt)
	}
	return out
}

// AttachmentsFor returns the task's attachments newest-first.
func (b *Board) AttachmentsFor(taskID string) []model.Attachment {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneOrphansLocked()
	if _, ok := b.tasks[taskID]; !ok {
		return nil
	}
	var out []model.Attachment
	for _, a := range b.attachments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// AttachmentURL resolves an attachment's public URL from its storage key.
func (b *Board) AttachmentURL(a model.Attachment) string {
	if b.objects == nil {
		return ""
	}
	return b.objects.PublicURL(a.FilePath)
}
