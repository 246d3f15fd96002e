package board

import (
	"context"
	"errors"

	"taskboard-cli/internal/gateway"
	"taskboard-cli/internal/model"
)

// mutation is the one optimistic-update primitive every local operation goes
// through: apply in memory, persist through the gateway, and either commit
// the canonical result or restore the snapshot. Centralizing this here is
// what makes rollback and idempotence uniform instead of per call site.
type mutation struct {
	op string

	// apply performs the optimistic in-memory transition. Runs under the lock
	// and must complete synchronously (no suspension mid-mutation).
	apply func()

	// rollback restores the exact pre-apply snapshot. Runs under the lock.
	rollback func()

	// persist makes the gateway call(s). Runs outside the lock; the returned
	// commit (may be nil) runs under the lock on success, e.g. to re-key a
	// provisional record to its canonical id.
	persist func(ctx context.Context) (commit func(), err error)
}

// run validates nothing itself; callers validate input before building the
// mutation so a rejected input never reaches the optimistic apply.
func (b *Board) run(ctx context.Context, m mutation) error {
	if _, ok := b.session.Current(); !ok {
		return ErrNoSession
	}

	b.mu.Lock()
	epoch := b.epoch
	m.apply()
	b.mu.Unlock()
	b.changed()

	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		commit, err := m.persist(ctx)

		b.mu.Lock()
		if b.epoch != epoch {
			// The project changed while the call was in flight. The board
			// this mutation targeted no longer exists in memory; neither a
			// commit nor a rollback may touch the new project's state.
			b.mu.Unlock()
			b.log.Debug("discarding stale mutation completion", "op", m.op)
			return
		}
		if err != nil {
			m.rollback()
			b.mu.Unlock()
			b.changed()
			b.reject(m.op, err)
			return
		}
		if commit != nil {
			commit()
		}
		b.mu.Unlock()
		b.changed()
	}()
	return nil
}

// provisionalID marks records created optimistically, before the backend has
// assigned a canonical id.
func provisionalID() string { return "local-" + newUUID() }

func isProvisional(id string) bool {
	return len(id) > 6 && id[:6] == "local-"
}

// TaskInput is a create payload. Title and deadline are required (matching
// the backend's constraints) so validation fails before any optimistic
// record exists.
type TaskInput struct {
	Title       string         `validate:"required"`
	Description string
	Priority    model.Priority `validate:"required,oneof=high medium low"`
	Deadline    model.Date     `validate:"required"`
	Status      model.Status   `validate:"required,oneof=todo in-progress done"`
}

// CreateTask optimistically adds a task under a provisional id and returns
// that id. When the insert confirms, the record is re-keyed to the canonical
// server-assigned id.
func (b *Board) CreateTask(ctx context.Context, in TaskInput) (string, error) {
	if err := validateInput(in); err != nil {
		return "", err
	}
	b.mu.Lock()
	projectID := b.activeProjectID
	b.mu.Unlock()
	if projectID == "" {
		return "", gateway.ValidationError{Field: "project", Detail: "no active project"}
	}

	deadline := in.Deadline
	t := model.Task{
		ID:          provisionalID(),
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Deadline:    &deadline,
		Status:      in.Status,
		ProjectID:   projectID,
	}
	err := b.run(ctx, mutation{
		op:       "task.create",
		apply:    func() { b.tasks[t.ID] = t },
		rollback: func() { delete(b.tasks, t.ID) },
		persist: func(ctx context.Context) (func(), error) {
			rec, err := b.gw.Insert(ctx, model.Tasks, t.Record())
			if err != nil {
				return nil, err
			}
			canonical, err := model.DecodeTask(rec)
			if err != nil {
				return nil, err
			}
			return func() {
				b.renames[t.ID] = canonical.ID
				// The provisional record may have been superseded (remote
				// event, delete) while the insert was in flight; only swap
				// it out if it is still there.
				if _, ok := b.tasks[t.ID]; ok {
					delete(b.tasks, t.ID)
					b.tasks[canonical.ID] = canonical
				}
			}, nil
		},
	})
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// TaskPatch carries the editable task fields; nil fields are untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *model.Priority
	Deadline    *model.Date
}

func (p TaskPatch) record() model.Record {
	rec := model.Record{}
	if p.Title != nil {
		rec["title"] = *p.Title
	}
	if p.Description != nil {
		rec["description"] = *p.Description
	}
	if p.Priority != nil {
		rec["priority"] = string(*p.Priority)
	}
	if p.Deadline != nil {
		rec["deadline"] = string(*p.Deadline)
	}
	return rec
}

func (p TaskPatch) applyTo(t model.Task) (model.Task, error) {
	if p.Title != nil {
		if *p.Title == "" {
			return t, gateway.ValidationError{Field: "title", Detail: "must not be empty"}
		}
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return t, gateway.ValidationError{Field: "priority", Detail: "unknown priority"}
		}
		t.Priority = *p.Priority
	}
	if p.Deadline != nil {
		d := *p.Deadline
		t.Deadline = &d
	}
	return t, nil
}

func (b *Board) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	b.mu.Lock()
	prev, ok := b.tasks[id]
	b.mu.Unlock()
	if !ok {
		return gateway.NotFoundError{Collection: model.Tasks, ID: id}
	}
	next, err := patch.applyTo(prev)
	if err != nil {
		return err
	}
	return b.run(ctx, mutation{
		op:       "task.update",
		apply:    func() { b.tasks[id] = next },
		rollback: func() { b.tasks[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			return nil, b.gw.Update(ctx, model.Tasks, id, patch.record())
		},
	})
}

// MoveTaskStatus is the drag-and-drop transition: exactly one status update
// when the target column differs, nothing at all when it does not.
func (b *Board) MoveTaskStatus(ctx context.Context, id string, to model.Status) error {
	if !to.Valid() {
		return gateway.ValidationError{Field: "status", Detail: "unknown status"}
	}
	b.mu.Lock()
	prev, ok := b.tasks[id]
	b.mu.Unlock()
	if !ok {
		return gateway.NotFoundError{Collection: model.Tasks, ID: id}
	}
	if prev.Status == to {
		return nil
	}
	next := prev
	next.Status = to
	return b.run(ctx, mutation{
		op:       "task.move-status",
		apply:    func() { b.tasks[id] = next },
		rollback: func() { b.tasks[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			return nil, b.gw.Update(ctx, model.Tasks, id, model.Record{"status": string(to)})
		},
	})
}

// MoveTaskProject atomically re-homes a task. Moving it off the active
// project removes the card from the board; rollback restores it.
func (b *Board) MoveTaskProject(ctx context.Context, id, projectID string) error {
	if projectID == "" {
		return gateway.ValidationError{Field: "project_id", Detail: "must not be empty"}
	}
	b.mu.Lock()
	prev, ok := b.tasks[id]
	active := b.activeProjectID
	b.mu.Unlock()
	if !ok {
		return gateway.NotFoundError{Collection: model.Tasks, ID: id}
	}
	if prev.ProjectID == projectID {
		return nil
	}
	next := prev
	next.ProjectID = projectID
	leaving := projectID != active
	return b.run(ctx, mutation{
		op: "task.move-project",
		apply: func() {
			if leaving {
				delete(b.tasks, id)
			} else {
				b.tasks[id] = next
			}
		},
		rollback: func() { b.tasks[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			return nil, b.gw.Update(ctx, model.Tasks, id, model.Record{"project_id": projectID})
		},
	})
}

// DeleteTask removes the task now; its subtasks, tag links, and attachments
// become invisible immediately and are pruned lazily. A NotFound from the
// gateway means the delete was already satisfied remotely.
func (b *Board) DeleteTask(ctx context.Context, id string) error {
	b.mu.Lock()
	prev, ok := b.tasks[id]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return b.run(ctx, mutation{
		op: "task.delete",
		apply: func() {
			// Removing the task is enough to hide its children: every read
			// path filters through the live task set. The tombstone waits for
			// the commit; set any earlier, an interleaved read would prune the
			// children while the delete could still be rolled back.
			delete(b.tasks, id)
		},
		rollback: func() {
			b.tasks[id] = prev
		},
		persist: func(ctx context.Context) (func(), error) {
			if err := b.gw.Delete(ctx, model.Tasks, id); err != nil && !gateway.IsNotFound(err) {
				return nil, err
			}
			return func() {
				b.deletedTasks[id] = true
				b.dirty = true
			}, nil
		},
	})
}

type SubtaskInput struct {
	TaskID string `validate:"required"`
	Title  string `validate:"required"`
}

func (b *Board) AddSubtask(ctx context.Context, in SubtaskInput) (string, error) {
	if err := validateInput(in); err != nil {
		return "", err
	}
	b.mu.Lock()
	_, ok := b.tasks[in.TaskID]
	b.mu.Unlock()
	if !ok {
		return "", gateway.NotFoundError{Collection: model.Tasks, ID: in.TaskID}
	}
	s := model.Subtask{ID: provisionalID(), TaskID: in.TaskID, Title: in.Title, CreatedAt: nowUTC()}
	err := b.run(ctx, mutation{
		op:       "subtask.create",
		apply:    func() { b.subtasks[s.ID] = s },
		rollback: func() { delete(b.subtasks, s.ID) },
		persist: func(ctx context.Context) (func(), error) {
			rec, err := b.gw.Insert(ctx, model.Subtasks, s.Record())
			if err != nil {
				return nil, err
			}
			canonical, err := model.DecodeSubtask(rec)
			if err != nil {
				return nil, err
			}
			return func() {
				b.renames[s.ID] = canonical.ID
				if _, ok := b.subtasks[s.ID]; ok {
					delete(b.subtasks, s.ID)
					b.subtasks[canonical.ID] = canonical
				}
			}, nil
		},
	})
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

func (b *Board) ToggleSubtask(ctx context.Context, id string) error {
	b.mu.Lock()
	prev, ok := b.subtasks[id]
	b.mu.Unlock()
	if !ok {
		return gateway.NotFoundError{Collection: model.Subtasks, ID: id}
	}
	next := prev
	next.Done = !prev.Done
	return b.run(ctx, mutation{
		op:       "subtask.toggle",
		apply:    func() { b.subtasks[id] = next },
		rollback: func() { b.subtasks[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			return nil, b.gw.Update(ctx, model.Subtasks, id, model.Record{"done": next.Done})
		},
	})
}

func (b *Board) DeleteSubtask(ctx context.Context, id string) error {
	b.mu.Lock()
	prev, ok := b.subtasks[id]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return b.run(ctx, mutation{
		op:       "subtask.delete",
		apply:    func() { delete(b.subtasks, id) },
		rollback: func() { b.subtasks[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			if err := b.gw.Delete(ctx, model.Subtasks, id); err != nil && !gateway.IsNotFound(err) {
				return nil, err
			}
			return nil, nil
		},
	})
}

type TagInput struct {
	Name  string `validate:"required"`
	Color string `validate:"omitempty,hexcolor"`
}

func (b *Board) CreateTag(ctx context.Context, in TagInput) (string, error) {
	if err := validateInput(in); err != nil {
		return "", err
	}
	tag := model.Tag{ID: provisionalID(), Name: in.Name, Color: in.Color}
	err := b.run(ctx, mutation{
		op:       "tag.create",
		apply:    func() { b.tags[tag.ID] = tag },
		rollback: func() { delete(b.tags, tag.ID) },
		persist: func(ctx context.Context) (func(), error) {
			rec, err := b.gw.Insert(ctx, model.Tags, tag.Record())
			if err != nil {
				return nil, err
			}
			canonical, err := model.DecodeTag(rec)
			if err != nil {
				return nil, err
			}
			return func() {
				b.renames[tag.ID] = canonical.ID
				if _, ok := b.tags[tag.ID]; ok {
					delete(b.tags, tag.ID)
					b.tags[canonical.ID] = canonical
				}
			}, nil
		},
	})
	if err != nil {
		return "", err
	}
	return tag.ID, nil
}

func (b *Board) UpdateTag(ctx context.Context, id string, in TagInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	b.mu.Lock()
	prev, ok := b.tags[id]
	b.mu.Unlock()
	if !ok {
		return gateway.NotFoundError{Collection: model.Tags, ID: id}
	}
	next := prev
	next.Name = in.Name
	next.Color = in.Color
	return b.run(ctx, mutation{
		op:       "tag.update",
		apply:    func() { b.tags[id] = next },
		rollback: func() { b.tags[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			return nil, b.gw.Update(ctx, model.Tags, id, model.Record{"name": in.Name, "color": in.Color})
		},
	})
}

// DeleteTag removes the tag from the shared vocabulary; memberships pointing
// at it become invisible (TagsFor resolves through the tag map) and their
// delete events arrive from the backend cascade.
func (b *Board) DeleteTag(ctx context.Context, id string) error {
	b.mu.Lock()
	prev, ok := b.tags[id]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return b.run(ctx, mutation{
		op:       "tag.delete",
		apply:    func() { delete(b.tags, id) },
		rollback: func() { b.tags[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			if err := b.gw.Delete(ctx, model.Tags, id); err != nil && !gateway.IsNotFound(err) {
				return nil, err
			}
			return nil, nil
		},
	})
}

func (b *Board) TagTask(ctx context.Context, taskID, tagID string) error {
	b.mu.Lock()
	_, taskOK := b.tasks[taskID]
	_, tagOK := b.tags[tagID]
	b.mu.Unlock()
	if !taskOK {
		return gateway.NotFoundError{Collection: model.Tasks, ID: taskID}
	}
	if !tagOK {
		return gateway.NotFoundError{Collection: model.Tags, ID: tagID}
	}
	tt := model.TaskTag{TaskID: taskID, TagID: tagID}
	b.mu.Lock()
	_, present := b.taskTags[tt.Key()]
	b.mu.Unlock()
	if present {
		return nil
	}
	return b.run(ctx, mutation{
		op:       "task_tag.add",
		apply:    func() { b.taskTags[tt.Key()] = tt },
		rollback: func() { delete(b.taskTags, tt.Key()) },
		persist: func(ctx context.Context) (func(), error) {
			_, err := b.gw.Insert(ctx, model.TaskTags, tt.Record())
			// A uniqueness violation means another client added the same
			// membership first; the desired state already holds.
			var ce gateway.ConstraintError
			if err != nil && errors.As(err, &ce) {
				return nil, nil
			}
			return nil, err
		},
	})
}

func (b *Board) UntagTask(ctx context.Context, taskID, tagID string) error {
	tt := model.TaskTag{TaskID: taskID, TagID: tagID}
	b.mu.Lock()
	_, present := b.taskTags[tt.Key()]
	b.mu.Unlock()
	if !present {
		return nil
	}
	return b.run(ctx, mutation{
		op:       "task_tag.remove",
		apply:    func() { delete(b.taskTags, tt.Key()) },
		rollback: func() { b.taskTags[tt.Key()] = tt },
		persist: func(ctx context.Context) (func(), error) {
			err := b.gw.DeleteWhere(ctx, model.TaskTags, gateway.Filter{TaskID: taskID, TagID: tagID})
			if err != nil && gateway.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		},
	})
}

type AttachmentInput struct {
	TaskID      string `validate:"required"`
	FileName    string `validate:"required"`
	ContentType string
	Data        []byte `validate:"required"`
}

// AttachFile uploads the payload to object storage and inserts the attachment
// row. If the insert is rejected after the upload succeeded, the uploaded
// object is removed again so storage and store cannot drift apart.
func (b *Board) AttachFile(ctx context.Context, in AttachmentInput) (string, error) {
	if err := validateInput(in); err != nil {
		return "", err
	}
	b.mu.Lock()
	_, ok := b.tasks[in.TaskID]
	b.mu.Unlock()
	if !ok {
		return "", gateway.NotFoundError{Collection: model.Tasks, ID: in.TaskID}
	}
	key := in.TaskID + "/" + newUUID() + "/" + in.FileName
	a := model.Attachment{
		ID:        provisionalID(),
		TaskID:    in.TaskID,
		FileName:  in.FileName,
		FilePath:  key,
		CreatedAt: nowUTC(),
	}
	err := b.run(ctx, mutation{
		op:       "attachment.add",
		apply:    func() { b.attachments[a.ID] = a },
		rollback: func() { delete(b.attachments, a.ID) },
		persist: func(ctx context.Context) (func(), error) {
			if err := b.objects.Upload(ctx, key, in.Data, in.ContentType); err != nil {
				return nil, err
			}
			rec, err := b.gw.Insert(ctx, model.Attachments, a.Record())
			if err != nil {
				if rmErr := b.objects.Remove(ctx, key); rmErr != nil {
					b.log.Warn("orphaned object after failed attachment insert", "key", key, "error", rmErr)
				}
				return nil, err
			}
			canonical, err := model.DecodeAttachment(rec)
			if err != nil {
				return nil, err
			}
			return func() {
				b.renames[a.ID] = canonical.ID
				if _, ok := b.attachments[a.ID]; ok {
					delete(b.attachments, a.ID)
					b.attachments[canonical.ID] = canonical
				}
			}, nil
		},
	})
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

func (b *Board) DeleteAttachment(ctx context.Context, id string) error {
	b.mu.Lock()
	prev, ok := b.attachments[id]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return b.run(ctx, mutation{
		op:       "attachment.delete",
		apply:    func() { delete(b.attachments, id) },
		rollback: func() { b.attachments[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			if err := b.gw.Delete(ctx, model.Attachments, id); err != nil && !gateway.IsNotFound(err) {
				return nil, err
			}
			// Row first, object second: a dangling row pointing at a missing
			// object is worse than the reverse.
			if err := b.objects.Remove(ctx, prev.FilePath); err != nil {
				b.log.Warn("object removal failed", "key", prev.FilePath, "error", err)
			}
			return nil, nil
		},
	})
}

type ProjectInput struct {
	Name string `validate:"required"`
}

func (b *Board) CreateProject(ctx context.Context, in ProjectInput) (string, error) {
	if err := validateInput(in); err != nil {
		return "", err
	}
	p := model.Project{ID: provisionalID(), Name: in.Name}
	err := b.run(ctx, mutation{
		op:       "project.create",
		apply:    func() { b.projects[p.ID] = p },
		rollback: func() { delete(b.projects, p.ID) },
		persist: func(ctx context.Context) (func(), error) {
			rec, err := b.gw.Insert(ctx, model.Projects, p.Record())
			if err != nil {
				return nil, err
			}
			canonical, err := model.DecodeProject(rec)
			if err != nil {
				return nil, err
			}
			return func() {
				b.renames[p.ID] = canonical.ID
				if _, ok := b.projects[p.ID]; ok {
					delete(b.projects, p.ID)
					b.projects[canonical.ID] = canonical
				}
			}, nil
		},
	})
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

func (b *Board) DeleteProject(ctx context.Context, id string) error {
	b.mu.Lock()
	prev, ok := b.projects[id]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	return b.run(ctx, mutation{
		op:       "project.delete",
		apply:    func() { delete(b.projects, id) },
		rollback: func() { b.projects[id] = prev },
		persist: func(ctx context.Context) (func(), error) {
			if err := b.gw.Delete(ctx, model.Projects, id); err != nil && !gateway.IsNotFound(err) {
				return nil, err
			}
			return nil, nil
		},
	})
}
