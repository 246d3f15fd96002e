package model

import (
	"fmt"
	"strings"
	"time"
)

// Record is the loosely typed row shape the gateway and change feed deliver.
// Decoding into the typed model happens at those boundaries; a Record never
// reaches the reconciler's collections undecoded.
type Record map[string]any

func (r Record) str(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (r Record) requireStr(key string) (string, error) {
	s, ok := r.str(key)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("missing field %q", key)
	}
	return s, nil
}

func (r Record) boolean(key string) bool {
	v, ok := r[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (r Record) timestamp(key string) time.Time {
	s, ok := r.str(key)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ID extracts the record's id without a full decode. Delete events often carry
// only the id, so this is the one field required of every payload.
func (r Record) ID() (string, error) {
	return r.requireStr("id")
}

func DecodeProject(r Record) (Project, error) {
	id, err := r.requireStr("id")
	if err != nil {
		return Project{}, fmt.Errorf("project: %w", err)
	}
	name, err := r.requireStr("name")
	if err != nil {
		return Project{}, fmt.Errorf("project %s: %w", id, err)
	}
	return Project{ID: id, Name: name}, nil
}

func DecodeTask(r Record) (Task, error) {
	id, err := r.requireStr("id")
	if err != nil {
		return Task{}, fmt.Errorf("task: %w", err)
	}
	title, err := r.requireStr("title")
	if err != nil {
		return Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	projectID, err := r.requireStr("project_id")
	if err != nil {
		return Task{}, fmt.Errorf("task %s: %w", id, err)
	}
	t := Task{ID: id, Title: title, ProjectID: projectID}
	if d, ok := r.str("description"); ok {
		t.Description = d
	}
	p, _ := r.str("priority")
	t.Priority = Priority(p)
	if !t.Priority.Valid() {
		return Task{}, fmt.Errorf("task %s: invalid priority %q", id, p)
	}
	s, _ := r.str("status")
	t.Status = Status(s)
	if !t.Status.Valid() {
		return Task{}, fmt.Errorf("task %s: invalid status %q", id, s)
	}
	if raw, ok := r.str("deadline"); ok && strings.TrimSpace(raw) != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return Task{}, fmt.Errorf("task %s: %w", id, err)
		}
		t.Deadline = &d
	}
	return t, nil
}

func DecodeSubtask(r Record) (Subtask, error) {
	id, err := r.requireStr("id")
	if err != nil {
		return Subtask{}, fmt.Errorf("subtask: %w", err)
	}
	taskID, err := r.requireStr("task_id")
	if err != nil {
		return Subtask{}, fmt.Errorf("subtask %s: %w", id, err)
	}
	title, err := r.requireStr("title")
	if err != nil {
		return Subtask{}, fmt.Errorf("subtask %s: %w", id, err)
	}
	return Subtask{
		ID:        id,
		TaskID:    taskID,
		Title:     title,
		Done:      r.boolean("done"),
		CreatedAt: r.timestamp("created_at"),
	}, nil
}

func DecodeTag(r Record) (Tag, error) {
	id, err := r.requireStr("id")
	if err != nil {
		return Tag{}, fmt.Errorf("tag: %w", err)
	}
	name, err := r.requireStr("name")
	if err != nil {
		return Tag{}, fmt.Errorf("tag %s: %w", id, err)
	}
	color, _ := r.str("color")
	return Tag{ID: id, Name: name, Color: color}, nil
}

func DecodeTaskTag(r Record) (TaskTag, error) {
	taskID, err := r.requireStr("task_id")
	if err != nil {
		return TaskTag{}, fmt.Errorf("task_tag: %w", err)
	}
	tagID, err := r.requireStr("tag_id")
	if err != nil {
		return TaskTag{}, fmt.Errorf("task_tag: %w", err)
	}
	return TaskTag{TaskID: taskID, TagID: tagID}, nil
}

func DecodeAttachment(r Record) (Attachment, error) {
	id, err := r.requireStr("id")
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment: %w", err)
	}
	taskID, err := r.requireStr("task_id")
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: %w", id, err)
	}
	name, err := r.requireStr("file_name")
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: %w", id, err)
	}
	path, err := r.requireStr("file_path")
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: %w", id, err)
	}
	return Attachment{
		ID:        id,
		TaskID:    taskID,
		FileName:  name,
		FilePath:  path,
		CreatedAt: r.timestamp("created_at"),
	}, nil
}

// Record builds the insert payload for a task. The id is omitted: the backend
// assigns canonical ids, and provisional ids never leave the client.
func (t Task) Record() Record {
	r := Record{
		"title":      t.Title,
		"priority":   string(t.Priority),
		"status":     string(t.Status),
		"project_id": t.ProjectID,
	}
	if t.Description != "" {
		r["description"] = t.Description
	}
	if t.Deadline != nil {
		r["deadline"] = string(*t.Deadline)
	}
	return r
}

func (s Subtask) Record() Record {
	return Record{
		"task_id": s.TaskID,
		"title":   s.Title,
		"done":    s.Done,
	}
}

func (tg Tag) Record() Record {
	return Record{"name": tg.Name, "color": tg.Color}
}

func (tt TaskTag) Record() Record {
	return Record{"task_id": tt.TaskID, "tag_id": tt.TagID}
}

func (a Attachment) Record() Record {
	return Record{
		"task_id":   a.TaskID,
		"file_name": a.FileName,
		"file_path": a.FilePath,
	}
}

func (p Project) Record() Record {
	return Record{"name": p.Name}
}
