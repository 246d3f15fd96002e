package model

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in      string
		want    Date
		wantErr bool
	}{
		{"2026-09-10", "2026-09-10", false},
		{"  2026-09-10 ", "2026-09-10", false},
		{"2026-09-10T15:04:05Z", "2026-09-10", false},
		{"2026-09-10T15:04:05+02:00", "2026-09-10", false},
		{"2026-9-1", "", true},
		{"tomorrow", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDate(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDateOverdue(t *testing.T) {
	d := Date("2026-09-08")
	if d.Overdue(time.Date(2026, 9, 8, 23, 59, 0, 0, time.Local)) {
		t.Fatalf("not overdue until the day ends")
	}
	if !d.Overdue(time.Date(2026, 9, 9, 0, 0, 1, 0, time.Local)) {
		t.Fatalf("overdue the next day")
	}
	if Date("").Overdue(time.Now()) {
		t.Fatalf("zero date is never overdue")
	}
}

func TestDecodeTaskStrictness(t *testing.T) {
	full := Record{
		"id": "t1", "title": "Ship", "priority": "high", "status": "in-progress",
		"project_id": "p1", "description": "notes", "deadline": "2026-09-10T00:00:00Z",
	}
	task, err := DecodeTask(full)
	if err != nil {
		t.Fatalf("DecodeTask: %v", err)
	}
	if task.Status != StatusInProgress || task.Priority != PriorityHigh {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.Deadline == nil || *task.Deadline != "2026-09-10" {
		t.Fatalf("deadline should truncate timestamps: %+v", task.Deadline)
	}

	broken := []Record{
		{"title": "no id", "priority": "high", "status": "todo", "project_id": "p1"},
		{"id": "t1", "priority": "high", "status": "todo", "project_id": "p1"},
		{"id": "t1", "title": "x", "priority": "urgent", "status": "todo", "project_id": "p1"},
		{"id": "t1", "title": "x", "priority": "high", "status": "doing", "project_id": "p1"},
		{"id": "t1", "title": "x", "priority": "high", "status": "todo"},
		{"id": "t1", "title": "x", "priority": "high", "status": "todo", "project_id": "p1", "deadline": "soon"},
	}
	for i, r := range broken {
		if _, err := DecodeTask(r); err == nil {
			t.Fatalf("case %d: expected decode error for %v", i, r)
		}
	}
}

func TestDecodeSubtaskDefaults(t *testing.T) {
	s, err := DecodeSubtask(Record{"id": "s1", "task_id": "t1", "title": "step", "created_at": "2026-01-02T10:00:00Z"})
	if err != nil {
		t.Fatalf("DecodeSubtask: %v", err)
	}
	if s.Done {
		t.Fatalf("missing done should default to false")
	}
	if s.CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}
}

func TestTaskRecordOmitsID(t *testing.T) {
	d := Date("2026-09-10")
	task := Task{ID: "local-abc", Title: "Ship", Priority: PriorityHigh, Deadline: &d, Status: StatusTodo, ProjectID: "p1"}
	rec := task.Record()
	if _, ok := rec["id"]; ok {
		t.Fatalf("provisional id must not reach the backend")
	}
	if rec["title"] != "Ship" || rec["project_id"] != "p1" || rec["deadline"] != "2026-09-10" {
		t.Fatalf("unexpected payload: %v", rec)
	}
	if _, ok := rec["description"]; ok {
		t.Fatalf("empty description should be omitted")
	}
}

func TestTaskTagKey(t *testing.T) {
	a := TaskTag{TaskID: "t1", TagID: "g1"}
	b := TaskTag{TaskID: "t1", TagID: "g2"}
	if a.Key() == b.Key() {
		t.Fatalf("distinct pairs must have distinct keys")
	}
	// No separator collision: (t1x, y) vs (t1, xy).
	c := TaskTag{TaskID: "t1x", TagID: "y"}
	d := TaskTag{TaskID: "t1", TagID: "xy"}
	if c.Key() == d.Key() {
		t.Fatalf("key separator is ambiguous")
	}
}
