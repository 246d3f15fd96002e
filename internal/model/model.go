package model

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Statuses is the board column order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusDone}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusTodo:
		return "Todo"
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	}
	return string(s)
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Date is a calendar date in YYYY-MM-DD form. Deadlines are date-only: overdue
// checks treat the deadline as the end of that day in local time.
type Date string

// ParseDate accepts YYYY-MM-DD or any ISO timestamp with a date prefix (the
// backend stores deadlines as timestamps; only the date part is meaningful).
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	if _, err := time.ParseInLocation("2006-01-02", s, time.Local); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

func DateOf(t time.Time) Date {
	return Date(t.Format("2006-01-02"))
}

func (d Date) IsZero() bool { return strings.TrimSpace(string(d)) == "" }

// Time returns midnight local time on the date. Zero dates return the zero time.
func (d Date) Time() time.Time {
	t, err := time.ParseInLocation("2006-01-02", string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) EndOfDay() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return d.Time().Add(24*time.Hour - time.Nanosecond)
}

func (d Date) Overdue(now time.Time) bool {
	if d.IsZero() {
		return false
	}
	return d.EndOfDay().Before(now)
}

// Before compares calendar order. ISO dates compare correctly as strings.
func (d Date) Before(o Date) bool { return string(d) < string(o) }

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Task belongs to exactly one project at any instant; a move swaps ProjectID
// atomically. Deadline nil means undated.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`
	Deadline    *Date    `json:"deadline,omitempty"`
	Status      Status   `json:"status"`
	ProjectID   string   `json:"project_id"`
}

type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"` // stable display order, ascending
}

// Tag is a project-independent shared vocabulary entry.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TaskTag is unordered set membership between a task and a tag. It has no
// identity beyond the pair.
type TaskTag struct {
	TaskID string `json:"task_id"`
	TagID  string `json:"tag_id"`
}

// Key is the map key for the association pair.
func (tt TaskTag) Key() string { return tt.TaskID + "\x00" + tt.TagID }

type Attachment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	FileName  string    `json:"file_name"`
	FilePath  string    `json:"file_path"` // opaque object-storage key
	CreatedAt time.Time `json:"created_at"` // display order, descending
}

// Collection names the remote collections the gateway and feed operate on.
type Collection string

const (
	Projects    Collection = "projects"
	Tasks       Collection = "tasks"
	Subtasks    Collection = "subtasks"
	Tags        Collection = "tags"
	TaskTags    Collection = "task_tags"
	Attachments Collection = "attachments"
)

// Collections lists every collection the client watches, in load order.
var Collections = []Collection{Projects, Tasks, Subtasks, Tags, TaskTags, Attachments}
