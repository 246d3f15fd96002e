// Package view derives render-ready projections from the reconciled model.
// Everything here is a pure function of its inputs; nothing mutates board
// state.
package view

import (
	"sort"
	"strings"
	"time"

	"taskboard-cli/internal/model"
)

// Filter narrows the projected task set. Zero fields match everything; set
// fields compose by logical AND.
type Filter struct {
	// Query matches case-insensitively against title OR description substring.
	Query string

	// Priority is exact-match; empty means all.
	Priority model.Priority

	// TagID requires membership in the task-tag association.
	TagID string

	// OverdueOnly keeps tasks whose deadline has passed, treating a date-only
	// deadline as end of that day.
	OverdueOnly bool

	// Now anchors the overdue check; zero means time.Now().
	Now time.Time
}

func (f Filter) now() time.Time {
	if f.Now.IsZero() {
		return time.Now()
	}
	return f.Now
}

func (f Filter) IsZero() bool {
	return f.Query == "" && f.Priority == "" && f.TagID == "" && !f.OverdueOnly
}

// Matches reports whether one task passes every set filter.
func (f Filter) Matches(t model.Task, links []model.TaskTag) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		title := strings.ToLower(t.Title)
		desc := strings.ToLower(t.Description)
		if !strings.Contains(title, q) && !strings.Contains(desc, q) {
			return false
		}
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.TagID != "" {
		member := false
		for _, l := range links {
			if l.TaskID == t.ID && l.TagID == f.TagID {
				member = true
				break
			}
		}
		if !member {
			return false
		}
	}
	if f.OverdueOnly {
		if t.Deadline == nil || !t.Deadline.Overdue(f.now()) {
			return false
		}
	}
	return true
}

// Column is one rendered status lane.
type Column struct {
	Status model.Status
	Title  string
	Tasks  []model.Task
}

// Columns groups the filtered tasks into the three status lanes. Within a
// lane, tasks order by ascending deadline with undated tasks last; ties break
// by title then id so the projection is deterministic.
func Columns(tasks []model.Task, links []model.TaskTag, f Filter) []Column {
	cols := make([]Column, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		cols = append(cols, Column{Status: s, Title: s.Label()})
	}
	for _, t := range tasks {
		if !f.Matches(t, links) {
			continue
		}
		for i := range cols {
			if cols[i].Status == t.Status {
				cols[i].Tasks = append(cols[i].Tasks, t)
				break
			}
		}
	}
	for i := range cols {
		sortTasks(cols[i].Tasks)
	}
	return cols
}

func sortTasks(tasks []model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return lessByDeadline(tasks[i], tasks[j])
	})
}

func lessByDeadline(a, b model.Task) bool {
	switch {
	case a.Deadline == nil && b.Deadline == nil:
		// fall through to tie-break
	case a.Deadline == nil:
		return false // undated sorts after all dated tasks
	case b.Deadline == nil:
		return true
	case *a.Deadline != *b.Deadline:
		return a.Deadline.Before(*b.Deadline)
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.ID < b.ID
}

// ByDate indexes dated tasks by their deadline for calendar rendering.
func ByDate(tasks []model.Task, f Filter, links []model.TaskTag) map[model.Date][]model.Task {
	idx := map[model.Date][]model.Task{}
	for _, t := range tasks {
		if t.Deadline == nil || !f.Matches(t, links) {
			continue
		}
		idx[*t.Deadline] = append(idx[*t.Deadline], t)
	}
	for d := range idx {
		sortTasks(idx[d])
	}
	return idx
}

// Month identifies one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

func MonthOf(t time.Time) Month { return Month{Year: t.Year(), Month: t.Month()} }

func (m Month) First() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.Local)
}

func (m Month) Next() Month { return MonthOf(m.First().AddDate(0, 1, 0)) }
func (m Month) Prev() Month { return MonthOf(m.First().AddDate(0, -1, 0)) }

func (m Month) Contains(d model.Date) bool {
	t := d.Time()
	return t.Year() == m.Year && t.Month() == m.Month
}

// Grid returns the Monday-first day sequence covering the month in whole
// weeks, the shape the calendar renders.
func (m Month) Grid() []model.Date {
	first := m.First()
	last := first.AddDate(0, 1, -1)
	// Weekday with Monday=0.
	start := first.AddDate(0, 0, -((int(first.Weekday()) + 6) % 7))
	end := last.AddDate(0, 0, 6-((int(last.Weekday())+6)%7))
	var days []model.Date
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, model.DateOf(d))
	}
	return days
}
