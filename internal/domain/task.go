package domain

import (
	"slices"
	"strings"
	"time"
)

// Task is one work item inside a list or sprint.
type Task struct {
	ID        string     `json:"id" validate:"required"`
	Name      string     `json:"name"`
	Status    string     `json:"status,omitempty"`
	Priority  string     `json:"priority,omitempty"`
	Assignees []string   `json:"assignees"`
	DueAt     *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"date_created" validate:"required"`
}

// TaskIndex maps a list id to the ordered tasks fetched for that list.
type TaskIndex map[string][]Task

// Total returns the number of tasks across every list.
func (idx TaskIndex) Total() int {
	total := 0
	for _, tasks := range idx {
		total += len(tasks)
	}
	return total
}

// Keys returns index keys ordered by the given list sequence, then any
// remaining keys sorted lexically.
func (idx TaskIndex) Keys(lists []List) []string {
	out := make([]string, 0, len(idx))
	seen := make(map[string]struct{}, len(idx))
	for _, list := range lists {
		if _, ok := idx[list.ID]; !ok {
			continue
		}
		if _, dup := seen[list.ID]; dup {
			continue
		}
		seen[list.ID] = struct{}{}
		out = append(out, list.ID)
	}
	rest := make([]string, 0)
	for key := range idx {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

// Normalized returns a copy with trimmed text, UTC times, and a non-nil
// assignee set.
func (t Task) Normalized() Task {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.Status = strings.TrimSpace(t.Status)
	t.Priority = strings.TrimSpace(t.Priority)
	assignees := make([]string, 0, len(t.Assignees))
	for _, name := range t.Assignees {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		assignees = append(assignees, name)
	}
	t.Assignees = assignees
	t.DueAt = utcPtr(t.DueAt)
	t.CreatedAt = t.CreatedAt.UTC()
	return t
}

// utcPtr copies a nullable timestamp into UTC.
func utcPtr(in *time.Time) *time.Time {
	if in == nil || in.IsZero() {
		return nil
	}
	out := in.UTC()
	return &out
}
