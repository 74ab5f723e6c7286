package domain

import (
	"fmt"
	"strings"
	"time"
)

// SnapshotVersion tags the persisted structured snapshot layout.
const SnapshotVersion = "arkiv.snapshot.v1"

// Branch names used when recording degraded fetches.
const (
	BranchFolders      = "folders"
	BranchLists        = "lists"
	BranchSprints      = "sprints"
	BranchListTasks    = "list_tasks"
	BranchSprintDetail = "sprint_detail"
	BranchSprintTasks  = "sprint_tasks"
)

// BranchFailure records one sub-resource fetch that degraded to empty.
type BranchFailure struct {
	Branch  string `json:"branch"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Snapshot is the assembled point-in-time capture of one workspace.
//
// Tasks holds one key per list whose task fetch succeeded. A list whose
// fetch failed has no key and appears in FetchErrors instead.
type Snapshot struct {
	Version     string          `json:"version"`
	CapturedAt  time.Time       `json:"timestamp"`
	Workspace   Workspace       `json:"workspace"`
	Folders     []Folder        `json:"folders"`
	Lists       []List          `json:"lists"`
	Sprints     []Sprint        `json:"sprints"`
	Tasks       TaskIndex       `json:"tasks"`
	FetchErrors []BranchFailure `json:"fetch_errors,omitempty"`
}

// TotalTasks sums tasks across every task-index entry.
func (s Snapshot) TotalTasks() int {
	return s.Tasks.Total()
}

// ListByID finds one list in the list sequence.
func (s Snapshot) ListByID(id string) (List, bool) {
	for _, list := range s.Lists {
		if list.ID == id {
			return list, true
		}
	}
	return List{}, false
}

// FolderByID finds one folder in the folder sequence.
func (s Snapshot) FolderByID(id string) (Folder, bool) {
	for _, folder := range s.Folders {
		if folder.ID == id {
			return folder, true
		}
	}
	return Folder{}, false
}

// TaskListIDs returns task-index keys in list order.
func (s Snapshot) TaskListIDs() []string {
	return s.Tasks.Keys(s.Lists)
}

// Validate checks the structural invariants of a snapshot.
func (s Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}
	if s.CapturedAt.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrInvalidSnapshot)
	}
	if strings.TrimSpace(s.Workspace.ID) == "" {
		return fmt.Errorf("%w: workspace.id is required", ErrInvalidSnapshot)
	}

	listIDs := make(map[string]struct{}, len(s.Lists))
	for i, list := range s.Lists {
		if strings.TrimSpace(list.ID) == "" {
			return fmt.Errorf("%w: lists[%d].id is required", ErrInvalidSnapshot, i)
		}
		if _, dup := listIDs[list.ID]; dup {
			return fmt.Errorf("%w: duplicate list id %q", ErrInvalidSnapshot, list.ID)
		}
		listIDs[list.ID] = struct{}{}
	}
	for listID, tasks := range s.Tasks {
		if _, ok := listIDs[listID]; !ok {
			return fmt.Errorf("%w: tasks[%q] has no matching list", ErrInvalidSnapshot, listID)
		}
		for i, task := range tasks {
			if task.CreatedAt.IsZero() {
				return fmt.Errorf("%w: tasks[%q][%d] (%s)", ErrMissingCreatedDate, listID, i, task.ID)
			}
		}
	}
	for i, sprint := range s.Sprints {
		for j, task := range sprint.Tasks {
			if task.CreatedAt.IsZero() {
				return fmt.Errorf("%w: sprints[%d].tasks[%d] (%s)", ErrMissingCreatedDate, i, j, task.ID)
			}
		}
	}
	return nil
}
