package app

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hylla/arkiv/internal/domain"
)

// validate checks record-level tags on domain values.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Assemble normalizes fetched branches into one snapshot. It performs no I/O.
// Records that fail validation are dropped; the returned warnings describe
// every dropped record, orphan task key, and dangling folder reference.
func Assemble(in Branches, capturedAt time.Time) (domain.Snapshot, []string) {
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	ws := in.Workspace
	if len(ws.Features) == 0 {
		ws.Features = nil
	} else {
		ws.Features = maps.Clone(ws.Features)
	}
	if len(ws.Statuses) == 0 {
		ws.Statuses = nil
	} else {
		ws.Statuses = slices.Clone(ws.Statuses)
	}

	folders := make([]domain.Folder, 0, len(in.Folders))
	folderIDs := make(map[string]struct{}, len(in.Folders))
	for i, folder := range in.Folders {
		if err := validateRecord(folder); err != nil {
			warn("folders[%d] dropped: %v", i, err)
			continue
		}
		folderIDs[folder.ID] = struct{}{}
		folders = append(folders, folder)
	}
	slices.SortFunc(folders, func(a, b domain.Folder) int {
		return cmp.Or(cmp.Compare(a.OrderIndex, b.OrderIndex), strings.Compare(a.ID, b.ID))
	})

	lists := make([]domain.List, 0, len(in.Lists))
	listIDs := make(map[string]struct{}, len(in.Lists))
	for i, list := range in.Lists {
		if err := validateRecord(list); err != nil {
			warn("lists[%d] dropped: %v", i, err)
			continue
		}
		if _, dup := listIDs[list.ID]; dup {
			warn("lists[%d] dropped: duplicate id %q", i, list.ID)
			continue
		}
		if list.Folder != nil {
			ref := *list.Folder
			list.Folder = &ref
			if _, ok := folderIDs[ref.ID]; !ok {
				warn("list %q references unknown folder %q", list.ID, ref.ID)
			}
		}
		listIDs[list.ID] = struct{}{}
		lists = append(lists, list)
	}
	slices.SortFunc(lists, func(a, b domain.List) int {
		return cmp.Or(cmp.Compare(a.OrderIndex, b.OrderIndex), strings.Compare(a.ID, b.ID))
	})

	tasks := make(domain.TaskIndex, len(in.Tasks))
	for listID, listTasks := range in.Tasks {
		if _, ok := listIDs[listID]; !ok {
			warn("task index key %q has no matching list; dropped", listID)
			continue
		}
		tasks[listID] = normalizeTasks(listTasks, "list "+listID, warn)
	}

	sprints := make([]domain.Sprint, 0, len(in.Sprints))
	for i, sprint := range in.Sprints {
		if err := validateRecord(sprint); err != nil {
			warn("sprints[%d] dropped: %v", i, err)
			continue
		}
		sprint.StartDate = utc(sprint.StartDate)
		sprint.EndDate = utc(sprint.EndDate)
		sprint.CreatedAt = utc(sprint.CreatedAt)
		if sprint.Details != nil {
			detail := *sprint.Details
			sprint.Details = &detail
		}
		sprint.Tasks = normalizeTasks(sprint.Tasks, "sprint "+sprint.ID, warn)
		if len(sprint.Tasks) == 0 {
			sprint.Tasks = nil
		}
		sprints = append(sprints, sprint)
	}

	var failures []domain.BranchFailure
	if len(in.Failures) > 0 {
		failures = slices.Clone(in.Failures)
	}

	return domain.Snapshot{
		Version:     domain.SnapshotVersion,
		CapturedAt:  capturedAt.UTC(),
		Workspace:   ws,
		Folders:     folders,
		Lists:       lists,
		Sprints:     sprints,
		Tasks:       tasks,
		FetchErrors: failures,
	}, warnings
}

// normalizeTasks validates, normalizes, and orders tasks by creation time.
func normalizeTasks(in []domain.Task, scope string, warn func(string, ...any)) []domain.Task {
	out := make([]domain.Task, 0, len(in))
	for i, task := range in {
		task = task.Normalized()
		if err := validateRecord(task); err != nil {
			if task.CreatedAt.IsZero() {
				err = errors.Join(domain.ErrMissingCreatedDate, err)
			}
			warn("%s tasks[%d] (%s) dropped: %v", scope, i, task.ID, err)
			continue
		}
		out = append(out, task)
	}
	slices.SortStableFunc(out, func(a, b domain.Task) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// validateRecord runs tag validation and flattens field errors into one message.
func validateRecord(record any) error {
	err := validate.Struct(record)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fmt.Sprintf("field %s failed rule %q", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(messages, "; "))
}

func utc(in *time.Time) *time.Time {
	if in == nil || in.IsZero() {
		return nil
	}
	out := in.UTC()
	return &out
}
