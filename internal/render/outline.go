package render

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/hylla/arkiv/internal/domain"
)

// blockKind identifies one outline element.
type blockKind uint8

const (
	kindNone blockKind = iota
	kindTitle
	kindHeading1
	kindHeading2
	kindHeading3
	// kindLine is a standalone "Label: value" line.
	kindLine
	// kindField is a bulleted "Label: value" entry.
	kindField
	// kindItem opens one task entry.
	kindItem
	// kindDetail is a task attribute nested under kindItem.
	kindDetail
	kindRule
	kindNote
)

// block is one element of the report outline. Label is empty for headings,
// items, and notes.
type block struct {
	kind  blockKind
	icon  string
	label string
	text  string
}

const (
	reportTitle  = "ClickUp Backup Report"
	reportFooter = "This backup was generated automatically by the ClickUp Backup Agent."
	notAvailable = "N/A"
)

// outline builds the report section sequence shared by the narrative renderers.
type outline struct {
	dates  dateFormatter
	blocks []block
}

func buildOutline(snap domain.Snapshot, dates dateFormatter) []block {
	o := &outline{dates: dates}
	o.header(snap)
	o.workspace(snap.Workspace)
	o.folders(snap.Folders)
	o.lists(snap)
	o.sprints(snap.Sprints)
	o.tasks(snap)
	o.fetchErrors(snap.FetchErrors)
	o.statistics(snap)
	o.add(block{kind: kindRule})
	o.add(block{kind: kindNote, text: reportFooter})
	return o.blocks
}

func (o *outline) add(b block) {
	o.blocks = append(o.blocks, b)
}

func (o *outline) heading(kind blockKind, icon, text string) {
	o.add(block{kind: kind, icon: icon, text: text})
}

func (o *outline) line(label, text string) {
	o.add(block{kind: kindLine, label: label, text: text})
}

func (o *outline) field(label, text string) {
	o.add(block{kind: kindField, label: label, text: text})
}

func (o *outline) header(snap domain.Snapshot) {
	o.heading(kindTitle, "", reportTitle)
	o.line("Backup Date", o.dates.dateTime(snap.CapturedAt))
	o.line("Space", snap.Workspace.Name)
	o.line("Space ID", snap.Workspace.ID)
	o.add(block{kind: kindRule})
}

func (o *outline) workspace(ws domain.Workspace) {
	o.heading(kindHeading1, "📁", "Space Information")
	o.line("Name", ws.Name)
	o.line("Color", orNA(ws.Color))
	o.line("Private", yesNo(ws.Private))
	o.line("Archived", yesNo(ws.Archived))
	o.line("Multiple Assignees", yesNo(ws.MultipleAssignees))

	o.heading(kindHeading2, "", "Features")
	keys := slices.Sorted(maps.Keys(ws.Features))
	for _, key := range keys {
		o.field(key, featureValue(ws.Features[key]))
	}
	if len(ws.Statuses) > 0 {
		o.heading(kindHeading2, "", "Statuses")
		for _, status := range ws.Statuses {
			o.field(status.Name, orNA(status.Type))
		}
	}
	o.add(block{kind: kindRule})
}

func (o *outline) folders(folders []domain.Folder) {
	o.heading(kindHeading1, "📂", fmt.Sprintf("Folders (%d)", len(folders)))
	for _, folder := range folders {
		o.heading(kindHeading2, "", folder.Name)
		o.field("ID", folder.ID)
		o.field("Private", yesNo(folder.Private))
		o.field("Archived", yesNo(folder.Archived))
		o.field("Status", orNA(folder.Status))
		o.field("Order Index", strconv.Itoa(folder.OrderIndex))
	}
	o.add(block{kind: kindRule})
}

func (o *outline) lists(snap domain.Snapshot) {
	o.heading(kindHeading1, "📋", fmt.Sprintf("Lists (%d)", len(snap.Lists)))
	for _, list := range snap.Lists {
		o.heading(kindHeading2, "", list.Name)
		o.field("ID", list.ID)
		o.field("Private", yesNo(list.Private))
		o.field("Archived", yesNo(list.Archived))
		o.field("Status", orNA(list.Status))
		o.field("Order Index", strconv.Itoa(list.OrderIndex))
		folderID, folderName := notAvailable, notAvailable
		if list.Folder != nil {
			folderID = orNA(list.Folder.ID)
			folderName = orNA(list.Folder.Name)
			if folder, ok := snap.FolderByID(list.Folder.ID); ok && folder.Name != "" {
				folderName = folder.Name
			}
		}
		o.field("Folder ID", folderID)
		o.field("Folder Name", folderName)
	}
	o.add(block{kind: kindRule})
}

func (o *outline) sprints(sprints []domain.Sprint) {
	o.heading(kindHeading1, "🎯", fmt.Sprintf("Sprints (%d)", len(sprints)))
	for _, sprint := range sprints {
		o.heading(kindHeading2, "", sprint.Name)
		o.field("ID", sprint.ID)
		o.field("Status", orNA(sprint.Status))
		o.field("Start Date", o.dates.optionalDate(sprint.StartDate, notAvailable))
		o.field("End Date", o.dates.optionalDate(sprint.EndDate, notAvailable))
		o.field("Created", o.dates.optionalDate(sprint.CreatedAt, notAvailable))
		if d := sprint.Details; d != nil {
			o.heading(kindHeading3, "", "Sprint Details")
			o.field("Goal", orNA(d.Goal))
			o.field("Points", formatPoints(d.Points))
			o.field("Completed Points", formatPoints(d.CompletedPoints))
			o.field("Total Tasks", strconv.Itoa(d.TotalTasks))
			o.field("Completed Tasks", strconv.Itoa(d.CompletedTasks))
		}
		if len(sprint.Tasks) > 0 {
			o.heading(kindHeading3, "", fmt.Sprintf("Sprint Tasks (%d)", len(sprint.Tasks)))
			o.taskEntries(sprint.Tasks)
		}
	}
	o.add(block{kind: kindRule})
}

func (o *outline) tasks(snap domain.Snapshot) {
	o.heading(kindHeading1, "🎯", "Tasks Summary")
	for _, listID := range snap.Tasks.Keys(snap.Lists) {
		tasks := snap.Tasks[listID]
		title := "List " + listID
		if list, ok := snap.ListByID(listID); ok {
			title = list.Name
		}
		o.heading(kindHeading2, "", fmt.Sprintf("%s (%d tasks)", title, len(tasks)))
		o.taskEntries(tasks)
	}
	o.add(block{kind: kindRule})
}

func (o *outline) taskEntries(tasks []domain.Task) {
	for _, task := range tasks {
		o.add(block{kind: kindItem, text: task.Name})
		o.detail("ID", task.ID)
		o.detail("Status", orNA(task.Status))
		o.detail("Priority", orNA(task.Priority))
		assignees := "None"
		if len(task.Assignees) > 0 {
			assignees = strings.Join(task.Assignees, ", ")
		}
		o.detail("Assignees", assignees)
		o.detail("Due Date", o.dates.optionalDate(task.DueAt, "No due date"))
		o.detail("Created", o.dates.date(task.CreatedAt))
	}
}

func (o *outline) detail(label, text string) {
	o.add(block{kind: kindDetail, label: label, text: text})
}

func (o *outline) fetchErrors(failures []domain.BranchFailure) {
	if len(failures) == 0 {
		return
	}
	o.heading(kindHeading1, "⚠️", fmt.Sprintf("Incomplete Branches (%d)", len(failures)))
	for _, failure := range failures {
		o.field(failure.Branch+" "+failure.ID, failure.Message)
	}
	o.add(block{kind: kindRule})
}

func (o *outline) statistics(snap domain.Snapshot) {
	o.heading(kindHeading1, "📊", "Backup Statistics")
	o.field("Total Folders", strconv.Itoa(len(snap.Folders)))
	o.field("Total Lists", strconv.Itoa(len(snap.Lists)))
	o.field("Total Sprints", strconv.Itoa(len(snap.Sprints)))
	o.field("Total Tasks", strconv.Itoa(snap.TotalTasks()))
	o.field("Backup Generated", o.dates.dateTime(snap.CapturedAt))
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return notAvailable
	}
	return v
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// featureValue renders one feature flag value; strings print bare, anything
// else as compact JSON.
func featureValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(encoded)
}
