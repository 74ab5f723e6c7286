package clickup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// flexNumber decodes a JSON number that the API may also send as a string or null.
type flexNumber float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *flexNumber) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("decode number %s: %w", data, err)
	}
	*n = flexNumber(v)
	return nil
}

// msTime decodes a millisecond Unix epoch sent as a string or number.
type msTime struct {
	t *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *msTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		m.t = nil
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("decode epoch millis %s: %w", data, err)
	}
	at := time.UnixMilli(ms).UTC()
	m.t = &at
	return nil
}

type wireStatus struct {
	Status     string     `json:"status"`
	Type       string     `json:"type"`
	Color      string     `json:"color"`
	OrderIndex flexNumber `json:"orderindex"`
}

func (s *wireStatus) label() string {
	if s == nil {
		return ""
	}
	return s.Status
}

type wireSpace struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Color             string         `json:"color"`
	Private           bool           `json:"private"`
	Archived          bool           `json:"archived"`
	MultipleAssignees bool           `json:"multiple_assignees"`
	Features          map[string]any `json:"features"`
	Statuses          []wireStatus   `json:"statuses"`
}

func (s wireSpace) domain() domain.Workspace {
	out := domain.Workspace{
		ID:                s.ID,
		Name:              s.Name,
		Color:             s.Color,
		Private:           s.Private,
		Archived:          s.Archived,
		MultipleAssignees: s.MultipleAssignees,
		Features:          s.Features,
	}
	for _, status := range s.Statuses {
		out.Statuses = append(out.Statuses, domain.Status{
			Name:       status.Status,
			Type:       status.Type,
			Color:      status.Color,
			OrderIndex: int(status.OrderIndex),
		})
	}
	return out
}

type wireFolder struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Private    bool        `json:"private"`
	Hidden     bool        `json:"hidden"`
	Archived   bool        `json:"archived"`
	Status     *wireStatus `json:"status"`
	OrderIndex flexNumber  `json:"orderindex"`
}

func (f wireFolder) domain() domain.Folder {
	return domain.Folder{
		ID:         f.ID,
		Name:       f.Name,
		Private:    f.Private,
		Hidden:     f.Hidden,
		Archived:   f.Archived,
		Status:     f.Status.label(),
		OrderIndex: int(f.OrderIndex),
	}
}

type wireList struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Private    bool        `json:"private"`
	Archived   bool        `json:"archived"`
	Status     *wireStatus `json:"status"`
	OrderIndex flexNumber  `json:"orderindex"`
	Folder     *struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Hidden bool   `json:"hidden"`
	} `json:"folder"`
}

func (l wireList) domain() domain.List {
	out := domain.List{
		ID:         l.ID,
		Name:       l.Name,
		Private:    l.Private,
		Archived:   l.Archived,
		Status:     l.Status.label(),
		OrderIndex: int(l.OrderIndex),
	}
	// Folderless lists report a hidden placeholder folder.
	if l.Folder != nil && l.Folder.ID != "" && !l.Folder.Hidden {
		out.Folder = &domain.FolderRef{ID: l.Folder.ID, Name: l.Folder.Name}
	}
	return out
}

type wireSprint struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      any    `json:"status"`
	StartDate   msTime `json:"start_date"`
	EndDate     msTime `json:"end_date"`
	DateCreated msTime `json:"date_created"`
}

func (s wireSprint) domain() domain.Sprint {
	return domain.Sprint{
		ID:        s.ID,
		Name:      s.Name,
		Status:    statusLabel(s.Status),
		StartDate: s.StartDate.t,
		EndDate:   s.EndDate.t,
		CreatedAt: s.DateCreated.t,
	}
}

// statusLabel accepts either a bare status string or a status object.
func statusLabel(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		if label, ok := v["status"].(string); ok {
			return label
		}
	}
	return ""
}

type wireSprintDetail struct {
	Goal            string     `json:"goal"`
	Points          flexNumber `json:"points"`
	CompletedPoints flexNumber `json:"completed_points"`
	TotalTasks      flexNumber `json:"total_tasks"`
	CompletedTasks  flexNumber `json:"completed_tasks"`
}

type wireTask struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Status   *wireStatus `json:"status"`
	Priority *struct {
		Priority string `json:"priority"`
	} `json:"priority"`
	Assignees []struct {
		ID       flexNumber `json:"id"`
		Username string     `json:"username"`
		Email    string     `json:"email"`
	} `json:"assignees"`
	DueDate     msTime `json:"due_date"`
	DateCreated msTime `json:"date_created"`
}

func (t wireTask) domain() domain.Task {
	out := domain.Task{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status.label(),
		Assignees: make([]string, 0, len(t.Assignees)),
		DueAt:     t.DueDate.t,
	}
	if t.Priority != nil {
		out.Priority = t.Priority.Priority
	}
	for _, assignee := range t.Assignees {
		name := assignee.Username
		if name == "" {
			name = assignee.Email
		}
		if name != "" {
			out.Assignees = append(out.Assignees, name)
		}
	}
	if t.DateCreated.t != nil {
		out.CreatedAt = *t.DateCreated.t
	}
	return out
}

var _ json.Unmarshaler = (*flexNumber)(nil)
var _ json.Unmarshaler = (*msTime)(nil)
