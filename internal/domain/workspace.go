package domain

// Workspace is one top-level container (a ClickUp space).
type Workspace struct {
	ID                string         `json:"id" validate:"required"`
	Name              string         `json:"name"`
	Color             string         `json:"color,omitempty"`
	Private           bool           `json:"private"`
	Archived          bool           `json:"archived"`
	MultipleAssignees bool           `json:"multiple_assignees"`
	Features          map[string]any `json:"features,omitempty"`
	Statuses          []Status       `json:"statuses,omitempty"`
}

// Status is one workflow status defined on a workspace.
type Status struct {
	Name       string `json:"status"`
	Type       string `json:"type,omitempty"`
	Color      string `json:"color,omitempty"`
	OrderIndex int    `json:"orderindex"`
}

// Folder groups lists inside a workspace.
type Folder struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name"`
	Private    bool   `json:"private"`
	Hidden     bool   `json:"hidden"`
	Archived   bool   `json:"archived"`
	Status     string `json:"status,omitempty"`
	OrderIndex int    `json:"orderindex"`
}

// FolderRef is a weak back-reference from a list to its folder.
type FolderRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// List holds tasks. Folder is nil for folderless lists.
type List struct {
	ID         string     `json:"id" validate:"required"`
	Name       string     `json:"name"`
	Private    bool       `json:"private"`
	Archived   bool       `json:"archived"`
	Status     string     `json:"status,omitempty"`
	OrderIndex int        `json:"orderindex"`
	Folder     *FolderRef `json:"folder,omitempty"`
}

// FolderID returns the referenced folder id, or "" for folderless lists.
func (l List) FolderID() string {
	if l.Folder == nil {
		return ""
	}
	return l.Folder.ID
}
