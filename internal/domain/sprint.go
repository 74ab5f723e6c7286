package domain

import "time"

// Sprint is a time-boxed iteration inside a workspace. Details and Tasks are
// only populated when sprint enrichment is requested.
type Sprint struct {
	ID        string        `json:"id" validate:"required"`
	Name      string        `json:"name"`
	Status    string        `json:"status,omitempty"`
	StartDate *time.Time    `json:"start_date,omitempty"`
	EndDate   *time.Time    `json:"end_date,omitempty"`
	CreatedAt *time.Time    `json:"date_created,omitempty"`
	Details   *SprintDetail `json:"details,omitempty"`
	Tasks     []Task        `json:"tasks,omitempty"`
}

// SprintDetail carries the enrichment payload for one sprint.
type SprintDetail struct {
	Goal            string  `json:"goal,omitempty"`
	Points          float64 `json:"points"`
	CompletedPoints float64 `json:"completed_points"`
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
}

// Enriched reports whether the sprint carries enrichment data.
func (s Sprint) Enriched() bool {
	return s.Details != nil || len(s.Tasks) > 0
}
