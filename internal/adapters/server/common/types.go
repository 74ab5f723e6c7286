// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrRunInProgress reports that a backup run is already executing.
var ErrRunInProgress = errors.New("backup run already in progress")

// ErrUnknownStore reports a store filter that names no configured store.
var ErrUnknownStore = errors.New("unknown store")

// ErrBackupUnavailable reports a missing backup service.
var ErrBackupUnavailable = errors.New("backup service unavailable")

// DefaultRunLimit bounds run history responses when no limit is given.
const DefaultRunLimit = 20

// MaxRunLimit caps run history responses.
const MaxRunLimit = 200

// ListArtifactsRequest filters stored artifacts.
type ListArtifactsRequest struct {
	Store     string `json:"store,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// ListRunsRequest bounds the run history page.
type ListRunsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RunBackupRequest starts one backup run.
type RunBackupRequest struct {
	Workspaces []string `json:"workspaces,omitempty"`
	// Trigger is set by the transport, never decoded from input.
	Trigger string `json:"-"`
}

// PruneRequest applies retention without a backup.
type PruneRequest struct {
	DryRun bool `json:"dry_run,omitempty"`
}

// Artifact is the transport view of one stored artifact.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Store     string    `json:"store"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	Location  string    `json:"location,omitempty"`
}

// Run is the transport view of one recorded run.
type Run struct {
	ID             string     `json:"id"`
	Trigger        string     `json:"trigger"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Workspaces     int        `json:"workspaces"`
	Artifacts      int        `json:"artifacts"`
	Evicted        int        `json:"evicted"`
	BranchFailures int        `json:"branch_failures"`
	Error          string     `json:"error,omitempty"`
}

// WorkspaceSummary describes one workspace in a run result.
type WorkspaceSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Tasks          int        `json:"tasks"`
	Artifacts      []Artifact `json:"artifacts"`
	BranchFailures int        `json:"branch_failures"`
}

// RunResult is the transport view of a completed run.
type RunResult struct {
	RunID            string             `json:"run_id"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
	Workspaces       []WorkspaceSummary `json:"workspaces"`
	Skipped          []string           `json:"skipped,omitempty"`
	Evicted          []Artifact         `json:"evicted"`
	EvictionFailures int                `json:"eviction_failures"`
}

// PruneResult is the transport view of one store sweep.
type PruneResult struct {
	Store   string     `json:"store"`
	Series  int        `json:"series"`
	DryRun  bool       `json:"dry_run"`
	Deleted []Artifact `json:"deleted"`
	Failed  []Artifact `json:"failed"`
}

// BackupService is the server-facing surface over the backup runner.
type BackupService interface {
	ListArtifacts(context.Context, ListArtifactsRequest) ([]Artifact, error)
	ListRuns(context.Context, ListRunsRequest) ([]Run, error)
	RunBackup(context.Context, RunBackupRequest) (RunResult, error)
	Prune(context.Context, PruneRequest) ([]PruneResult, error)
}

// artifactFrom maps one domain artifact reference to its transport view.
func artifactFrom(ref domain.ArtifactRef) Artifact {
	return Artifact{
		ID:        ref.ID,
		Name:      ref.Name,
		Format:    string(ref.Format),
		Store:     ref.Store,
		CreatedAt: ref.CreatedAt,
		Size:      ref.Size,
		Location:  ref.Location,
	}
}

// artifactsFrom maps a slice, always returning a non-nil result.
func artifactsFrom(refs []domain.ArtifactRef) []Artifact {
	out := make([]Artifact, 0, len(refs))
	for _, ref := range refs {
		out = append(out, artifactFrom(ref))
	}
	return out
}
