package common

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
)

// BackupRunner is the subset of app.Runner the server adapters use.
type BackupRunner interface {
	Run(context.Context, app.RunOptions) (app.RunReport, error)
	Prune(ctx context.Context, dryRun bool) ([]app.SweepResult, error)
	ListArtifacts(ctx context.Context, storeName, workspace string) ([]domain.ArtifactRef, error)
	ListRuns(ctx context.Context, limit int) ([]app.RunRecord, error)
}

// AppServiceAdapter maps transport contracts onto the backup runner.
type AppServiceAdapter struct {
	runner BackupRunner
}

// NewAppServiceAdapter builds one common adapter over a runner.
func NewAppServiceAdapter(runner BackupRunner) *AppServiceAdapter {
	return &AppServiceAdapter{runner: runner}
}

// ListArtifacts lists stored artifacts newest first.
func (a *AppServiceAdapter) ListArtifacts(ctx context.Context, in ListArtifactsRequest) ([]Artifact, error) {
	if a == nil || a.runner == nil {
		return nil, ErrBackupUnavailable
	}
	refs, err := a.runner.ListArtifacts(ctx, strings.TrimSpace(in.Store), strings.TrimSpace(in.Workspace))
	if err != nil {
		return nil, mapAppError("list artifacts", err)
	}
	return artifactsFrom(refs), nil
}

// ListRuns returns recent run history, newest first.
func (a *AppServiceAdapter) ListRuns(ctx context.Context, in ListRunsRequest) ([]Run, error) {
	if a == nil || a.runner == nil {
		return nil, ErrBackupUnavailable
	}
	limit, err := normalizeRunLimit(in.Limit)
	if err != nil {
		return nil, err
	}
	records, err := a.runner.ListRuns(ctx, limit)
	if err != nil {
		return nil, mapAppError("list runs", err)
	}
	out := make([]Run, 0, len(records))
	for _, rec := range records {
		out = append(out, Run{
			ID:             rec.ID,
			Trigger:        rec.Trigger,
			Status:         string(rec.Status),
			StartedAt:      rec.StartedAt,
			FinishedAt:     rec.FinishedAt,
			Workspaces:     rec.Workspaces,
			Artifacts:      rec.Artifacts,
			Evicted:        rec.Evicted,
			BranchFailures: rec.BranchFailures,
			Error:          rec.Error,
		})
	}
	return out, nil
}

// RunBackup executes one backup run and blocks until it finishes.
func (a *AppServiceAdapter) RunBackup(ctx context.Context, in RunBackupRequest) (RunResult, error) {
	if a == nil || a.runner == nil {
		return RunResult{}, ErrBackupUnavailable
	}
	workspaces := make([]string, 0, len(in.Workspaces))
	for _, pattern := range in.Workspaces {
		if pattern = strings.TrimSpace(pattern); pattern != "" {
			workspaces = append(workspaces, pattern)
		}
	}
	trigger := strings.TrimSpace(in.Trigger)
	if trigger == "" {
		trigger = "api"
	}
	report, err := a.runner.Run(ctx, app.RunOptions{Trigger: trigger, Workspaces: workspaces})
	if err != nil {
		return RunResult{}, mapAppError("run backup", err)
	}

	out := RunResult{
		RunID:            report.RunID,
		StartedAt:        report.StartedAt,
		FinishedAt:       report.FinishedAt,
		Workspaces:       make([]WorkspaceSummary, 0, len(report.Workspaces)),
		Skipped:          report.Skipped,
		Evicted:          artifactsFrom(report.Evicted),
		EvictionFailures: report.EvictionFailures,
	}
	for _, ws := range report.Workspaces {
		out.Workspaces = append(out.Workspaces, WorkspaceSummary{
			ID:             ws.WorkspaceID,
			Name:           ws.Name,
			Tasks:          ws.Tasks,
			Artifacts:      artifactsFrom(ws.Artifacts),
			BranchFailures: len(ws.Failures),
		})
	}
	return out, nil
}

// Prune applies retention to every store without running a backup.
func (a *AppServiceAdapter) Prune(ctx context.Context, in PruneRequest) ([]PruneResult, error) {
	if a == nil || a.runner == nil {
		return nil, ErrBackupUnavailable
	}
	sweeps, err := a.runner.Prune(ctx, in.DryRun)
	if err != nil {
		return nil, mapAppError("prune", err)
	}
	out := make([]PruneResult, 0, len(sweeps))
	for _, sweep := range sweeps {
		out = append(out, PruneResult{
			Store:   sweep.Store,
			Series:  sweep.Series,
			DryRun:  sweep.DryRun,
			Deleted: artifactsFrom(sweep.Deleted),
			Failed:  artifactsFrom(sweep.Failed),
		})
	}
	return out, nil
}

// normalizeRunLimit applies the default and rejects out-of-range limits.
func normalizeRunLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return DefaultRunLimit, nil
	case limit < 0 || limit > MaxRunLimit:
		return 0, fmt.Errorf("limit must be between 1 and %d: %w", MaxRunLimit, ErrInvalidRequest)
	default:
		return limit, nil
	}
}

// mapAppError maps app errors onto transport error classes.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, app.ErrRunInProgress):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRunInProgress, err))
	case errors.Is(err, app.ErrUnknownStore):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnknownStore, err))
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrInvalidPattern):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
