package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
)

// fakeRunner records calls and returns canned results.
type fakeRunner struct {
	runOpts    app.RunOptions
	runReport  app.RunReport
	runErr     error
	pruneDry   bool
	sweeps     []app.SweepResult
	listStore  string
	listWS     string
	artifacts  []domain.ArtifactRef
	listErr    error
	runsLimit  int
	runRecords []app.RunRecord
}

func (f *fakeRunner) Run(_ context.Context, opts app.RunOptions) (app.RunReport, error) {
	f.runOpts = opts
	return f.runReport, f.runErr
}

func (f *fakeRunner) Prune(_ context.Context, dryRun bool) ([]app.SweepResult, error) {
	f.pruneDry = dryRun
	return f.sweeps, nil
}

func (f *fakeRunner) ListArtifacts(_ context.Context, storeName, workspace string) ([]domain.ArtifactRef, error) {
	f.listStore, f.listWS = storeName, workspace
	return f.artifacts, f.listErr
}

func (f *fakeRunner) ListRuns(_ context.Context, limit int) ([]app.RunRecord, error) {
	f.runsLimit = limit
	return f.runRecords, nil
}

func TestAdapterListArtifactsTrimsFilters(t *testing.T) {
	created := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)
	runner := &fakeRunner{artifacts: []domain.ArtifactRef{{
		ID: "a", Name: "clickup-backup-Eng-x.json", Format: domain.FormatJSON, Store: "local", CreatedAt: created, Size: 9,
	}}}
	adapter := NewAppServiceAdapter(runner)

	got, err := adapter.ListArtifacts(context.Background(), ListArtifactsRequest{Store: " local ", Workspace: " Eng "})
	if err != nil {
		t.Fatalf("ListArtifacts() error = %v", err)
	}
	if runner.listStore != "local" || runner.listWS != "Eng" {
		t.Fatalf("unexpected filters %q %q", runner.listStore, runner.listWS)
	}
	if len(got) != 1 || got[0].Format != "json" || got[0].Size != 9 || !got[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected artifacts %#v", got)
	}
}

func TestAdapterMapsAppErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "unknown store", err: fmt.Errorf("%w: %q", app.ErrUnknownStore, "s3"), want: ErrUnknownStore},
		{name: "not found", err: app.ErrNotFound, want: ErrNotFound},
		{name: "busy", err: app.ErrRunInProgress, want: ErrRunInProgress},
		{name: "pattern", err: app.ErrInvalidPattern, want: ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := NewAppServiceAdapter(&fakeRunner{listErr: tc.err})
			_, err := adapter.ListArtifacts(context.Background(), ListArtifactsRequest{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected original error to be preserved, got %v", err)
			}
		})
	}
}

func TestAdapterListRunsLimits(t *testing.T) {
	runner := &fakeRunner{runRecords: []app.RunRecord{{ID: "r1", Status: app.RunStatusSucceeded, Trigger: "schedule"}}}
	adapter := NewAppServiceAdapter(runner)

	runs, err := adapter.ListRuns(context.Background(), ListRunsRequest{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if runner.runsLimit != DefaultRunLimit {
		t.Fatalf("expected default limit, got %d", runner.runsLimit)
	}
	if len(runs) != 1 || runs[0].Status != "succeeded" || runs[0].Trigger != "schedule" {
		t.Fatalf("unexpected runs %#v", runs)
	}

	for _, limit := range []int{-1, MaxRunLimit + 1} {
		if _, err := adapter.ListRuns(context.Background(), ListRunsRequest{Limit: limit}); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("limit %d: expected ErrInvalidRequest, got %v", limit, err)
		}
	}
}

func TestAdapterRunBackupMapsReport(t *testing.T) {
	runner := &fakeRunner{runReport: app.RunReport{
		RunID: "run-1",
		Workspaces: []app.WorkspaceReport{{
			WorkspaceID: "S1",
			Name:        "Eng",
			Tasks:       3,
			Artifacts:   []domain.ArtifactRef{{Name: "a.json", Format: domain.FormatJSON, Store: "local"}},
			Failures:    []domain.BranchFailure{{Branch: "tasks", ID: "L1"}},
		}},
		Skipped: []string{"Ops"},
	}}
	adapter := NewAppServiceAdapter(runner)

	got, err := adapter.RunBackup(context.Background(), RunBackupRequest{Workspaces: []string{" Eng ", ""}})
	if err != nil {
		t.Fatalf("RunBackup() error = %v", err)
	}
	if runner.runOpts.Trigger != "api" {
		t.Fatalf("expected default api trigger, got %q", runner.runOpts.Trigger)
	}
	if len(runner.runOpts.Workspaces) != 1 || runner.runOpts.Workspaces[0] != "Eng" {
		t.Fatalf("unexpected workspace patterns %#v", runner.runOpts.Workspaces)
	}
	if got.RunID != "run-1" || len(got.Workspaces) != 1 || got.Workspaces[0].BranchFailures != 1 || got.Workspaces[0].Tasks != 3 {
		t.Fatalf("unexpected result %#v", got)
	}
	if got.Evicted == nil {
		t.Fatal("expected evicted to encode as an empty list")
	}

	runner.runErr = app.ErrRunInProgress
	if _, err := adapter.RunBackup(context.Background(), RunBackupRequest{Trigger: "mcp"}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if runner.runOpts.Trigger != "mcp" {
		t.Fatalf("expected mcp trigger, got %q", runner.runOpts.Trigger)
	}
}

func TestAdapterPrunePassesDryRun(t *testing.T) {
	runner := &fakeRunner{sweeps: []app.SweepResult{{Store: "local", Series: 2, DryRun: true, Deleted: []domain.ArtifactRef{{Name: "old.json"}}}}}
	adapter := NewAppServiceAdapter(runner)

	got, err := adapter.Prune(context.Background(), PruneRequest{DryRun: true})
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if !runner.pruneDry {
		t.Fatal("expected dry run to reach the runner")
	}
	if len(got) != 1 || got[0].Store != "local" || len(got[0].Deleted) != 1 || got[0].Failed == nil {
		t.Fatalf("unexpected prune result %#v", got)
	}
}

func TestNilAdapterIsUnavailable(t *testing.T) {
	var adapter *AppServiceAdapter
	if _, err := adapter.ListArtifacts(context.Background(), ListArtifactsRequest{}); !errors.Is(err, ErrBackupUnavailable) {
		t.Fatalf("expected ErrBackupUnavailable, got %v", err)
	}
}
