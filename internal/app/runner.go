package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hylla/arkiv/internal/domain"
)

// RunStatus describes the lifecycle state of one recorded run.
type RunStatus string

// RunStatus values.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the ledger row for one orchestration run.
type RunRecord struct {
	ID             string     `json:"id"`
	Trigger        string     `json:"trigger"`
	Status         RunStatus  `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Workspaces     int        `json:"workspaces"`
	Artifacts      int        `json:"artifacts"`
	Evicted        int        `json:"evicted"`
	BranchFailures int        `json:"branch_failures"`
	Error          string     `json:"error,omitempty"`
}

// Target pairs one store with the renderers whose output it receives.
type Target struct {
	Store     ArtifactStore
	Renderers []Renderer
}

// RunnerConfig holds orchestration settings.
type RunnerConfig struct {
	SeriesPrefix  string
	RetentionDays int
	Include       []string
	Exclude       []string
	Fetch         FetcherConfig
	LockTTL       time.Duration
}

// RunnerDeps holds the collaborators of a Runner.
type RunnerDeps struct {
	Client   WorkspaceClient
	Targets  []Target
	Recorder RunRecorder
	IDGen    IDGenerator
	Clock    Clock
	Logger   Logger
}

// RunOptions narrows one run.
type RunOptions struct {
	Trigger string
	// Workspaces replaces the configured include patterns when non-empty.
	Workspaces []string
}

// WorkspaceReport summarizes one processed workspace.
type WorkspaceReport struct {
	WorkspaceID string                 `json:"workspace_id"`
	Name        string                 `json:"name"`
	CapturedAt  time.Time              `json:"captured_at"`
	Folders     int                    `json:"folders"`
	Lists       int                    `json:"lists"`
	Sprints     int                    `json:"sprints"`
	Tasks       int                    `json:"tasks"`
	Artifacts   []domain.ArtifactRef   `json:"artifacts"`
	Failures    []domain.BranchFailure `json:"failures,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// RunReport summarizes one orchestration run.
type RunReport struct {
	RunID            string               `json:"run_id"`
	Trigger          string               `json:"trigger"`
	StartedAt        time.Time            `json:"started_at"`
	FinishedAt       time.Time            `json:"finished_at"`
	Workspaces       []WorkspaceReport    `json:"workspaces"`
	Skipped          []string             `json:"skipped,omitempty"`
	Evicted          []domain.ArtifactRef `json:"evicted,omitempty"`
	EvictionFailures int                  `json:"eviction_failures"`
}

// ArtifactCount returns the number of artifacts written in the run.
func (r RunReport) ArtifactCount() int {
	total := 0
	for _, ws := range r.Workspaces {
		total += len(ws.Artifacts)
	}
	return total
}

// BranchFailureCount returns the number of degraded fetches in the run.
func (r RunReport) BranchFailureCount() int {
	total := 0
	for _, ws := range r.Workspaces {
		total += len(ws.Failures)
	}
	return total
}

// Runner drives full backup runs: enumerate, fetch, assemble, render, store,
// then retention. Only one run executes at a time.
type Runner struct {
	client    WorkspaceClient
	fetcher   *Fetcher
	retention *Retention
	targets   []Target
	recorder  RunRecorder
	filter    WorkspaceFilter
	idGen     IDGenerator
	clock     Clock
	logger    Logger
	cfg       RunnerConfig
	mu        sync.Mutex
}

// NewRunner constructs a runner from its collaborators.
func NewRunner(deps RunnerDeps, cfg RunnerConfig) (*Runner, error) {
	if deps.Client == nil {
		return nil, errors.New("workspace client is required")
	}
	if len(deps.Targets) == 0 {
		return nil, ErrNoTargets
	}
	for i, target := range deps.Targets {
		if target.Store == nil {
			return nil, fmt.Errorf("targets[%d].store is required", i)
		}
		if len(target.Renderers) == 0 {
			return nil, fmt.Errorf("targets[%d] (%s) has no renderers", i, target.Store.Name())
		}
	}
	cfg.SeriesPrefix = strings.TrimSpace(cfg.SeriesPrefix)
	if cfg.SeriesPrefix == "" {
		return nil, errors.New("series prefix is required")
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 6 * time.Hour
	}
	filter, err := NewWorkspaceFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	if deps.IDGen == nil {
		deps.IDGen = uuid.NewString
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	logger := orNop(deps.Logger)
	return &Runner{
		client:    deps.Client,
		fetcher:   NewFetcher(deps.Client, logger, cfg.Fetch),
		retention: NewRetention(logger),
		targets:   slices.Clone(deps.Targets),
		recorder:  deps.Recorder,
		filter:    filter,
		idGen:     deps.IDGen,
		clock:     deps.Clock,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// Run executes one full backup run. A failure while processing a workspace
// aborts the remaining run; branch fetch failures never do.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (report RunReport, err error) {
	if !r.mu.TryLock() {
		return RunReport{}, ErrRunInProgress
	}
	defer r.mu.Unlock()

	filter := r.filter
	if len(opts.Workspaces) > 0 {
		filter, err = NewWorkspaceFilter(opts.Workspaces, r.cfg.Exclude)
		if err != nil {
			return RunReport{}, err
		}
	}
	trigger := strings.TrimSpace(opts.Trigger)
	if trigger == "" {
		trigger = "manual"
	}

	report = RunReport{
		RunID:     r.idGen(),
		Trigger:   trigger,
		StartedAt: r.clock().UTC(),
	}
	release, err := r.acquireLease(ctx, report.RunID, report.StartedAt)
	if err != nil {
		return RunReport{}, err
	}
	defer release()

	r.recordStart(ctx, report)
	defer func() {
		report.FinishedAt = r.clock().UTC()
		r.recordFinish(ctx, report, err)
		if err != nil {
			r.logger.Error("backup run failed", "run_id", report.RunID, "err", err)
			return
		}
		r.logger.Info("backup run complete", "run_id", report.RunID, "workspaces", len(report.Workspaces), "artifacts", report.ArtifactCount(), "evicted", len(report.Evicted))
	}()

	r.logger.Info("backup run start", "run_id", report.RunID, "trigger", trigger)
	workspaces, err := r.client.ListWorkspaces(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}
	r.logger.Info("workspaces enumerated", "run_id", report.RunID, "count", len(workspaces))

	selected := make([]domain.Workspace, 0, len(workspaces))
	for _, ws := range workspaces {
		if !filter.Match(ws.Name) {
			r.logger.Info("workspace skipped by filter", "workspace_id", ws.ID, "workspace", ws.Name)
			report.Skipped = append(report.Skipped, ws.Name)
			continue
		}
		selected = append(selected, ws)
	}
	r.warnSharedSeries(report.RunID, selected)

	for _, ws := range selected {
		wsReport, err := r.backupWorkspace(ctx, report.RunID, ws)
		report.Workspaces = append(report.Workspaces, wsReport)
		if err != nil {
			return report, fmt.Errorf("backup workspace %q: %w", ws.Name, err)
		}
	}

	now := r.clock().UTC()
	for _, target := range r.targets {
		sweep, err := r.retention.Sweep(ctx, target.Store, r.cfg.SeriesPrefix, now, r.cfg.RetentionDays, false)
		if err != nil {
			r.logger.Error("retention sweep failed", "store", target.Store.Name(), "err", err)
			report.EvictionFailures++
			continue
		}
		report.Evicted = append(report.Evicted, sweep.Deleted...)
		report.EvictionFailures += len(sweep.Failed)
		for _, ref := range sweep.Deleted {
			r.recordEviction(ctx, report.RunID, ref, now, nil)
		}
		for _, ref := range sweep.Failed {
			r.recordEviction(ctx, report.RunID, ref, now, errors.New("delete failed"))
		}
	}
	return report, nil
}

// backupWorkspace fetches, assembles, renders, and stores one workspace.
func (r *Runner) backupWorkspace(ctx context.Context, runID string, ws domain.Workspace) (WorkspaceReport, error) {
	capturedAt := r.clock().UTC()
	r.logger.Info("workspace backup start", "run_id", runID, "workspace_id", ws.ID, "workspace", ws.Name)

	branches := r.fetcher.Fetch(ctx, ws)
	snap, warnings := Assemble(branches, capturedAt)
	for _, warning := range warnings {
		r.logger.Warn("snapshot assembly warning", "workspace_id", ws.ID, "detail", warning)
	}
	out := WorkspaceReport{
		WorkspaceID: ws.ID,
		Name:        ws.Name,
		CapturedAt:  snap.CapturedAt,
		Folders:     len(snap.Folders),
		Lists:       len(snap.Lists),
		Sprints:     len(snap.Sprints),
		Tasks:       snap.TotalTasks(),
		Failures:    snap.FetchErrors,
		Warnings:    warnings,
	}

	rendered := map[domain.Format][]byte{}
	for _, target := range r.targets {
		for _, renderer := range target.Renderers {
			format := renderer.Format()
			data, ok := rendered[format]
			if !ok {
				var err error
				data, err = renderer.Render(snap)
				if err != nil {
					return out, fmt.Errorf("%w: %s: %w", ErrRender, format, err)
				}
				rendered[format] = data
			}
			name := domain.ArtifactName(r.cfg.SeriesPrefix, ws.Name, snap.CapturedAt, format)
			ref, err := target.Store.Write(ctx, name, data, format)
			if err != nil {
				return out, fmt.Errorf("%w: write %s to %s: %w", ErrStore, name, target.Store.Name(), err)
			}
			r.logger.Info("artifact written", "run_id", runID, "store", target.Store.Name(), "artifact", ref.Name, "bytes", len(data))
			out.Artifacts = append(out.Artifacts, ref)
			r.recordArtifact(ctx, runID, ref)
		}
	}
	r.logger.Info("workspace backup complete", "run_id", runID, "workspace_id", ws.ID, "tasks", out.Tasks, "branch_failures", len(out.Failures))
	return out, nil
}

// Prune runs retention only, across every target store.
func (r *Runner) Prune(ctx context.Context, dryRun bool) ([]SweepResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	now := r.clock().UTC()
	out := make([]SweepResult, 0, len(r.targets))
	var errs []error
	for _, target := range r.targets {
		sweep, err := r.retention.Sweep(ctx, target.Store, r.cfg.SeriesPrefix, now, r.cfg.RetentionDays, dryRun)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, sweep)
	}
	return out, errors.Join(errs...)
}

// ListArtifacts lists artifacts from one store, or every store when storeName
// is empty. workspace narrows to one workspace series.
func (r *Runner) ListArtifacts(ctx context.Context, storeName, workspace string) ([]domain.ArtifactRef, error) {
	prefix := r.cfg.SeriesPrefix + "-"
	if workspace = strings.TrimSpace(workspace); workspace != "" {
		prefix = domain.SeriesPrefix(r.cfg.SeriesPrefix, workspace)
	}
	storeName = strings.TrimSpace(storeName)
	var (
		out   []domain.ArtifactRef
		found bool
	)
	for _, target := range r.targets {
		if storeName != "" && target.Store.Name() != storeName {
			continue
		}
		found = true
		refs, err := target.Store.List(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("%w: list %s: %w", ErrStore, target.Store.Name(), err)
		}
		out = append(out, refs...)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, storeName)
	}
	slices.SortFunc(out, func(a, b domain.ArtifactRef) int { return compareByCreation(b, a) })
	return out, nil
}

// ListRuns returns recent runs, newest first.
func (r *Runner) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if r.recorder == nil {
		return []RunRecord{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return r.recorder.ListRuns(ctx, limit)
}

// StoreNames returns the configured store names in target order.
func (r *Runner) StoreNames() []string {
	out := make([]string, 0, len(r.targets))
	for _, target := range r.targets {
		out = append(out, target.Store.Name())
	}
	return out
}

// acquireLease takes the cross-process run lock when a recorder is present.
func (r *Runner) acquireLease(ctx context.Context, owner string, now time.Time) (func(), error) {
	if r.recorder == nil {
		return func() {}, nil
	}
	ok, err := r.recorder.AcquireRunLock(ctx, owner, now, r.cfg.LockTTL)
	if err != nil {
		r.logger.Warn("run lock unavailable; continuing without it", "err", err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return func() {
		if err := r.recorder.ReleaseRunLock(context.WithoutCancel(ctx), owner); err != nil {
			r.logger.Warn("run lock release failed", "run_id", owner, "err", err)
		}
	}, nil
}

func (r *Runner) recordStart(ctx context.Context, report RunReport) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.StartRun(ctx, RunRecord{
		ID:        report.RunID,
		Trigger:   report.Trigger,
		Status:    RunStatusRunning,
		StartedAt: report.StartedAt,
	}); err != nil {
		r.logger.Warn("run ledger start failed", "run_id", report.RunID, "err", err)
	}
}

func (r *Runner) recordArtifact(ctx context.Context, runID string, ref domain.ArtifactRef) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordArtifact(ctx, runID, ref); err != nil {
		r.logger.Warn("run ledger artifact failed", "run_id", runID, "artifact", ref.Name, "err", err)
	}
}

func (r *Runner) recordEviction(ctx context.Context, runID string, ref domain.ArtifactRef, at time.Time, evictErr error) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.RecordEviction(ctx, runID, ref, at, evictErr); err != nil {
		r.logger.Warn("run ledger eviction failed", "run_id", runID, "artifact", ref.Name, "err", err)
	}
}

// warnSharedSeries logs every pair of workspaces whose names sanitize to the
// same artifact series. Such workspaces share retention and can collide on
// artifact names.
func (r *Runner) warnSharedSeries(runID string, workspaces []domain.Workspace) {
	seen := make(map[string]domain.Workspace, len(workspaces))
	for _, ws := range workspaces {
		key := domain.SanitizeName(ws.Name)
		if first, ok := seen[key]; ok {
			r.logger.Warn("workspaces share an artifact series", "run_id", runID, "series", key, "workspace_id", first.ID, "workspace", first.Name, "other_workspace_id", ws.ID, "other_workspace", ws.Name)
			continue
		}
		seen[key] = ws
	}
}

func (r *Runner) recordFinish(ctx context.Context, report RunReport, runErr error) {
	if r.recorder == nil {
		return
	}
	finished := report.FinishedAt
	record := RunRecord{
		ID:             report.RunID,
		Trigger:        report.Trigger,
		Status:         RunStatusSucceeded,
		StartedAt:      report.StartedAt,
		FinishedAt:     &finished,
		Workspaces:     len(report.Workspaces),
		Artifacts:      report.ArtifactCount(),
		Evicted:        len(report.Evicted),
		BranchFailures: report.BranchFailureCount(),
	}
	if runErr != nil {
		record.Status = RunStatusFailed
		record.Error = runErr.Error()
	}
	if err := r.recorder.FinishRun(context.WithoutCancel(ctx), record); err != nil {
		r.logger.Warn("run ledger finish failed", "run_id", report.RunID, "err", err)
	}
}
