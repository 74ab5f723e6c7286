package app

import (
	"context"

	"github.com/hylla/arkiv/internal/domain"
	"golang.org/x/sync/errgroup"
)

// FetcherConfig holds configuration for the hierarchical fetch.
type FetcherConfig struct {
	// SprintDetails enables the per-sprint detail and task round-trips.
	SprintDetails bool
	// Concurrency bounds per-list and per-sprint fetches. 1 is strictly sequential.
	Concurrency int
}

// Branches is the raw, unassembled result of fetching one workspace.
type Branches struct {
	Workspace domain.Workspace
	Folders   []domain.Folder
	Lists     []domain.List
	Sprints   []domain.Sprint
	Tasks     domain.TaskIndex
	Failures  []domain.BranchFailure
}

// Fetcher walks one workspace subtree through a WorkspaceClient. No branch
// failure escapes Fetch: each degrades to an empty value and is recorded.
type Fetcher struct {
	client WorkspaceClient
	logger Logger
	cfg    FetcherConfig
}

// NewFetcher constructs a fetcher.
func NewFetcher(client WorkspaceClient, logger Logger, cfg FetcherConfig) *Fetcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Fetcher{
		client: client,
		logger: orNop(logger),
		cfg:    cfg,
	}
}

// Fetch collects folders, lists, and sprints concurrently, then tasks per list
// and optional sprint enrichment through a bounded pool.
func (f *Fetcher) Fetch(ctx context.Context, ws domain.Workspace) Branches {
	out := Branches{Workspace: ws}

	var (
		folderErr error
		listErr   error
		sprintErr error
		g         errgroup.Group
	)
	g.Go(func() error {
		out.Folders, folderErr = f.client.ListFolders(ctx, ws.ID)
		return nil
	})
	g.Go(func() error {
		out.Lists, listErr = f.client.ListLists(ctx, ws.ID)
		return nil
	})
	g.Go(func() error {
		out.Sprints, sprintErr = f.client.ListSprints(ctx, ws.ID)
		return nil
	})
	_ = g.Wait()

	if folderErr != nil {
		out.Folders = []domain.Folder{}
		out.Failures = append(out.Failures, f.degrade(ws.ID, domain.BranchFolders, ws.ID, folderErr))
	}
	if listErr != nil {
		out.Lists = []domain.List{}
		out.Failures = append(out.Failures, f.degrade(ws.ID, domain.BranchLists, ws.ID, listErr))
	}
	if sprintErr != nil {
		out.Sprints = []domain.Sprint{}
		out.Failures = append(out.Failures, f.degrade(ws.ID, domain.BranchSprints, ws.ID, sprintErr))
	}
	f.logger.Debug("workspace branches fetched", "workspace_id", ws.ID, "folders", len(out.Folders), "lists", len(out.Lists), "sprints", len(out.Sprints))

	var failures []domain.BranchFailure
	out.Tasks, failures = f.fetchListTasks(ctx, ws.ID, out.Lists)
	out.Failures = append(out.Failures, failures...)

	if f.cfg.SprintDetails && len(out.Sprints) > 0 {
		out.Sprints, failures = f.enrichSprints(ctx, ws.ID, out.Sprints)
		out.Failures = append(out.Failures, failures...)
	}
	return out
}

// fetchListTasks fills the task index. A list whose fetch fails is left out
// of the index.
func (f *Fetcher) fetchListTasks(ctx context.Context, workspaceID string, lists []domain.List) (domain.TaskIndex, []domain.BranchFailure) {
	type result struct {
		tasks []domain.Task
		err   error
	}
	results := make([]result, len(lists))
	f.pool(len(lists), func(i int) {
		tasks, err := f.client.ListTasks(ctx, lists[i].ID)
		results[i] = result{tasks: tasks, err: err}
	})

	index := make(domain.TaskIndex, len(lists))
	var failures []domain.BranchFailure
	for i, list := range lists {
		res := results[i]
		if res.err != nil {
			failures = append(failures, f.degrade(workspaceID, domain.BranchListTasks, list.ID, res.err))
			continue
		}
		tasks := res.tasks
		if tasks == nil {
			tasks = []domain.Task{}
		}
		index[list.ID] = tasks
		f.logger.Debug("list tasks fetched", "workspace_id", workspaceID, "list_id", list.ID, "tasks", len(tasks))
	}
	return index, failures
}

// enrichSprints attaches detail and sprint-scoped tasks to each sprint.
func (f *Fetcher) enrichSprints(ctx context.Context, workspaceID string, sprints []domain.Sprint) ([]domain.Sprint, []domain.BranchFailure) {
	type result struct {
		detail    *domain.SprintDetail
		tasks     []domain.Task
		detailErr error
		tasksErr  error
	}
	results := make([]result, len(sprints))
	f.pool(len(sprints), func(i int) {
		id := sprints[i].ID
		var res result
		res.detail, res.detailErr = f.client.GetSprintDetail(ctx, id)
		res.tasks, res.tasksErr = f.client.ListSprintTasks(ctx, id)
		results[i] = res
	})

	out := make([]domain.Sprint, len(sprints))
	var failures []domain.BranchFailure
	for i, sprint := range sprints {
		res := results[i]
		if res.detailErr != nil {
			failures = append(failures, f.degrade(workspaceID, domain.BranchSprintDetail, sprint.ID, res.detailErr))
		} else {
			sprint.Details = res.detail
		}
		if res.tasksErr != nil {
			failures = append(failures, f.degrade(workspaceID, domain.BranchSprintTasks, sprint.ID, res.tasksErr))
		} else {
			sprint.Tasks = res.tasks
		}
		out[i] = sprint
	}
	return out, failures
}

// pool runs fn for 0..n-1 with at most cfg.Concurrency calls in flight.
// With a limit of one the calls run in index order.
func (f *Fetcher) pool(n int, fn func(i int)) {
	var g errgroup.Group
	g.SetLimit(f.cfg.Concurrency)
	for i := range n {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// degrade logs one branch failure and converts it to its recorded form.
func (f *Fetcher) degrade(workspaceID, branch, id string, err error) domain.BranchFailure {
	berr := &BranchError{WorkspaceID: workspaceID, Branch: branch, ID: id, Err: err}
	f.logger.Warn("branch fetch failed; substituting empty", "workspace_id", workspaceID, "branch", branch, "id", id, "err", err)
	return domain.BranchFailure{
		Branch:  branch,
		ID:      id,
		Message: berr.Error(),
	}
}
