package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hylla/arkiv/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engClient() *fakeClient {
	c := newFakeClient()
	c.workspaces = []domain.Workspace{{ID: "S1", Name: "Eng/Ops"}}
	c.folders["S1"] = []domain.Folder{{ID: "F1", Name: "Backend"}}
	c.lists["S1"] = []domain.List{
		{ID: "L1", Name: "Bugs", Folder: &domain.FolderRef{ID: "F1", Name: "Backend"}},
		{ID: "L2", Name: "Docs"},
		{ID: "L3", Name: "Ideas"},
	}
	c.sprints["S1"] = []domain.Sprint{{ID: "SP1", Name: "Sprint 1"}}
	c.tasks["L1"] = []domain.Task{
		{ID: "T1", Name: "Fix bug", CreatedAt: day(2024, 1, 1)},
		{ID: "T2", Name: "Write docs", CreatedAt: day(2024, 1, 2)},
	}
	c.tasks["L2"] = []domain.Task{}
	c.details["SP1"] = &domain.SprintDetail{Goal: "ship", Points: 8, CompletedPoints: 5, TotalTasks: 2, CompletedTasks: 1}
	c.sprintTasks["SP1"] = []domain.Task{{ID: "T9", Name: "Plan", CreatedAt: day(2024, 1, 3)}}
	return c
}

func TestFetchBuildsTaskIndexForEveryList(t *testing.T) {
	c := engClient()
	f := NewFetcher(c, nil, FetcherConfig{})

	got := f.Fetch(context.Background(), c.workspaces[0])

	require.Empty(t, got.Failures)
	assert.Len(t, got.Folders, 1)
	assert.Len(t, got.Lists, 3)
	assert.Len(t, got.Tasks["L1"], 2)
	require.Contains(t, got.Tasks, "L2")
	assert.NotNil(t, got.Tasks["L2"])
	assert.Empty(t, got.Tasks["L2"])
	require.Contains(t, got.Tasks, "L3", "a list with no tasks is still a key")
	assert.Nil(t, got.Sprints[0].Details, "enrichment is off by default")
}

func TestFetchSiblingBranchesOverlapBeforeTasks(t *testing.T) {
	c := engClient()
	var started sync.WaitGroup
	started.Add(3)
	c.siblingHook = func(ctx context.Context, call string) error {
		started.Done()
		all := make(chan struct{})
		go func() {
			started.Wait()
			close(all)
		}()
		select {
		case <-all:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return fmt.Errorf("%s: other sibling fetches never started", call)
		}
		_ = c.record("returned:" + call)
		return nil
	}
	f := NewFetcher(c, nil, FetcherConfig{})

	got := f.Fetch(context.Background(), c.workspaces[0])

	require.Empty(t, got.Failures)
	calls := c.callLog()
	lastReturn, firstTask, returned := -1, len(calls), 0
	for i, call := range calls {
		if strings.HasPrefix(call, "returned:") {
			lastReturn = i
			returned++
		}
		if strings.HasPrefix(call, "tasks:") && i < firstTask {
			firstTask = i
		}
	}
	assert.Equal(t, 3, returned)
	assert.Less(t, lastReturn, firstTask, "task fetches wait for every sibling branch: %v", calls)
}

func TestFetchDegradesSiblingBranches(t *testing.T) {
	c := engClient()
	c.errs["folders:S1"] = errBoom
	c.errs["sprints:S1"] = errBoom
	logger := &recordLogger{}
	f := NewFetcher(c, logger, FetcherConfig{})

	got := f.Fetch(context.Background(), c.workspaces[0])

	assert.NotNil(t, got.Folders)
	assert.Empty(t, got.Folders)
	assert.NotNil(t, got.Sprints)
	assert.Empty(t, got.Sprints)
	assert.Len(t, got.Lists, 3, "lists branch is independent of its siblings")
	assert.Len(t, got.Tasks["L1"], 2)

	branches := make([]string, 0, len(got.Failures))
	for _, failure := range got.Failures {
		branches = append(branches, failure.Branch)
	}
	assert.ElementsMatch(t, []string{domain.BranchFolders, domain.BranchSprints}, branches)

	warnings := logger.find("warn", "branch fetch failed")
	require.Len(t, warnings, 2)
	assert.Equal(t, "S1", warnings[0].keyval("workspace_id"))
}

func TestFetchOmitsListWhoseTaskFetchFailed(t *testing.T) {
	c := engClient()
	c.errs["tasks:L1"] = errBoom
	f := NewFetcher(c, nil, FetcherConfig{})

	got := f.Fetch(context.Background(), c.workspaces[0])

	assert.NotContains(t, got.Tasks, "L1")
	assert.Contains(t, got.Tasks, "L2")
	assert.Contains(t, got.Tasks, "L3")
	require.Len(t, got.Failures, 1)
	assert.Equal(t, domain.BranchListTasks, got.Failures[0].Branch)
	assert.Equal(t, "L1", got.Failures[0].ID)
	assert.Contains(t, got.Failures[0].Message, "boom")
}

func TestFetchTaskKeysNeverOrphaned(t *testing.T) {
	c := engClient()
	c.tasks["GHOST"] = []domain.Task{{ID: "X", CreatedAt: day(2024, 1, 1)}}
	for _, failing := range []string{"", "tasks:L1", "tasks:L2", "lists:S1"} {
		c.errs = map[string]error{}
		if failing != "" {
			c.errs[failing] = errBoom
		}
		got := NewFetcher(c, nil, FetcherConfig{}).Fetch(context.Background(), c.workspaces[0])
		listIDs := map[string]struct{}{}
		for _, list := range got.Lists {
			listIDs[list.ID] = struct{}{}
		}
		for key := range got.Tasks {
			assert.Contains(t, listIDs, key, "failing=%q", failing)
		}
	}
}

func TestFetchSequentialByDefault(t *testing.T) {
	c := engClient()
	f := NewFetcher(c, nil, FetcherConfig{SprintDetails: true})

	_ = f.Fetch(context.Background(), c.workspaces[0])

	var ordered []string
	for _, call := range c.callLog() {
		switch {
		case len(call) > 6 && call[:6] == "tasks:":
			ordered = append(ordered, call)
		case len(call) > 13 && call[:13] == "sprint_detail":
			ordered = append(ordered, call)
		}
	}
	assert.Equal(t, []string{"tasks:L1", "tasks:L2", "tasks:L3", "sprint_detail:SP1"}, ordered)
}

func TestFetchBoundedPoolMatchesSequential(t *testing.T) {
	c := engClient()
	for i := range 20 {
		id := "X" + string(rune('a'+i))
		c.lists["S1"] = append(c.lists["S1"], domain.List{ID: id, Name: id})
		c.tasks[id] = []domain.Task{{ID: "t-" + id, CreatedAt: day(2024, 2, 1+i)}}
	}
	c.errs["tasks:Xc"] = errBoom

	sequential := NewFetcher(c, nil, FetcherConfig{Concurrency: 1}).Fetch(context.Background(), c.workspaces[0])
	pooled := NewFetcher(c, nil, FetcherConfig{Concurrency: 4}).Fetch(context.Background(), c.workspaces[0])

	assert.Equal(t, sequential.Tasks, pooled.Tasks)
	assert.Equal(t, sequential.Failures, pooled.Failures)
}

func TestFetchSprintEnrichmentDegrades(t *testing.T) {
	c := engClient()
	c.sprints["S1"] = append(c.sprints["S1"], domain.Sprint{ID: "SP2", Name: "Sprint 2"})
	c.errs["sprint_detail:SP1"] = errBoom
	c.errs["sprint_tasks:SP2"] = errBoom
	c.details["SP2"] = &domain.SprintDetail{Goal: "polish"}

	got := NewFetcher(c, nil, FetcherConfig{SprintDetails: true}).Fetch(context.Background(), c.workspaces[0])

	require.Len(t, got.Sprints, 2)
	assert.Nil(t, got.Sprints[0].Details)
	assert.Len(t, got.Sprints[0].Tasks, 1)
	require.NotNil(t, got.Sprints[1].Details)
	assert.Equal(t, "polish", got.Sprints[1].Details.Goal)
	assert.Empty(t, got.Sprints[1].Tasks)

	branches := make([]string, 0, len(got.Failures))
	for _, failure := range got.Failures {
		branches = append(branches, failure.Branch+":"+failure.ID)
	}
	slices.Sort(branches)
	assert.Equal(t, []string{"sprint_detail:SP1", "sprint_tasks:SP2"}, branches)
}
