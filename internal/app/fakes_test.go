package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// fakeClient serves a fixed workspace tree and records every call.
type fakeClient struct {
	mu sync.Mutex

	workspaces    []domain.Workspace
	workspacesErr error
	folders       map[string][]domain.Folder
	lists         map[string][]domain.List
	sprints       map[string][]domain.Sprint
	details       map[string]*domain.SprintDetail
	tasks         map[string][]domain.Task
	sprintTasks   map[string][]domain.Task
	errs          map[string]error

	calls []string
	// block, when set, is waited on by ListWorkspaces.
	block chan struct{}
	// siblingHook, when set, runs inside the folder, list and sprint calls
	// after they are recorded.
	siblingHook func(ctx context.Context, call string) error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		folders:     map[string][]domain.Folder{},
		lists:       map[string][]domain.List{},
		sprints:     map[string][]domain.Sprint{},
		details:     map[string]*domain.SprintDetail{},
		tasks:       map[string][]domain.Task{},
		sprintTasks: map[string][]domain.Task{},
		errs:        map[string]error{},
	}
}

func (c *fakeClient) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.errs[call]
}

func (c *fakeClient) callLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

func (c *fakeClient) ListWorkspaces(ctx context.Context) ([]domain.Workspace, error) {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	_ = c.record("workspaces")
	if c.workspacesErr != nil {
		return nil, c.workspacesErr
	}
	return slices.Clone(c.workspaces), nil
}

func (c *fakeClient) ListFolders(ctx context.Context, id string) ([]domain.Folder, error) {
	if err := c.record("folders:" + id); err != nil {
		return nil, err
	}
	if err := c.sibling(ctx, "folders:"+id); err != nil {
		return nil, err
	}
	return slices.Clone(c.folders[id]), nil
}

func (c *fakeClient) ListLists(ctx context.Context, id string) ([]domain.List, error) {
	if err := c.record("lists:" + id); err != nil {
		return nil, err
	}
	if err := c.sibling(ctx, "lists:"+id); err != nil {
		return nil, err
	}
	return slices.Clone(c.lists[id]), nil
}

func (c *fakeClient) ListSprints(ctx context.Context, id string) ([]domain.Sprint, error) {
	if err := c.record("sprints:" + id); err != nil {
		return nil, err
	}
	if err := c.sibling(ctx, "sprints:"+id); err != nil {
		return nil, err
	}
	return slices.Clone(c.sprints[id]), nil
}

func (c *fakeClient) sibling(ctx context.Context, call string) error {
	if c.siblingHook == nil {
		return nil
	}
	return c.siblingHook(ctx, call)
}

func (c *fakeClient) GetSprintDetail(_ context.Context, id string) (*domain.SprintDetail, error) {
	if err := c.record("sprint_detail:" + id); err != nil {
		return nil, err
	}
	return c.details[id], nil
}

func (c *fakeClient) ListTasks(_ context.Context, id string) ([]domain.Task, error) {
	if err := c.record("tasks:" + id); err != nil {
		return nil, err
	}
	return slices.Clone(c.tasks[id]), nil
}

func (c *fakeClient) ListSprintTasks(_ context.Context, id string) ([]domain.Task, error) {
	if err := c.record("sprint_tasks:" + id); err != nil {
		return nil, err
	}
	return slices.Clone(c.sprintTasks[id]), nil
}

// memStore is an in-memory ArtifactStore.
type memStore struct {
	mu        sync.Mutex
	name      string
	clock     func() time.Time
	artifacts map[string]domain.ArtifactRef
	data      map[string][]byte
	writeErr  error
	deleteErr map[string]error
	deleted   []string
}

func newMemStore(name string, clock func() time.Time) *memStore {
	return &memStore{
		name:      name,
		clock:     clock,
		artifacts: map[string]domain.ArtifactRef{},
		data:      map[string][]byte{},
		deleteErr: map[string]error{},
	}
}

func (s *memStore) Name() string { return s.name }

func (s *memStore) seed(name string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = domain.ArtifactRef{ID: name, Name: name, Store: s.name, CreatedAt: createdAt}
}

func (s *memStore) Write(_ context.Context, name string, data []byte, format domain.Format) (domain.ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return domain.ArtifactRef{}, s.writeErr
	}
	if _, exists := s.artifacts[name]; exists {
		return domain.ArtifactRef{}, fmt.Errorf("artifact %q exists", name)
	}
	ref := domain.ArtifactRef{
		ID:        name,
		Name:      name,
		Format:    format,
		Store:     s.name,
		CreatedAt: s.clock(),
		Size:      int64(len(data)),
	}
	s.artifacts[name] = ref
	s.data[name] = slices.Clone(data)
	return ref, nil
}

func (s *memStore) List(_ context.Context, prefix string) ([]domain.ArtifactRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.ArtifactRef{}
	for name, ref := range s.artifacts {
		if strings.HasPrefix(name, prefix) {
			out = append(out, ref)
		}
	}
	slices.SortFunc(out, func(a, b domain.ArtifactRef) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *memStore) Delete(_ context.Context, ref domain.ArtifactRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteErr[ref.Name]; err != nil {
		return err
	}
	delete(s.artifacts, ref.Name)
	delete(s.data, ref.Name)
	s.deleted = append(s.deleted, ref.Name)
	return nil
}

func (s *memStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// jsonRenderer encodes the snapshot as compact JSON.
type jsonRenderer struct {
	err error
}

func (jsonRenderer) Format() domain.Format { return domain.FormatJSON }

func (r jsonRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return json.Marshal(snap)
}

// textRenderer emits a one-line summary.
type textRenderer struct{}

func (textRenderer) Format() domain.Format { return domain.FormatMarkdown }

func (textRenderer) Render(snap domain.Snapshot) ([]byte, error) {
	return fmt.Appendf(nil, "# %s\nTotal Tasks: %d\n", snap.Workspace.Name, snap.TotalTasks()), nil
}

// fakeRecorder keeps ledger calls in memory.
type fakeRecorder struct {
	mu        sync.Mutex
	lockHeld  bool
	lockErr   error
	started   []RunRecord
	finished  []RunRecord
	artifacts []string
	evictions []string
	released  int
}

func (r *fakeRecorder) AcquireRunLock(_ context.Context, _ string, _ time.Time, _ time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lockErr != nil {
		return false, r.lockErr
	}
	if r.lockHeld {
		return false, nil
	}
	r.lockHeld = true
	return true, nil
}

func (r *fakeRecorder) ReleaseRunLock(context.Context, string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockHeld = false
	r.released++
	return nil
}

func (r *fakeRecorder) StartRun(_ context.Context, rec RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, rec)
	return nil
}

func (r *fakeRecorder) RecordArtifact(_ context.Context, _ string, ref domain.ArtifactRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, ref.Name)
	return nil
}

func (r *fakeRecorder) RecordEviction(_ context.Context, _ string, ref domain.ArtifactRef, _ time.Time, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictions = append(r.evictions, ref.Name)
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, rec RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, rec)
	return nil
}

func (r *fakeRecorder) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.finished)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// logEntry is one captured log event.
type logEntry struct {
	level   string
	msg     string
	keyvals []any
}

// recordLogger captures log events for assertions.
type recordLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordLogger) add(level, msg string, keyvals []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, keyvals: keyvals})
}

func (l *recordLogger) Debug(msg string, keyvals ...any) { l.add("debug", msg, keyvals) }
func (l *recordLogger) Info(msg string, keyvals ...any)  { l.add("info", msg, keyvals) }
func (l *recordLogger) Warn(msg string, keyvals ...any)  { l.add("warn", msg, keyvals) }
func (l *recordLogger) Error(msg string, keyvals ...any) { l.add("error", msg, keyvals) }

// find returns entries at level whose message contains fragment.
func (l *recordLogger) find(level, fragment string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, entry := range l.entries {
		if entry.level == level && strings.Contains(entry.msg, fragment) {
			out = append(out, entry)
		}
	}
	return out
}

// keyval returns the value logged under key.
func (e logEntry) keyval(key string) any {
	for i := 0; i+1 < len(e.keyvals); i += 2 {
		if e.keyvals[i] == key {
			return e.keyvals[i+1]
		}
	}
	return nil
}

var errBoom = errors.New("boom")

// day returns midnight UTC of the given date.
func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// stepClock returns a clock advancing one second per call from start.
func stepClock(start time.Time) func() time.Time {
	var (
		mu  sync.Mutex
		cur = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		out := cur
		cur = cur.Add(time.Second)
		return out
	}
}
