package app

import (
	"context"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// WorkspaceClient reads the workspace hierarchy from the remote API.
type WorkspaceClient interface {
	ListWorkspaces(context.Context) ([]domain.Workspace, error)
	ListFolders(ctx context.Context, workspaceID string) ([]domain.Folder, error)
	ListLists(ctx context.Context, workspaceID string) ([]domain.List, error)
	ListSprints(ctx context.Context, workspaceID string) ([]domain.Sprint, error)
	GetSprintDetail(ctx context.Context, sprintID string) (*domain.SprintDetail, error)
	ListTasks(ctx context.Context, listID string) ([]domain.Task, error)
	ListSprintTasks(ctx context.Context, sprintID string) ([]domain.Task, error)
}

// ArtifactStore persists rendered artifacts. Writes never overwrite.
type ArtifactStore interface {
	Name() string
	Write(ctx context.Context, name string, data []byte, format domain.Format) (domain.ArtifactRef, error)
	List(ctx context.Context, seriesPrefix string) ([]domain.ArtifactRef, error)
	Delete(ctx context.Context, ref domain.ArtifactRef) error
}

// Renderer converts one snapshot into one artifact format.
type Renderer interface {
	Format() domain.Format
	Render(domain.Snapshot) ([]byte, error)
}

// RunRecorder persists run history and arbitrates the cross-process run lock.
type RunRecorder interface {
	AcquireRunLock(ctx context.Context, owner string, now time.Time, ttl time.Duration) (bool, error)
	ReleaseRunLock(ctx context.Context, owner string) error
	StartRun(context.Context, RunRecord) error
	RecordArtifact(ctx context.Context, runID string, ref domain.ArtifactRef) error
	RecordEviction(ctx context.Context, runID string, ref domain.ArtifactRef, evictedAt time.Time, evictErr error) error
	FinishRun(context.Context, RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Logger receives structured progress events.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// IDGenerator returns unique identifiers for new runs.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// orNop returns logger, or a discarding logger when nil.
func orNop(logger Logger) Logger {
	if logger == nil {
		return nopLogger{}
	}
	return logger
}
