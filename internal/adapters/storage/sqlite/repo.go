package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/arkiv/internal/app"
	"github.com/hylla/arkiv/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// backupLockName names the single run lock row.
const backupLockName = "backup"

// Repository persists run history and the cross-process run lock.
type Repository struct {
	db *sql.DB
}

// Open opens the ledger database at path, creating it when missing.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens in memory.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			run_trigger TEXT NOT NULL DEFAULT 'manual',
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			workspaces INTEGER NOT NULL DEFAULT 0,
			artifacts INTEGER NOT NULL DEFAULT 0,
			evicted INTEGER NOT NULL DEFAULT 0,
			branch_failures INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS run_artifacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			store TEXT NOT NULL,
			artifact_id TEXT NOT NULL,
			name TEXT NOT NULL,
			format TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			location TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS run_evictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			store TEXT NOT NULL,
			artifact_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			evicted_at TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		// expires_at is unix nanoseconds so lease expiry compares numerically.
		`CREATE TABLE IF NOT EXISTS run_locks (
			name TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			acquired_at TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_artifacts_run ON run_artifacts(run_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_run_evictions_run ON run_evictions(run_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// AcquireRunLock takes the backup lease for owner unless another owner holds
// an unexpired lease. It reports whether the lease was granted.
func (r *Repository) AcquireRunLock(ctx context.Context, owner string, now time.Time, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("run lock ttl must be positive")
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO run_locks(name, owner, acquired_at, expires_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE run_locks.expires_at <= ? OR run_locks.owner = excluded.owner
	`, backupLockName, owner, ts(now), now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ReleaseRunLock drops the lease when owner still holds it.
func (r *Repository) ReleaseRunLock(ctx context.Context, owner string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM run_locks WHERE name = ? AND owner = ?`, backupLockName, owner); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// StartRun inserts a run row.
func (r *Repository) StartRun(ctx context.Context, rec app.RunRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("run id is required")
	}
	status := rec.Status
	if status == "" {
		status = app.RunStatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs(id, run_trigger, status, started_at)
		VALUES(?, ?, ?, ?)
	`, rec.ID, rec.Trigger, string(status), ts(rec.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordArtifact appends one written artifact to a run.
func (r *Repository) RecordArtifact(ctx context.Context, runID string, ref domain.ArtifactRef) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_artifacts(run_id, store, artifact_id, name, format, size, location, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, ref.Store, ref.ID, ref.Name, string(ref.Format), ref.Size, ref.Location, ts(ref.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert run artifact: %w", err)
	}
	return nil
}

// RecordEviction appends one retention outcome to a run.
func (r *Repository) RecordEviction(ctx context.Context, runID string, ref domain.ArtifactRef, evictedAt time.Time, evictErr error) error {
	message := ""
	if evictErr != nil {
		message = evictErr.Error()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_evictions(run_id, store, artifact_id, name, created_at, evicted_at, error)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, runID, ref.Store, ref.ID, ref.Name, ts(ref.CreatedAt), ts(evictedAt), message)
	if err != nil {
		return fmt.Errorf("insert run eviction: %w", err)
	}
	return nil
}

// FinishRun stores the final state of a run.
func (r *Repository) FinishRun(ctx context.Context, rec app.RunRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, workspaces = ?, artifacts = ?, evicted = ?, branch_failures = ?, error = ?
		WHERE id = ?
	`, string(rec.Status), nullableTS(rec.FinishedAt), rec.Workspaces, rec.Artifacts, rec.Evicted, rec.BranchFailures, rec.Error, rec.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return translateNoRows(res)
}

// GetRun returns one run by id.
func (r *Repository) GetRun(ctx context.Context, id string) (app.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, run_trigger, status, started_at, finished_at, workspaces, artifacts, evicted, branch_failures, error
		FROM runs
		WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return app.RunRecord{}, app.ErrNotFound
	}
	return rec, err
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]app.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_trigger, status, started_at, finished_at, workspaces, artifacts, evicted, branch_failures, error
		FROM runs
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]app.RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListRunArtifacts returns the artifacts written by one run in write order.
func (r *Repository) ListRunArtifacts(ctx context.Context, runID string) ([]domain.ArtifactRef, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT store, artifact_id, name, format, size, location, created_at
		FROM run_artifacts
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ArtifactRef, 0)
	for rows.Next() {
		var (
			ref        domain.ArtifactRef
			formatRaw  string
			createdRaw string
		)
		if err := rows.Scan(&ref.Store, &ref.ID, &ref.Name, &formatRaw, &ref.Size, &ref.Location, &createdRaw); err != nil {
			return nil, err
		}
		ref.Format = domain.Format(formatRaw)
		ref.CreatedAt = parseTS(createdRaw)
		out = append(out, ref)
	}
	return out, rows.Err()
}

// scanner represents scanner data used by this package.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun decodes one runs row.
func scanRun(s scanner) (app.RunRecord, error) {
	var (
		rec         app.RunRecord
		statusRaw   string
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := s.Scan(&rec.ID, &rec.Trigger, &statusRaw, &startedRaw, &finishedRaw, &rec.Workspaces, &rec.Artifacts, &rec.Evicted, &rec.BranchFailures, &rec.Error); err != nil {
		return app.RunRecord{}, err
	}
	rec.Status = app.RunStatus(statusRaw)
	rec.StartedAt = parseTS(startedRaw)
	rec.FinishedAt = parseNullTS(finishedRaw)
	return rec, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}

var _ app.RunRecorder = (*Repository)(nil)
