package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hylla/arkiv/internal/domain"
)

// EvictResult summarizes one series eviction.
type EvictResult struct {
	Candidates []domain.ArtifactRef
	Deleted    []domain.ArtifactRef
	Failed     []domain.ArtifactRef
}

// SweepResult summarizes retention across every series in one store.
type SweepResult struct {
	Store   string
	Series  int
	Skipped int
	DryRun  bool
	Deleted []domain.ArtifactRef
	Failed  []domain.ArtifactRef
}

// Retention applies the age-based retention policy with the keep-newest guard.
type Retention struct {
	logger Logger
}

// NewRetention constructs a retention manager.
func NewRetention(logger Logger) *Retention {
	return &Retention{logger: orNop(logger)}
}

// EvictionSet returns the artifacts of one series that retention deletes:
// every artifact created strictly before now-days, except the newest one.
// days <= 0 disables retention.
func EvictionSet(refs []domain.ArtifactRef, now time.Time, days int) []domain.ArtifactRef {
	if days <= 0 || len(refs) < 2 {
		return nil
	}
	ordered := slices.Clone(refs)
	slices.SortFunc(ordered, compareByCreation)
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	out := make([]domain.ArtifactRef, 0, len(ordered)-1)
	for _, ref := range ordered[:len(ordered)-1] {
		if ref.CreatedAt.Before(cutoff) {
			out = append(out, ref)
		}
	}
	return out
}

// Evict deletes the eviction set of one series. Delete failures are logged
// and do not stop the remaining deletions.
func (r *Retention) Evict(ctx context.Context, store ArtifactStore, refs []domain.ArtifactRef, now time.Time, days int) EvictResult {
	res := EvictResult{Candidates: EvictionSet(refs, now, days)}
	for _, ref := range res.Candidates {
		if err := store.Delete(ctx, ref); err != nil {
			r.logger.Error("artifact eviction failed", "store", store.Name(), "artifact", ref.Name, "err", err)
			res.Failed = append(res.Failed, ref)
			continue
		}
		r.logger.Info("artifact evicted", "store", store.Name(), "artifact", ref.Name, "created_at", ref.CreatedAt.Format(time.RFC3339))
		res.Deleted = append(res.Deleted, ref)
	}
	return res
}

// Sweep lists every artifact under prefix once, groups them into series by
// workspace and format, and evicts each series. With dryRun the eviction set
// is reported in Deleted without deleting anything.
func (r *Retention) Sweep(ctx context.Context, store ArtifactStore, prefix string, now time.Time, days int, dryRun bool) (SweepResult, error) {
	res := SweepResult{Store: store.Name(), DryRun: dryRun}
	if days <= 0 {
		r.logger.Debug("retention disabled", "store", store.Name())
		return res, nil
	}
	refs, err := store.List(ctx, prefix+"-")
	if err != nil {
		return res, fmt.Errorf("%w: list %s artifacts: %w", ErrStore, store.Name(), err)
	}

	series := map[string][]domain.ArtifactRef{}
	for _, ref := range refs {
		parts, err := domain.ParseArtifactName(prefix, ref.Name)
		if err != nil {
			r.logger.Debug("retention skipped foreign artifact", "store", store.Name(), "artifact", ref.Name)
			res.Skipped++
			continue
		}
		key := parts.SeriesKey()
		series[key] = append(series[key], ref)
	}
	keys := make([]string, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	res.Series = len(keys)

	for _, key := range keys {
		if dryRun {
			res.Deleted = append(res.Deleted, EvictionSet(series[key], now, days)...)
			continue
		}
		evicted := r.Evict(ctx, store, series[key], now, days)
		res.Deleted = append(res.Deleted, evicted.Deleted...)
		res.Failed = append(res.Failed, evicted.Failed...)
	}
	r.logger.Info("retention sweep complete", "store", store.Name(), "series", res.Series, "deleted", len(res.Deleted), "failed", len(res.Failed), "dry_run", dryRun)
	return res, nil
}

// compareByCreation orders by creation time, then name.
func compareByCreation(a, b domain.ArtifactRef) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}
