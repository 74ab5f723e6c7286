package server

import (
	"context"
	"errors"
	"time"

	"github.com/hylla/arkiv/internal/adapters/server/common"
)

// Logger receives scheduler progress events.
type Logger interface {
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// scheduleTrigger tags runs started by the scheduler in the run ledger.
const scheduleTrigger = "schedule"

// Scheduler starts one backup run per interval until its context ends.
type Scheduler struct {
	interval  time.Duration
	backups   common.BackupService
	logger    Logger
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// NewScheduler builds a scheduler. A zero interval or nil service yields a no-op scheduler.
func NewScheduler(interval time.Duration, backups common.BackupService, logger Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		backups:  backups,
		logger:   logger,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			ticker := time.NewTicker(d)
			return ticker.C, ticker.Stop
		},
	}
}

// Run blocks until ctx is done, starting a run on every tick. Ticks that land
// while a run holds the lock are skipped.
func (s *Scheduler) Run(ctx context.Context) {
	if s == nil || s.interval <= 0 || s.backups == nil {
		return
	}
	ticks, stop := s.newTicker(s.interval)
	defer stop()
	s.info("backup schedule started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.info("backup schedule stopped")
			return
		case <-ticks:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes one scheduled run and logs its outcome.
func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.backups.RunBackup(ctx, common.RunBackupRequest{Trigger: scheduleTrigger})
	switch {
	case err == nil:
		s.info("scheduled backup complete", "run_id", result.RunID, "workspaces", len(result.Workspaces), "evicted", len(result.Evicted))
	case errors.Is(err, common.ErrRunInProgress):
		if s.logger != nil {
			s.logger.Warn("scheduled backup skipped", "reason", "run in progress")
		}
	default:
		if s.logger != nil {
			s.logger.Error("scheduled backup failed", "err", err)
		}
	}
}

func (s *Scheduler) info(msg string, keyvals ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keyvals...)
	}
}
