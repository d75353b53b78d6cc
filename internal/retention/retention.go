// Package retention runs a periodic background job that prunes snapshots
// beyond a configured per-component count. It is modeled on the reference
// service's scheduler package: a gocron.Scheduler wrapping a single
// cron-scheduled task registered with singleton (non-overlapping) mode.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/snapshot"
)

// Scheduler owns the gocron instance and the one recurring job it runs.
type Scheduler struct {
	cron      gocron.Scheduler
	snapshots *snapshot.Store
	keep      int
	logger    *zap.Logger
}

// New constructs a Scheduler that will, once Start is called, prune every
// component's snapshots down to keep entries on the given cron schedule
// (standard 5-field cron syntax, e.g. "0 3 * * *" for daily at 3 AM).
func New(snapshots *snapshot.Store, keep int, logger *zap.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("retention: new scheduler: %w", err)
	}
	return &Scheduler{cron: cron, snapshots: snapshots, keep: keep, logger: logger.Named("retention")}, nil
}

// Start registers the recurring prune job on cronExpr and starts the
// scheduler. components is called on every run to get the current list of
// component ids to prune, so callers don't need to keep that list in sync
// with the snapshot store themselves.
func (s *Scheduler) Start(ctx context.Context, cronExpr string, components func() []string) error {
	_, err := s.cron.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			s.runOnce(components())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("snapshot-retention"),
	)
	if err != nil {
		return fmt.Errorf("retention: register job: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for any in-progress run to finish.
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}

// RunNow prunes every given component immediately, bypassing the cron
// schedule — used by tests.
func (s *Scheduler) RunNow(components []string) {
	s.runOnce(components)
}

func (s *Scheduler) runOnce(components []string) {
	for _, id := range components {
		removed, err := s.snapshots.Prune(id, s.keep)
		if err != nil {
			s.logger.Warn("prune failed", zap.String("component_id", id), zap.Error(err))
			continue
		}
		if removed > 0 {
			s.logger.Info("pruned snapshots",
				zap.String("component_id", id), zap.Int("removed", removed), zap.Time("ran_at", time.Now()))
		}
	}
}
