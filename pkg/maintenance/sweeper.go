// Package maintenance runs periodic housekeeping: purging expired link
// shares and sweeping legacy workspace lists into normalized memberships.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/sharing"
	"github.com/inkwell-hq/inkwell/pkg/tenancy"
)

const sweepTimeout = 5 * time.Minute

// migrationBatchSize bounds one sweep so a huge backlog of legacy lists is
// worked off across runs instead of in one long transaction burst.
const migrationBatchSize = 200

// Sweeper owns the background maintenance jobs
type Sweeper struct {
	shares   sharing.Store
	migrator *tenancy.Migrator
	logger   *observability.Logger
	cron     *cron.Cron
}

// NewSweeper creates a sweeper; call Start to schedule it.
func NewSweeper(shares sharing.Store, migrator *tenancy.Migrator, logger *observability.Logger) *Sweeper {
	return &Sweeper{
		shares:   shares,
		migrator: migrator,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers both jobs on the given cron schedule and starts the
// scheduler.
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.runPurge); err != nil {
		return fmt.Errorf("scheduling link purge: %w", err)
	}
	if _, err := s.cron.AddFunc(schedule, s.runMigration); err != nil {
		return fmt.Errorf("scheduling legacy sweep: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", schedule).Info("maintenance sweeper started")
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance sweeper stopped")
}

func (s *Sweeper) runPurge() {
	defer observability.RecoverPanic(s.logger, "link-purge")
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.PurgeExpiredLinks(ctx); err != nil {
		s.logger.WithError(err).Error("expired link purge failed")
	}
}

func (s *Sweeper) runMigration() {
	defer observability.RecoverPanic(s.logger, "legacy-sweep")
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.SweepLegacyLists(ctx); err != nil {
		s.logger.WithError(err).Error("legacy list sweep failed")
	}
}

// PurgeExpiredLinks deletes link shares whose expiry has passed. Expired
// links already fail at resolve time; this reclaims the rows.
func (s *Sweeper) PurgeExpiredLinks(ctx context.Context) (int64, error) {
	n, err := s.shares.DeleteExpiredLinkShares(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("deleting expired link shares: %w", err)
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("purged expired link shares")
	}
	return n, nil
}

// SweepLegacyLists converts one batch of legacy per-user workspace lists
// into memberships.
func (s *Sweeper) SweepLegacyLists(ctx context.Context) (*tenancy.MigrationResult, error) {
	result, err := s.migrator.Run(ctx, migrationBatchSize)
	if err != nil {
		return nil, fmt.Errorf("migrating legacy workspace lists: %w", err)
	}
	if result.MembershipsCreated > 0 {
		s.logger.WithFields(map[string]interface{}{
			"users":       result.UsersProcessed,
			"memberships": result.MembershipsCreated,
			"skipped":     result.EntriesSkipped,
		}).Info("legacy workspace sweep converted entries")
	}
	return result, nil
}
