// Package jobs contains the scheduled jobs of the progress engine: bulk
// ledger synchronization, the daily rollover sweep and leaderboard cache
// warming.
package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oqu-hub/oqu-progress-engine/internal/application/command"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC ALL LEDGERS JOB
// Pushes every unsynced local delta to the platform and folds server-side
// XP back in. Per-user failures are counted, not fatal: one offline user
// must never block the rest of the sweep.
// ══════════════════════════════════════════════════════════════════════════════

// LedgerSyncer runs a single-user sync. Implemented by command.SyncCoordinator.
type LedgerSyncer interface {
	Handle(ctx context.Context, cmd command.SyncLedgerCommand) (*command.SyncLedgerResult, error)
}

// SyncAllLedgersConfig contains configuration for the sync job.
type SyncAllLedgersConfig struct {
	// Concurrency is the number of users synced in parallel.
	Concurrency int

	// Timeout bounds the whole sweep.
	Timeout time.Duration

	// OnlyUnsynced skips ledgers with no local delta to push.
	OnlyUnsynced bool
}

// DefaultSyncAllLedgersConfig returns sensible defaults.
func DefaultSyncAllLedgersConfig() SyncAllLedgersConfig {
	return SyncAllLedgersConfig{
		Concurrency:  5,
		Timeout:      10 * time.Minute,
		OnlyUnsynced: false,
	}
}

// SyncStats contains statistics from one sweep.
type SyncStats struct {
	StartedAt    time.Time
	Duration     time.Duration
	TotalLedgers int
	SyncedCount  int
	SkippedCount int
	FailedCount  int
	AppliedXP    int
}

// SyncAllLedgersJob synchronizes every ledger with the Oqu platform.
type SyncAllLedgersJob struct {
	ledgerRepo progress.LedgerRepository
	syncer     LedgerSyncer
	config     SyncAllLedgersConfig
	log        *logger.Logger

	lastStats atomic.Value // SyncStats
}

// NewSyncAllLedgersJob creates a new sync job.
func NewSyncAllLedgersJob(
	ledgerRepo progress.LedgerRepository,
	syncer LedgerSyncer,
	config SyncAllLedgersConfig,
	log *logger.Logger,
) *SyncAllLedgersJob {
	return &SyncAllLedgersJob{
		ledgerRepo: ledgerRepo,
		syncer:     syncer,
		config:     config,
		log:        log.With(logger.Domain("sync")),
	}
}

// Name implements scheduler.Job.
func (j *SyncAllLedgersJob) Name() string {
	return "sync_all_ledgers"
}

// Description implements scheduler.Job.
func (j *SyncAllLedgersJob) Description() string {
	return "Synchronizes every progress ledger with the Oqu platform"
}

// Run implements scheduler.Job.
func (j *SyncAllLedgersJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	started := time.Now()

	ledgers, err := j.ledgerRepo.FindAll(ctx)
	if err != nil {
		return err
	}

	var synced, skipped, failed, applied int64

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(j.config.Concurrency)

	for _, ledger := range ledgers {
		if j.config.OnlyUnsynced && ledger.UnsyncedDelta() == 0 {
			atomic.AddInt64(&skipped, 1)
			continue
		}

		userID := ledger.UserID
		group.Go(func() error {
			result, err := j.syncer.Handle(ctx, command.SyncLedgerCommand{
				UserID: userID.String(),
			})
			switch {
			case err == nil:
				atomic.AddInt64(&synced, 1)
				atomic.AddInt64(&applied, int64(result.AppliedDelta))
			case errors.Is(err, shared.ErrSyncInFlight):
				atomic.AddInt64(&skipped, 1)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				atomic.AddInt64(&failed, 1)
				j.log.Warn("ledger sync failed",
					logger.UserID(userID.String()), logger.Err(err))
			}
			return nil
		})
	}

	groupErr := group.Wait()

	stats := SyncStats{
		StartedAt:    started,
		Duration:     time.Since(started),
		TotalLedgers: len(ledgers),
		SyncedCount:  int(synced),
		SkippedCount: int(skipped),
		FailedCount:  int(failed),
		AppliedXP:    int(applied),
	}
	j.lastStats.Store(stats)

	j.log.Info("sync sweep finished",
		logger.Int("total", stats.TotalLedgers),
		logger.Int("synced", stats.SyncedCount),
		logger.Int("skipped", stats.SkippedCount),
		logger.Int("failed", stats.FailedCount),
		logger.Int("applied_xp", stats.AppliedXP),
		logger.Duration("duration", stats.Duration))

	if groupErr != nil {
		return groupErr
	}
	if failed > 0 {
		return shared.ErrSyncPartial
	}
	return nil
}

// LastStats returns the statistics of the most recent sweep.
func (j *SyncAllLedgersJob) LastStats() (SyncStats, bool) {
	stats, ok := j.lastStats.Load().(SyncStats)
	return stats, ok
}
