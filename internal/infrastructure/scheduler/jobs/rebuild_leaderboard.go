package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oqu-hub/oqu-progress-engine/internal/application/query"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Warms the cohort cache for recently active users so their leaderboard
// reads hit a fresh snapshot instead of paying a platform round-trip.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// Concurrency is the number of cohorts fetched in parallel.
	Concurrency int

	// Timeout bounds the whole rebuild.
	Timeout time.Duration

	// ActiveWithin limits warming to users active within this window;
	// idle users refetch lazily on their next leaderboard read.
	ActiveWithin time.Duration

	// MinAge skips users whose cached cohort is younger than this.
	MinAge time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Concurrency:  3,
		Timeout:      5 * time.Minute,
		ActiveWithin: 7 * 24 * time.Hour,
		MinAge:       2 * time.Minute,
	}
}

// RebuildStats contains statistics from one rebuild run.
type RebuildStats struct {
	StartedAt    time.Time
	Duration     time.Duration
	TotalLedgers int
	WarmedCount  int
	SkippedCount int
	FailedCount  int
}

// RebuildLeaderboardJob refreshes cached cohort snapshots.
type RebuildLeaderboardJob struct {
	ledgerRepo progress.LedgerRepository
	remote     progress.RemoteSource
	cache      query.CohortCache
	config     RebuildLeaderboardConfig
	log        *logger.Logger

	lastStats atomic.Value // RebuildStats
}

// NewRebuildLeaderboardJob creates a new rebuild job.
func NewRebuildLeaderboardJob(
	ledgerRepo progress.LedgerRepository,
	remote progress.RemoteSource,
	cache query.CohortCache,
	config RebuildLeaderboardConfig,
	log *logger.Logger,
) *RebuildLeaderboardJob {
	return &RebuildLeaderboardJob{
		ledgerRepo: ledgerRepo,
		remote:     remote,
		cache:      cache,
		config:     config,
		log:        log.With(logger.Domain("leaderboard")),
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Refreshes cached cohort snapshots for recently active users"
}

// Run implements scheduler.Job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	started := time.Now()

	ledgers, err := j.ledgerRepo.FindAll(ctx)
	if err != nil {
		return err
	}

	var warmed, skipped, failed int64

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(j.config.Concurrency)

	cutoff := started.Add(-j.config.ActiveWithin)
	for _, ledger := range ledgers {
		if ledger.LastActivityAt == nil || ledger.LastActivityAt.Before(cutoff) {
			atomic.AddInt64(&skipped, 1)
			continue
		}

		userID := ledger.UserID
		group.Go(func() error {
			if _, age, err := j.cache.GetCohort(ctx, userID); err == nil && age < j.config.MinAge {
				atomic.AddInt64(&skipped, 1)
				return nil
			}

			members, err := j.remote.FetchCohort(ctx, userID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				atomic.AddInt64(&failed, 1)
				j.log.Warn("cohort refresh failed",
					logger.UserID(userID.String()), logger.Err(err))
				return nil
			}

			if err := j.cache.SetCohort(ctx, userID, members); err != nil {
				atomic.AddInt64(&failed, 1)
				j.log.Warn("cohort cache write failed",
					logger.UserID(userID.String()), logger.Err(err))
				return nil
			}

			atomic.AddInt64(&warmed, 1)
			return nil
		})
	}

	groupErr := group.Wait()

	stats := RebuildStats{
		StartedAt:    started,
		Duration:     time.Since(started),
		TotalLedgers: len(ledgers),
		WarmedCount:  int(warmed),
		SkippedCount: int(skipped),
		FailedCount:  int(failed),
	}
	j.lastStats.Store(stats)

	j.log.Info("leaderboard rebuild finished",
		logger.Int("total", stats.TotalLedgers),
		logger.Int("warmed", stats.WarmedCount),
		logger.Int("skipped", stats.SkippedCount),
		logger.Int("failed", stats.FailedCount),
		logger.Duration("duration", stats.Duration))

	if groupErr != nil {
		return groupErr
	}
	if failed > 0 {
		return shared.ErrSyncPartial
	}
	return nil
}

// LastStats returns the statistics of the most recent run.
func (j *RebuildLeaderboardJob) LastStats() (RebuildStats, bool) {
	stats, ok := j.lastStats.Load().(RebuildStats)
	return stats, ok
}
