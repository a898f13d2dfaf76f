package jobs

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY ROLLOVER JOB
// Runs right after platform midnight: archives yesterday's goals and zeroes
// the streak of every user whose grace window has expired. Goals are also
// archived lazily on the write path; this sweep covers users with no
// activity at all on the new day.
// ══════════════════════════════════════════════════════════════════════════════

// DailyRolloverJob closes out the previous calendar day.
type DailyRolloverJob struct {
	ledgerRepo progress.LedgerRepository
	goalRepo   dailygoal.Repository
	locks      *keyedlock.Arena
	publisher  shared.EventPublisher
	grace      progress.GracePolicy
	log        *logger.Logger
}

// NewDailyRolloverJob creates a new rollover job.
func NewDailyRolloverJob(
	ledgerRepo progress.LedgerRepository,
	goalRepo dailygoal.Repository,
	locks *keyedlock.Arena,
	publisher shared.EventPublisher,
	grace progress.GracePolicy,
	log *logger.Logger,
) *DailyRolloverJob {
	return &DailyRolloverJob{
		ledgerRepo: ledgerRepo,
		goalRepo:   goalRepo,
		locks:      locks,
		publisher:  publisher,
		grace:      grace,
		log:        log.With(logger.Domain("rollover")),
	}
}

// Name implements scheduler.Job.
func (j *DailyRolloverJob) Name() string {
	return "daily_rollover"
}

// Description implements scheduler.Job.
func (j *DailyRolloverJob) Description() string {
	return "Archives stale daily goals and expires broken streaks"
}

// Run implements scheduler.Job.
func (j *DailyRolloverJob) Run(ctx context.Context) error {
	now := time.Now()
	today := timeutil.DayKey(now)

	archived, err := j.goalRepo.ArchiveBefore(ctx, today)
	if err != nil {
		return err
	}

	expired, err := j.expireStreaks(ctx, now)
	if err != nil {
		return err
	}

	j.log.Info("rollover finished",
		logger.String("day", today),
		logger.Int("goals_archived", archived),
		logger.Int("streaks_expired", expired))
	return nil
}

// expireStreaks zeroes the current streak of every ledger whose grace
// window has passed. Each ledger is handled under its user lock so a
// concurrent XP award cannot be lost.
func (j *DailyRolloverJob) expireStreaks(ctx context.Context, now time.Time) (int, error) {
	ledgers, err := j.ledgerRepo.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, stale := range ledgers {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		userID := stale.UserID
		err := j.locks.WithLock(userID.String(), func() error {
			ledger, err := j.ledgerRepo.FindByUserID(ctx, userID)
			if err != nil {
				return err
			}

			transition := ledger.RefreshStreak(now, j.grace)
			if !transition.Broken {
				return nil
			}
			if err := j.ledgerRepo.Save(ctx, ledger); err != nil {
				return err
			}

			expired++
			if j.publisher != nil {
				if pubErr := j.publisher.Publish(progress.NewStreakBrokenEvent(
					userID, transition.PreviousStreak, ledger.MaxStreak)); pubErr != nil {
					j.log.Warn("failed to publish streak broken event",
						logger.UserID(userID.String()), logger.Err(pubErr))
				}
			}
			return nil
		})
		if err != nil {
			j.log.Warn("streak expiry failed",
				logger.UserID(userID.String()), logger.Err(err))
		}
	}
	return expired, nil
}
