package eventhandler

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON SYNC MERGED
// A merge can raise the total past a level-badge threshold without going
// through the AddXP pipeline. This handler re-evaluates level and streak
// badges after every merge that applied server-side XP.
// ══════════════════════════════════════════════════════════════════════════════

// SyncMergedHandler awards badges unlocked by merged server XP.
type SyncMergedHandler struct {
	ledgerRepo progress.LedgerRepository
	eventRepo  progress.XPEventRepository
	evaluator  *badge.Evaluator
	locks      *keyedlock.Arena
	log        *logger.Logger
}

// NewSyncMergedHandler creates a new SyncMergedHandler.
func NewSyncMergedHandler(
	ledgerRepo progress.LedgerRepository,
	eventRepo progress.XPEventRepository,
	evaluator *badge.Evaluator,
	locks *keyedlock.Arena,
	log *logger.Logger,
) *SyncMergedHandler {
	return &SyncMergedHandler{
		ledgerRepo: ledgerRepo,
		eventRepo:  eventRepo,
		evaluator:  evaluator,
		locks:      locks,
		log:        log.With(logger.Domain("badge")),
	}
}

// Name implements shared.EventHandler.
func (h *SyncMergedHandler) Name() string {
	return "on_sync_merged"
}

// Handle implements shared.EventHandler.
func (h *SyncMergedHandler) Handle(ctx context.Context, event shared.Event) error {
	if event.EventType() != shared.EventSyncMerged {
		return nil
	}

	userID := progress.UserID(event.AggregateID())
	return h.locks.WithLock(userID.String(), func() error {
		ledger, err := h.ledgerRepo.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}

		// Stats-based badges cannot change from a pure total merge;
		// only ledger-derived predicates (level, streak) can.
		earned := h.evaluator.NewlyEligible(ledger, badge.UserStats{})
		if len(earned) == 0 {
			return nil
		}

		for _, b := range earned {
			if !ledger.AwardBadge(b.ID) {
				continue
			}
			if b.XPReward > 0 {
				reward, err := progress.NewXPEvent(userID, progress.XP(b.XPReward),
					progress.SourceBadgeEarned, "Badge: "+b.Title, time.Now().UTC())
				if err != nil {
					return err
				}
				if _, err := ledger.ApplyEvent(reward); err != nil {
					return err
				}
				if err := h.eventRepo.Append(ctx, reward); err != nil {
					return err
				}
			}
			h.log.Info("badge awarded after sync",
				logger.UserID(userID.String()),
				logger.String("badge_id", b.ID))
		}

		return h.ledgerRepo.Save(ctx, ledger)
	})
}
