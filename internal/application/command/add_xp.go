// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD XP COMMAND
// The single write path for earned XP. Applies the event to the ledger,
// advances the streak, feeds the daily goal, evaluates badges, and publishes
// domain events from the post-commit snapshot. All writes for one user are
// serialized through a per-user lock.
// ══════════════════════════════════════════════════════════════════════════════

// AddXPCommand contains the data for one XP award.
type AddXPCommand struct {
	// UserID is the user earning the XP.
	UserID string

	// DisplayName is used when the ledger is created lazily on first activity.
	DisplayName string

	// Amount is the XP amount. Must be positive.
	Amount int

	// Source describes where the XP came from.
	Source progress.XPSource

	// Description is a human-readable label for the activity.
	Description string

	// OccurredAt is when the activity happened. Zero means now.
	OccurredAt time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AddXPCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("add_xp: user_id is required")
	}
	if c.Amount <= 0 {
		return fmt.Errorf("add_xp: %w", shared.ErrNonPositiveXP)
	}
	if !c.Source.IsValid() {
		return fmt.Errorf("add_xp: invalid source: %s", c.Source)
	}
	return nil
}

// AddXPResult contains the outcome of an XP award.
type AddXPResult struct {
	// Outcome is the ledger-level result: new total, level, level-up flag.
	Outcome progress.XPOutcome

	// Streak is what happened to the streak.
	Streak progress.StreakTransition

	// GoalCompleted is true when this award completed the daily goal.
	GoalCompleted bool

	// NewBadges lists badges earned by this award, in catalog order.
	NewBadges []badge.Badge

	// Ledger is a post-commit snapshot of the ledger.
	Ledger *progress.Ledger

	// Events contains the domain events generated.
	Events []shared.Event
}

// AddXPConfig tunes the handler.
type AddXPConfig struct {
	// GracePolicy controls the streak grace window.
	GracePolicy progress.GracePolicy

	// GoalTargets are the daily goal targets for lazily created goals.
	GoalTargets dailygoal.Targets
}

// DefaultAddXPConfig returns the standard configuration.
func DefaultAddXPConfig() AddXPConfig {
	return AddXPConfig{
		GracePolicy: progress.DefaultGracePolicy(),
		GoalTargets: dailygoal.DefaultTargets(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AddXPHandler handles the AddXPCommand.
type AddXPHandler struct {
	ledgerRepo progress.LedgerRepository
	eventRepo  progress.XPEventRepository
	goalRepo   dailygoal.Repository
	evaluator  *badge.Evaluator
	locks      *keyedlock.Arena
	publisher  shared.EventPublisher
	config     AddXPConfig
	log        *logger.Logger
}

// NewAddXPHandler creates a new AddXPHandler.
func NewAddXPHandler(
	ledgerRepo progress.LedgerRepository,
	eventRepo progress.XPEventRepository,
	goalRepo dailygoal.Repository,
	evaluator *badge.Evaluator,
	locks *keyedlock.Arena,
	publisher shared.EventPublisher,
	config AddXPConfig,
	log *logger.Logger,
) *AddXPHandler {
	return &AddXPHandler{
		ledgerRepo: ledgerRepo,
		eventRepo:  eventRepo,
		goalRepo:   goalRepo,
		evaluator:  evaluator,
		locks:      locks,
		publisher:  publisher,
		config:     config,
		log:        log.With(logger.Domain("progress")),
	}
}

// Handle executes the add XP command.
func (h *AddXPHandler) Handle(ctx context.Context, cmd AddXPCommand) (*AddXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	userID := progress.UserID(cmd.UserID)
	var result *AddXPResult

	err := h.locks.WithLock(cmd.UserID, func() error {
		// Cancellation is honored up to the commit point. Once the ledger
		// is saved, the operation completed and cancellation is a no-op.
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		result, err = h.apply(ctx, userID, cmd)
		return err
	})
	if err != nil {
		// On a failed commit apply still reports the computed outcome.
		return result, err
	}

	// Publishing happens outside the user lock, from the snapshot.
	if pubErr := h.publisher.PublishAll(result.Events); pubErr != nil {
		h.log.Warn("failed to publish xp events",
			logger.UserID(cmd.UserID), logger.Err(pubErr))
	}

	return result, nil
}

func (h *AddXPHandler) apply(ctx context.Context, userID progress.UserID, cmd AddXPCommand) (*AddXPResult, error) {
	ledger, err := h.loadOrCreate(ctx, userID, cmd.DisplayName)
	if err != nil {
		return nil, err
	}

	event, err := progress.NewXPEvent(userID, progress.XP(cmd.Amount), cmd.Source, cmd.Description, cmd.OccurredAt)
	if err != nil {
		return nil, err
	}

	oldLevel := ledger.Level()
	outcome, err := ledger.ApplyEvent(event)
	if err != nil {
		return nil, err
	}

	result := &AddXPResult{Outcome: outcome}
	result.Events = append(result.Events,
		progress.NewXPGainedEvent(userID, outcome.XPEarned, event.Source, outcome.NewTotalXP, outcome.NewLevel))

	// Streak advances for real activity only, never for the derived
	// bonus and reward sources below.
	result.Streak = ledger.RecordStreakActivity(event.OccurredAt, h.config.GracePolicy)
	if result.Streak.Broken {
		result.Events = append(result.Events,
			progress.NewStreakBrokenEvent(userID, result.Streak.PreviousStreak, ledger.MaxStreak))
	}

	journal := []*progress.XPEvent{event}

	if result.Streak.Extended {
		bonus := progress.BonusXPForStreak(result.Streak.CurrentStreak)
		if bonus > 0 {
			bonusEvent, bonusOutcome, err := h.applyDerived(ledger, userID,
				bonus, progress.SourceStreakBonus,
				fmt.Sprintf("Streak bonus: %d days", result.Streak.CurrentStreak), event.OccurredAt)
			if err != nil {
				return nil, err
			}
			journal = append(journal, bonusEvent)
			result.Outcome.StreakBonus = bonus
			result.Outcome.NewTotalXP = bonusOutcome.NewTotalXP
			result.Outcome.NewLevel = bonusOutcome.NewLevel
		}
		result.Events = append(result.Events,
			progress.NewStreakUpdatedEvent(userID, result.Streak.CurrentStreak, ledger.MaxStreak,
				result.Streak.NewRecord, result.Outcome.StreakBonus))
	}

	// Daily goal: lazily created for the event's calendar day.
	goal, goalEvents, err := h.updateDailyGoal(ctx, ledger, event)
	if err != nil {
		return nil, err
	}
	result.Events = append(result.Events, goalEvents...)
	if goal != nil && len(goalEvents) > 0 {
		for _, ge := range goalEvents {
			if ge.EventType() == shared.EventDailyGoalCompleted {
				result.GoalCompleted = true
				rewardEvent, rewardOutcome, err := h.applyDerived(ledger, userID,
					goalRewardXP, progress.SourceDailyGoal, "Daily goal completed", event.OccurredAt)
				if err != nil {
					return nil, err
				}
				journal = append(journal, rewardEvent)
				result.Outcome.NewTotalXP = rewardOutcome.NewTotalXP
				result.Outcome.NewLevel = rewardOutcome.NewLevel
			}
		}
	}

	// Badges: evaluated against the updated ledger and the user's stats.
	// Rewards feed back through the same XP pipeline.
	stats, err := h.collectStats(ctx, userID)
	if err != nil {
		h.log.Warn("badge stats unavailable, skipping evaluation",
			logger.UserID(userID.String()), logger.Err(err))
	} else {
		// The journal of this command is not committed yet; fold it in so
		// the award that triggered the command counts toward badges.
		foldJournal(&stats, journal)
		for _, earned := range h.evaluator.NewlyEligible(ledger, stats) {
			if !ledger.AwardBadge(earned.ID) {
				continue
			}
			result.NewBadges = append(result.NewBadges, earned)
			result.Events = append(result.Events, newBadgeAwardedEvent(userID, earned))

			if earned.XPReward > 0 {
				rewardEvent, rewardOutcome, err := h.applyDerived(ledger, userID,
					progress.XP(earned.XPReward), progress.SourceBadgeEarned,
					"Badge: "+earned.Title, event.OccurredAt)
				if err != nil {
					return nil, err
				}
				journal = append(journal, rewardEvent)
				result.Outcome.NewTotalXP = rewardOutcome.NewTotalXP
				result.Outcome.NewLevel = rewardOutcome.NewLevel
			}
		}
	}

	newLevel := ledger.Level()
	if newLevel > oldLevel {
		result.Outcome.LeveledUp = true
		result.Outcome.NewLevel = newLevel
		result.Events = append(result.Events,
			progress.NewLevelUpEvent(userID, oldLevel, newLevel, ledger.TotalXP))
	}

	// Commit: the ledger save is the commit point for the whole command.
	// Journal rows and the goal snapshot follow it, so a failed commit
	// leaves no phantom activity for the badge stats to count.
	if err := h.ledgerRepo.Save(ctx, ledger); err != nil {
		// The computed outcome still goes back to the caller; the
		// storage error flags that the write was lost.
		result.Ledger = ledger.Clone()
		return result, shared.WrapError("progress", "AddXP", shared.ErrStorage, "failed to save ledger", err)
	}
	for _, je := range journal {
		if err := h.eventRepo.Append(ctx, je); err != nil {
			h.log.Error("xp journal append failed after ledger commit",
				logger.UserID(userID.String()), logger.Err(err))
			break
		}
	}
	if goal != nil {
		if err := h.goalRepo.Save(ctx, goal); err != nil {
			// The ledger committed; a torn goal write must not hide the
			// XP award. Surface it as a partial storage failure.
			h.log.Error("daily goal save failed after ledger commit",
				logger.UserID(userID.String()), logger.Err(err))
		}
	}

	result.Ledger = ledger.Clone()

	h.log.Info("xp applied",
		logger.UserID(userID.String()),
		logger.XP(result.Outcome.XPEarned.Int()),
		logger.String("source", string(event.Source)),
		logger.Int("total_xp", result.Outcome.NewTotalXP.Int()),
		logger.Int("level", int(result.Outcome.NewLevel)),
		logger.Bool("leveled_up", result.Outcome.LeveledUp))

	return result, nil
}

// goalRewardXP is awarded once per completed daily goal.
const goalRewardXP = progress.XP(25)

// loadOrCreate loads the user's ledger, creating it on first activity.
func (h *AddXPHandler) loadOrCreate(ctx context.Context, userID progress.UserID, displayName string) (*progress.Ledger, error) {
	ledger, err := h.ledgerRepo.FindByUserID(ctx, userID)
	if err == nil {
		return ledger, nil
	}
	if !shared.IsNotFound(err) {
		return nil, err
	}
	return progress.NewLedger(userID, displayName)
}

// applyDerived applies a derived XP event (streak bonus, goal reward,
// badge reward) to the ledger without touching the streak again.
func (h *AddXPHandler) applyDerived(
	ledger *progress.Ledger,
	userID progress.UserID,
	amount progress.XP,
	source progress.XPSource,
	description string,
	at time.Time,
) (*progress.XPEvent, progress.XPOutcome, error) {
	event, err := progress.NewXPEvent(userID, amount, source, description, at)
	if err != nil {
		return nil, progress.XPOutcome{}, err
	}
	outcome, err := ledger.ApplyEvent(event)
	if err != nil {
		return nil, progress.XPOutcome{}, err
	}
	return event, outcome, nil
}

func (h *AddXPHandler) updateDailyGoal(ctx context.Context, ledger *progress.Ledger, event *progress.XPEvent) (*dailygoal.Goal, []shared.Event, error) {
	dayKey := timeutil.DayKey(event.OccurredAt)
	var events []shared.Event

	goal, err := h.goalRepo.FindByDay(ctx, event.UserID, dayKey)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, nil, err
		}

		// Rolling over: the previous day's goal, if any, is archived.
		if stale, staleErr := h.goalRepo.FindActiveByUser(ctx, event.UserID); staleErr == nil && !stale.IsForDay(event.OccurredAt) {
			stale.Archive()
			if saveErr := h.goalRepo.Save(ctx, stale); saveErr != nil {
				return nil, nil, saveErr
			}
			events = append(events, newGoalArchivedEvent(event.UserID, stale))
		}

		goal, err = dailygoal.NewGoal(event.UserID, h.config.GoalTargets, event.OccurredAt)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, newGoalCreatedEvent(event.UserID, goal))
	}

	completed, err := goal.RecordActivity(event.Amount, event.Source, event.OccurredAt)
	if err != nil {
		return nil, nil, err
	}
	if completed {
		events = append(events, newGoalCompletedEvent(event.UserID, goal))
	}

	return goal, events, nil
}

// foldJournal adds uncommitted journal events into the stats counters.
func foldJournal(stats *badge.UserStats, journal []*progress.XPEvent) {
	for _, e := range journal {
		switch e.Source {
		case progress.SourceQuizCompleted:
			stats.QuizzesCompleted++
		case progress.SourceQuizPerfect:
			stats.QuizzesCompleted++
			stats.PerfectQuizzes++
		case progress.SourceChapterCompleted:
			stats.ChaptersCompleted++
		case progress.SourceBookCompleted:
			stats.BooksCompleted++
		}
	}
}

// collectStats aggregates the activity counters badges are judged against.
func (h *AddXPHandler) collectStats(ctx context.Context, userID progress.UserID) (badge.UserStats, error) {
	var stats badge.UserStats
	var err error

	if stats.QuizzesCompleted, err = h.countQuizzes(ctx, userID); err != nil {
		return stats, err
	}
	if stats.PerfectQuizzes, err = h.eventRepo.CountBySource(ctx, userID, progress.SourceQuizPerfect); err != nil {
		return stats, err
	}
	if stats.ChaptersCompleted, err = h.eventRepo.CountBySource(ctx, userID, progress.SourceChapterCompleted); err != nil {
		return stats, err
	}
	if stats.BooksCompleted, err = h.eventRepo.CountBySource(ctx, userID, progress.SourceBookCompleted); err != nil {
		return stats, err
	}
	if stats.GoalsBeforeNoonCount, err = h.goalRepo.CountCompletedBeforeNoon(ctx, userID); err != nil {
		return stats, err
	}
	return stats, nil
}

func (h *AddXPHandler) countQuizzes(ctx context.Context, userID progress.UserID) (int, error) {
	completed, err := h.eventRepo.CountBySource(ctx, userID, progress.SourceQuizCompleted)
	if err != nil {
		return 0, err
	}
	perfect, err := h.eventRepo.CountBySource(ctx, userID, progress.SourceQuizPerfect)
	if err != nil {
		return 0, err
	}
	return completed + perfect, nil
}
