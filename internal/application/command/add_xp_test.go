package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

type addXPFixture struct {
	handler   *AddXPHandler
	ledgers   *memLedgerRepo
	events    *memEventRepo
	goals     *memGoalRepo
	published *capturePublisher
}

func newAddXPFixture(t *testing.T) *addXPFixture {
	t.Helper()
	evaluator, err := badge.NewEvaluator(badge.DefaultCatalog())
	require.NoError(t, err)

	f := &addXPFixture{
		ledgers:   newMemLedgerRepo(),
		events:    newMemEventRepo(),
		goals:     newMemGoalRepo(),
		published: &capturePublisher{},
	}
	f.handler = NewAddXPHandler(
		f.ledgers, f.events, f.goals, evaluator,
		keyedlock.New(), f.published, DefaultAddXPConfig(), logger.Nop(),
	)
	return f
}

func TestAddXP_FirstActivityCreatesEverything(t *testing.T) {
	f := newAddXPFixture(t)
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())

	result, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID:      "user-1",
		DisplayName: "Aruzhan",
		Amount:      30,
		Source:      progress.SourceQuizCompleted,
		OccurredAt:  at,
	})
	require.NoError(t, err)

	// Ledger was created lazily and the first quiz badge fired, feeding
	// its 20 XP reward back through the ledger.
	require.Len(t, result.NewBadges, 1)
	assert.Equal(t, "first_quiz", result.NewBadges[0].ID)
	assert.Equal(t, progress.XP(50), result.Outcome.NewTotalXP)
	assert.Equal(t, progress.Level(1), result.Outcome.NewLevel)
	assert.False(t, result.Outcome.LeveledUp)

	// First-ever activity starts a streak of 1 with no bonus.
	assert.True(t, result.Streak.Extended)
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	assert.Equal(t, progress.XP(0), result.Outcome.StreakBonus)

	// Daily goal was lazily created: 1 of 3 quizzes, not complete.
	assert.False(t, result.GoalCompleted)
	goal, err := f.goals.FindByDay(context.Background(), "user-1", "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 1, goal.CompletedQuizzes)

	// Ledger persisted with the badge on it.
	saved, err := f.ledgers.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, saved.HasBadge("first_quiz"))
	assert.Equal(t, progress.XP(50), saved.TotalXP)

	// The journal holds the quiz event and the badge reward.
	quizCount, _ := f.events.CountBySource(context.Background(), "user-1", progress.SourceQuizCompleted)
	badgeCount, _ := f.events.CountBySource(context.Background(), "user-1", progress.SourceBadgeEarned)
	assert.Equal(t, 1, quizCount)
	assert.Equal(t, 1, badgeCount)

	assert.NotEmpty(t, f.published.byType(shared.EventXPGained))
	assert.NotEmpty(t, f.published.byType(shared.EventBadgeAwarded))
	assert.NotEmpty(t, f.published.byType(shared.EventDailyGoalCreated))
}

func TestAddXP_NextDayStreakBonus(t *testing.T) {
	f := newAddXPFixture(t)
	day1 := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	day2 := day1.AddDate(0, 0, 1)

	_, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 10, Source: progress.SourceDailyLogin, OccurredAt: day1,
	})
	require.NoError(t, err)

	result, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 10, Source: progress.SourceDailyLogin, OccurredAt: day2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Streak.CurrentStreak)
	assert.Equal(t, progress.XP(10), result.Outcome.StreakBonus)
	// 10 + 10 + 10 bonus.
	assert.Equal(t, progress.XP(30), result.Outcome.NewTotalXP)
	assert.NotEmpty(t, f.published.byType(shared.EventStreakUpdated))

	bonusCount, _ := f.events.CountBySource(context.Background(), "user-1", progress.SourceStreakBonus)
	assert.Equal(t, 1, bonusCount)
}

func TestAddXP_GoalCompletionReward(t *testing.T) {
	f := newAddXPFixture(t)
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())

	result, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 60, Source: progress.SourceBookCompleted, OccurredAt: at,
	})
	require.NoError(t, err)

	// 60 XP passes the 50 XP daily target: goal completes and pays 25 XP.
	// The finished book also earns first_book (+50).
	assert.True(t, result.GoalCompleted)
	require.Len(t, result.NewBadges, 1)
	assert.Equal(t, "first_book", result.NewBadges[0].ID)
	assert.Equal(t, progress.XP(60+25+50), result.Outcome.NewTotalXP)

	assert.NotEmpty(t, f.published.byType(shared.EventDailyGoalCompleted))
}

func TestAddXP_LevelUpReportedOnce(t *testing.T) {
	f := newAddXPFixture(t)
	at := time.Date(2026, 3, 15, 15, 0, 0, 0, timeutil.Location())

	// 1200 XP crosses several thresholds in one command.
	result, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 1200, Source: progress.SourceAIChallenge, OccurredAt: at,
	})
	require.NoError(t, err)

	assert.True(t, result.Outcome.LeveledUp)
	assert.Equal(t, result.Outcome.NewLevel, result.Ledger.Level())
	assert.Len(t, f.published.byType(shared.EventLevelUp), 1)
}

func TestAddXP_RejectsInvalidCommand(t *testing.T) {
	f := newAddXPFixture(t)

	_, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 0, Source: progress.SourceQuizCompleted,
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.handler.Handle(context.Background(), AddXPCommand{
		Amount: 10, Source: progress.SourceQuizCompleted,
	})
	assert.Error(t, err)

	// Nothing was created.
	_, err = f.ledgers.FindByUserID(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAddXP_StorageFailureSurfaces(t *testing.T) {
	f := newAddXPFixture(t)
	f.ledgers.saveErr = shared.ErrLedgerSaveFailed

	result, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 10, Source: progress.SourceQuizCompleted,
	})
	require.Error(t, err)
	assert.True(t, shared.IsStorage(err))

	// The computed outcome is still reported, flagged by the error:
	// 10 XP from the quiz plus the 20 XP first_quiz reward.
	require.NotNil(t, result)
	assert.Equal(t, progress.XP(30), result.Outcome.NewTotalXP)
	assert.Equal(t, 1, result.Streak.CurrentStreak)
	require.NotNil(t, result.Ledger)
	assert.True(t, result.Ledger.HasBadge("first_quiz"))

	// Nothing was persisted: no ledger, no journal rows to feed the
	// badge stats phantom activity.
	_, err = f.ledgers.FindByUserID(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	quizCount, _ := f.events.CountBySource(context.Background(), "user-1", progress.SourceQuizCompleted)
	badgeCount, _ := f.events.CountBySource(context.Background(), "user-1", progress.SourceBadgeEarned)
	assert.Zero(t, quizCount)
	assert.Zero(t, badgeCount)
}

func TestAddXP_CancelledContextBeforeCommit(t *testing.T) {
	f := newAddXPFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.handler.Handle(ctx, AddXPCommand{
		UserID: "user-1", Amount: 10, Source: progress.SourceQuizCompleted,
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = f.ledgers.FindByUserID(context.Background(), "user-1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAddXP_GoalRolloverArchivesPreviousDay(t *testing.T) {
	f := newAddXPFixture(t)
	day1 := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	day2 := day1.AddDate(0, 0, 1)

	_, err := f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 10, Source: progress.SourceChapterCompleted, OccurredAt: day1,
	})
	require.NoError(t, err)

	_, err = f.handler.Handle(context.Background(), AddXPCommand{
		UserID: "user-1", Amount: 10, Source: progress.SourceChapterCompleted, OccurredAt: day2,
	})
	require.NoError(t, err)

	old, err := f.goals.FindByDay(context.Background(), "user-1", "2026-03-15")
	require.NoError(t, err)
	assert.True(t, old.Archived)

	current, err := f.goals.FindByDay(context.Background(), "user-1", "2026-03-16")
	require.NoError(t, err)
	assert.False(t, current.Archived)
	assert.NotEmpty(t, f.published.byType(shared.EventDailyGoalArchived))
}
