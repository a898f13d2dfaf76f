package dailygoal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

func newGoal(t *testing.T, at time.Time) *Goal {
	t.Helper()
	goal, err := NewGoal("user-1", DefaultTargets(), at)
	require.NoError(t, err)
	return goal
}

func TestNewGoal_Validation(t *testing.T) {
	now := time.Now()

	_, err := NewGoal("", DefaultTargets(), now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = NewGoal("user-1", Targets{XP: 0, Quizzes: 3}, now)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = NewGoal("user-1", Targets{XP: 50, Quizzes: -1}, now)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestGoal_DayKeyMatchesPlatformDay(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)

	assert.Equal(t, "2026-03-15", goal.DayKey)
	assert.True(t, goal.IsForDay(at))
	assert.False(t, goal.IsForDay(at.AddDate(0, 0, 1)))
}

func TestRecordActivity_CompletesByXP(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)

	completed, err := goal.RecordActivity(30, progress.SourceChapterCompleted, at)
	require.NoError(t, err)
	assert.False(t, completed)
	assert.False(t, goal.IsCompleted())

	// 30 + 25 = 55 >= 50: this event completes the goal.
	completed, err = goal.RecordActivity(25, progress.SourceChapterCompleted, at)
	require.NoError(t, err)
	assert.True(t, completed)
	assert.True(t, goal.IsCompleted())
}

func TestRecordActivity_CompletesByQuizzes(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)

	// Three small quizzes never reach the 50 XP target, but the quiz
	// target completes the goal on its own (OR semantics).
	for i := 0; i < 2; i++ {
		completed, err := goal.RecordActivity(5, progress.SourceQuizCompleted, at)
		require.NoError(t, err)
		assert.False(t, completed)
	}
	completed, err := goal.RecordActivity(5, progress.SourceQuizPerfect, at)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestRecordActivity_CompletionFiresOnce(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)

	completed, err := goal.RecordActivity(60, progress.SourceBookCompleted, at)
	require.NoError(t, err)
	assert.True(t, completed)
	firstCompletedAt := *goal.CompletedAt

	// Activity keeps accumulating after completion, but the completion
	// transition is never reported again.
	completed, err = goal.RecordActivity(40, progress.SourceQuizCompleted, at.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, completed)
	assert.Equal(t, progress.XP(100), goal.EarnedXP)
	assert.Equal(t, firstCompletedAt, *goal.CompletedAt)
}

func TestRecordActivity_ArchivedGoalRejects(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)
	goal.Archive()

	_, err := goal.RecordActivity(10, progress.SourceQuizCompleted, at)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	// Archive is idempotent.
	goal.Archive()
	assert.True(t, goal.Archived)
}

func TestGoal_Progress(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)
	assert.Zero(t, goal.Progress())

	// 2 of 3 quizzes vs 10 of 50 XP: quiz progress dominates.
	_, err := goal.RecordActivity(5, progress.SourceQuizCompleted, at)
	require.NoError(t, err)
	_, err = goal.RecordActivity(5, progress.SourceQuizCompleted, at)
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, goal.Progress(), 0.001)

	// Completed goal caps at 1 even as counters keep growing.
	_, err = goal.RecordActivity(200, progress.SourceBookCompleted, at)
	require.NoError(t, err)
	assert.Equal(t, 1.0, goal.Progress())
}

func TestGoal_CompletedBeforeNoon(t *testing.T) {
	morning := time.Date(2026, 3, 15, 9, 30, 0, 0, timeutil.Location())
	goal := newGoal(t, morning)
	_, err := goal.RecordActivity(60, progress.SourceBookCompleted, morning)
	require.NoError(t, err)
	assert.True(t, goal.CompletedBeforeNoon())

	evening := time.Date(2026, 3, 15, 19, 0, 0, 0, timeutil.Location())
	late := newGoal(t, evening)
	_, err = late.RecordActivity(60, progress.SourceBookCompleted, evening)
	require.NoError(t, err)
	assert.False(t, late.CompletedBeforeNoon())

	assert.False(t, newGoal(t, morning).CompletedBeforeNoon())
}

func TestGoal_Clone(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal := newGoal(t, at)
	_, err := goal.RecordActivity(60, progress.SourceBookCompleted, at)
	require.NoError(t, err)

	clone := goal.Clone()
	*clone.CompletedAt = time.Time{}
	clone.EarnedXP = 0

	assert.False(t, goal.CompletedAt.IsZero())
	assert.Equal(t, progress.XP(60), goal.EarnedXP)
}
