package query

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY GOAL QUERY
// Read-only: the goal is created lazily on the WRITE path. A day with no
// activity yet is served as an untouched default goal view.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyGoalQuery requests the goal of one user for today.
type GetDailyGoalQuery struct {
	// UserID is the user to read.
	UserID string

	// At overrides "today" (for tests and backfills). Zero means now.
	At time.Time
}

// DailyGoalView is the read model for the daily goal widget.
type DailyGoalView struct {
	DayKey           string
	TargetXP         int
	TargetQuizzes    int
	EarnedXP         int
	CompletedQuizzes int
	Progress         float64
	IsCompleted      bool
	CompletedAt      *time.Time
}

// GetDailyGoalHandler handles GetDailyGoalQuery.
type GetDailyGoalHandler struct {
	goalRepo dailygoal.Repository
	targets  dailygoal.Targets
}

// NewGetDailyGoalHandler creates a new GetDailyGoalHandler.
func NewGetDailyGoalHandler(goalRepo dailygoal.Repository, targets dailygoal.Targets) *GetDailyGoalHandler {
	return &GetDailyGoalHandler{goalRepo: goalRepo, targets: targets}
}

// Handle executes the query.
func (h *GetDailyGoalHandler) Handle(ctx context.Context, q GetDailyGoalQuery) shared.Result[DailyGoalView] {
	if q.UserID == "" {
		return shared.Failure[DailyGoalView](shared.KindValidation, "user_id is required", nil)
	}

	at := q.At
	if at.IsZero() {
		at = timeutil.Now()
	}
	dayKey := timeutil.DayKey(at)

	goal, err := h.goalRepo.FindByDay(ctx, progress.UserID(q.UserID), dayKey)
	if err != nil {
		if shared.IsNotFound(err) {
			return shared.Success(DailyGoalView{
				DayKey:        dayKey,
				TargetXP:      h.targets.XP.Int(),
				TargetQuizzes: h.targets.Quizzes,
			})
		}
		return shared.FailureFrom[DailyGoalView](err)
	}

	view := DailyGoalView{
		DayKey:           goal.DayKey,
		TargetXP:         goal.Targets.XP.Int(),
		TargetQuizzes:    goal.Targets.Quizzes,
		EarnedXP:         goal.EarnedXP.Int(),
		CompletedQuizzes: goal.CompletedQuizzes,
		Progress:         goal.Progress(),
		IsCompleted:      goal.IsCompleted(),
	}
	if goal.CompletedAt != nil {
		done := *goal.CompletedAt
		view.CompletedAt = &done
	}
	return shared.Success(view)
}
