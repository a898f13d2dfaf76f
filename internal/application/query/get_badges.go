package query

import (
	"context"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BADGES QUERY
// The full catalog with per-user earned state and progress toward each
// unearned badge.
// ══════════════════════════════════════════════════════════════════════════════

// GetBadgesQuery requests the badge board for one user.
type GetBadgesQuery struct {
	// UserID is the user to read.
	UserID string
}

// BadgeBoardView is the read model for the badge screen.
type BadgeBoardView struct {
	Badges      []badge.BadgeInfo
	EarnedCount int
	TotalCount  int
}

// GetBadgesHandler handles GetBadgesQuery.
type GetBadgesHandler struct {
	ledgerRepo progress.LedgerRepository
	eventRepo  progress.XPEventRepository
	goalRepo   dailygoal.Repository
	evaluator  *badge.Evaluator
}

// NewGetBadgesHandler creates a new GetBadgesHandler.
func NewGetBadgesHandler(
	ledgerRepo progress.LedgerRepository,
	eventRepo progress.XPEventRepository,
	goalRepo dailygoal.Repository,
	evaluator *badge.Evaluator,
) *GetBadgesHandler {
	return &GetBadgesHandler{
		ledgerRepo: ledgerRepo,
		eventRepo:  eventRepo,
		goalRepo:   goalRepo,
		evaluator:  evaluator,
	}
}

// Handle executes the query. A user without a ledger sees the catalog
// with zero progress everywhere.
func (h *GetBadgesHandler) Handle(ctx context.Context, q GetBadgesQuery) shared.Result[BadgeBoardView] {
	if q.UserID == "" {
		return shared.Failure[BadgeBoardView](shared.KindValidation, "user_id is required", nil)
	}

	userID := progress.UserID(q.UserID)

	ledger, err := h.ledgerRepo.FindByUserID(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return shared.FailureFrom[BadgeBoardView](err)
		}
		ledger, err = progress.NewLedger(userID, "")
		if err != nil {
			return shared.FailureFrom[BadgeBoardView](err)
		}
	}

	stats, err := h.collectStats(ctx, userID)
	if err != nil {
		return shared.FailureFrom[BadgeBoardView](err)
	}

	infos := h.evaluator.Describe(ledger, stats)
	view := BadgeBoardView{
		Badges:     infos,
		TotalCount: len(infos),
	}
	for _, info := range infos {
		if info.IsEarned {
			view.EarnedCount++
		}
	}
	return shared.Success(view)
}

func (h *GetBadgesHandler) collectStats(ctx context.Context, userID progress.UserID) (badge.UserStats, error) {
	var stats badge.UserStats

	quizzes, err := h.eventRepo.CountBySource(ctx, userID, progress.SourceQuizCompleted)
	if err != nil {
		return stats, err
	}
	perfect, err := h.eventRepo.CountBySource(ctx, userID, progress.SourceQuizPerfect)
	if err != nil {
		return stats, err
	}
	stats.QuizzesCompleted = quizzes + perfect
	stats.PerfectQuizzes = perfect

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
