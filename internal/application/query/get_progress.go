// Package query contains read operations (CQRS - Queries).
// Queries return tri-state results: Loading, Success, or a classified
// Error. Reads never mutate state and work from post-commit snapshots.
package query

import (
	"context"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// The main profile read: XP, level, streak, sync state in one view.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery requests the progress view for one user.
type GetProgressQuery struct {
	// UserID is the user to read.
	UserID string
}

// ProgressView is the read model for a user's progress.
type ProgressView struct {
	UserID      string
	DisplayName string

	TotalXP       int
	Level         int
	LevelProgress float64
	XPToNextLevel int

	Streak progress.StreakStatus

	Badges []string

	// UnsyncedXP is local XP not yet acknowledged by the platform.
	UnsyncedXP int
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	ledgerRepo  progress.LedgerRepository
	gracePolicy progress.GracePolicy
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(ledgerRepo progress.LedgerRepository, gracePolicy progress.GracePolicy) *GetProgressHandler {
	return &GetProgressHandler{ledgerRepo: ledgerRepo, gracePolicy: gracePolicy}
}

// Handle executes the query. A user with no ledger yet gets a fresh
// zero-progress view, mirroring the lazy creation on the write path.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) shared.Result[ProgressView] {
	if q.UserID == "" {
		return shared.Failure[ProgressView](shared.KindValidation, "user_id is required", nil)
	}

	ledger, err := h.ledgerRepo.FindByUserID(ctx, progress.UserID(q.UserID))
	if err != nil {
		if shared.IsNotFound(err) {
			return shared.Success(freshProgressView(q.UserID))
		}
		return shared.FailureFrom[ProgressView](err)
	}

	return shared.Success(progressViewOf(ledger, h.gracePolicy))
}

func progressViewOf(ledger *progress.Ledger, policy progress.GracePolicy) ProgressView {
	badges := make([]string, len(ledger.Badges))
	copy(badges, ledger.Badges)

	return ProgressView{
		UserID:        ledger.UserID.String(),
		DisplayName:   ledger.DisplayName,
		TotalXP:       ledger.TotalXP.Int(),
		Level:         int(ledger.Level()),
		LevelProgress: progress.LevelProgress(ledger.TotalXP),
		XPToNextLevel: progress.XPToNextLevel(ledger.TotalXP).Int(),
		Streak:        ledger.StreakStatusAt(timeutil.Now(), policy),
		Badges:        badges,
		UnsyncedXP:    ledger.UnsyncedDelta().Int(),
	}
}

func freshProgressView(userID string) ProgressView {
	return ProgressView{
		UserID:        userID,
		Level:         1,
		XPToNextLevel: progress.XPThreshold(2).Int(),
		Streak:        progress.StreakStatus{State: progress.StreakNoActivity},
		Badges:        []string{},
	}
}
