package query

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/leaderboard"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Fetches the user's cohort (cache first, platform second), ranks it with
// the pure ranker, and serves the snapshot. A cache hit older than the TTL
// is still served as stale partial data while an error is reported.
// ══════════════════════════════════════════════════════════════════════════════

// CohortCache caches cohort snapshots between platform fetches.
// Implemented by infrastructure/persistence/redis.
type CohortCache interface {
	// GetCohort returns the cached cohort and its age.
	// Returns shared.ErrNotFound on a miss.
	GetCohort(ctx context.Context, userID progress.UserID) ([]progress.CohortMember, time.Duration, error)

	// SetCohort stores a fresh cohort snapshot.
	SetCohort(ctx context.Context, userID progress.UserID, members []progress.CohortMember) error
}

// GetLeaderboardQuery requests a ranked leaderboard.
type GetLeaderboardQuery struct {
	// UserID is the requesting user; their row is flagged IsCurrentUser.
	UserID string

	// Scope selects the time window.
	Scope leaderboard.Scope

	// Limit caps the number of rows. 0 means all.
	Limit int
}

// LeaderboardView is the read model for a leaderboard page.
type LeaderboardView struct {
	Scope       leaderboard.Scope
	Entries     []leaderboard.Entry
	CurrentUser *leaderboard.Entry
	GeneratedAt time.Time
}

// GetLeaderboardConfig tunes the handler.
type GetLeaderboardConfig struct {
	// FreshFor is how long a cached cohort is considered fresh.
	FreshFor time.Duration
}

// DefaultGetLeaderboardConfig returns the standard configuration.
func DefaultGetLeaderboardConfig() GetLeaderboardConfig {
	return GetLeaderboardConfig{FreshFor: 5 * time.Minute}
}

// GetLeaderboardHandler handles GetLeaderboardQuery.
type GetLeaderboardHandler struct {
	remote progress.RemoteSource
	cache  CohortCache
	config GetLeaderboardConfig
	log    *logger.Logger
}

// NewGetLeaderboardHandler creates a new GetLeaderboardHandler.
func NewGetLeaderboardHandler(
	remote progress.RemoteSource,
	cache CohortCache,
	config GetLeaderboardConfig,
	log *logger.Logger,
) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		remote: remote,
		cache:  cache,
		config: config,
		log:    log.With(logger.Domain("leaderboard")),
	}
}

// Handle executes the query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) shared.Result[LeaderboardView] {
	if q.UserID == "" {
		return shared.Failure[LeaderboardView](shared.KindValidation, "user_id is required", nil)
	}
	if !q.Scope.IsValid() {
		return shared.FailureFrom[LeaderboardView](shared.ErrInvalidScope)
	}

	userID := progress.UserID(q.UserID)

	cohort, age, cacheErr := h.cache.GetCohort(ctx, userID)
	cacheFresh := cacheErr == nil && age <= h.config.FreshFor

	if !cacheFresh {
		fetched, fetchErr := h.remote.FetchCohort(ctx, userID)
		switch {
		case fetchErr == nil:
			cohort = fetched
			if setErr := h.cache.SetCohort(ctx, userID, fetched); setErr != nil {
				h.log.Warn("failed to cache cohort",
					logger.UserID(q.UserID), logger.Err(setErr))
			}
		case cacheErr == nil:
			// Platform down but a stale cohort exists: serve it as partial
			// data alongside the classified error.
			stale, rankErr := h.rank(cohort, q, userID)
			if rankErr != nil {
				return shared.FailureFrom[LeaderboardView](fetchErr)
			}
			result := shared.FailureFrom[LeaderboardView](fetchErr)
			return shared.WithPartial(result, stale)
		default:
			return shared.FailureFrom[LeaderboardView](fetchErr)
		}
	}

	view, err := h.rank(cohort, q, userID)
	if err != nil {
		return shared.FailureFrom[LeaderboardView](err)
	}
	return shared.Success(view)
}

func (h *GetLeaderboardHandler) rank(cohort []progress.CohortMember, q GetLeaderboardQuery, userID progress.UserID) (LeaderboardView, error) {
	snapshot, err := leaderboard.Rank(cohort, q.Scope, userID, timeutil.Now())
	if err != nil {
		return LeaderboardView{}, err
	}

	view := LeaderboardView{
		Scope:       snapshot.Scope,
		GeneratedAt: snapshot.GeneratedAt,
	}

	if q.Limit > 0 {
		view.Entries = snapshot.Top(q.Limit)
	} else {
		view.Entries = snapshot.Entries
	}

	if me, findErr := snapshot.FindUser(userID); findErr == nil {
		view.CurrentUser = &me
	}

	return view, nil
}
