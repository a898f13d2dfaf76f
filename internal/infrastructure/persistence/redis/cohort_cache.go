package redis

import (
	"context"
	"errors"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COHORT CACHE
// Stores the last cohort snapshot per user together with its fetch time,
// so the leaderboard query can distinguish fresh from stale data and keep
// serving stale snapshots while the platform is down.
// ══════════════════════════════════════════════════════════════════════════════

// cohortTTL bounds how long a stale snapshot is kept around at all.
const cohortTTL = 24 * time.Hour

// CohortCache implements query.CohortCache on top of Redis.
type CohortCache struct {
	cache *Cache
}

// NewCohortCache creates a new CohortCache.
func NewCohortCache(cache *Cache) *CohortCache {
	return &CohortCache{cache: cache}
}

type cohortEnvelope struct {
	FetchedAt time.Time      `json:"fetched_at"`
	Members   []cohortMember `json:"members"`
}

type cohortMember struct {
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	TotalXP        int       `json:"total_xp"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// GetCohort returns the cached cohort and its age.
// Returns shared.ErrNotFound on a miss.
func (c *CohortCache) GetCohort(ctx context.Context, userID progress.UserID) ([]progress.CohortMember, time.Duration, error) {
	var envelope cohortEnvelope
	err := c.cache.Get(ctx, cohortKey(userID), &envelope)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, 0, shared.NewDomainError("leaderboard", "GetCohort", shared.ErrNotFound, "no cached cohort")
		}
		return nil, 0, shared.WrapError("leaderboard", "GetCohort", shared.ErrStorage, "cohort cache read failed", err)
	}

	members := make([]progress.CohortMember, 0, len(envelope.Members))
	for _, m := range envelope.Members {
		members = append(members, progress.CohortMember{
			UserID:         progress.UserID(m.UserID),
			DisplayName:    m.DisplayName,
			TotalXP:        progress.XP(m.TotalXP),
			LastActivityAt: m.LastActivityAt,
		})
	}
	return members, time.Since(envelope.FetchedAt), nil
}

// SetCohort stores a fresh cohort snapshot.
func (c *CohortCache) SetCohort(ctx context.Context, userID progress.UserID, members []progress.CohortMember) error {
	envelope := cohortEnvelope{
		FetchedAt: time.Now().UTC(),
		Members:   make([]cohortMember, 0, len(members)),
	}
	for _, m := range members {
		envelope.Members = append(envelope.Members, cohortMember{
			UserID:         m.UserID.String(),
			DisplayName:    m.DisplayName,
			TotalXP:        m.TotalXP.Int(),
			LastActivityAt: m.LastActivityAt.UTC(),
		})
	}

	if err := c.cache.Set(ctx, cohortKey(userID), envelope, cohortTTL); err != nil {
		return shared.WrapError("leaderboard", "SetCohort", shared.ErrStorage, "cohort cache write failed", err)
	}
	return nil
}

func cohortKey(userID progress.UserID) string {
	return PrefixCohort + userID.String()
}
