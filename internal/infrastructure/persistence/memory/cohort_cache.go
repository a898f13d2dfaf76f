// Package memory provides in-process fallbacks for the Redis-backed
// caches, used when Redis is disabled.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// CohortCache implements query.CohortCache with a plain map. Snapshots
// do not survive a restart, which is acceptable for a fallback: the next
// leaderboard request refetches from the platform.
type CohortCache struct {
	mu      sync.RWMutex
	entries map[progress.UserID]cohortEntry
}

type cohortEntry struct {
	fetchedAt time.Time
	members   []progress.CohortMember
}

// NewCohortCache creates a new in-memory CohortCache.
func NewCohortCache() *CohortCache {
	return &CohortCache{entries: make(map[progress.UserID]cohortEntry)}
}

// GetCohort returns the cached cohort and its age.
// Returns shared.ErrNotFound on a miss.
func (c *CohortCache) GetCohort(_ context.Context, userID progress.UserID) ([]progress.CohortMember, time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, 0, shared.NewDomainError("leaderboard", "GetCohort", shared.ErrNotFound, "no cached cohort")
	}

	members := make([]progress.CohortMember, len(entry.members))
	copy(members, entry.members)
	return members, time.Since(entry.fetchedAt), nil
}

// SetCohort stores a fresh cohort snapshot.
func (c *CohortCache) SetCohort(_ context.Context, userID progress.UserID, members []progress.CohortMember) error {
	snapshot := make([]progress.CohortMember, len(members))
	copy(snapshot, members)

	c.mu.Lock()
	c.entries[userID] = cohortEntry{fetchedAt: time.Now(), members: snapshot}
	c.mu.Unlock()
	return nil
}
