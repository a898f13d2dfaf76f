package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/leaderboard"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/timeutil"
)

// ─── fakes ───────────────────────────────────────────────────────────────────

type memLedgerRepo struct {
	mu      sync.Mutex
	ledgers map[progress.UserID]*progress.Ledger
	findErr error
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{ledgers: make(map[progress.UserID]*progress.Ledger)}
}

func (r *memLedgerRepo) FindByUserID(_ context.Context, userID progress.UserID) (*progress.Ledger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	l, ok := r.ledgers[userID]
	if !ok {
		return nil, shared.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

func (r *memLedgerRepo) Save(_ context.Context, ledger *progress.Ledger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ledgers[ledger.UserID] = ledger.Clone()
	return nil
}

func (r *memLedgerRepo) FindAll(_ context.Context) ([]*progress.Ledger, error) { return nil, nil }
func (r *memLedgerRepo) Delete(_ context.Context, _ progress.UserID) error     { return nil }

type memEventRepo struct {
	counts map[progress.XPSource]int
}

func (r *memEventRepo) Append(_ context.Context, _ *progress.XPEvent) error { return nil }
func (r *memEventRepo) FindByUserSince(_ context.Context, _ progress.UserID, _ time.Time) ([]*progress.XPEvent, error) {
	return nil, nil
}
func (r *memEventRepo) CountBySource(_ context.Context, _ progress.UserID, source progress.XPSource) (int, error) {
	return r.counts[source], nil
}
func (r *memEventRepo) DeleteByUser(_ context.Context, _ progress.UserID) error { return nil }

type memGoalRepo struct {
	goals map[string]*dailygoal.Goal
}

func (r *memGoalRepo) FindByDay(_ context.Context, userID progress.UserID, dayKey string) (*dailygoal.Goal, error) {
	g, ok := r.goals[userID.String()+"|"+dayKey]
	if !ok {
		return nil, shared.ErrGoalNotFound
	}
	return g.Clone(), nil
}
func (r *memGoalRepo) Save(_ context.Context, _ *dailygoal.Goal) error { return nil }
func (r *memGoalRepo) FindActiveByUser(_ context.Context, _ progress.UserID) (*dailygoal.Goal, error) {
	return nil, shared.ErrGoalNotFound
}
func (r *memGoalRepo) ArchiveBefore(_ context.Context, _ string) (int, error) { return 0, nil }
func (r *memGoalRepo) CountCompletedBeforeNoon(_ context.Context, _ progress.UserID) (int, error) {
	return 0, nil
}
func (r *memGoalRepo) DeleteByUser(_ context.Context, _ progress.UserID) error { return nil }

type fakeRemote struct {
	cohort   []progress.CohortMember
	fetchErr error
	calls    int
}

func (f *fakeRemote) FetchRemoteLedger(_ context.Context, _ progress.UserID) (*progress.RemoteLedger, error) {
	return nil, shared.ErrRemoteUnavailable
}
func (f *fakeRemote) PushXPDelta(_ context.Context, _ progress.UserID, _ progress.XP) (progress.XP, error) {
	return 0, shared.ErrRemoteUnavailable
}
func (f *fakeRemote) FetchCohort(_ context.Context, _ progress.UserID) ([]progress.CohortMember, error) {
	f.calls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.cohort, nil
}

type memCohortCache struct {
	members []progress.CohortMember
	age     time.Duration
	has     bool
	sets    int
}

func (c *memCohortCache) GetCohort(_ context.Context, _ progress.UserID) ([]progress.CohortMember, time.Duration, error) {
	if !c.has {
		return nil, 0, shared.ErrNotFound
	}
	return c.members, c.age, nil
}

func (c *memCohortCache) SetCohort(_ context.Context, _ progress.UserID, members []progress.CohortMember) error {
	c.members = members
	c.age = 0
	c.has = true
	c.sets++
	return nil
}

// ─── get_progress ────────────────────────────────────────────────────────────

func TestGetProgress_ExistingLedger(t *testing.T) {
	repo := newMemLedgerRepo()
	ledger, _ := progress.NewLedger("user-1", "Aruzhan")
	ledger.TotalXP = 350
	ledger.SyncedXP = 300
	require.NoError(t, repo.Save(context.Background(), ledger))

	handler := NewGetProgressHandler(repo, progress.DefaultGracePolicy())
	result := handler.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})

	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	assert.Equal(t, 350, view.TotalXP)
	assert.Equal(t, 2, view.Level)
	assert.Equal(t, 50, view.UnsyncedXP)
	assert.Equal(t, 600-350, view.XPToNextLevel)
}

func TestGetProgress_UnknownUserGetsFreshView(t *testing.T) {
	handler := NewGetProgressHandler(newMemLedgerRepo(), progress.DefaultGracePolicy())
	result := handler.Handle(context.Background(), GetProgressQuery{UserID: "newcomer"})

	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	assert.Equal(t, 0, view.TotalXP)
	assert.Equal(t, 1, view.Level)
	assert.Equal(t, progress.StreakNoActivity, view.Streak.State)
}

func TestGetProgress_StorageErrorClassified(t *testing.T) {
	repo := newMemLedgerRepo()
	repo.findErr = shared.ErrLedgerSaveFailed

	handler := NewGetProgressHandler(repo, progress.DefaultGracePolicy())
	result := handler.Handle(context.Background(), GetProgressQuery{UserID: "user-1"})

	require.True(t, result.IsError())
	assert.Equal(t, shared.KindStorage, result.ErrorKind())
}

// ─── get_leaderboard ─────────────────────────────────────────────────────────

func cohortOf(now time.Time) []progress.CohortMember {
	return []progress.CohortMember{
		{UserID: "alice", DisplayName: "Alice", TotalXP: 900, LastActivityAt: now},
		{UserID: "user-1", DisplayName: "Aruzhan", TotalXP: 600, LastActivityAt: now},
		{UserID: "carol", DisplayName: "Carol", TotalXP: 300, LastActivityAt: now},
	}
}

func TestGetLeaderboard_FetchesAndCaches(t *testing.T) {
	now := timeutil.Now()
	remote := &fakeRemote{cohort: cohortOf(now)}
	cache := &memCohortCache{}

	handler := NewGetLeaderboardHandler(remote, cache, DefaultGetLeaderboardConfig(), logger.Nop())
	result := handler.Handle(context.Background(), GetLeaderboardQuery{
		UserID: "user-1", Scope: leaderboard.ScopeAllTime,
	})

	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	require.Len(t, view.Entries, 3)
	assert.Equal(t, 1, view.Entries[0].Rank)
	require.NotNil(t, view.CurrentUser)
	assert.Equal(t, 2, view.CurrentUser.Rank)
	assert.Equal(t, 1, cache.sets)
}

func TestGetLeaderboard_ServesFreshCacheWithoutFetch(t *testing.T) {
	now := timeutil.Now()
	remote := &fakeRemote{fetchErr: shared.ErrRemoteUnavailable}
	cache := &memCohortCache{members: cohortOf(now), age: time.Minute, has: true}

	handler := NewGetLeaderboardHandler(remote, cache, DefaultGetLeaderboardConfig(), logger.Nop())
	result := handler.Handle(context.Background(), GetLeaderboardQuery{
		UserID: "user-1", Scope: leaderboard.ScopeAllTime,
	})

	require.True(t, result.IsSuccess())
	assert.Equal(t, 0, remote.calls)
}

func TestGetLeaderboard_StaleCacheServedOnFetchFailure(t *testing.T) {
	now := timeutil.Now()
	remote := &fakeRemote{fetchErr: shared.ErrRemoteTimeout}
	cache := &memCohortCache{members: cohortOf(now), age: time.Hour, has: true}

	handler := NewGetLeaderboardHandler(remote, cache, DefaultGetLeaderboardConfig(), logger.Nop())
	result := handler.Handle(context.Background(), GetLeaderboardQuery{
		UserID: "user-1", Scope: leaderboard.ScopeAllTime,
	})

	// The error is reported, but the stale snapshot rides along.
	require.True(t, result.IsError())
	assert.Equal(t, shared.KindTimeout, result.ErrorKind())
	stale, ok := result.Partial()
	require.True(t, ok)
	assert.Len(t, stale.Entries, 3)
}

func TestGetLeaderboard_NoCacheNoRemote(t *testing.T) {
	remote := &fakeRemote{fetchErr: shared.ErrRemoteOffline}
	handler := NewGetLeaderboardHandler(remote, &memCohortCache{}, DefaultGetLeaderboardConfig(), logger.Nop())

	result := handler.Handle(context.Background(), GetLeaderboardQuery{
		UserID: "user-1", Scope: leaderboard.ScopeWeekly,
	})

	require.True(t, result.IsError())
	assert.Equal(t, shared.KindOffline, result.ErrorKind())
	_, ok := result.Partial()
	assert.False(t, ok)
}

func TestGetLeaderboard_InvalidScope(t *testing.T) {
	handler := NewGetLeaderboardHandler(&fakeRemote{}, &memCohortCache{}, DefaultGetLeaderboardConfig(), logger.Nop())
	result := handler.Handle(context.Background(), GetLeaderboardQuery{
		UserID: "user-1", Scope: "hourly",
	})
	require.True(t, result.IsError())
	assert.Equal(t, shared.KindValidation, result.ErrorKind())
}

// ─── get_badges ──────────────────────────────────────────────────────────────

func TestGetBadges_ProgressForKnownUser(t *testing.T) {
	ledgers := newMemLedgerRepo()
	ledger, _ := progress.NewLedger("user-1", "Aruzhan")
	ledger.AwardBadge("first_quiz")
	require.NoError(t, ledgers.Save(context.Background(), ledger))

	events := &memEventRepo{counts: map[progress.XPSource]int{
		progress.SourceQuizCompleted: 20,
		progress.SourceQuizPerfect:   5,
	}}
	goals := &memGoalRepo{}
	evaluator, err := badge.NewEvaluator(badge.DefaultCatalog())
	require.NoError(t, err)

	handler := NewGetBadgesHandler(ledgers, events, goals, evaluator)
	result := handler.Handle(context.Background(), GetBadgesQuery{UserID: "user-1"})

	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	assert.Equal(t, 1, view.EarnedCount)
	assert.Equal(t, evaluator.Catalog().Len(), view.TotalCount)

	for _, info := range view.Badges {
		if info.Badge.ID == "quiz_master" {
			// 25 of 50 quizzes.
			assert.InDelta(t, 0.5, info.Progress, 0.001)
		}
	}
}

func TestGetBadges_UnknownUserSeesCatalog(t *testing.T) {
	evaluator, err := badge.NewEvaluator(badge.DefaultCatalog())
	require.NoError(t, err)
	handler := NewGetBadgesHandler(newMemLedgerRepo(), &memEventRepo{}, &memGoalRepo{}, evaluator)

	result := handler.Handle(context.Background(), GetBadgesQuery{UserID: "newcomer"})
	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	assert.Zero(t, view.EarnedCount)
	assert.NotZero(t, view.TotalCount)
}

// ─── get_daily_goal ──────────────────────────────────────────────────────────

func TestGetDailyGoal_DefaultWhenAbsent(t *testing.T) {
	handler := NewGetDailyGoalHandler(&memGoalRepo{}, dailygoal.DefaultTargets())
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())

	result := handler.Handle(context.Background(), GetDailyGoalQuery{UserID: "user-1", At: at})
	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	assert.Equal(t, "2026-03-15", view.DayKey)
	assert.False(t, view.IsCompleted)
	assert.Zero(t, view.Progress)
}

func TestGetDailyGoal_ExistingGoal(t *testing.T) {
	at := time.Date(2026, 3, 15, 10, 0, 0, 0, timeutil.Location())
	goal, err := dailygoal.NewGoal("user-1", dailygoal.DefaultTargets(), at)
	require.NoError(t, err)
	_, err = goal.RecordActivity(60, progress.SourceBookCompleted, at)
	require.NoError(t, err)

	repo := &memGoalRepo{goals: map[string]*dailygoal.Goal{"user-1|2026-03-15": goal}}
	handler := NewGetDailyGoalHandler(repo, dailygoal.DefaultTargets())

	result := handler.Handle(context.Background(), GetDailyGoalQuery{UserID: "user-1", At: at})
	require.True(t, result.IsSuccess())
	view, _ := result.Value()
	assert.True(t, view.IsCompleted)
	assert.Equal(t, 60, view.EarnedXP)
	require.NotNil(t, view.CompletedAt)
}

// ─── observe ─────────────────────────────────────────────────────────────────

func TestObserve_EmitsLoadingThenView(t *testing.T) {
	repo := newMemLedgerRepo()
	ledger, _ := progress.NewLedger("user-1", "Aruzhan")
	ledger.TotalXP = 100
	require.NoError(t, repo.Save(context.Background(), ledger))

	observer := NewProgressObserver(NewGetProgressHandler(repo, progress.DefaultGracePolicy()))
	defer observer.Close()

	sub := observer.Observe(context.Background(), "user-1")
	defer sub.Cancel()

	first := recv(t, sub)
	assert.True(t, first.IsLoading())

	second := recv(t, sub)
	require.True(t, second.IsSuccess())
	view, _ := second.Value()
	assert.Equal(t, 100, view.TotalXP)
}

func TestObserve_RefreshPushesNewView(t *testing.T) {
	repo := newMemLedgerRepo()
	ledger, _ := progress.NewLedger("user-1", "Aruzhan")
	require.NoError(t, repo.Save(context.Background(), ledger))

	observer := NewProgressObserver(NewGetProgressHandler(repo, progress.DefaultGracePolicy()))
	defer observer.Close()

	sub := observer.Observe(context.Background(), "user-1")
	defer sub.Cancel()
	recv(t, sub) // Loading
	recv(t, sub) // initial view

	// A write lands; the handler refreshes the feed.
	ledger.TotalXP = 250
	require.NoError(t, repo.Save(context.Background(), ledger))
	observer.Refresh(context.Background(), "user-1")

	updated := recv(t, sub)
	require.True(t, updated.IsSuccess())
	view, _ := updated.Value()
	assert.Equal(t, 250, view.TotalXP)
}

func recv(t *testing.T, sub *shared.Subscription[ProgressView]) shared.Result[ProgressView] {
	t.Helper()
	select {
	case r, ok := <-sub.C():
		require.True(t, ok, "subscription closed unexpectedly")
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for emission")
		return shared.Result[ProgressView]{}
	}
}
