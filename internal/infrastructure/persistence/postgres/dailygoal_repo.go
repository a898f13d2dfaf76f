package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DAILY GOAL REPOSITORY
// Natural key (user_id, day_key). The before_noon flag is computed at
// save time so the early-bird count is a plain aggregate, independent of
// the platform timezone at query time.
// ══════════════════════════════════════════════════════════════════════════════

// DailyGoalRepository implements dailygoal.Repository backed by PostgreSQL.
type DailyGoalRepository struct {
	conn *Connection
}

// NewDailyGoalRepository creates a new DailyGoalRepository.
func NewDailyGoalRepository(conn *Connection) *DailyGoalRepository {
	return &DailyGoalRepository{conn: conn}
}

const goalColumns = `
	user_id, day_key, target_xp, target_quizzes, earned_xp,
	completed_quizzes, completed_at, archived, created_at, updated_at`

const selectGoalByDayQuery = `
	SELECT` + goalColumns + `
	FROM daily_goals
	WHERE user_id = $1 AND day_key = $2`

const selectActiveGoalQuery = `
	SELECT` + goalColumns + `
	FROM daily_goals
	WHERE user_id = $1 AND NOT archived
	ORDER BY day_key DESC
	LIMIT 1`

const upsertGoalQuery = `
	INSERT INTO daily_goals (
		user_id, day_key, target_xp, target_quizzes, earned_xp,
		completed_quizzes, completed_at, before_noon, archived, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (user_id, day_key) DO UPDATE SET
		earned_xp         = EXCLUDED.earned_xp,
		completed_quizzes = EXCLUDED.completed_quizzes,
		completed_at      = EXCLUDED.completed_at,
		before_noon       = EXCLUDED.before_noon,
		archived          = EXCLUDED.archived,
		updated_at        = EXCLUDED.updated_at`

const archiveGoalsBeforeQuery = `
	UPDATE daily_goals
	SET archived = TRUE, updated_at = now()
	WHERE day_key < $1 AND NOT archived`

const countBeforeNoonQuery = `
	SELECT COUNT(*) FROM daily_goals
	WHERE user_id = $1 AND before_noon`

const deleteGoalsByUserQuery = `DELETE FROM daily_goals WHERE user_id = $1`

// FindByDay implements dailygoal.Repository.
func (r *DailyGoalRepository) FindByDay(ctx context.Context, userID progress.UserID, dayKey string) (*dailygoal.Goal, error) {
	row := r.conn.QueryRow(ctx, selectGoalByDayQuery, userID.String(), dayKey)

	goal, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, shared.WrapError("dailygoal", "FindByDay", shared.ErrStorage, "failed to load goal", err)
	}
	return goal, nil
}

// Save implements dailygoal.Repository.
func (r *DailyGoalRepository) Save(ctx context.Context, goal *dailygoal.Goal) error {
	if goal == nil {
		return shared.NewDomainError("dailygoal", "Save", shared.ErrEmptyValue, "goal is nil")
	}

	var completedAt *time.Time
	if goal.CompletedAt != nil {
		at := goal.CompletedAt.UTC()
		completedAt = &at
	}

	_, err := r.conn.Exec(ctx, upsertGoalQuery,
		goal.UserID.String(),
		goal.DayKey,
		int(goal.Targets.XP),
		goal.Targets.Quizzes,
		int(goal.EarnedXP),
		goal.CompletedQuizzes,
		completedAt,
		goal.CompletedBeforeNoon(),
		goal.Archived,
		goal.CreatedAt.UTC(),
		goal.UpdatedAt.UTC(),
	)
	if err != nil {
		return shared.WrapError("dailygoal", "Save", shared.ErrStorage, "failed to persist goal", err)
	}
	return nil
}

// FindActiveByUser implements dailygoal.Repository.
func (r *DailyGoalRepository) FindActiveByUser(ctx context.Context, userID progress.UserID) (*dailygoal.Goal, error) {
	row := r.conn.QueryRow(ctx, selectActiveGoalQuery, userID.String())

	goal, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, shared.WrapError("dailygoal", "FindActiveByUser", shared.ErrStorage, "failed to load active goal", err)
	}
	return goal, nil
}

// ArchiveBefore implements dailygoal.Repository.
func (r *DailyGoalRepository) ArchiveBefore(ctx context.Context, dayKey string) (int, error) {
	tag, err := r.conn.Exec(ctx, archiveGoalsBeforeQuery, dayKey)
	if err != nil {
		return 0, shared.WrapError("dailygoal", "ArchiveBefore", shared.ErrStorage, "failed to archive goals", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountCompletedBeforeNoon implements dailygoal.Repository.
func (r *DailyGoalRepository) CountCompletedBeforeNoon(ctx context.Context, userID progress.UserID) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, countBeforeNoonQuery, userID.String()).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("dailygoal", "CountCompletedBeforeNoon", shared.ErrStorage, "failed to count goals", err)
	}
	return count, nil
}

// DeleteByUser implements dailygoal.Repository.
func (r *DailyGoalRepository) DeleteByUser(ctx context.Context, userID progress.UserID) error {
	if _, err := r.conn.Exec(ctx, deleteGoalsByUserQuery, userID.String()); err != nil {
		return shared.WrapError("dailygoal", "DeleteByUser", shared.ErrStorage, "failed to delete goals", err)
	}
	return nil
}

func scanGoal(row pgx.Row) (*dailygoal.Goal, error) {
	var (
		goal        dailygoal.Goal
		userID      string
		targetXP    int
		earnedXP    int
		completedAt *time.Time
	)

	err := row.Scan(
		&userID,
		&goal.DayKey,
		&targetXP,
		&goal.Targets.Quizzes,
		&earnedXP,
		&goal.CompletedQuizzes,
		&completedAt,
		&goal.Archived,
		&goal.CreatedAt,
		&goal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	goal.UserID = progress.UserID(userID)
	goal.Targets.XP = progress.XP(targetXP)
	goal.EarnedXP = progress.XP(earnedXP)
	goal.CompletedAt = completedAt
	return &goal, nil
}
