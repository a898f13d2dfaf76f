package postgres

import (
	"context"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP EVENT REPOSITORY
// Append-only journal. Rows never change after insert; the only delete
// path is the explicit ledger reset.
// ══════════════════════════════════════════════════════════════════════════════

// XPEventRepository implements progress.XPEventRepository backed by PostgreSQL.
type XPEventRepository struct {
	conn *Connection
}

// NewXPEventRepository creates a new XPEventRepository.
func NewXPEventRepository(conn *Connection) *XPEventRepository {
	return &XPEventRepository{conn: conn}
}

const insertXPEventQuery = `
	INSERT INTO xp_events (id, user_id, amount, source, description, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

const selectXPEventsSinceQuery = `
	SELECT id, user_id, amount, source, description, occurred_at
	FROM xp_events
	WHERE user_id = $1 AND occurred_at >= $2
	ORDER BY occurred_at ASC`

const countXPEventsBySourceQuery = `
	SELECT COUNT(*) FROM xp_events
	WHERE user_id = $1 AND source = $2`

const deleteXPEventsByUserQuery = `DELETE FROM xp_events WHERE user_id = $1`

// Append implements progress.XPEventRepository.
func (r *XPEventRepository) Append(ctx context.Context, event *progress.XPEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	_, err := r.conn.Exec(ctx, insertXPEventQuery,
		event.ID,
		event.UserID.String(),
		int(event.Amount),
		string(event.Source),
		event.Description,
		event.OccurredAt.UTC(),
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("progress", "Append", shared.ErrAlreadyProcessed, "xp event already recorded")
		}
		return shared.WrapError("progress", "Append", shared.ErrStorage, "failed to append xp event", err)
	}
	return nil
}

// FindByUserSince implements progress.XPEventRepository.
func (r *XPEventRepository) FindByUserSince(ctx context.Context, userID progress.UserID, since time.Time) ([]*progress.XPEvent, error) {
	rows, err := r.conn.Query(ctx, selectXPEventsSinceQuery, userID.String(), since.UTC())
	if err != nil {
		return nil, shared.WrapError("progress", "FindByUserSince", shared.ErrStorage, "failed to query xp events", err)
	}
	defer rows.Close()

	var events []*progress.XPEvent
	for rows.Next() {
		var (
			event  progress.XPEvent
			userID string
			amount int
			source string
		)
		if err := rows.Scan(&event.ID, &userID, &amount, &source,
			&event.Description, &event.OccurredAt); err != nil {
			return nil, shared.WrapError("progress", "FindByUserSince", shared.ErrStorage, "failed to scan xp event", err)
		}
		event.UserID = progress.UserID(userID)
		event.Amount = progress.XP(amount)
		event.Source = progress.XPSource(source)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("progress", "FindByUserSince", shared.ErrStorage, "xp event iteration failed", err)
	}
	return events, nil
}

// CountBySource implements progress.XPEventRepository.
func (r *XPEventRepository) CountBySource(ctx context.Context, userID progress.UserID, source progress.XPSource) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, countXPEventsBySourceQuery,
		userID.String(), string(source)).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("progress", "CountBySource", shared.ErrStorage, "failed to count xp events", err)
	}
	return count, nil
}

// DeleteByUser implements progress.XPEventRepository.
func (r *XPEventRepository) DeleteByUser(ctx context.Context, userID progress.UserID) error {
	if _, err := r.conn.Exec(ctx, deleteXPEventsByUserQuery, userID.String()); err != nil {
		return shared.WrapError("progress", "DeleteByUser", shared.ErrStorage, "failed to delete xp events", err)
	}
	return nil
}
