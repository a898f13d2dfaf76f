package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements progress.LedgerRepository backed by PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const ledgerColumns = `
	user_id, display_name, total_xp, current_streak, max_streak,
	last_activity_at, badges, synced_xp, last_synced_at, created_at, updated_at`

const selectLedgerQuery = `
	SELECT` + ledgerColumns + `
	FROM progress_ledgers
	WHERE user_id = $1`

const selectAllLedgersQuery = `
	SELECT` + ledgerColumns + `
	FROM progress_ledgers
	ORDER BY user_id`

const upsertLedgerQuery = `
	INSERT INTO progress_ledgers (
		user_id, display_name, total_xp, current_streak, max_streak,
		last_activity_at, badges, synced_xp, last_synced_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (user_id) DO UPDATE SET
		display_name     = EXCLUDED.display_name,
		total_xp         = EXCLUDED.total_xp,
		current_streak   = EXCLUDED.current_streak,
		max_streak       = EXCLUDED.max_streak,
		last_activity_at = EXCLUDED.last_activity_at,
		badges           = EXCLUDED.badges,
		synced_xp        = EXCLUDED.synced_xp,
		last_synced_at   = EXCLUDED.last_synced_at,
		updated_at       = EXCLUDED.updated_at`

const deleteLedgerQuery = `DELETE FROM progress_ledgers WHERE user_id = $1`

// FindByUserID implements progress.LedgerRepository.
func (r *LedgerRepository) FindByUserID(ctx context.Context, userID progress.UserID) (*progress.Ledger, error) {
	row := r.conn.QueryRow(ctx, selectLedgerQuery, userID.String())

	ledger, err := scanLedger(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrLedgerNotFound
		}
		return nil, shared.WrapError("progress", "FindByUserID", shared.ErrStorage, "failed to load ledger", err)
	}
	return ledger, nil
}

// Save implements progress.LedgerRepository. The whole ledger is written
// as a single upsert, so a failed write leaves the previous row readable.
func (r *LedgerRepository) Save(ctx context.Context, ledger *progress.Ledger) error {
	if ledger == nil {
		return shared.NewDomainError("progress", "Save", shared.ErrEmptyValue, "ledger is nil")
	}
	if err := ledger.Invariants(); err != nil {
		return err
	}

	var lastActivity *time.Time
	if ledger.LastActivityAt != nil {
		at := ledger.LastActivityAt.UTC()
		lastActivity = &at
	}

	_, err := r.conn.Exec(ctx, upsertLedgerQuery,
		ledger.UserID.String(),
		ledger.DisplayName,
		int64(ledger.TotalXP),
		ledger.CurrentStreak,
		ledger.MaxStreak,
		lastActivity,
		ledger.Badges,
		int64(ledger.SyncedXP),
		ledger.LastSyncedAt.UTC(),
		ledger.CreatedAt.UTC(),
		ledger.UpdatedAt.UTC(),
	)
	if err != nil {
		return shared.WrapError("progress", "Save", shared.ErrStorage, "failed to persist ledger", err)
	}
	return nil
}

// FindAll implements progress.LedgerRepository.
func (r *LedgerRepository) FindAll(ctx context.Context) ([]*progress.Ledger, error) {
	rows, err := r.conn.Query(ctx, selectAllLedgersQuery)
	if err != nil {
		return nil, shared.WrapError("progress", "FindAll", shared.ErrStorage, "failed to list ledgers", err)
	}
	defer rows.Close()

	var ledgers []*progress.Ledger
	for rows.Next() {
		ledger, err := scanLedger(rows)
		if err != nil {
			return nil, shared.WrapError("progress", "FindAll", shared.ErrStorage, "failed to scan ledger", err)
		}
		ledgers = append(ledgers, ledger)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("progress", "FindAll", shared.ErrStorage, "ledger iteration failed", err)
	}
	return ledgers, nil
}

// Delete implements progress.LedgerRepository.
func (r *LedgerRepository) Delete(ctx context.Context, userID progress.UserID) error {
	tag, err := r.conn.Exec(ctx, deleteLedgerQuery, userID.String())
	if err != nil {
		return shared.WrapError("progress", "Delete", shared.ErrStorage, "failed to delete ledger", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrLedgerNotFound
	}
	return nil
}

func scanLedger(row pgx.Row) (*progress.Ledger, error) {
	var (
		ledger       progress.Ledger
		userID       string
		totalXP      int64
		syncedXP     int64
		lastActivity *time.Time
		badges       []string
	)

	err := row.Scan(
		&userID,
		&ledger.DisplayName,
		&totalXP,
		&ledger.CurrentStreak,
		&ledger.MaxStreak,
		&lastActivity,
		&badges,
		&syncedXP,
		&ledger.LastSyncedAt,
		&ledger.CreatedAt,
		&ledger.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ledger.UserID = progress.UserID(userID)
	ledger.TotalXP = progress.XP(totalXP)
	ledger.SyncedXP = progress.XP(syncedXP)
	ledger.LastActivityAt = lastActivity
	if badges == nil {
		badges = make([]string, 0)
	}
	ledger.Badges = badges
	return &ledger, nil
}
