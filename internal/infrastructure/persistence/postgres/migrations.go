package postgres

import (
	"context"
	"fmt"

	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Schema is applied in order on startup. Every statement is idempotent.
// ══════════════════════════════════════════════════════════════════════════════

const migration001Ledgers = `
CREATE TABLE IF NOT EXISTS progress_ledgers (
    user_id          TEXT PRIMARY KEY,
    display_name     TEXT NOT NULL DEFAULT '',
    total_xp         BIGINT NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
    current_streak   INT NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
    max_streak       INT NOT NULL DEFAULT 0 CHECK (max_streak >= current_streak),
    last_activity_at TIMESTAMPTZ,
    badges           TEXT[] NOT NULL DEFAULT '{}',
    synced_xp        BIGINT NOT NULL DEFAULT 0 CHECK (synced_xp >= 0),
    last_synced_at   TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ledgers_total_xp
    ON progress_ledgers (total_xp DESC, user_id ASC);

CREATE INDEX IF NOT EXISTS idx_ledgers_last_activity
    ON progress_ledgers (last_activity_at);
`

const migration002XPEvents = `
CREATE TABLE IF NOT EXISTS xp_events (
    id          UUID PRIMARY KEY,
    user_id     TEXT NOT NULL,
    amount      INT NOT NULL CHECK (amount > 0),
    source      TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_xp_events_user_occurred
    ON xp_events (user_id, occurred_at);

CREATE INDEX IF NOT EXISTS idx_xp_events_user_source
    ON xp_events (user_id, source);
`

const migration003DailyGoals = `
CREATE TABLE IF NOT EXISTS daily_goals (
    user_id           TEXT NOT NULL,
    day_key           TEXT NOT NULL,
    target_xp         INT NOT NULL CHECK (target_xp > 0),
    target_quizzes    INT NOT NULL CHECK (target_quizzes > 0),
    earned_xp         INT NOT NULL DEFAULT 0 CHECK (earned_xp >= 0),
    completed_quizzes INT NOT NULL DEFAULT 0 CHECK (completed_quizzes >= 0),
    completed_at      TIMESTAMPTZ,
    before_noon       BOOLEAN NOT NULL DEFAULT FALSE,
    archived          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, day_key)
);

CREATE INDEX IF NOT EXISTS idx_daily_goals_active
    ON daily_goals (user_id) WHERE NOT archived;

CREATE INDEX IF NOT EXISTS idx_daily_goals_day
    ON daily_goals (day_key) WHERE NOT archived;
`

var migrations = []struct {
	name string
	sql  string
}{
	{"001_progress_ledgers", migration001Ledgers},
	{"002_xp_events", migration002XPEvents},
	{"003_daily_goals", migration003DailyGoals},
}

// RunMigrations applies the schema to the database.
func RunMigrations(ctx context.Context, conn *Connection, log *logger.Logger) error {
	for _, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMigrationFailed, m.name, err)
		}
		log.Debug("migration applied", logger.String("migration", m.name))
	}
	log.Info("database schema ready", logger.Int("migrations", len(migrations)))
	return nil
}
