// Package application assembles the command and query handlers of the
// progress engine into a single facade.
package application

import (
	"github.com/oqu-hub/oqu-progress-engine/internal/application/command"
	"github.com/oqu-hub/oqu-progress-engine/internal/application/query"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/badge"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE FACADE
// The single entry point consumers (transports, schedulers, bots) use to
// reach the progress engine. Construction wires the whole handler graph
// once; every handler shares the same lock arena and event publisher.
// ══════════════════════════════════════════════════════════════════════════════

// Config tunes the engine.
type Config struct {
	// GracePolicy controls the streak grace window.
	GracePolicy progress.GracePolicy

	// GoalTargets are the daily goal targets.
	GoalTargets dailygoal.Targets

	// Sync controls retry behavior of remote sync calls.
	Sync command.SyncConfig

	// Leaderboard controls cohort cache freshness.
	Leaderboard query.GetLeaderboardConfig
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		GracePolicy: progress.DefaultGracePolicy(),
		GoalTargets: dailygoal.DefaultTargets(),
		Sync:        command.DefaultSyncConfig(),
		Leaderboard: query.DefaultGetLeaderboardConfig(),
	}
}

// Deps are the infrastructure dependencies of the engine.
type Deps struct {
	LedgerRepo  progress.LedgerRepository
	EventRepo   progress.XPEventRepository
	GoalRepo    dailygoal.Repository
	Remote      progress.RemoteSource
	CohortCache query.CohortCache
	Publisher   shared.EventPublisher
	Logger      *logger.Logger
}

// Engine exposes every operation of the progress engine.
type Engine struct {
	// Commands.
	AddXP       *command.AddXPHandler
	Sync        *command.SyncCoordinator
	ResetLedger *command.ResetLedgerHandler

	// Queries.
	Progress    *query.GetProgressHandler
	Leaderboard *query.GetLeaderboardHandler
	Badges      *query.GetBadgesHandler
	DailyGoal   *query.GetDailyGoalHandler
	Observer    *query.ProgressObserver

	// Shared internals, exposed for event handler wiring.
	Evaluator *badge.Evaluator
	Locks     *keyedlock.Arena
}

// New wires the full engine. The badge catalog is validated here: an
// inconsistent catalog is a programming error surfaced at startup.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}

	evaluator, err := badge.NewEvaluator(badge.DefaultCatalog())
	if err != nil {
		return nil, err
	}

	locks := keyedlock.New()

	addXP := command.NewAddXPHandler(deps.LedgerRepo, deps.EventRepo, deps.GoalRepo,
		evaluator, locks, deps.Publisher,
		command.AddXPConfig{GracePolicy: cfg.GracePolicy, GoalTargets: cfg.GoalTargets},
		deps.Logger)

	syncer := command.NewSyncCoordinator(deps.LedgerRepo, deps.Remote, locks,
		deps.Publisher, cfg.Sync, deps.Logger)

	reset := command.NewResetLedgerHandler(deps.LedgerRepo, deps.EventRepo,
		deps.GoalRepo, locks, deps.Publisher, deps.Logger)

	progressQuery := query.NewGetProgressHandler(deps.LedgerRepo, cfg.GracePolicy)

	return &Engine{
		AddXP:       addXP,
		Sync:        syncer,
		ResetLedger: reset,
		Progress:    progressQuery,
		Leaderboard: query.NewGetLeaderboardHandler(deps.Remote, deps.CohortCache, cfg.Leaderboard, deps.Logger),
		Badges:      query.NewGetBadgesHandler(deps.LedgerRepo, deps.EventRepo, deps.GoalRepo, evaluator),
		DailyGoal:   query.NewGetDailyGoalHandler(deps.GoalRepo, cfg.GoalTargets),
		Observer:    query.NewProgressObserver(progressQuery),
		Evaluator:   evaluator,
		Locks:       locks,
	}, nil
}

// Close releases live resources (subscription feeds).
func (e *Engine) Close() {
	e.Observer.Close()
}
