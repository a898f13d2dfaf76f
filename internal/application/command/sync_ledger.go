package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
	"github.com/oqu-hub/oqu-progress-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SYNC LEDGER COMMAND
// Reconciles the local ledger with the Oqu platform. The merge is
// optimistic: totals converge to max(local, server), and the unacked local
// delta is pushed exactly once. A sync never lowers a total and never
// double-counts. At most one sync per user runs at a time.
// ══════════════════════════════════════════════════════════════════════════════

// SyncLedgerCommand requests a sync for one user.
type SyncLedgerCommand struct {
	// UserID is the user to sync.
	UserID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c SyncLedgerCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("sync_ledger: user_id is required")
	}
	return nil
}

// SyncLedgerResult contains the result of a sync.
type SyncLedgerResult struct {
	// MergedTotal is the converged XP total after the sync.
	MergedTotal progress.XP

	// AppliedDelta is how much XP the server side added locally.
	AppliedDelta progress.XP

	// PushedDelta is the unacked local XP sent to the server.
	PushedDelta progress.XP

	// SyncedAt is when the sync committed.
	SyncedAt time.Time

	// Events contains the domain events generated.
	Events []shared.Event
}

// SyncConfig tunes the coordinator.
type SyncConfig struct {
	// Retry controls backoff for remote calls.
	Retry retry.Config
}

// DefaultSyncConfig returns the standard configuration.
func DefaultSyncConfig() SyncConfig {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 4
	cfg.RetryIf = shared.IsRetryable
	return SyncConfig{Retry: cfg}
}

// SyncCoordinator handles SyncLedgerCommand.
type SyncCoordinator struct {
	ledgerRepo progress.LedgerRepository
	remote     progress.RemoteSource
	locks      *keyedlock.Arena
	publisher  shared.EventPublisher
	retrier    *retry.Retrier
	log        *logger.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewSyncCoordinator creates a new SyncCoordinator.
func NewSyncCoordinator(
	ledgerRepo progress.LedgerRepository,
	remote progress.RemoteSource,
	locks *keyedlock.Arena,
	publisher shared.EventPublisher,
	config SyncConfig,
	log *logger.Logger,
) *SyncCoordinator {
	return &SyncCoordinator{
		ledgerRepo: ledgerRepo,
		remote:     remote,
		locks:      locks,
		publisher:  publisher,
		retrier:    retry.New(config.Retry),
		log:        log.With(logger.Domain("sync")),
	}
}

// Handle executes the sync. Concurrent syncs for the same user are
// rejected with ErrSyncInFlight rather than queued.
func (c *SyncCoordinator) Handle(ctx context.Context, cmd SyncLedgerCommand) (*SyncLedgerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if !c.acquire(cmd.UserID) {
		return nil, shared.ErrSyncInFlight
	}
	defer c.release(cmd.UserID)

	correlationID := cmd.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	userID := progress.UserID(cmd.UserID)

	// Remote state is fetched outside the user lock: the slow network
	// call must not block local XP writes.
	remote, err := c.fetchRemote(ctx, userID)
	if err != nil {
		c.publishFailure(userID, err)
		return nil, err
	}

	var result *SyncLedgerResult
	err = c.locks.WithLock(cmd.UserID, func() error {
		// Cancellation applies up to the commit. After the ledger is
		// saved the sync is complete and cannot be undone.
		if err := ctx.Err(); err != nil {
			return shared.WrapError("sync", "Run", shared.ErrExpired, "cancelled before commit", err)
		}

		ledger, err := c.ledgerRepo.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}

		// The unacked delta is measured before the merge: once the
		// server-origin XP is folded in, it would count as local delta
		// and be pushed back to the server that already owns it.
		pushed := ledger.UnsyncedDelta()
		applied := ledger.MergeRemoteTotal(remote.TotalXP)

		accepted := ledger.TotalXP
		if pushed > 0 {
			accepted, err = c.pushDelta(ctx, userID, pushed)
			if err != nil {
				return err
			}
		}

		syncedAt := time.Now().UTC()
		ledger.AcknowledgeSync(accepted, syncedAt)

		if err := c.ledgerRepo.Save(ctx, ledger); err != nil {
			return shared.WrapError("sync", "Commit", shared.ErrStorage, "failed to save merged ledger", err)
		}

		result = &SyncLedgerResult{
			MergedTotal:  ledger.TotalXP,
			AppliedDelta: applied,
			PushedDelta:  pushed,
			SyncedAt:     syncedAt,
		}
		result.Events = append(result.Events,
			progress.NewSyncMergedEvent(userID, ledger.TotalXP, applied, pushed, syncedAt))
		return nil
	})
	if err != nil {
		c.publishFailure(userID, err)
		return nil, err
	}

	if pubErr := c.publisher.PublishAll(result.Events); pubErr != nil {
		c.log.Warn("failed to publish sync events",
			logger.UserID(cmd.UserID), logger.Err(pubErr))
	}

	c.log.Info("ledger synced",
		logger.UserID(cmd.UserID),
		logger.String("correlation_id", correlationID),
		logger.Int("merged_total", result.MergedTotal.Int()),
		logger.Int("applied_delta", result.AppliedDelta.Int()),
		logger.Int("pushed_delta", result.PushedDelta.Int()))

	return result, nil
}

func (c *SyncCoordinator) fetchRemote(ctx context.Context, userID progress.UserID) (*progress.RemoteLedger, error) {
	var remote *progress.RemoteLedger
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		remote, err = c.remote.FetchRemoteLedger(ctx, userID)
		return err
	})
	if err != nil {
		return nil, shared.WrapError("sync", "Fetch", shared.ErrExternalService, "failed to fetch remote ledger", err)
	}
	return remote, nil
}

func (c *SyncCoordinator) pushDelta(ctx context.Context, userID progress.UserID, delta progress.XP) (progress.XP, error) {
	var accepted progress.XP
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		accepted, err = c.remote.PushXPDelta(ctx, userID, delta)
		return err
	})
	if err != nil {
		return 0, shared.WrapError("sync", "Push", shared.ErrExternalService, "remote rejected xp delta", err)
	}
	return accepted, nil
}

func (c *SyncCoordinator) publishFailure(userID progress.UserID, cause error) {
	event := &syncFailedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSyncFailed, userID.String()),
		UserID:    userID,
		Reason:    cause.Error(),
	}
	if err := c.publisher.Publish(event); err != nil {
		c.log.Warn("failed to publish sync failure", logger.Err(err))
	}
}

func (c *SyncCoordinator) acquire(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == nil {
		c.inFlight = make(map[string]struct{})
	}
	if _, busy := c.inFlight[userID]; busy {
		return false
	}
	c.inFlight[userID] = struct{}{}
	return true
}

func (c *SyncCoordinator) release(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, userID)
}

type syncFailedEvent struct {
	shared.BaseEvent
	UserID progress.UserID `json:"user_id"`
	Reason string          `json:"reason"`
}

// Payload implements shared.Event.
func (e *syncFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID.String(),
		"reason":  e.Reason,
	}
}
