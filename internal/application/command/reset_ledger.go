package command

import (
	"context"
	"errors"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/dailygoal"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/keyedlock"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESET LEDGER COMMAND
// Zeroes a user's ledger and clears their XP journal and daily goals.
// The only operation that can lower a total. Used for account deletion
// and parental resets.
// ══════════════════════════════════════════════════════════════════════════════

// ResetLedgerCommand requests a full reset for one user.
type ResetLedgerCommand struct {
	// UserID is the user to reset.
	UserID string

	// Reason is recorded in the logs.
	Reason string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ResetLedgerCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("reset_ledger: user_id is required")
	}
	return nil
}

// ResetLedgerHandler handles the ResetLedgerCommand.
type ResetLedgerHandler struct {
	ledgerRepo progress.LedgerRepository
	eventRepo  progress.XPEventRepository
	goalRepo   dailygoal.Repository
	locks      *keyedlock.Arena
	publisher  shared.EventPublisher
	log        *logger.Logger
}

// NewResetLedgerHandler creates a new ResetLedgerHandler.
func NewResetLedgerHandler(
	ledgerRepo progress.LedgerRepository,
	eventRepo progress.XPEventRepository,
	goalRepo dailygoal.Repository,
	locks *keyedlock.Arena,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *ResetLedgerHandler {
	return &ResetLedgerHandler{
		ledgerRepo: ledgerRepo,
		eventRepo:  eventRepo,
		goalRepo:   goalRepo,
		locks:      locks,
		publisher:  publisher,
		log:        log.With(logger.Domain("progress")),
	}
}

// Handle executes the reset.
func (h *ResetLedgerHandler) Handle(ctx context.Context, cmd ResetLedgerCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	userID := progress.UserID(cmd.UserID)
	var oldTotal progress.XP

	err := h.locks.WithLock(cmd.UserID, func() error {
		ledger, err := h.ledgerRepo.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}

		oldTotal = ledger.TotalXP
		ledger.Reset()

		if err := h.ledgerRepo.Save(ctx, ledger); err != nil {
			return shared.WrapError("progress", "Reset", shared.ErrStorage, "failed to save reset ledger", err)
		}
		if err := h.eventRepo.DeleteByUser(ctx, userID); err != nil {
			return shared.WrapError("progress", "Reset", shared.ErrStorage, "failed to clear xp journal", err)
		}
		if err := h.goalRepo.DeleteByUser(ctx, userID); err != nil {
			return shared.WrapError("progress", "Reset", shared.ErrStorage, "failed to clear daily goals", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if pubErr := h.publisher.Publish(progress.NewLedgerResetEvent(userID, oldTotal)); pubErr != nil {
		h.log.Warn("failed to publish reset event", logger.Err(pubErr))
	}

	h.log.Info("ledger reset",
		logger.UserID(cmd.UserID),
		logger.Int("old_total_xp", oldTotal.Int()),
		logger.String("reason", cmd.Reason))

	return nil
}
