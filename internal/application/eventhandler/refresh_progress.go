// Package eventhandler contains subscribers reacting to domain events.
package eventhandler

import (
	"context"

	"github.com/oqu-hub/oqu-progress-engine/internal/application/query"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH PROGRESS FEEDS
// After any committed change to a ledger, the live progress feed of that
// user is recomputed and re-published.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshProgressHandler pushes fresh views into the progress observer.
type RefreshProgressHandler struct {
	observer *query.ProgressObserver
}

// NewRefreshProgressHandler creates a new RefreshProgressHandler.
func NewRefreshProgressHandler(observer *query.ProgressObserver) *RefreshProgressHandler {
	return &RefreshProgressHandler{observer: observer}
}

// Name implements shared.EventHandler.
func (h *RefreshProgressHandler) Name() string {
	return "refresh_progress"
}

// Handle implements shared.EventHandler. The aggregate ID of every
// ledger-touching event is the user ID.
func (h *RefreshProgressHandler) Handle(ctx context.Context, event shared.Event) error {
	switch event.EventType() {
	case shared.EventXPGained, shared.EventLevelUp,
		shared.EventStreakUpdated, shared.EventStreakBroken,
		shared.EventLedgerReset, shared.EventBadgeAwarded,
		shared.EventSyncMerged:
		h.observer.Refresh(ctx, progress.UserID(event.AggregateID()))
	}
	return nil
}

// EventTypes lists the events this handler subscribes to.
func (h *RefreshProgressHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventXPGained,
		shared.EventLevelUp,
		shared.EventStreakUpdated,
		shared.EventStreakBroken,
		shared.EventLedgerReset,
		shared.EventBadgeAwarded,
		shared.EventSyncMerged,
	}
}
