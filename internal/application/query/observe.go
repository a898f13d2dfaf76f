package query

import (
	"context"
	"sync"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/progress"
	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OBSERVE PROGRESS
// Push-based reads: one feed per user, re-emitting the progress view after
// every committed write. Subscribers get an explicit Cancel handle; a slow
// subscriber drops stale emissions instead of blocking the writer.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressObserver serves live progress feeds.
type ProgressObserver struct {
	progressQuery *GetProgressHandler

	mu    sync.Mutex
	feeds map[progress.UserID]*shared.Feed[ProgressView]
}

// NewProgressObserver creates a new ProgressObserver.
func NewProgressObserver(progressQuery *GetProgressHandler) *ProgressObserver {
	return &ProgressObserver{
		progressQuery: progressQuery,
		feeds:         make(map[progress.UserID]*shared.Feed[ProgressView]),
	}
}

// Observe subscribes to a user's progress. The subscription immediately
// receives a Loading emission, then the current view, then one emission
// per committed change until cancelled.
func (o *ProgressObserver) Observe(ctx context.Context, userID progress.UserID) *shared.Subscription[ProgressView] {
	feed := o.feed(userID)
	sub := feed.Subscribe()

	// Prime the feed with the current state so the first real emission
	// does not wait for the next write.
	go func() {
		result := o.progressQuery.Handle(ctx, GetProgressQuery{UserID: userID.String()})
		feed.Publish(result)
	}()

	return sub
}

// Refresh recomputes and re-publishes the view for a user. Called by the
// event handlers after every committed write.
func (o *ProgressObserver) Refresh(ctx context.Context, userID progress.UserID) {
	o.mu.Lock()
	feed, ok := o.feeds[userID]
	o.mu.Unlock()
	if !ok || feed.SubscriberCount() == 0 {
		// Nobody is watching; the next Observe will prime itself.
		return
	}

	result := o.progressQuery.Handle(ctx, GetProgressQuery{UserID: userID.String()})
	feed.Publish(result)
}

// Close shuts down all feeds.
func (o *ProgressObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, feed := range o.feeds {
		feed.Close()
	}
	o.feeds = make(map[progress.UserID]*shared.Feed[ProgressView])
}

func (o *ProgressObserver) feed(userID progress.UserID) *shared.Feed[ProgressView] {
	o.mu.Lock()
	defer o.mu.Unlock()
	feed, ok := o.feeds[userID]
	if !ok {
		feed = shared.NewFeed[ProgressView]()
		o.feeds[userID] = feed
	}
	return feed
}
