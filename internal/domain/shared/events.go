// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progress events
	EventXPGained      EventType = "progress.xp_gained"
	EventLevelUp       EventType = "progress.level_up"
	EventStreakUpdated EventType = "progress.streak_updated"
	EventStreakBroken  EventType = "progress.streak_broken"
	EventLedgerReset   EventType = "progress.ledger_reset"

	// Badge events
	EventBadgeAwarded EventType = "badge.awarded"

	// Daily goal events
	EventDailyGoalCreated   EventType = "dailygoal.created"
	EventDailyGoalCompleted EventType = "dailygoal.completed"
	EventDailyGoalArchived  EventType = "dailygoal.archived"

	// Leaderboard events
	EventRankChanged        EventType = "leaderboard.rank_changed"
	EventLeaderboardRebuilt EventType = "leaderboard.rebuilt"

	// Sync events
	EventSyncCompleted EventType = "sync.completed"
	EventSyncFailed    EventType = "sync.failed"
	EventSyncMerged    EventType = "sync.merged"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// Payload implements Event interface with the base fields only.
// Concrete events override this with their own data.
func (e BaseEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"type":         string(e.Type),
		"aggregate_id": e.AggregateId,
		"timestamp":    e.Timestamp,
	}
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Publisher / Handler contracts
// Implemented by infrastructure/messaging; consumed by application handlers.
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a single domain event.
type EventHandler interface {
	// Handle processes the event. Returning an error does not stop other
	// handlers; the bus logs and counts failures.
	Handle(ctx context.Context, event Event) error

	// Name identifies the handler for logging and metrics.
	Name() string
}

// EventHandlerFunc adapts a function to the EventHandler interface.
type EventHandlerFunc struct {
	HandlerName string
	Fn          func(ctx context.Context, event Event) error
}

// Handle implements EventHandler.
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Fn(ctx, event)
}

// Name implements EventHandler.
func (f EventHandlerFunc) Name() string {
	return f.HandlerName
}

// EventPublisher publishes domain events to interested handlers.
type EventPublisher interface {
	// Publish sends an event to all subscribed handlers.
	Publish(event Event) error

	// PublishAll sends a batch of events in order.
	PublishAll(events []Event) error
}

// EventSubscriber registers handlers for event types.
type EventSubscriber interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for every event.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscription.
type EventBus interface {
	EventPublisher
	EventSubscriber

	// Close shuts the bus down and waits for in-flight handlers.
	Close() error
}

// NoopPublisher discards all events. Useful in tests and in read-only tools.
type NoopPublisher struct{}

// Publish implements EventPublisher.
func (NoopPublisher) Publish(Event) error { return nil }

// PublishAll implements EventPublisher.
func (NoopPublisher) PublishAll([]Event) error { return nil }
