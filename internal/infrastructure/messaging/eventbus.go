// Package messaging implements the in-memory event bus that carries domain
// events from command handlers to subscribers.
package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// Suitable for the single-process engine. A handler failure is logged and
// counted, never propagated to the publisher: the write that produced the
// event has already committed.
// ══════════════════════════════════════════════════════════════════════════════

// ErrEventBusClosed is returned when using a closed bus.
var ErrEventBusClosed = errors.New("event bus is closed")

// InMemoryEventBus implements shared.EventBus.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	log         *logger.Logger
	closed      bool
	wg          sync.WaitGroup

	statsMu        sync.Mutex
	published      int64
	handlerErrors  int64
	handlerTimeout time.Duration
}

// Config contains configuration for InMemoryEventBus.
type Config struct {
	// AsyncMode dispatches handlers on the worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize caps concurrent handler invocations in async mode.
	WorkerPoolSize int

	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AsyncMode:      true,
		WorkerPoolSize: 8,
		HandlerTimeout: 10 * time.Second,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config Config) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = logger.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 8
	}
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = 10 * time.Second
	}

	return &InMemoryEventBus{
		handlers:       make(map[shared.EventType][]shared.EventHandler),
		asyncMode:      config.AsyncMode,
		workerPool:     make(chan struct{}, config.WorkerPoolSize),
		log:            config.Logger.With(logger.Domain("eventbus")),
		handlerTimeout: config.HandlerTimeout,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

// SubscribeAll registers a handler for every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}
	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := make([]shared.EventHandler, 0,
		len(b.handlers[event.EventType()])+len(b.allHandlers))
	targets = append(targets, b.handlers[event.EventType()]...)
	targets = append(targets, b.allHandlers...)
	b.mu.RUnlock()

	b.statsMu.Lock()
	b.published++
	b.statsMu.Unlock()

	for _, handler := range targets {
		if b.asyncMode {
			b.wg.Add(1)
			go func(h shared.EventHandler) {
				defer b.wg.Done()
				b.workerPool <- struct{}{}
				defer func() { <-b.workerPool }()
				b.invoke(h, event)
			}(handler)
		} else {
			b.invoke(handler, event)
		}
	}
	return nil
}

// PublishAll sends a batch of events in order.
func (b *InMemoryEventBus) PublishAll(events []shared.Event) error {
	for _, event := range events {
		if err := b.Publish(event); err != nil {
			return err
		}
	}
	return nil
}

// Close stops accepting events and waits for in-flight handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

// Stats returns published event and handler failure counters.
func (b *InMemoryEventBus) Stats() (published, failures int64) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.published, b.handlerErrors
}

func (b *InMemoryEventBus) invoke(handler shared.EventHandler, event shared.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.handlerTimeout)
	defer cancel()

	if err := handler.Handle(ctx, event); err != nil {
		b.statsMu.Lock()
		b.handlerErrors++
		b.statsMu.Unlock()

		b.log.Error("event handler failed",
			logger.String("handler", handler.Name()),
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err))
	}
}
