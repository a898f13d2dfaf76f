package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oqu-hub/oqu-progress-engine/internal/domain/shared"
	"github.com/oqu-hub/oqu-progress-engine/pkg/logger"
)

func syncBus() *InMemoryEventBus {
	cfg := DefaultConfig()
	cfg.AsyncMode = false
	cfg.Logger = logger.Nop()
	return NewInMemoryEventBus(cfg)
}

type countingHandler struct {
	mu    sync.Mutex
	seen  []shared.EventType
	fail  bool
	label string
}

func (h *countingHandler) Handle(_ context.Context, event shared.Event) error {
	h.mu.Lock()
	h.seen = append(h.seen, event.EventType())
	h.mu.Unlock()
	if h.fail {
		return errors.New("handler boom")
	}
	return nil
}

func (h *countingHandler) Name() string { return h.label }

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func TestBus_RoutesByEventType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	xpHandler := &countingHandler{label: "xp"}
	allHandler := &countingHandler{label: "all"}
	require.NoError(t, bus.Subscribe(shared.EventXPGained, xpHandler))
	require.NoError(t, bus.SubscribeAll(allHandler))

	require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPGained, "user-1")))
	require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventSyncMerged, "user-1")))

	assert.Equal(t, 1, xpHandler.count())
	assert.Equal(t, 2, allHandler.count())
}

func TestBus_HandlerFailureDoesNotPropagate(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	failing := &countingHandler{label: "failing", fail: true}
	healthy := &countingHandler{label: "healthy"}
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, failing))
	require.NoError(t, bus.Subscribe(shared.EventLevelUp, healthy))

	err := bus.Publish(shared.NewBaseEvent(shared.EventLevelUp, "user-1"))
	require.NoError(t, err, "publisher must not see handler failures")

	assert.Equal(t, 1, healthy.count())
	_, failures := bus.Stats()
	assert.Equal(t, int64(1), failures)
}

func TestBus_ClosedRejectsPublishAndSubscribe(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewBaseEvent(shared.EventXPGained, "u")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventXPGained, &countingHandler{}), ErrEventBusClosed)

	// Double close is safe.
	assert.NoError(t, bus.Close())
}

func TestBus_AsyncDelivery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logger = logger.Nop()
	bus := NewInMemoryEventBus(cfg)

	handler := &countingHandler{label: "async"}
	require.NoError(t, bus.SubscribeAll(handler))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewBaseEvent(shared.EventXPGained, "user-1")))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())
	assert.Equal(t, 20, handler.count())
}
