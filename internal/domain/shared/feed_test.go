package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvResult[T any](t *testing.T, sub *Subscription[T]) Result[T] {
	t.Helper()
	select {
	case r, ok := <-sub.C():
		require.True(t, ok, "channel closed unexpectedly")
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for emission")
		return Result[T]{}
	}
}

func TestFeed_LoadingPrecedesFirstValue(t *testing.T) {
	feed := NewFeed[int]()
	defer feed.Close()

	sub := feed.Subscribe()
	defer sub.Cancel()

	first := recvResult(t, sub)
	assert.True(t, first.IsLoading())

	feed.Publish(Success(10))
	second := recvResult(t, sub)
	v, ok := second.Value()
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestFeed_LateSubscriberGetsStalePartial(t *testing.T) {
	feed := NewFeed[int]()
	defer feed.Close()

	feed.Publish(Success(5))

	sub := feed.Subscribe()
	defer sub.Cancel()

	first := recvResult(t, sub)
	assert.True(t, first.IsLoading())
	partial, ok := first.Partial()
	assert.True(t, ok, "late subscriber should see the last value as stale partial")
	assert.Equal(t, 5, partial)

	second := recvResult(t, sub)
	assert.True(t, second.IsSuccess())
}

func TestFeed_ErrorIsNeverSwallowed(t *testing.T) {
	feed := NewFeed[int]()
	defer feed.Close()

	sub := feed.Subscribe()
	defer sub.Cancel()
	recvResult(t, sub) // initial Loading

	feed.Publish(Failure[int](KindNetwork, "down", nil))
	got := recvResult(t, sub)
	assert.True(t, got.IsError())
	assert.Equal(t, KindNetwork, got.ErrorKind())

	// An Error does not become the primed value for future subscribers.
	late := feed.Subscribe()
	defer late.Cancel()
	first := recvResult(t, late)
	assert.True(t, first.IsLoading())
	_, hasPartial := first.Partial()
	assert.False(t, hasPartial)
}

func TestFeed_CancelDetaches(t *testing.T) {
	feed := NewFeed[int]()
	defer feed.Close()

	sub := feed.Subscribe()
	assert.Equal(t, 1, feed.SubscriberCount())

	sub.Cancel()
	assert.Equal(t, 0, feed.SubscriberCount())

	// Double cancel is safe.
	sub.Cancel()

	// Channel is closed after cancel.
	_, ok := <-sub.C()
	for ok {
		_, ok = <-sub.C()
	}
}

func TestFeed_SlowConsumerDropsOldest(t *testing.T) {
	feed := NewFeed[int]()
	defer feed.Close()

	sub := feed.Subscribe()
	defer sub.Cancel()

	// Overflow the buffer; publisher must not block.
	for i := 0; i < subscriptionBuffer*2; i++ {
		feed.Publish(Success(i))
	}

	// The newest emission is still delivered eventually.
	var last Result[int]
	for {
		select {
		case r := <-sub.C():
			last = r
			continue
		default:
		}
		break
	}
	v, ok := last.Value()
	require.True(t, ok)
	assert.Equal(t, subscriptionBuffer*2-1, v)
}

func TestFeed_CloseClosesSubscribers(t *testing.T) {
	feed := NewFeed[int]()
	sub := feed.Subscribe()
	recvResult(t, sub)

	feed.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)

	// Subscribing after close yields a closed channel.
	late := feed.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
}
