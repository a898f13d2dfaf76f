// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"sync"
)

// ═══════════════════════════════════════════════════════════════════════════
// Feed / Subscription
// Continuous producers ("observe my progress", "observe the leaderboard")
// push Result-wrapped values to registered consumers. The lifecycle is
// explicit: Subscribe returns a cancellation handle, and consumers must
// call Cancel on teardown or the subscriber entry leaks.
// ═══════════════════════════════════════════════════════════════════════════

// subscriptionBuffer is the per-subscriber channel capacity. A slow consumer
// loses its oldest pending emission rather than blocking the producer.
const subscriptionBuffer = 16

// Subscription is a consumer's handle on a Feed.
type Subscription[T any] struct {
	ch     chan Result[T]
	cancel func()
	once   sync.Once
}

// C returns the receive channel. It is closed after Cancel or Feed.Close.
func (s *Subscription[T]) C() <-chan Result[T] {
	return s.ch
}

// Cancel detaches the subscription from its feed and closes the channel.
// Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
}

// Feed is a push-based producer of Result values.
// A new subscriber always receives a Loading emission first: either a bare
// Loading, or Loading carrying the feed's last known value as a stale
// partial payload.
type Feed[T any] struct {
	mu     sync.Mutex
	subs   map[int]*Subscription[T]
	nextID int
	last   Result[T]
	primed bool
	closed bool
}

// NewFeed creates an empty feed.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]*Subscription[T])}
}

// Subscribe registers a consumer. The Loading emission precedes any value.
func (f *Feed[T]) Subscribe() *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++

	sub := &Subscription[T]{ch: make(chan Result[T], subscriptionBuffer)}
	sub.cancel = func() { f.remove(id) }

	if f.closed {
		close(sub.ch)
		return sub
	}

	f.subs[id] = sub

	if f.primed {
		if v, ok := f.last.Value(); ok {
			sub.ch <- LoadingWith(v, 0)
			sub.ch <- f.last
			return sub
		}
	}
	sub.ch <- Loading[T]()
	return sub
}

// Publish pushes a Result to every live subscriber.
// Success results become the feed's last known value and will seed the
// Loading emission of future subscribers.
func (f *Feed[T]) Publish(r Result[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	if r.IsSuccess() {
		f.last = r
		f.primed = true
	}

	for _, sub := range f.subs {
		select {
		case sub.ch <- r:
		default:
			// Drop the oldest pending emission to make room.
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- r
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (f *Feed[T]) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close detaches and closes every subscription. Further Publish calls
// are no-ops; further Subscribe calls return an already-closed channel.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	for id, sub := range f.subs {
		close(sub.ch)
		delete(f.subs, id)
	}
}

func (f *Feed[T]) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub, ok := f.subs[id]
	if !ok {
		return
	}
	delete(f.subs, id)
	close(sub.ch)
}
