// Package keyedlock provides per-key mutual exclusion. The progress engine
// uses it to serialize all writes to a user's ledger while letting writes
// for different users proceed in parallel.
// No external dependencies - uses only standard library.
package keyedlock

import (
	"sync"
)

// Arena hands out one mutex per key. Mutexes are created lazily and
// reference-counted, so idle keys do not accumulate memory.
type Arena struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty Arena.
func New() *Arena {
	return &Arena{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available.
func (a *Arena) Lock(key string) {
	a.mu.Lock()
	e, ok := a.locks[key]
	if !ok {
		e = &entry{}
		a.locks[key] = e
	}
	e.refs++
	a.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for key. Unlocking a key that was never
// locked panics, same as sync.Mutex.
func (a *Arena) Unlock(key string) {
	a.mu.Lock()
	e, ok := a.locks[key]
	if !ok {
		a.mu.Unlock()
		panic("keyedlock: unlock of unlocked key " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(a.locks, key)
	}
	a.mu.Unlock()

	e.mu.Unlock()
}

// WithLock runs fn while holding the mutex for key.
func (a *Arena) WithLock(key string, fn func() error) error {
	a.Lock(key)
	defer a.Unlock(key)
	return fn()
}

// Len returns the number of keys currently held or contended.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}
