package keyedlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_SerializesSameKey(t *testing.T) {
	arena := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arena.Lock("user-1")
			counter++
			arena.Unlock("user-1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, arena.Len(), "idle keys must be released")
}

func TestArena_DifferentKeysDoNotBlock(t *testing.T) {
	arena := New()
	arena.Lock("user-1")

	done := make(chan struct{})
	go func() {
		arena.Lock("user-2")
		arena.Unlock("user-2")
		close(done)
	}()

	// user-2 proceeds while user-1 is held.
	<-done
	arena.Unlock("user-1")
}

func TestArena_WithLock(t *testing.T) {
	arena := New()

	err := arena.WithLock("user-1", func() error {
		assert.Equal(t, 1, arena.Len())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, arena.Len())
}

func TestArena_UnlockUnknownKeyPanics(t *testing.T) {
	arena := New()
	assert.Panics(t, func() { arena.Unlock("ghost") })
}
