package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexReleasesKeys(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}

func TestKeyedMutexSerialisesOneKey(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("c-1")

	otherKey := make(chan struct{})
	go func() {
		k.Lock("c-2")()
		close(otherKey)
	}()
	select {
	case <-otherKey:
	case <-time.After(time.Second):
		t.Fatal("a different key must not block")
	}

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	go func() {
		k.Lock("c-1")()
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	order = append(order, "first")
	mu.Unlock()
	unlock()
	<-done

	assert.Equal(t, []string{"first", "second"}, order)
}
