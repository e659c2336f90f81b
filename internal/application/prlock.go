package application

import (
	"context"
	"sync"
)

// PRLock serializes work per key. Holders of the same key run one at a time
// in the order they started waiting; different keys never block each other.
type PRLock struct {
	mu    sync.Mutex
	slots map[string]*prSlot
}

type prSlot struct {
	ch   chan struct{}
	refs int
}

// NewPRLock creates an empty PRLock.
func NewPRLock() *PRLock {
	return &PRLock{slots: make(map[string]*prSlot)}
}

// Lock blocks until key is free or ctx is done. On success it returns the
// function that releases the key; it must be called exactly once.
func (l *PRLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &prSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(key, slot)
		})
	}, nil
}

// Active returns the number of keys that are held or awaited.
func (l *PRLock) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *PRLock) release(key string, slot *prSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
