package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
)

// KeyedLock serializes work per auction identifier. Admissions for
// different auctions never contend; a caller that cannot take the slot
// within the timeout gets ErrBusy instead of queueing forever.
type KeyedLock struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{slots: make(map[string]*lockSlot)}
}

func (l *KeyedLock) get(key string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *KeyedLock) put(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// Acquire takes the per-key slot, waiting at most timeout. The returned
// error is ErrBusy on timeout or context cancellation; the caller must
// not Release in that case.
func (l *KeyedLock) Acquire(ctx context.Context, key string, timeout time.Duration) error {
	slot := l.get(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		return nil
	case <-timer.C:
		l.put(key)
		return domain.ErrBusy
	case <-ctx.Done():
		l.put(key)
		return fmt.Errorf("%w: %v", domain.ErrBusy, ctx.Err())
	}
}

func (l *KeyedLock) Release(key string) {
	l.mu.Lock()
	slot := l.slots[key]
	l.mu.Unlock()
	if slot == nil {
		return
	}
	<-slot.ch
	l.put(key)
}
