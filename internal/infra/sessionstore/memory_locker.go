package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/zephyre/internal/domain/session"
)

// MemoryLocker is a per-key mutex for a single process.
// A key's slot is dropped once no holder or waiter references it.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker constructs a locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*lockSlot)}
}

// Lock waits for key to be free or ctx to end. ttl is ignored; holders always release.
func (l *MemoryLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	slot := l.acquire(key)
	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseRef(key, slot)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.releaseRef(key, slot)
		})
	}, nil
}

func (l *MemoryLocker) acquire(key string) *lockSlot {
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

func (l *MemoryLocker) releaseRef(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

var _ session.Locker = (*MemoryLocker)(nil)
