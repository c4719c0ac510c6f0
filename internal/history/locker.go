package history

import (
	"context"
	"sync"
)

// Locker serializes work per key within the process.
type Locker struct {
	mutex sync.Mutex
	locks map[string]chan struct{}
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]chan struct{})}
}

func (l *Locker) slot(key string) chan struct{} {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	return ch
}

// Lock blocks until key is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
