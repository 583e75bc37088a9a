// Package keylock serializes work per key. Different keys never block each
// other.
package keylock

import (
	"context"
	"sync"
)

// Table hands out one lock per key. Entries are dropped when no goroutine
// holds or waits for them. The zero value is ready to use.
type Table struct {
	mu    sync.Mutex
	locks map[string]*lock
}

type lock struct {
	sem  chan struct{}
	refs int
}

// Lock blocks until the key is free or ctx is done. The returned function
// releases the lock and must be called exactly once.
func (t *Table) Lock(ctx context.Context, key string) (func(), error) {
	l := t.acquire(key)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		t.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			t.release(key, l)
		})
	}, nil
}

// Len reports the number of keys currently held or awaited.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

func (t *Table) acquire(key string) *lock {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.locks == nil {
		t.locks = make(map[string]*lock)
	}
	l, ok := t.locks[key]
	if !ok {
		l = &lock{sem: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *Table) release(key string, l *lock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}
