package workflow

import (
	"context"
	"sync"
)

// requestLocks serializes mutations per request id. Entries are reference
// counted and dropped when the last holder or waiter leaves.
type requestLocks struct {
	mu    sync.Mutex
	locks map[int64]*requestLock
}

type requestLock struct {
	ch   chan struct{}
	refs int
}

func newRequestLocks() *requestLocks {
	return &requestLocks{locks: make(map[int64]*requestLock)}
}

// acquire blocks until the lock for id is held or ctx is done.
func (l *requestLocks) acquire(ctx context.Context, id int64) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &requestLock{ch: make(chan struct{}, 1)}
		l.locks[id] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
		return func() {
			<-lock.ch
			l.release(id, lock)
		}, nil
	case <-ctx.Done():
		l.release(id, lock)
		return nil, ctx.Err()
	}
}

func (l *requestLocks) release(id int64, lock *requestLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *requestLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
