package investigation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedLock serialises work per key. Entries are reference counted and
// dropped once nobody holds or waits on them.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases it.
func (k *keyedLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: semaphore.NewWeighted(1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		k.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.sem.Release(1)
			k.release(key, e)
		})
	}, nil
}

func (k *keyedLock) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
