package usecase

import (
	"context"
	"sync"
)

// KeyedLock is a set of mutexes addressed by key. Entries are reference counted
// and dropped once no goroutine holds or waits on them.
type KeyedLock struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{entries: make(map[string]*keyedEntry)}
}

// Lock blocks until key is acquired or ctx is done.
func (l *KeyedLock) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return l.unlocker(key, e), nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

// TryLock acquires key only if nobody holds it.
func (l *KeyedLock) TryLock(key string) (func(), bool) {
	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return l.unlocker(key, e), true
	default:
		l.release(key, e)
		return nil, false
	}
}

func (l *KeyedLock) acquire(key string) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *KeyedLock) release(key string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *KeyedLock) unlocker(key string, e *keyedEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}
}

func (l *KeyedLock) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
