package repository

import "sync"

// keyedMutex serializes work per exercise key. Two concurrent RecordSet
// calls for the same exercise would otherwise both read the same stale
// LastSession, both build a "new" same-day session, and the second write
// would silently clobber the first.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint64]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uint64]*keyLock)}
}

// Lock blocks until the key is free and returns the unlock function.
func (k *keyedMutex) Lock(key uint64) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
