package pricing

import "sync"

// keyedMutex serializes work per symbol. Price refresh and virality sync
// jobs both read-modify-write the symbol's virality baseline; without
// per-symbol serialization concurrent executions corrupt the delta
// baseline.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entryLock)}
}

// lock acquires the mutex for a key and returns its release func. Entries
// are reference counted so the map does not grow with delisted symbols.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entryLock{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
