package engine

import "sync"

// keyedMutex hands out a mutual-exclusion scope per string key.
// Entries are reference counted and removed once the last holder
// unlocks, so the map does not grow with the key space.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

func (m *keyedMutex) lock(key string) (unlock func()) {
	m.mu.Lock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &keyedLock{}
		m.locks[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		m.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
