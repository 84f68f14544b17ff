package document

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// Locker hands out one mutex per (guild, document) pair. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type Locker struct {
	locks map[memoryKey]*lockEntry
	mu    sync.Mutex
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[memoryKey]*lockEntry)}
}

// Lock blocks until the (guild, name) pair is free and returns its unlock func.
func (l *Locker) Lock(guildID snowflake.ID, name string) (unlock func()) {
	key := memoryKey{guildID, name}

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of live lock entries.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
